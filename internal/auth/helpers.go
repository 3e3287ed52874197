package auth

import (
	"SmartNotice/internal/config"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

var (
	errInvalidToken = errors.New("invalid token")
	errWrongKind    = errors.New("wrong token kind")
)

type JWTClaims struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 tokens with the configured secret.
type TokenIssuer struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	return &TokenIssuer{
		key:        cfg.Auth.JWTSecret,
		accessTTL:  cfg.Auth.AccessTTL,
		refreshTTL: cfg.Auth.RefreshTTL,
		now:        time.Now,
	}
}

func (t *TokenIssuer) generate(userID, kind string, duration time.Duration) (string, error) {
	now := t.now()
	claims := &JWTClaims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

func (t *TokenIssuer) AccessToken(userID string) (string, error) {
	return t.generate(userID, tokenAccess, t.accessTTL)
}

func (t *TokenIssuer) RefreshToken(userID string) (string, error) {
	return t.generate(userID, tokenRefresh, t.refreshTTL)
}

func (t *TokenIssuer) validate(tokenString, kind string) (string, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.key, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", errInvalidToken
	}
	if claims.Kind != kind {
		return "", errWrongKind
	}
	return claims.UserID, nil
}

// ValidateAccess returns the user id carried by a valid access token.
func (t *TokenIssuer) ValidateAccess(tokenString string) (string, error) {
	return t.validate(tokenString, tokenAccess)
}

func (t *TokenIssuer) ValidateRefresh(tokenString string) (string, error) {
	return t.validate(tokenString, tokenRefresh)
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
