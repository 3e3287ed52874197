package auth

import (
	"SmartNotice/internal/apperr"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type UserService struct {
	store  IdentityStore
	tokens *TokenIssuer
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(store IdentityStore, tokens *TokenIssuer, logger *zap.Logger) *UserService {
	return &UserService{store: store, tokens: tokens, logger: logger, now: time.Now}
}

func (s *UserService) Signup(ctx context.Context, req SignupRequest) (Principal, error) {
	email := strings.TrimSpace(req.Email)
	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Principal{}, err
	}
	if existing != nil {
		return Principal{}, errors.Wrap(apperr.ErrConflict, "email already registered")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return Principal{}, errors.Wrap(err, "hash password")
	}

	user := &User{
		ID:           primitive.NewObjectID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return Principal{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return user.Principal(), nil
}

// VerifyCredentials returns the matching user, or nil when the email is
// unknown or the password does not match.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, cred Credential) (TokenPair, error) {
	user, err := s.VerifyCredentials(ctx, cred.Email, cred.Password)
	if err != nil {
		return TokenPair{}, err
	}
	if user == nil {
		return TokenPair{}, errors.Wrap(apperr.ErrUnauthorized, "invalid credentials")
	}

	id := user.ID.Hex()
	access, err := s.tokens.AccessToken(id)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign access token")
	}
	refresh, err := s.tokens.RefreshToken(id)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign refresh token")
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, User: user.Principal()}, nil
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, errors.Wrap(apperr.ErrUnauthorized, err.Error())
	}
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	if user == nil {
		return TokenPair{}, errors.Wrap(apperr.ErrUnauthorized, "invalid user")
	}
	access, err := s.tokens.AccessToken(userID)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign access token")
	}
	return TokenPair{AccessToken: access, User: user.Principal()}, nil
}

// Authenticate resolves a bearer access token to the current principal.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	userID, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return Principal{}, errors.Wrap(apperr.ErrUnauthorized, err.Error())
	}
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	if user == nil {
		return Principal{}, errors.Wrap(apperr.ErrUnauthorized, "user not found")
	}
	return user.Principal(), nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]Principal, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Principal, 0, len(users))
	for _, u := range users {
		out = append(out, u.Principal())
	}
	return out, nil
}

func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	return s.store.CountUsers(ctx)
}
