package middleware

import (
	"SmartNotice/internal/apperr"
	"SmartNotice/internal/auth"
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Principal, error)
}

// JWT requires a valid access token and stores the resolved principal under
// auth.ContextKey.
func JWT(authn Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				return errors.Wrap(apperr.ErrUnauthorized, "missing bearer token")
			}
			p, err := authn.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}
			c.Set(auth.ContextKey, p)
			return next(c)
		}
	}
}
