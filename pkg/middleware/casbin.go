package middleware

import (
	"SmartNotice/internal/apperr"
	"SmartNotice/internal/auth"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// rbacModel matches the role against the route pattern. Admins inherit every
// user permission through the g grouping.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// Permission grants a role one method on one route pattern.
type Permission struct {
	Role   auth.Role
	Method string
	Path   string
}

// NewEnforcer builds an in-memory enforcer from perms.
func NewEnforcer(perms []Permission) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "load rbac model")
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "create enforcer")
	}

	rules := make([][]string, 0, len(perms))
	for _, p := range perms {
		rules = append(rules, []string{string(p.Role), p.Path, p.Method})
	}
	if len(rules) > 0 {
		if _, err := e.AddPolicies(rules); err != nil {
			return nil, errors.Wrap(err, "add policies")
		}
	}
	if _, err := e.AddGroupingPolicy(string(auth.RoleAdmin), string(auth.RoleUser)); err != nil {
		return nil, errors.Wrap(err, "add role inheritance")
	}
	return e, nil
}

// RBAC enforces the policy for the principal set by JWT. It must run after
// JWT.
func RBAC(enforcer *casbin.Enforcer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := auth.CurrentPrincipal(c)
			if !ok {
				return errors.Wrap(apperr.ErrUnauthorized, "no principal")
			}
			obj, act := c.Path(), c.Request().Method
			allowed, err := enforcer.Enforce(string(p.Role), obj, act)
			if err != nil {
				return errors.Wrap(err, "enforce rbac")
			}
			if !allowed {
				logger.Debug("rbac denied",
					zap.String("role", string(p.Role)),
					zap.String("obj", obj),
					zap.String("act", act))
				return errors.Wrap(apperr.ErrForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}
