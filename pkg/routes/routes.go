package pkg

import (
	"SmartNotice/internal/auth"
	"SmartNotice/internal/config"
	"SmartNotice/internal/delivery"
	"SmartNotice/internal/directory"
	"SmartNotice/internal/lock"
	"SmartNotice/internal/notice"
	"SmartNotice/pkg/middleware"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const apiPrefix = "/api"

var EchoModules = fx.Module("echo",
	fx.Provide(config.Load),
	fx.Provide(config.NewLogger),
	fx.Provide(config.NewMongoDBConfig),
	fx.Provide(config.NewMongoDatabase),
	fx.Provide(config.NewRedisClient),
	fx.Provide(lock.New),
	fx.Provide(NewEchoServer),

	fx.Provide(auth.NewTokenIssuer),
	fx.Provide(fx.Annotate(auth.NewUserRepository,
		fx.As(new(auth.IdentityStore)), fx.As(new(notice.UserLookup)))),
	fx.Provide(auth.NewUserService),
	fx.Provide(auth.NewAuthHandler),

	fx.Provide(fx.Annotate(directory.NewRepository,
		fx.As(fx.Self()), fx.As(new(directory.Directory)))),
	fx.Provide(directory.NewDirectoryHandler),

	fx.Provide(fx.Annotate(delivery.NewLifecycleDispatcher, fx.As(new(notice.Dispatcher)))),
	fx.Provide(fx.Annotate(notice.NewRepository, fx.As(new(notice.Store)))),
	fx.Provide(fx.Annotate(notice.NewAttachmentStore,
		fx.As(fx.Self()), fx.As(new(notice.FileStore)))),
	fx.Provide(notice.NewService),
	fx.Provide(notice.NewScheduler),
	fx.Provide(notice.NewNoticeHandler),

	fx.Invoke(RegisterRoutes),
	fx.Invoke(func(s *notice.Scheduler, lc fx.Lifecycle) { s.Start(lc) }),
)

func NewEchoServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.NewHTTPErrorHandler(logger)
	e.Validator = middleware.NewAppValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit("25M"))

	addr := ":" + strconv.Itoa(cfg.Port)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("server listening", zap.String("addr", addr))
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

type Handlers struct {
	fx.In

	Auth      *auth.AuthHandler
	Notices   *notice.NoticeHandler
	Directory *directory.DirectoryHandler
}

type route struct {
	method  string
	path    string
	role    auth.Role
	handler echo.HandlerFunc
}

// protectedRoutes lists every route behind JWT with the least role allowed
// to call it. Admins inherit user routes.
func protectedRoutes(h Handlers) []route {
	return []route{
		{http.MethodGet, "/auth/current-user", auth.RoleUser, h.Auth.CurrentUser},
		{http.MethodGet, "/users", auth.RoleAdmin, h.Auth.ListUsers},
		{http.MethodGet, "/users/count", auth.RoleAdmin, h.Auth.CountUsers},

		{http.MethodGet, "/years", auth.RoleUser, h.Directory.Years},
		{http.MethodGet, "/sections", auth.RoleUser, h.Directory.Sections},

		{http.MethodGet, "/notices", auth.RoleUser, h.Notices.List},
		{http.MethodGet, "/notices/analytics", auth.RoleAdmin, h.Notices.Summary},
		{http.MethodGet, "/notices/created-by/:userId", auth.RoleUser, h.Notices.ListByCreator},
		{http.MethodGet, "/notices/:id", auth.RoleUser, h.Notices.Get},
		{http.MethodPost, "/notices/:id/read", auth.RoleUser, h.Notices.MarkRead},
		{http.MethodPost, "/notices", auth.RoleAdmin, h.Notices.Create},
		{http.MethodPut, "/notices/:id", auth.RoleAdmin, h.Notices.Update},
		{http.MethodDelete, "/notices/:id", auth.RoleAdmin, h.Notices.Delete},
		{http.MethodGet, "/notices/:id/reads", auth.RoleAdmin, h.Notices.Receipts},
		{http.MethodGet, "/notices/:id/analytics", auth.RoleAdmin, h.Notices.Analytics},
	}
}

func permissions(routes []route) []middleware.Permission {
	out := make([]middleware.Permission, 0, len(routes))
	for _, r := range routes {
		out = append(out, middleware.Permission{Role: r.role, Method: r.method, Path: apiPrefix + r.path})
	}
	return out
}

func RegisterRoutes(e *echo.Echo, h Handlers, users *auth.UserService, logger *zap.Logger) error {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	public := e.Group(apiPrefix + "/auth")
	public.POST("/signup", h.Auth.Signup)
	public.POST("/login", h.Auth.Login)
	public.POST("/refresh", h.Auth.Refresh)
	public.POST("/logout", h.Auth.Logout)

	routes := protectedRoutes(h)
	enforcer, err := middleware.NewEnforcer(permissions(routes))
	if err != nil {
		return err
	}
	protected := e.Group(apiPrefix, middleware.JWT(users), middleware.RBAC(enforcer, logger))
	for _, r := range routes {
		protected.Add(r.method, r.path, r.handler)
	}
	logger.Info("routes registered", zap.Int("protected", len(routes)))
	return nil
}
