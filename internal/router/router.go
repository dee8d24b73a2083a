package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/task-manager/internal/config"
	"github.com/iliyamo/task-manager/internal/handler"
	"github.com/iliyamo/task-manager/internal/logger"
	"github.com/iliyamo/task-manager/internal/metrics"
	"github.com/iliyamo/task-manager/internal/middleware"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/service"
)

// Deps is everything the HTTP layer needs. Redis may be nil.
type Deps struct {
	Log     *slog.Logger
	Config  config.Config
	Auth    *service.AuthService
	Users   *service.UserService
	Tasks   *service.TaskService
	Metrics *metrics.Metrics
	Redis   *redis.Client
}

// New builds the echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	trusted, err := d.Config.TrustedProxyNets()
	if err != nil {
		d.Log.Warn("ignoring trusted proxies", logger.Err(err))
		trusted = nil
	}
	e.IPExtractor = middleware.IPExtractor(trusted)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	if d.Metrics != nil {
		e.Use(middleware.Instrument(d.Metrics))
	}

	// Unauthenticated routes are limited per address; everything behind the
	// gate is limited after it so user-keyed strategies see the user.
	authLimit := middleware.NewTokenBucket(d.Config.RateLimit.ForAuth(), d.Redis, d.Log)
	userLimit := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log)
	gate := middleware.JWTAuth(d.Auth, d.Log)
	guarded := []echo.MiddlewareFunc{gate, userLimit}
	timeout := d.Config.RequestTimeout

	RegisterRoutes(e, d.Metrics)
	RegisterAuth(e, handler.NewAuthHandler(d.Auth, timeout), authLimit, guarded)
	RegisterAdmin(e, handler.NewAdminHandler(d.Users, timeout), guarded,
		middleware.NewCacheInvalidator(d.Config.Cache, d.Redis, d.Log))
	RegisterTasks(e, handler.NewTaskHandler(d.Tasks, timeout), guarded,
		middleware.NewRedisCache(d.Config.Cache, d.Redis, d.Log))
	return e
}

// RegisterRoutes registers routes that do not require authentication:
// the welcome message, the health check and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, m *metrics.Metrics) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// RegisterAuth registers the token endpoints under /auth and the caller's
// own profile under /users/me. guarded is the gate followed by anything
// that needs the resolved user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc, guarded []echo.MiddlewareFunc) {
	g := e.Group("/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	e.GET("/users/me", a.Me, guarded...)
}

// RegisterAdmin registers user management endpoints; only admins pass.
// Deleting a user orphans its tasks, so cached task views are dropped.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, guarded []echo.MiddlewareFunc, invalidate echo.MiddlewareFunc) {
	g := e.Group("/admin", append(guarded[:len(guarded):len(guarded)], middleware.RequireRole(model.RoleAdmin))...)
	g.GET("/users", h.ListUsers)
	g.DELETE("/users/:id", h.DeleteUser, invalidate)
}

// RegisterTasks registers task CRUD for any authenticated user. The cache
// sits behind the gate so entries are keyed by the resolved user.
func RegisterTasks(e *echo.Echo, h *handler.TaskHandler, guarded []echo.MiddlewareFunc, cache echo.MiddlewareFunc) {
	g := e.Group("/tasks", append(guarded[:len(guarded):len(guarded)], cache)...)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
