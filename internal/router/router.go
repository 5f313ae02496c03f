package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/config"
	"github.com/iliyamo/pipeline-crm/internal/gateway"
	"github.com/iliyamo/pipeline-crm/internal/handler"
	"github.com/iliyamo/pipeline-crm/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil.
func RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterPages mounts the app shell behind the page gateway.
func RegisterPages(e *echo.Echo, staticDir string) {
	page := handler.Page(staticDir)
	gw := middleware.Gateway()
	e.GET(gateway.LoginPath, page, gw)
	for path := range gateway.Protected {
		e.GET(path, page, gw)
	}
}

// RegisterAuth registers login, logout and the current-user endpoint.
// Login is rate limited; the limiter degrades to a pass-through when Redis
// is unavailable.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rl config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) {
	g := e.Group("/api/auth")
	g.POST("/login", a.Login, middleware.NewTokenBucket(rl, rdb, log))
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me)
}
