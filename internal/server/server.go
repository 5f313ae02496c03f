// Package server assembles services, handlers and routes into an echo
// instance.  cmd/server picks the stores; tests pass in-memory ones.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/account"
	"github.com/iliyamo/pipeline-crm/internal/analytics"
	"github.com/iliyamo/pipeline-crm/internal/auth"
	"github.com/iliyamo/pipeline-crm/internal/config"
	"github.com/iliyamo/pipeline-crm/internal/handler"
	"github.com/iliyamo/pipeline-crm/internal/metrics"
	"github.com/iliyamo/pipeline-crm/internal/middleware"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/pipeline"
	"github.com/iliyamo/pipeline-crm/internal/router"
)

// UserStore is the credential store as the whole server uses it.
type UserStore interface {
	account.UserStore
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// Deps are the stores and adapters the server runs on.  Redis, Publisher
// and Metrics are optional.
type Deps struct {
	Users     UserStore
	Sessions  auth.SessionStore
	Clients   pipeline.ClientStore
	Redis     *redis.Client
	Publisher pipeline.Publisher
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Clock     func() time.Time
}

// App is the assembled server.
type App struct {
	Echo *echo.Echo
	Auth *auth.Service
}

func New(cfg config.Config, rl config.RateLimitConfig, cc config.CacheConfig, d Deps) *App {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	authOpts := []auth.Option{auth.WithClock(clock), auth.WithLogger(log.Named("auth"))}
	if d.Metrics != nil {
		authOpts = append(authOpts, auth.WithRecorder(d.Metrics))
	}
	authSvc := auth.NewService(auth.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, d.Users, d.Sessions, authOpts...)

	cache := analytics.NewCache(cc, d.Redis, log.Named("analytics"))
	pipeOpts := []pipeline.Option{
		pipeline.WithClock(clock),
		pipeline.WithLogger(log.Named("pipeline")),
		pipeline.WithInvalidator(cache),
	}
	if d.Publisher != nil {
		pipeOpts = append(pipeOpts, pipeline.WithPublisher(d.Publisher))
	}
	pipeSvc := pipeline.NewService(authSvc, d.Clients, pipeOpts...)
	accSvc := account.NewService(authSvc, d.Users, cfg.BcryptCost, log.Named("account"))
	anaSvc := analytics.NewService(authSvc, d.Clients, d.Users, cache, log.Named("analytics"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.Named("http")))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowCredentials: true,
		}))
	}

	secure := cfg.Production()
	var metricsHandler http.Handler
	if d.Metrics != nil {
		metricsHandler = d.Metrics.Handler()
	}
	router.RegisterRoutes(e, metricsHandler)
	router.RegisterPages(e, cfg.StaticDir)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, accSvc, secure, log.Named("auth")), rl, d.Redis, log.Named("ratelimit"))
	router.RegisterClients(e, handler.NewClientHandler(pipeSvc, secure), handler.NewAnalyticsHandler(anaSvc, secure))
	router.RegisterUsers(e, handler.NewUserHandler(accSvc, secure))

	return &App{Echo: e, Auth: authSvc}
}
