package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/account"
	"github.com/iliyamo/pipeline-crm/internal/auth"
	"github.com/iliyamo/pipeline-crm/internal/config"
	"github.com/iliyamo/pipeline-crm/internal/database"
	"github.com/iliyamo/pipeline-crm/internal/logger"
	"github.com/iliyamo/pipeline-crm/internal/metrics"
	"github.com/iliyamo/pipeline-crm/internal/pipeline"
	"github.com/iliyamo/pipeline-crm/internal/queue"
	"github.com/iliyamo/pipeline-crm/internal/repository"
	"github.com/iliyamo/pipeline-crm/internal/repository/memstore"
	"github.com/iliyamo/pipeline-crm/internal/repository/redisstore"
	"github.com/iliyamo/pipeline-crm/internal/server"
	queue_publisher "github.com/iliyamo/pipeline-crm/internal/service"
	"github.com/iliyamo/pipeline-crm/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable: rate limiting and analytics cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	deps := server.Deps{Redis: rdb, Metrics: m, Log: log}

	switch cfg.Storage {
	case config.StorageMemory:
		store := memstore.New()
		deps.Users, deps.Sessions, deps.Clients = store.Users(), store.Sessions(), store.Clients()
		log.Warn("using in-memory storage; data is lost on restart")
	default:
		db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName), database.DefaultPool)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrate(ctx, db); err != nil {
			return err
		}
		deps.Users = repository.NewUserRepo(db)
		deps.Sessions = repository.NewSessionRepo(db)
		deps.Clients = repository.NewClientRepo(db)
	}

	if cfg.SessionStore == config.SessionsRedis {
		if rdb == nil {
			return errors.New("SESSION_STORE=redis but redis is unreachable")
		}
		deps.Sessions = redisstore.NewSessionStore(rdb)
	}

	if cfg.EventsEnabled {
		deps.Publisher = queue_publisher.New(cfg.RabbitURL, log.Named("publisher"), m)
		consumer := queue.NewConsumer(cfg.RabbitURL, "logs", log.Named("consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("pipeline consumer stopped", zap.Error(err))
			}
		}()
	}

	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	created, err := account.SeedAdmin(seedCtx, deps.Users, cfg.SeedAdminName, cfg.SeedAdminEmail, cfg.SeedAdminPass, cfg.BcryptCost)
	cancel()
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("seeded admin user", zap.String("email", cfg.SeedAdminEmail))
	}

	app := server.New(cfg, config.LoadRateLimitConfig(), config.LoadCacheConfig(), deps)
	go worker.NewSessionSweeper(app.Auth, cfg.SweepInterval, log.Named("sweeper"), m).Run(ctx)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage), zap.String("sessions", cfg.SessionStore))
		errc <- app.Echo.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return app.Echo.Shutdown(shutdownCtx)
}

func migrate(ctx context.Context, db *sql.DB) error {
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(mctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

var (
	_ auth.SessionStore    = (*redisstore.SessionStore)(nil)
	_ pipeline.ClientStore = (*repository.ClientRepo)(nil)
	_ server.UserStore     = (*repository.UserRepo)(nil)
)
