package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/portal-auth/internal/api/http"
	"github.com/spec-kit/portal-auth/internal/api/http/handlers"
	"github.com/spec-kit/portal-auth/internal/config"
	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/expiry"
	"github.com/spec-kit/portal-auth/internal/gateway"
	"github.com/spec-kit/portal-auth/internal/guard"
	"github.com/spec-kit/portal-auth/internal/observability"
	"github.com/spec-kit/portal-auth/internal/persistence"
	"github.com/spec-kit/portal-auth/internal/repository"
	"github.com/spec-kit/portal-auth/internal/service"
	"github.com/spec-kit/portal-auth/internal/session"
	"github.com/spec-kit/portal-auth/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handles, deps, closeStores := openTokenStore(ctx, cfg, logger)
	defer closeStores()

	tokenRepo, err := repository.NewTokenRepository(*cfg, handles)
	if err != nil {
		logger.Fatal("failed to build token repository", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	store := session.NewStore(tokenRepo, dispatcher, logger)

	client, err := gateway.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout())
	if err != nil {
		logger.Fatal("invalid identity service url", zap.Error(err))
	}
	gw := gateway.New(client, store, logger, metrics)
	authGuard := guard.New(store, cfg.Session, logger, metrics)
	banner := expiry.NewBanner()
	notifier := expiry.New(store, gw, banner, cfg.Session, logger)
	audit := service.NewSessionAudit(dispatcher, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Session: handlers.NewSessionHandler(gw, store, notifier, banner, authGuard, cfg.Session.LoginPath),
		Guard:   authGuard,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	// Routes answer "loading" until the persisted token has been restored.
	waitWorkers := worker.StartSessionWorkers(ctx, audit, notifier, func(ctx context.Context) {
		if err := store.Init(ctx); err != nil {
			logger.Error("restore session failed, continuing signed out", zap.Error(err))
		}
		if cfg.Session.ValidateOnStart {
			if _, err := gw.ValidateToken(ctx); err != nil {
				logger.Warn("startup token validation skipped", zap.Error(err))
			}
		}
	})
	logger.Info("portal started", zap.String("addr", cfg.App.Addr()), zap.String("token_store", cfg.TokenStore.Driver))

	waitForShutdown(logger)

	notifier.Stop()
	cancel()
	waitWorkers()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

// openTokenStore opens only the backend the configured driver needs.
func openTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Handles, map[string]handlers.Pinger, func()) {
	deps := map[string]handlers.Pinger{}
	var handles repository.Handles
	closeFn := func() {}

	switch cfg.TokenStore.Driver {
	case config.DriverSQLite:
		lite, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.Error(err))
		}
		handles.SQLite = lite.DB
		deps["sqlite"] = lite
		closeFn = lite.Close
	case config.DriverRedis:
		rd, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		handles.Redis = rd.Client
		deps["redis"] = rd
		closeFn = rd.Close
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), os.DirFS(cfg.Postgres.MigrationsDir), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		handles.Postgres = pg.PoolHandle()
		deps["postgres"] = pg
		closeFn = pg.Close
	}
	return handles, deps, closeFn
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
