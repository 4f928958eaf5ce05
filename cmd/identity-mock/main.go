package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/config"
	"github.com/spec-kit/portal-auth/internal/identitymock"
	"github.com/spec-kit/portal-auth/internal/observability"
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

	svc := identitymock.NewService(cfg.Mock, logger)
	if err := svc.Seed(context.Background(), cfg.Mock.SeedUsers); err != nil {
		logger.Fatal("failed to seed users", zap.Error(err))
	}

	app := identitymock.NewApp(svc, logger, observability.NewMetrics())

	go func() {
		if err := app.Listen(cfg.Mock.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("identity mock started", zap.String("addr", cfg.Mock.Addr()))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
