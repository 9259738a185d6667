// Package main is the entry point of the OJT HTTP service: the admin API,
// the public check-in pages and the participant portal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/bootstrap"
	httpserver "github.com/solvera/ojt-core/internal/interface/http"
	"github.com/solvera/ojt-core/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg.Observability)
	defer func() { _ = log.Sync() }()

	log.Info("starting OJT server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE, CACHE, EVENT BUS, HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{
		Migrate:           cfg.Database.AutoMigrate,
		SubscribeHandlers: true,
		Metrics:           cfg.Observability.MetricsEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing connections")
		app.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	srv, err := httpserver.NewServer(
		httpserver.ConfigFrom(cfg.App, cfg.HTTP, cfg.Observability),
		httpserver.Dependencies{
			Commands:      app.Commands,
			Queries:       app.Queries,
			Authenticator: app.Auth,
			HealthChecker: app.Health,
			Metrics:       app.Metrics,
			Features:      cfg.Features,
			Logger:        log,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	if len(cfg.HTTP.APIKeys) == 0 {
		log.Warn("HTTP_API_KEYS is empty, the admin API rejects every request")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	// The worker owns the crons; SCHEDULER_IN_SERVER runs them here for
	// single-binary deployments.
	if cfg.Scheduler.Enabled && cfg.Scheduler.InServer {
		sched, err := app.Scheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown completed")
	return nil
}
