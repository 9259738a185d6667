// Package main is the entry point of the OJT background worker.
//
// The worker runs the periodic jobs:
//   - marking participants absent once a session started without them
//   - checking participants out after a session ended
//   - the hourly recompute of participant metrics
//
// Replicas coordinate through Redis locks, so several workers may run side by side.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/bootstrap"
	"github.com/solvera/ojt-core/internal/infrastructure/scheduler"
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

	log := bootstrap.NewLogger(cfg.Observability).With(logger.Component("worker"))
	defer func() { _ = log.Sync() }()

	if !cfg.Scheduler.Enabled {
		log.Info("SCHEDULER_ENABLED is false, nothing to do")
		return nil
	}
	if cfg.Database.URL == "" {
		return errors.New("the worker needs DATABASE_URL; in-memory data is private to one process")
	}

	log.Info("starting OJT worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE, CACHE, HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{
		Migrate: cfg.Database.AutoMigrate,
		Metrics: cfg.Observability.MetricsEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing connections")
		app.Close()
	}()
	if app.Cache == nil {
		log.Warn("running without Redis: jobs are not locked across replicas")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := app.Scheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if r.Error != nil {
			log.Warn("job failed", logger.String("job", r.JobName), logger.Err(r.Error))
		}
	})
	for _, j := range sched.ListJobs() {
		log.Info("job registered",
			logger.String("job", j.Name),
			logger.String("schedule", j.Schedule),
			logger.Bool("enabled", j.Enabled),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return sched.Stop()
	})

	if addr := cfg.Observability.WorkerMetricsAddr; addr != "" && app.Metrics != nil {
		srv := opsServer(addr, app)
		g.Go(func() error {
			log.Info("serving worker metrics", logger.String("address", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown completed")
	return nil
}

// opsServer exposes /metrics and a liveness endpoint.
func opsServer(addr string, app *bootstrap.App) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", app.Metrics.Handler())
	r.Get("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
