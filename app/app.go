// Package app assembles the arena backend: database, event bus, metrics,
// the evaluation module, and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"

	"github.com/inf-monkeys/arena/app/modules/evaluation"
	evaluationmetrics "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/metrics"
	"github.com/inf-monkeys/arena/config"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/eventbus"
)

// App is the running application.
type App struct {
	Config     *config.Config
	DB         *bun.DB
	EventBus   eventbus.EventBus
	Evaluation *evaluation.Module

	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
}

// Initialize builds every component and mounts the HTTP routes. Nothing is
// listening yet; call Run to start serving.
func (a *App) Initialize(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a.Config = cfg
	a.logger = logger

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	a.DB = bun.NewDB(sqldb, pgdialect.New())
	if err := a.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.NATS.URL != "" {
		bus, err := eventbus.NewNATSEventBus(ctx, cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		a.EventBus = bus
	} else {
		logger.WarnContext(ctx, "No NATS URL configured, using in-process event bus")
		a.EventBus = eventbus.NewInMemoryEventBus(logger)
	}

	registry := prometheus.NewRegistry()
	metrics := evaluationmetrics.NewPrometheusMetrics(registry)
	tracer := otel.Tracer("arena")

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	module, err := evaluation.NewModule(ctx, cfg, logger, a.DB, a.EventBus, metrics, tracer, router)
	if err != nil {
		return fmt.Errorf("failed to initialize evaluation module: %w", err)
	}
	a.Evaluation = module

	a.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Observability.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		a.metricsServer = &http.Server{
			Addr:              cfg.Observability.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return nil
}

// Run starts the workers and HTTP listeners and blocks until ctx is
// cancelled or a listener fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.Evaluation.Start(ctx); err != nil {
		return fmt.Errorf("failed to start evaluation module: %w", err)
	}

	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("HTTP server listening", attr.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if a.metricsServer != nil {
		go func() {
			a.logger.Info("Metrics server listening", attr.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close shuts everything down in reverse order of startup.
func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown failed", attr.Error(err))
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Metrics server shutdown failed", attr.Error(err))
		}
	}
	if a.Evaluation != nil {
		if err := a.Evaluation.Close(shutdownCtx); err != nil {
			a.logger.Error("Evaluation module shutdown failed", attr.Error(err))
		}
	}
	if a.EventBus != nil {
		if err := a.EventBus.Close(); err != nil {
			a.logger.Error("Event bus close failed", attr.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Error("Database close failed", attr.Error(err))
		}
	}
}
