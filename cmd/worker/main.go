// Command worker runs the background side of cohort: the outbox relay,
// the RabbitMQ consumers and the waitlist/conflict reconciliation loop,
// with health and metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/cohort/internal/app"
	"github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/catalog"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/cohort/pkg/config"
	"github.com/felixgeelhaar/cohort/pkg/observability"
)

const outboxStatsInterval = time.Minute

func main() {
	logger := observability.NewLogger(observability.DefaultLogConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logCfg := observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	logCfg.ServiceName = "cohort-worker"
	logger = observability.NewLogger(logCfg)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// run blocks until ctx is cancelled or a component fails. Either way the
// remaining components are stopped before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting cohort worker", "storage", cfg.StorageDriver, "bus", cfg.EventBus)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer container.Close()

	if cfg.CatalogPath != "" {
		if err := importCatalog(ctx, container, cfg.CatalogPath); err != nil {
			return fmt.Errorf("import catalog %s: %w", cfg.CatalogPath, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if container.OutboxProcessor != nil && cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			return fmt.Errorf("start outbox processor: %w", err)
		}
		container.Health.Register("outbox", observability.RunningChecker("outbox", container.OutboxProcessor.IsRunning))
		g.Go(func() error { return cleanupOutbox(ctx, container, cfg, logger) })
		g.Go(func() error { return reportOutbox(ctx, container, logger) })
	}

	if cfg.EventBus == config.BusRabbitMQ {
		consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:    cfg.RabbitMQURL,
			Logger: logger,
		}, eventbus.NewConsumerRegistry(logger))
		switch {
		case err != nil && !cfg.IsDevelopment():
			return fmt.Errorf("connect consumer to RabbitMQ: %w", err)
		case err != nil:
			logger.Warn("RabbitMQ not available, subscribers disabled", "error", err)
		default:
			defer consumer.Close()
			for _, c := range container.Consumers() {
				consumer.RegisterConsumer(c)
			}
			g.Go(func() error { return ignoreCancel(consumer.Start(ctx)) })
		}
	}

	g.Go(func() error { return ignoreCancel(container.ReconciliationWorker.Run(ctx)) })

	if cfg.WorkerHealthAddr != "" {
		g.Go(func() error { return serve(ctx, cfg.WorkerHealthAddr, healthMux(container), logger) })
	}
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.WorkerHealthAddr {
		mux := http.NewServeMux()
		mux.Handle("/metrics", container.Metrics.Handler())
		g.Go(func() error { return serve(ctx, cfg.MetricsAddr, mux, logger) })
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	container.ReconciliationWorker.Stop()
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func importCatalog(ctx context.Context, c *app.Container, path string) error {
	f, err := catalog.Load(path)
	if err != nil {
		return err
	}
	report, err := catalog.NewImporter(c.Registry, c.Sessions, c.Engine, c.Logger).Import(ctx, f)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		c.Logger.Warn("catalog sessions left in draft", "count", len(report.Failed))
	}
	return nil
}

func cleanupOutbox(ctx context.Context, c *app.Container, cfg *config.Config, logger *slog.Logger) error {
	ticker := time.NewTicker(cfg.OutboxCleanupInterval)
	defer ticker.Stop()
	retention := time.Duration(cfg.OutboxRetentionDays) * 24 * time.Hour
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Failures are logged by the timer; the next tick retries.
			_ = observability.TimeOperation(ctx, logger, c.Metrics, "outbox.cleanup", func(ctx context.Context) error {
				deleted, err := c.Repos.Outbox.DeleteOld(ctx, retention)
				if err != nil {
					return err
				}
				if deleted > 0 {
					logger.InfoContext(ctx, "outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
				}
				return nil
			})
		}
	}
}

func reportOutbox(ctx context.Context, c *app.Container, logger *slog.Logger) error {
	ticker := time.NewTicker(outboxStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := c.OutboxProcessor.GetStats()
			c.Metrics.Gauge(observability.MetricOutboxLagSeconds, stats.LagSeconds)
			logger.Info("outbox stats",
				"running", stats.IsRunning,
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
				"lag_seconds", stats.LagSeconds,
				"last_error", stats.LastError,
			)
		}
	}
}

func healthMux(c *app.Container) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", observability.LivenessHandler())
	mux.Handle("/readyz", c.Health.ReadinessHandler(2*time.Second))
	mux.Handle("/metrics", c.Metrics.Handler())
	mux.HandleFunc("/outbox", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if c.OutboxProcessor == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"enabled": false})
			return
		}
		stats := c.OutboxProcessor.GetStats()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"enabled":           true,
			"running":           stats.IsRunning,
			"published":         stats.PublishedCount,
			"failed":            stats.FailedCount,
			"dead":              stats.DeadCount,
			"lag_seconds":       stats.LagSeconds,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		})
	})
	return mux
}

// serve runs an HTTP server until ctx is done, then drains it.
func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "addr", addr, "error", err)
	}
	return nil
}
