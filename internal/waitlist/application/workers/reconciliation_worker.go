package workers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	schedulingServices "github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/pkg/observability"
)

// DefaultReconcileInterval is the default interval between sweeps.
const DefaultReconcileInterval = 30 * time.Minute

// WaitlistSweeper reconciles every session with someone waiting.
type WaitlistSweeper interface {
	ProcessAll(ctx context.Context) (*services.SweepResult, error)
}

// ConflictScanner re-detects scheduling conflicts.
type ConflictScanner interface {
	Run(ctx context.Context) (*schedulingServices.AuditReport, error)
}

// ReconciliationWorkerConfig configures the reconciliation worker.
type ReconciliationWorkerConfig struct {
	Interval time.Duration
	// RunOnStart runs a sweep before the first tick.
	RunOnStart bool
}

// DefaultReconciliationWorkerConfig returns the default configuration.
func DefaultReconciliationWorkerConfig() ReconciliationWorkerConfig {
	return ReconciliationWorkerConfig{Interval: DefaultReconcileInterval, RunOnStart: true}
}

// CycleReport is the outcome of one reconciliation cycle. A nil part means
// that step failed or is not configured.
type CycleReport struct {
	Waitlists *services.SweepResult
	Conflicts *schedulingServices.AuditReport
	Errors    []error
}

// ReconciliationWorker periodically expires and promotes waitlist entries,
// then audits the schedule for conflicts.
type ReconciliationWorker struct {
	sweeper  WaitlistSweeper
	scanner  ConflictScanner
	config   ReconciliationWorkerConfig
	logger   *slog.Logger
	metrics  observability.Metrics
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciliationWorker creates a new reconciliation worker. scanner may be
// nil to skip the conflict audit.
func NewReconciliationWorker(
	sweeper WaitlistSweeper,
	scanner ConflictScanner,
	config ReconciliationWorkerConfig,
	logger *slog.Logger,
) *ReconciliationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileInterval
	}
	return &ReconciliationWorker{
		sweeper: sweeper,
		scanner: scanner,
		config:  config,
		logger:  logger.With("component", "reconciliation_worker"),
		metrics: observability.NoopMetrics{},
		stopCh:  make(chan struct{}),
	}
}

// WithMetrics records cycle outcomes to m.
func (w *ReconciliationWorker) WithMetrics(m observability.Metrics) *ReconciliationWorker {
	if m != nil {
		w.metrics = m
	}
	return w
}

// Run starts the worker and blocks until ctx is cancelled or Stop is called.
func (w *ReconciliationWorker) Run(ctx context.Context) error {
	if w.sweeper == nil {
		w.logger.Warn("waitlist sweeper not configured, worker will not start")
		return nil
	}

	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("reconciliation worker started", "interval", w.config.Interval)

	if w.config.RunOnStart {
		w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciliation worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.logger.Info("reconciliation worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning returns true if the worker is currently running.
func (w *ReconciliationWorker) IsRunning() bool {
	return w.running.Load()
}

// RunOnce runs a single cycle. A failing step is logged and reported, and
// the next step still runs.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) *CycleReport {
	start := time.Now()
	report := &CycleReport{}
	defer func() {
		w.metrics.Counter(observability.MetricReconcileCycles, 1)
		w.metrics.Timing(observability.MetricReconcileDuration, time.Since(start))
		if len(report.Errors) > 0 {
			w.metrics.Counter(observability.MetricReconcileErrors, int64(len(report.Errors)))
		}
	}()

	sweep, err := w.sweeper.ProcessAll(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "waitlist sweep failed", "error", err)
		report.Errors = append(report.Errors, err)
	} else {
		report.Waitlists = sweep
		if failed := sweep.Err(); failed != nil {
			report.Errors = append(report.Errors, failed)
		}
		expired, promoted, notified, _ := sweep.Totals()
		w.metrics.Counter(observability.MetricWaitlistExpired, int64(expired))
		w.metrics.Counter(observability.MetricWaitlistPromoted, int64(promoted))
		w.metrics.Counter(observability.MetricWaitlistNotified, int64(notified))
	}

	if w.scanner == nil || ctx.Err() != nil {
		return report
	}
	audit, err := w.scanner.Run(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "conflict audit failed", "error", err)
		report.Errors = append(report.Errors, err)
		return report
	}
	report.Conflicts = audit
	w.metrics.Gauge(observability.MetricConflictsOpen, float64(len(audit.Conflicts)))
	w.metrics.Counter(observability.MetricConflictsDetected, int64(audit.New))
	w.metrics.Counter(observability.MetricConflictsCleared, int64(audit.Cleared))
	w.logger.InfoContext(ctx, "conflict audit finished",
		"sessions", audit.Sessions,
		"conflicts", len(audit.Conflicts),
		"new", audit.New,
		"cleared", audit.Cleared,
	)
	return report
}
