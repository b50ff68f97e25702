package observability

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Timer measures one run of an operation. Logger and metrics are optional.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

func (t *Timer) Stop(ctx context.Context) time.Duration {
	return t.StopWithError(ctx, nil)
}

// StopWithError logs the run at debug, or at error when err is set, and
// records duration, total and error counts tagged with the operation.
func (t *Timer) StopWithError(ctx context.Context, err error) time.Duration {
	elapsed := time.Since(t.start)

	if t.logger != nil {
		attrs := []any{OperationKey, t.operation, DurationKey, elapsed.Milliseconds()}
		if err != nil {
			t.logger.ErrorContext(ctx, "operation failed", append(attrs, ErrorKey, err)...)
		} else {
			t.logger.DebugContext(ctx, "operation completed", attrs...)
		}
	}

	if t.metrics != nil {
		tags := append(slices.Clone(t.tags), T(OperationKey, t.operation))
		t.metrics.Timing(MetricOperationDuration, elapsed, tags...)
		t.metrics.Counter(MetricOperationTotal, 1, tags...)
		if err != nil {
			t.metrics.Counter(MetricOperationErrors, 1, tags...)
		}
	}
	return elapsed
}

// TimeOperation runs fn under a Timer with ctx named for the operation.
func TimeOperation(ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func(ctx context.Context) error) error {
	t := StartTimer(operation).WithLogger(logger).WithMetrics(metrics)
	ctx = WithOperation(ctx, operation)
	err := fn(ctx)
	t.StopWithError(ctx, err)
	return err
}
