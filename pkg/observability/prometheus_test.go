package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func family(t *testing.T, m *PrometheusMetrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	require.Failf(t, "metric not gathered", "%s", name)
	return nil
}

func TestPrometheusMetrics_Counter(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Counter(MetricWaitlistPromoted, 2, T("mode", "auto"))
	m.Counter(MetricWaitlistPromoted, 3, T("mode", "auto"))
	m.Counter(MetricWaitlistPromoted, 1, T("mode", "manual"), T("ignored", "x"))
	m.Counter(MetricWaitlistPromoted, -4, T("mode", "auto"))

	f := family(t, m, "cohort_waitlist_promoted")
	require.Len(t, f.GetMetric(), 2)
	totals := map[string]float64{}
	for _, metric := range f.GetMetric() {
		require.Len(t, metric.GetLabel(), 1)
		totals[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"auto": 5, "manual": 1}, totals)
}

func TestPrometheusMetrics_GaugeAndTiming(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Gauge(MetricConflictsOpen, 4)
	m.Gauge(MetricConflictsOpen, 2)
	assert.Equal(t, 2.0, family(t, m, "cohort_conflicts_open").GetMetric()[0].GetGauge().GetValue())

	m.Timing(MetricReconcileDuration, 250*time.Millisecond)
	h := family(t, m, "cohort_reconcile_duration_seconds").GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.InDelta(t, 0.25, h.GetSampleSum(), 1e-9)
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	m := NewPrometheusMetrics()
	err := TimeOperation(context.Background(), nil, m, "session.cancel", func(context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cohort_operation_errors{operation="session.cancel"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestPromName(t *testing.T) {
	assert.Equal(t, "cohort_operation_total", promName("cohort.operation.total"))
	assert.Equal(t, "resource_id", promName("resource-id"))
}
