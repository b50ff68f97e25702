package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.Counter(MetricWaitlistPromoted, 1)
		m.Gauge(MetricConflictsOpen, 1)
		m.Histogram("cohort.waitlist.size", 1)
		m.Timing(MetricReconcileDuration, time.Second)
	})
}

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Counter(MetricWaitlistExpired, 2, T("session", "a"))
	m.Counter(MetricWaitlistExpired, 1, T("session", "a"))
	m.Counter(MetricWaitlistExpired, 4, T("session", "b"))
	assert.Equal(t, int64(3), m.GetCounter(MetricWaitlistExpired, T("session", "a")))
	assert.Equal(t, int64(4), m.GetCounter(MetricWaitlistExpired, T("session", "b")))
	assert.Zero(t, m.GetCounter(MetricWaitlistExpired), "unlabelled series is separate")

	m.Gauge(MetricConflictsOpen, 5)
	m.Gauge(MetricConflictsOpen, 3)
	assert.Equal(t, 3.0, m.GetGauge(MetricConflictsOpen))

	m.Histogram("cohort.waitlist.size", 10)
	m.Histogram("cohort.waitlist.size", 20)
	assert.Equal(t, []float64{10, 20}, m.GetHistogram("cohort.waitlist.size"))

	m.Timing(MetricReconcileDuration, 100*time.Millisecond)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, m.GetTimings(MetricReconcileDuration))
	assert.Empty(t, m.GetTimings("cohort.never"))
}

func TestInMemoryMetrics_LabelOrder(t *testing.T) {
	m := NewInMemoryMetrics()
	m.Counter(MetricConflictsDetected, 1, T("type", "maintenance_conflict"), T("severity", "high"))

	assert.Equal(t, int64(1), m.GetCounter(MetricConflictsDetected, T("severity", "high"), T("type", "maintenance_conflict")))
}

func TestInMemoryMetrics_Concurrent(t *testing.T) {
	m := NewInMemoryMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Counter(MetricReconcileCycles, 1)
			m.Timing(MetricReconcileDuration, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), m.GetCounter(MetricReconcileCycles))
	assert.Len(t, m.GetTimings(MetricReconcileDuration), 20)
}

func TestSeriesKey(t *testing.T) {
	assert.Equal(t, "cohort.conflicts.open", seriesKey(MetricConflictsOpen, nil))
	assert.Equal(t, "cohort.conflicts.open{severity=high,type=buffer}",
		seriesKey(MetricConflictsOpen, []Tag{T("type", "buffer"), T("severity", "high")}))
}
