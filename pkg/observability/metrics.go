package observability

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Metrics is the recording surface used by workers and services.
// PrometheusMetrics is the production implementation.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is one metric label.
type Tag struct {
	Key   string
	Value string
}

// T is shorthand for Tag{key, value}.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)         {}
func (NoopMetrics) Gauge(string, float64, ...Tag)         {}
func (NoopMetrics) Histogram(string, float64, ...Tag)     {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// series holds everything recorded under one name and label set.
type series struct {
	count   int64
	gauge   float64
	samples []float64
	timings []time.Duration
}

// InMemoryMetrics keeps every series in memory so tests can assert on them.
// Label order does not matter when reading back.
type InMemoryMetrics struct {
	mu     sync.Mutex
	series map[string]*series
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{series: make(map[string]*series)}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.count += value })
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.gauge = value })
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.samples = append(s.samples, value) })
}

func (m *InMemoryMetrics) Timing(name string, d time.Duration, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.timings = append(s.timings, d) })
}

// GetCounter returns the counter total, zero when never incremented.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	return m.read(name, tags).count
}

// GetGauge returns the last gauge value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	return m.read(name, tags).gauge
}

// GetHistogram returns the recorded samples in order.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	return m.read(name, tags).samples
}

// GetTimings returns the recorded durations in order.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	return m.read(name, tags).timings
}

func (m *InMemoryMetrics) update(name string, tags []Tag, fn func(*series)) {
	key := seriesKey(name, tags)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[key]
	if !ok {
		s = &series{}
		m.series[key] = s
	}
	fn(s)
}

// read returns a copy so callers never race with writers.
func (m *InMemoryMetrics) read(name string, tags []Tag) series {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[seriesKey(name, tags)]
	if !ok {
		return series{}
	}
	return series{
		count:   s.count,
		gauge:   s.gauge,
		samples: slices.Clone(s.samples),
		timings: slices.Clone(s.timings),
	}
}

// seriesKey renders name{k=v,...} with the labels sorted by key.
func seriesKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := slices.Clone(tags)
	slices.SortFunc(sorted, func(a, b Tag) int { return strings.Compare(a.Key, b.Key) })

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, t := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// Metric names. PrometheusMetrics rewrites the dots to underscores.
const (
	MetricOperationTotal    = "cohort.operation.total"
	MetricOperationDuration = "cohort.operation.duration"
	MetricOperationErrors   = "cohort.operation.errors"

	MetricReconcileCycles   = "cohort.reconcile.cycles"
	MetricReconcileDuration = "cohort.reconcile.duration"
	MetricReconcileErrors   = "cohort.reconcile.errors"

	MetricWaitlistExpired  = "cohort.waitlist.expired"
	MetricWaitlistPromoted = "cohort.waitlist.promoted"
	MetricWaitlistNotified = "cohort.waitlist.notified"

	MetricConflictsOpen     = "cohort.conflicts.open"
	MetricConflictsDetected = "cohort.conflicts.detected"
	MetricConflictsCleared  = "cohort.conflicts.cleared"

	MetricOutboxLagSeconds = "cohort.outbox.lag_seconds"
)
