package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a Prometheus registry. Vectors are
// created on first use. The label names of a metric are fixed by the tags
// of its first observation: later tags with other keys are dropped and
// missing keys are recorded as empty.
type PrometheusMetrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewPrometheusMetrics creates a collector on a fresh registry that also
// exports the Go runtime and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		registry:   registry,
		factory:    promauto.With(registry),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Counter implements Metrics.
func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	if value < 0 {
		return
	}
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = m.factory.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name),
			Help: name,
		}, m.labelNames(name, tags))
		m.counters[name] = vec
	}
	values := m.labelValues(name, tags)
	m.mu.Unlock()
	vec.WithLabelValues(values...).Add(float64(value))
}

// Gauge implements Metrics.
func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = m.factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: promName(name),
			Help: name,
		}, m.labelNames(name, tags))
		m.gauges[name] = vec
	}
	values := m.labelValues(name, tags)
	m.mu.Unlock()
	vec.WithLabelValues(values...).Set(value)
}

// Histogram implements Metrics.
func (m *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.observe(promName(name), name, prometheus.DefBuckets, value, tags)
}

// Timing implements Metrics. Durations are recorded in seconds.
func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.observe(promName(name)+"_seconds", name, prometheus.DefBuckets, duration.Seconds(), tags)
}

func (m *PrometheusMetrics) observe(promKey, name string, buckets []float64, value float64, tags []Tag) {
	m.mu.Lock()
	vec, ok := m.histograms[promKey]
	if !ok {
		vec = m.factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    promKey,
			Help:    name,
			Buckets: buckets,
		}, m.labelNames(promKey, tags))
		m.histograms[promKey] = vec
	}
	values := m.labelValues(promKey, tags)
	m.mu.Unlock()
	vec.WithLabelValues(values...).Observe(value)
}

// labelNames fixes the label names of a metric. Callers hold mu.
func (m *PrometheusMetrics) labelNames(name string, tags []Tag) []string {
	if names, ok := m.labels[name]; ok {
		return names
	}
	names := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		key := promName(t.Key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, key)
	}
	m.labels[name] = names
	return names
}

// labelValues orders tag values by the metric's label names. Callers hold mu.
func (m *PrometheusMetrics) labelValues(name string, tags []Tag) []string {
	names := m.labels[name]
	values := make([]string, len(names))
	for i, n := range names {
		for _, t := range tags {
			if promName(t.Key) == n {
				values[i] = t.Value
				break
			}
		}
	}
	return values
}

// promName maps a dotted metric name onto the Prometheus character set.
func promName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
