package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(context.Context) error { return errors.New("connection refused") }
func passing(context.Context) error { return nil }

func TestHealthRegistry_WorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		checkers map[string]HealthChecker
		expected HealthStatus
	}{
		{"empty", nil, HealthStatusHealthy},
		{"all healthy", map[string]HealthChecker{
			"database": PingChecker("database", true, passing),
			"worker":   RunningChecker("worker", func() bool { return true }),
		}, HealthStatusHealthy},
		{"optional dependency down", map[string]HealthChecker{
			"database": PingChecker("database", true, passing),
			"redis":    PingChecker("redis", false, failing),
		}, HealthStatusDegraded},
		{"critical dependency down", map[string]HealthChecker{
			"database": PingChecker("database", true, failing),
			"worker":   RunningChecker("worker", func() bool { return false }),
		}, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHealthRegistry()
			for name, c := range tt.checkers {
				r.Register(name, c)
			}
			health := r.Check(context.Background())
			assert.Equal(t, tt.expected, health.Status)
			assert.Len(t, health.Checks, len(tt.checkers))
		})
	}
}

func TestHealthRegistry_ReadinessHandler(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("redis", PingChecker("redis", false, failing))
	assert.Equal(t, []string{"redis"}, r.Names())

	rec := httptest.NewRecorder()
	r.ReadinessHandler(time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body OverallHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, HealthStatusDegraded, body.Status)
	assert.Contains(t, body.Checks["redis"].Message, "connection refused")

	r.Register("database", PingChecker("database", true, failing))
	rec = httptest.NewRecorder()
	r.ReadinessHandler(0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
