package commands

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
)

// Sunday 2026-03-01 08:00 UTC.
var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func monday(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	deps   services.Deps
	events *sharedApplication.CollectingDispatcher

	ledger   *services.Ledger
	registry *services.Registry
	sessions *services.SessionService
	engine   *services.OptimizationEngine
	detector *services.ConflictDetector
	log      *services.MemoryConflictLog
	resolver *services.ConflictResolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, ctx: context.Background(), events: &sharedApplication.CollectingDispatcher{}}
	h.deps = services.Deps{
		Repos: services.Repositories{
			Resources:   persistence.NewInMemoryResourceRepository(),
			Instructors: persistence.NewInMemoryInstructorRepository(),
			Sessions:    persistence.NewInMemorySessionRepository(),
			Allocations: persistence.NewInMemoryAllocationRepository(),
		},
		Locker: services.NewMemoryLocker(),
		Events: h.events,
		Clock:  func() time.Time { return now },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.ledger = services.NewLedger(h.deps)
	h.registry = services.NewRegistry(h.deps)
	h.sessions = services.NewSessionService(h.deps, h.ledger)
	h.detector = services.NewConflictDetector(h.deps, services.DefaultDetectorConfig())
	h.engine = services.NewOptimizationEngine(h.deps, h.ledger, h.detector, services.DefaultEngineConfig())
	h.log = services.NewMemoryConflictLog()
	h.resolver = services.NewConflictResolver(h.deps, h.ledger, h.engine, h.sessions, h.detector, h.log)
	return h
}

func (h *harness) room(name string, capacity int) *domain.Resource {
	h.t.Helper()
	r, err := h.registry.CreateResource(h.ctx, domain.ResourceSpec{
		Name:     name,
		Type:     domain.ResourceRoom,
		Capacity: capacity,
		Availability: domain.Availability{
			Location: time.UTC,
			Rules: domain.WeeklyRules(domain.At(9, 0), domain.At(17, 0),
				time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
		},
	})
	require.NoError(h.t, err)
	return r
}

func (h *harness) session(title string, start time.Time, maxParticipants int) *domain.Session {
	h.t.Helper()
	s, err := h.sessions.CreateSession(h.ctx, domain.SessionSpec{
		Title:           title,
		Interval:        domain.IntervalOf(start, time.Hour),
		Timezone:        "UTC",
		MinParticipants: 1,
		MaxParticipants: maxParticipants,
	})
	require.NoError(h.t, err)
	return s
}
