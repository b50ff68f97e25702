package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
)

// Sunday 2026-03-01 08:00 UTC. The working week starts the next day.
var testNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func monday(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func weekday(offset, hour, minute int) time.Time {
	return monday(hour, minute).AddDate(0, 0, offset)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	now    time.Time
	deps   Deps
	events *application.CollectingDispatcher

	ledger   *Ledger
	registry *Registry
	sessions *SessionService
	detector *ConflictDetector
	engine   *OptimizationEngine
	log      *MemoryConflictLog
	resolver *ConflictResolver
	audit    *ConflictAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), now: testNow, events: &application.CollectingDispatcher{}}
	f.deps = Deps{
		Repos: Repositories{
			Resources:   persistence.NewInMemoryResourceRepository(),
			Instructors: persistence.NewInMemoryInstructorRepository(),
			Sessions:    persistence.NewInMemorySessionRepository(),
			Allocations: persistence.NewInMemoryAllocationRepository(),
		},
		Locker: NewMemoryLocker(),
		Events: f.events,
		Clock:  func() time.Time { return f.now },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.ledger = NewLedger(f.deps)
	f.registry = NewRegistry(f.deps)
	f.sessions = NewSessionService(f.deps, f.ledger)
	f.detector = NewConflictDetector(f.deps, DefaultDetectorConfig())
	f.engine = NewOptimizationEngine(f.deps, f.ledger, f.detector, DefaultEngineConfig())
	f.log = NewMemoryConflictLog()
	f.resolver = NewConflictResolver(f.deps, f.ledger, f.engine, f.sessions, f.detector, f.log)
	f.audit = NewConflictAudit(f.deps, f.detector, f.log)
	return f
}

func businessHours() []domain.AvailabilityRule {
	return domain.WeeklyRules(domain.At(9, 0), domain.At(17, 0),
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
}

func (f *fixture) room(name string, capacity int, features ...string) *domain.Resource {
	f.t.Helper()
	return f.resource(domain.ResourceSpec{
		Name:         name,
		Type:         domain.ResourceRoom,
		Capacity:     capacity,
		Features:     features,
		Availability: domain.Availability{Location: time.UTC, Rules: businessHours()},
	})
}

func (f *fixture) resource(spec domain.ResourceSpec) *domain.Resource {
	f.t.Helper()
	r, err := f.registry.CreateResource(f.ctx, spec)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) instructor(name string, rating float64, specializations ...string) *domain.Instructor {
	f.t.Helper()
	inst, err := f.registry.CreateInstructor(f.ctx, domain.InstructorSpec{
		Name:            name,
		Specializations: specializations,
		Availability:    domain.Availability{Location: time.UTC, Rules: businessHours()},
		Rating:          rating,
	})
	require.NoError(f.t, err)
	return inst
}

func (f *fixture) session(title string, start time.Time, d time.Duration, maxParticipants int) *domain.Session {
	f.t.Helper()
	s, err := f.sessions.CreateSession(f.ctx, domain.SessionSpec{
		Title:           title,
		Interval:        domain.IntervalOf(start, d),
		Timezone:        "UTC",
		MinParticipants: 1,
		MaxParticipants: maxParticipants,
	})
	require.NoError(f.t, err)
	return s
}

// place schedules a session as it stands with the given instructor and
// resources, bypassing the optimizer.
func (f *fixture) place(s *domain.Session, instructorID uuid.UUID, resources ...*domain.Resource) *domain.Session {
	f.t.Helper()
	ids := make([]uuid.UUID, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID())
	}
	if len(ids) > 0 {
		_, err := f.ledger.ReplaceSessionAllocations(f.ctx, s.ID(), s.Interval(), ids, "placed by test")
		require.NoError(f.t, err)
	}
	stored, err := f.sessions.GetSession(f.ctx, s.ID())
	require.NoError(f.t, err)
	require.NoError(f.t, stored.Schedule(stored.Interval(), instructorID, nil, f.now))
	stored.PullDomainEvents()
	require.NoError(f.t, f.deps.Repos.Sessions.Save(f.ctx, stored))
	return stored
}

func conflictTypes(conflicts []*domain.SchedulingConflict) []domain.ConflictType {
	out := make([]domain.ConflictType, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, c.Type())
	}
	return out
}
