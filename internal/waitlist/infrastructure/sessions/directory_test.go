package sessions

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schedulingServices "github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	schedulingDomain "github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	schedulingPersistence "github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/infrastructure/persistence"
)

var testNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func monday(hour int) time.Time { return time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC) }

type fixture struct {
	ctx       context.Context
	events    *application.CollectingDispatcher
	locker    schedulingServices.KeyedLocker
	ledger    *schedulingServices.Ledger
	registry  *schedulingServices.Registry
	sessions  *schedulingServices.SessionService
	directory *Directory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), events: &application.CollectingDispatcher{}, locker: schedulingServices.NewMemoryLocker()}
	deps := schedulingServices.Deps{
		Repos: schedulingServices.Repositories{
			Resources:   schedulingPersistence.NewInMemoryResourceRepository(),
			Instructors: schedulingPersistence.NewInMemoryInstructorRepository(),
			Sessions:    schedulingPersistence.NewInMemorySessionRepository(),
			Allocations: schedulingPersistence.NewInMemoryAllocationRepository(),
		},
		Locker: f.locker,
		Events: f.events,
		Clock:  func() time.Time { return testNow },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.ledger = schedulingServices.NewLedger(deps)
	f.registry = schedulingServices.NewRegistry(deps)
	f.sessions = schedulingServices.NewSessionService(deps, f.ledger)
	f.directory = NewDirectory(f.sessions, f.ledger, f.registry)
	return f
}

func (f *fixture) room(t *testing.T, capacity int) *schedulingDomain.Resource {
	t.Helper()
	r, err := f.registry.CreateResource(f.ctx, schedulingDomain.ResourceSpec{
		Name:     "Room",
		Type:     schedulingDomain.ResourceRoom,
		Capacity: capacity,
		Availability: schedulingDomain.Availability{
			Location: time.UTC,
			Rules:    schedulingDomain.WeeklyRules(schedulingDomain.At(9, 0), schedulingDomain.At(17, 0), time.Monday),
		},
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) session(t *testing.T, maxParticipants int) *schedulingDomain.Session {
	t.Helper()
	deadline := monday(9)
	s, err := f.sessions.CreateSession(f.ctx, schedulingDomain.SessionSpec{
		Title:           "Go basics",
		Interval:        schedulingDomain.IntervalOf(monday(10), time.Hour),
		Timezone:        "UTC",
		MinParticipants: 1,
		MaxParticipants: maxParticipants,
		Waitlist: schedulingDomain.WaitlistConfig{
			Enabled:              true,
			AutoEnroll:           true,
			CancellationDeadline: &deadline,
		},
	})
	require.NoError(t, err)
	return s
}

func TestDirectory_Lookup(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 12)

	info, err := f.directory.Lookup(f.ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), info.ID)
	assert.Equal(t, 12, info.Capacity)
	assert.True(t, info.Active)
	assert.True(t, info.WaitlistEnabled)
	assert.True(t, info.AutoEnroll)
	assert.Nil(t, info.EnrollmentDeadline)
	require.NotNil(t, info.CancellationDeadline)
	assert.True(t, monday(10).Equal(info.Start))

	_, err = f.directory.Lookup(f.ctx, uuid.New())
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))
}

func TestDirectory_CapacityBoundedBySmallestRoom(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 12)
	small := f.room(t, 8)
	big := f.room(t, 30)
	_, err := f.ledger.ReplaceSessionAllocations(f.ctx, s.ID(), s.Interval(), []uuid.UUID{small.ID(), big.ID()}, "")
	require.NoError(t, err)

	info, err := f.directory.Lookup(f.ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, 8, info.Capacity)

	_, err = f.ledger.ReleaseSession(f.ctx, s.ID(), "moved")
	require.NoError(t, err)
	info, err = f.directory.Lookup(f.ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, 12, info.Capacity)
}

func TestDirectory_CancelledSessionIsInactive(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 12)
	_, err := f.sessions.CancelSession(f.ctx, s.ID(), "no trainer")
	require.NoError(t, err)

	info, err := f.directory.Lookup(f.ctx, s.ID())
	require.NoError(t, err)
	assert.False(t, info.Active)
	assert.False(t, info.EnrollmentOpen(testNow))
}

// The manager and the scheduling services share one locker, so the roster
// lock nests around the session lock taken when counts are recorded.
func TestDirectory_ManagerMirrorsCounts(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 2)
	manager := services.NewManager(services.Deps{
		Rosters:  persistence.NewInMemoryRosterRepository(),
		Sessions: f.directory,
		Locker:   f.locker,
		Events:   f.events,
		Clock:    func() time.Time { return testNow },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	first, err := manager.Enroll(f.ctx, s.ID(), uuid.New())
	require.NoError(t, err)
	_, err = manager.Enroll(f.ctx, s.ID(), uuid.New())
	require.NoError(t, err)
	waiting, err := manager.Add(f.ctx, services.AddRequest{SessionID: s.ID(), RequesterID: uuid.New(), AutoEnroll: true})
	require.NoError(t, err)

	stored, err := f.sessions.GetSession(f.ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.EnrolledCount())
	assert.Equal(t, 1, stored.WaitlistedCount())

	result, err := manager.CancelEnrollment(f.ctx, s.ID(), first.ParticipantID(), "")
	require.NoError(t, err)
	require.Len(t, result.Reconciled.Promoted, 1)
	assert.Equal(t, waiting.ID(), result.Reconciled.Promoted[0].EntryID)

	stored, err = f.sessions.GetSession(f.ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.EnrolledCount())
	assert.Equal(t, 0, stored.WaitlistedCount())
}
