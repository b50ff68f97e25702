package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/migrations"
)

type repoSet struct {
	resources   domain.ResourceRepository
	instructors domain.InstructorRepository
	sessions    domain.SessionRepository
	allocations domain.AllocationRepository
}

func memoryRepos(t *testing.T) repoSet {
	t.Helper()
	return repoSet{
		resources:   NewInMemoryResourceRepository(),
		instructors: NewInMemoryInstructorRepository(),
		sessions:    NewInMemorySessionRepository(),
		allocations: NewInMemoryAllocationRepository(),
	}
}

func openSQLite(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "cohort.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))
	return conn
}

func sqliteRepos(t *testing.T) repoSet {
	t.Helper()
	conn := openSQLite(t)
	return repoSet{
		resources:   NewSQLResourceRepository(conn),
		instructors: NewSQLInstructorRepository(conn),
		sessions:    NewSQLSessionRepository(conn),
		allocations: NewSQLAllocationRepository(conn),
	}
}

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func newRoom(t *testing.T, name string, capacity int) *domain.Resource {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	r, err := domain.NewResource(domain.ResourceSpec{
		Name:     name,
		Type:     domain.ResourceRoom,
		Capacity: capacity,
		Location: "HQ",
		Features: []string{"projector", "whiteboard"},
		Availability: domain.Availability{
			Location: loc,
			Rules:    domain.WeeklyRules(domain.At(9, 0), domain.At(17, 0), time.Monday, time.Tuesday),
		},
	})
	require.NoError(t, err)
	return r
}

func newSession(t *testing.T, title string, start time.Time) *domain.Session {
	t.Helper()
	s, err := domain.NewSession(domain.SessionSpec{
		Title:           title,
		Interval:        domain.IntervalOf(start, time.Hour),
		Timezone:        "Europe/Berlin",
		MinParticipants: 2,
		MaxParticipants: 12,
		Waitlist:        domain.WaitlistConfig{Enabled: true, AutoEnroll: true},
	})
	require.NoError(t, err)
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, repos repoSet)) {
	t.Run("memory", func(t *testing.T) { fn(t, memoryRepos(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, sqliteRepos(t)) })
}

func TestResourceRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()
		big := newRoom(t, "Aula", 40)
		small := newRoom(t, "Booth", 4)
		window := domain.NewMaintenanceWindow(domain.IntervalOf(at(12, 0), time.Hour), domain.MaintenanceScheduled, "cleaning")
		big.AddMaintenance(window)
		require.NoError(t, repos.resources.Save(ctx, big))
		require.NoError(t, repos.resources.Save(ctx, small))

		got, err := repos.resources.FindByID(ctx, big.ID())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Aula", got.Name())
		assert.Equal(t, 40, got.Capacity())
		assert.ElementsMatch(t, []string{"projector", "whiteboard"}, got.Features())
		assert.Equal(t, "Europe/Berlin", got.Availability().Location.String())
		require.Len(t, got.Availability().Maintenance, 1)
		assert.Equal(t, window.ID, got.Availability().Maintenance[0].ID)

		list, err := repos.resources.List(ctx, domain.ResourceFilter{Type: domain.ResourceRoom, MinCapacity: 10})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, big.ID(), list[0].ID())

		require.NoError(t, repos.resources.Delete(ctx, small.ID()))
		missing, err := repos.resources.FindByID(ctx, small.ID())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestInstructorRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()
		until := monday.AddDate(1, 0, 0)
		inst, err := domain.NewInstructor(domain.InstructorSpec{
			Name:              "Ada",
			Specializations:   []string{"Go"},
			Certifications:    []domain.Certification{{Name: "first-aid", ValidUntil: &until}},
			MaxSessionsPerDay: 3,
			Rating:            4.5,
		})
		require.NoError(t, err)
		require.NoError(t, repos.instructors.Save(ctx, inst))

		got, err := repos.instructors.FindByID(ctx, inst.ID())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Ada", got.Name())
		assert.Equal(t, 3, got.MaxSessionsPerDay())
		assert.InDelta(t, 4.5, got.Rating(), 0.0001)
		require.Len(t, got.Certifications(), 1)
		assert.True(t, until.Equal(*got.Certifications()[0].ValidUntil))

		all, err := repos.instructors.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestSessionRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()
		inst, err := domain.NewInstructor(domain.InstructorSpec{Name: "Grace", Rating: 4})
		require.NoError(t, err)
		require.NoError(t, repos.instructors.Save(ctx, inst))

		morning := newSession(t, "Morning", at(9, 0))
		req := &domain.SchedulingRequest{SessionID: morning.ID(), PreferredStarts: []time.Time{at(9, 0)}}
		require.NoError(t, morning.Schedule(domain.IntervalOf(at(9, 0), time.Hour), inst.ID(), req, at(8, 0)))
		afternoon := newSession(t, "Afternoon", at(14, 0))
		require.NoError(t, repos.sessions.Save(ctx, morning))
		require.NoError(t, repos.sessions.Save(ctx, afternoon))

		got, err := repos.sessions.FindByID(ctx, morning.ID())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.SessionScheduled, got.Status())
		assert.Equal(t, inst.ID(), got.InstructorID())
		assert.True(t, at(9, 0).Equal(got.Interval().Start))
		assert.Equal(t, "Europe/Berlin", got.Location().String())
		require.NotNil(t, got.Request())
		assert.Equal(t, morning.ID(), got.Request().SessionID)
		assert.True(t, got.Waitlist().AutoEnroll)

		inRange, err := repos.sessions.FindInRange(ctx, at(9, 30), at(14, 0))
		require.NoError(t, err)
		require.Len(t, inRange, 1, "intervals are half-open")
		assert.Equal(t, morning.ID(), inRange[0].ID())

		taught, err := repos.sessions.FindByInstructor(ctx, inst.ID(), monday, monday.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Len(t, taught, 1)

		require.NoError(t, afternoon.Cancel("room flooded", at(8, 0)))
		require.NoError(t, repos.sessions.Save(ctx, afternoon))
		active, err := repos.sessions.FindActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, morning.ID(), active[0].ID())
	})
}

func TestAllocationRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()
		room := newRoom(t, "Aula", 40)
		require.NoError(t, repos.resources.Save(ctx, room))
		session := newSession(t, "Morning", at(10, 0))
		require.NoError(t, repos.sessions.Save(ctx, session))

		a := domain.NewAllocation(room.ID(), session.ID(), domain.IntervalOf(at(10, 0), time.Hour), "booked", at(8, 0))
		require.NoError(t, a.Confirm(at(8, 0)))
		require.NoError(t, repos.allocations.Save(ctx, a))

		got, err := repos.allocations.FindByID(ctx, a.ID())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.AllocationConfirmed, got.Status())
		assert.Equal(t, "booked", got.Notes())

		touching, err := repos.allocations.FindByResource(ctx, room.ID(), at(11, 0), at(12, 0))
		require.NoError(t, err)
		assert.Empty(t, touching)
		overlapping, err := repos.allocations.FindByResource(ctx, room.ID(), at(10, 30), at(11, 30))
		require.NoError(t, err)
		assert.Len(t, overlapping, 1)

		require.True(t, got.Release("cancelled", at(9, 0)))
		require.NoError(t, repos.allocations.Save(ctx, got))
		active, err := repos.allocations.FindBySession(ctx, session.ID())
		require.NoError(t, err)
		assert.Empty(t, active)

		released, err := repos.allocations.FindByID(ctx, a.ID())
		require.NoError(t, err)
		require.NotNil(t, released.ReleasedAt())
		assert.True(t, at(9, 0).Equal(*released.ReleasedAt()))
	})
}

func TestSQLConflictLog(t *testing.T) {
	ctx := context.Background()
	log := NewSQLConflictLog(openSQLite(t))
	a, b := uuid.New(), uuid.New()
	high := domain.NewSchedulingConflict(domain.ConflictSpec{
		Type:       domain.ConflictResourceDoubleBooking,
		Severity:   domain.SeverityHigh,
		SessionIDs: []uuid.UUID{a, b},
		Interval:   domain.IntervalOf(at(10, 0), time.Hour),
	}, at(8, 0))
	critical := domain.NewSchedulingConflict(domain.ConflictSpec{
		Type:       domain.ConflictInstructor,
		Severity:   domain.SeverityCritical,
		SessionIDs: []uuid.UUID{a},
		Interval:   domain.IntervalOf(at(11, 0), time.Hour),
	}, at(8, 0))
	require.NoError(t, log.Replace(ctx, []*domain.SchedulingConflict{high, critical}))

	list, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, critical.ID(), list[0].ID())

	require.NoError(t, high.Resolve(domain.ResolutionReschedule, at(9, 0)))
	require.NoError(t, log.Put(ctx, high))
	got, err := log.Get(ctx, high.ID())
	require.NoError(t, err)
	assert.True(t, got.IsResolved())
	assert.Equal(t, high.Fingerprint(), got.Fingerprint())

	require.NoError(t, log.Replace(ctx, nil))
	gone, err := log.Get(ctx, high.ID())
	require.NoError(t, err)
	assert.Nil(t, gone)
}
