package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
)

func roomRequest(sessionID uuid.UUID, starts ...time.Time) domain.SchedulingRequest {
	return domain.SchedulingRequest{
		SessionID:       sessionID,
		PreferredStarts: starts,
		Resources:       []domain.ResourceRequirement{{Type: domain.ResourceRoom}},
	}
}

func TestOptimizationEngine_CommitsPreferredStart(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	s := f.session("Go basics", monday(10, 0), time.Hour, 12)

	result, err := f.engine.Optimize(f.ctx, roomRequest(s.ID(), monday(10, 0)))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Committed)
	assert.False(t, result.Committed.Fallback)
	assert.True(t, monday(10, 0).Equal(result.Committed.Interval.Start))
	assert.Equal(t, []uuid.UUID{room.ID()}, result.Committed.ResourceIDs)
	assert.LessOrEqual(t, result.Committed.Score, 100.0)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, domain.AllocationConfirmed, result.Allocations[0].Status())

	stored, err := f.sessions.GetSession(f.ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionScheduled, stored.Status())
	require.NotNil(t, stored.Request())
	assert.Contains(t, f.events.RoutingKeys(), domain.RoutingKeySessionScheduled)
}

func TestOptimizationEngine_FallsBackToLaterDay(t *testing.T) {
	f := newFixture(t)
	lab := f.resource(domain.ResourceSpec{
		Name:     "Lab",
		Type:     domain.ResourceRoom,
		Capacity: 12,
		Availability: domain.Availability{
			Location: time.UTC,
			Rules:    domain.WeeklyRules(domain.At(14, 0), domain.At(15, 0), time.Thursday),
		},
	})
	s := f.session("Soldering", monday(10, 0), time.Hour, 12)

	result, err := f.engine.Optimize(f.ctx, roomRequest(s.ID(), monday(10, 0)))
	require.NoError(t, err)
	require.True(t, result.Success)
	committed := result.Committed
	require.NotNil(t, committed)
	assert.True(t, committed.Fallback)
	assert.True(t, weekday(3, 14, 0).Equal(committed.Interval.Start), "got %s", committed.Interval.Start)
	assert.Equal(t, []uuid.UUID{lab.ID()}, committed.ResourceIDs)
	assert.NotEmpty(t, committed.Tradeoffs)
	assert.Equal(t, 100.0, committed.Score)
	assert.LessOrEqual(t, len(result.Alternatives), 5)
	assert.True(t, committed.Interval.Start.Equal(result.Alternatives[0].Interval.Start))
}

func TestOptimizationEngine_FallbackSatisfiesEveryRequiredResource(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	kit := f.resource(domain.ResourceSpec{
		Name: "Soldering kit",
		Type: domain.ResourceEquipment,
		Availability: domain.Availability{
			Location: time.UTC,
			Rules:    domain.WeeklyRules(domain.At(14, 0), domain.At(15, 0), time.Thursday),
		},
	})
	s := f.session("Soldering", monday(10, 0), time.Hour, 12)

	req := domain.SchedulingRequest{
		SessionID:       s.ID(),
		PreferredStarts: []time.Time{monday(10, 0), monday(14, 0)},
		Resources: []domain.ResourceRequirement{
			{Type: domain.ResourceRoom},
			{Type: domain.ResourceEquipment},
		},
	}
	result, err := f.engine.Optimize(f.ctx, req)
	require.NoError(t, err)
	require.True(t, result.Success)
	committed := result.Committed
	require.NotNil(t, committed)
	assert.True(t, committed.Fallback)
	assert.True(t, weekday(3, 14, 0).Equal(committed.Interval.Start), "got %s", committed.Interval.Start)
	assert.ElementsMatch(t, []uuid.UUID{room.ID(), kit.ID()}, committed.ResourceIDs)
	require.Len(t, result.Allocations, 2)

	var viable []Alternative
	for _, alt := range result.Alternatives {
		if alt.Viable {
			viable = append(viable, alt)
		}
	}
	require.Len(t, viable, 1, "only Thursday 14:00 has both resources free")
	assert.True(t, committed.Interval.Start.Equal(viable[0].Interval.Start))
	assert.True(t, committed.Interval.Start.Equal(result.Alternatives[0].Interval.Start))
}

func TestOptimizationEngine_TimeToleranceBeforeFallback(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	_, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	require.NoError(t, err)
	s := f.session("Go basics", monday(10, 0), time.Hour, 12)

	req := roomRequest(s.ID(), monday(10, 0))
	req.Flexibility.TimeToleranceMinutes = 60
	result, err := f.engine.Optimize(f.ctx, req)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.False(t, result.Committed.Fallback)
	assert.True(t, monday(9, 0).Equal(result.Committed.Interval.Start), "got %s", result.Committed.Interval.Start)
}

func TestOptimizationEngine_AtMostFiveAlternatives(t *testing.T) {
	f := newFixture(t)
	f.room("Room R", 20)
	s := f.session("Go basics", monday(9, 0), time.Hour, 12)

	var starts []time.Time
	for h := 9; h < 17; h++ {
		starts = append(starts, monday(h, 0))
	}
	result, err := f.engine.Optimize(f.ctx, roomRequest(s.ID(), starts...))
	require.NoError(t, err)
	assert.Len(t, result.Alternatives, 5)
	assert.True(t, monday(9, 0).Equal(result.Committed.Interval.Start))
	for i := 1; i < len(result.Alternatives); i++ {
		assert.GreaterOrEqual(t, result.Alternatives[i-1].Score, result.Alternatives[i].Score)
	}
}

func TestOptimizationEngine_PastStartsRejected(t *testing.T) {
	f := newFixture(t)
	f.room("Room R", 20)
	s := f.session("Go basics", monday(9, 0), time.Hour, 12)

	_, err := f.engine.Optimize(f.ctx, roomRequest(s.ID(), testNow.Add(-time.Hour), testNow))
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
	assert.ErrorIs(t, err, ErrNoFutureStart)
}

func TestOptimizationEngine_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Optimize(f.ctx, domain.SchedulingRequest{SessionID: uuid.New()})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))

	_, err = f.engine.Optimize(f.ctx, roomRequest(uuid.New(), monday(10, 0)))
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))
}

func TestOptimizationEngine_SubstituteInstructor(t *testing.T) {
	f := newFixture(t)
	f.room("Room A", 20)
	f.room("Room B", 20)
	ada := f.instructor("Ada", 4.8, "go")
	bob := f.instructor("Bob", 4.0, "go")
	f.place(f.session("Other", monday(10, 0), time.Hour, 10), ada.ID())
	s := f.session("Go basics", monday(10, 0), time.Hour, 12)

	req := roomRequest(s.ID(), monday(10, 0))
	req.Instructor = domain.InstructorPreference{InstructorID: ada.ID(), Specializations: []string{"go"}}
	req.Flexibility.AllowInstructorSubstitution = true

	result, err := f.engine.Optimize(f.ctx, req)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, bob.ID(), result.Committed.InstructorID)
	assert.Contains(t, result.Committed.Tradeoffs, "substitute instructor Bob")

	stored, err := f.sessions.GetSession(f.ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, bob.ID(), stored.InstructorID())
}

func TestOptimizationEngine_UnresolvableBelowThreshold(t *testing.T) {
	f := newFixture(t)
	s := f.session("Night class", monday(10, 0), time.Hour, 12)

	req := roomRequest(s.ID(), monday(10, 0))
	req.Instructor = domain.InstructorPreference{MinRating: 5}
	req.Constraints = []domain.ConstraintSpec{{
		Kind:  domain.ConstraintTimeWindow,
		Type:  domain.ConstraintTypeHard,
		Start: domain.At(20, 0),
		End:   domain.At(21, 0),
	}}
	result, err := f.engine.Optimize(f.ctx, req)
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindUnresolvable))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Empty(t, result.Alternatives)
}

func TestOptimizationEngine_NoConflictFreeCandidate(t *testing.T) {
	f := newFixture(t)
	s := f.session("Go basics", monday(10, 0), time.Hour, 12)

	result, err := f.engine.Optimize(f.ctx, roomRequest(s.ID(), monday(10, 0)))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.Committed)
	assert.NotEmpty(t, result.Alternatives)
	for _, alt := range result.Alternatives {
		assert.False(t, alt.Viable)
	}
}

func TestOptimizationEngine_Reschedule(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	s := f.session("Go basics", monday(10, 0), time.Hour, 12)
	_, err := f.engine.Optimize(f.ctx, roomRequest(s.ID(), monday(10, 0)))
	require.NoError(t, err)

	// the room is taken away for the morning
	_, err = f.registry.AddMaintenance(f.ctx, room.ID(),
		domain.NewMaintenanceWindow(domain.IntervalOf(monday(9, 0), 3*time.Hour), domain.MaintenanceEmergency, "leak"))
	require.NoError(t, err)

	result, err := f.engine.Reschedule(f.ctx, s.ID())
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.False(t, result.Committed.Interval.Overlaps(domain.IntervalOf(monday(9, 0), 3*time.Hour)))

	held, err := f.ledger.SessionAllocations(f.ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.True(t, result.Committed.Interval.Start.Equal(held[0].Interval().Start))
	assert.Contains(t, f.events.RoutingKeys(), domain.RoutingKeySessionRescheduled)
}
