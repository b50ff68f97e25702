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

// forceAllocate books a resource without the ledger's checks, the way a
// stale import or a manual edit would.
func (f *fixture) forceAllocate(r *domain.Resource, s *domain.Session) {
	f.t.Helper()
	a := domain.NewAllocation(r.ID(), s.ID(), s.Interval(), "forced", f.now)
	require.NoError(f.t, a.Confirm(f.now))
	a.PullDomainEvents()
	require.NoError(f.t, f.deps.Repos.Allocations.Save(f.ctx, a))
}

func (f *fixture) detect(sessions ...*domain.Session) []*domain.SchedulingConflict {
	f.t.Helper()
	conflicts, err := f.detector.Detect(f.ctx, sessions)
	require.NoError(f.t, err)
	return conflicts
}

func findConflict(t *testing.T, conflicts []*domain.SchedulingConflict, ct domain.ConflictType) *domain.SchedulingConflict {
	t.Helper()
	for _, c := range conflicts {
		if c.Type() == ct {
			return c
		}
	}
	require.Failf(t, "conflict not found", "no %s among %v", ct, conflictTypes(conflicts))
	return nil
}

func TestConflictResolver_SplitIsNotSupported(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	s := f.place(f.session("Big", monday(10, 0), time.Hour, 30), uuid.Nil, room)
	conflict := findConflict(t, f.detect(s), domain.ConflictCapacityExceeded)
	assert.Equal(t, domain.ResolutionSplitSession, conflict.Resolutions()[0])

	_, err := f.resolver.Resolve(f.ctx, conflict, "")
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotSupported))
	assert.ErrorIs(t, err, ErrSplitNotSupported)
	assert.False(t, conflict.IsResolved())
}

func TestConflictResolver_UnknownStrategy(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	s := f.place(f.session("Big", monday(10, 0), time.Hour, 30), uuid.Nil, room)
	conflict := findConflict(t, f.detect(s), domain.ConflictCapacityExceeded)

	_, err := f.resolver.Resolve(f.ctx, conflict, domain.ResolutionType("teleport"))
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
}

func TestConflictResolver_ReallocateDoubleBooking(t *testing.T) {
	f := newFixture(t)
	r := f.room("Room R", 20, "projector")
	spare := f.room("Room S", 20, "projector", "whiteboard")
	f.room("Too small", 5, "projector")
	a := f.place(f.session("A", monday(10, 0), time.Hour, 15), uuid.Nil, r)
	b := f.place(f.session("B", monday(10, 30), time.Hour, 15), uuid.Nil)
	f.forceAllocate(r, b)

	conflict := findConflict(t, f.detect(a, b), domain.ConflictResourceDoubleBooking)
	f.events.Events = nil
	outcome, err := f.resolver.Resolve(f.ctx, conflict, domain.ResolutionReallocateResource)
	require.NoError(t, err)
	require.Len(t, outcome.Sessions, 1)
	assert.True(t, conflict.IsResolved())
	assert.Equal(t, domain.ResolutionReallocateResource, conflict.ResolvedBy())
	assert.Contains(t, f.events.RoutingKeys(), domain.RoutingKeyConflictResolved)

	moved, err := f.ledger.SessionAllocations(f.ctx, outcome.Sessions[0])
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, spare.ID(), moved[0].ResourceID())

	assert.Empty(t, f.detect(a, b))
}

func TestConflictResolver_ReallocateWithoutSubstitute(t *testing.T) {
	f := newFixture(t)
	r := f.room("Room R", 20, "projector")
	f.room("No projector", 20)
	a := f.place(f.session("A", monday(10, 0), time.Hour, 15), uuid.Nil, r)
	b := f.place(f.session("B", monday(10, 0), time.Hour, 15), uuid.Nil)
	f.forceAllocate(r, b)

	conflict := findConflict(t, f.detect(a, b), domain.ConflictResourceDoubleBooking)
	_, err := f.resolver.Resolve(f.ctx, conflict, domain.ResolutionReallocateResource)
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindUnresolvable))
	assert.False(t, conflict.IsResolved())
}

func TestConflictResolver_ReallocateAwayFromMaintenance(t *testing.T) {
	f := newFixture(t)
	r := f.room("Room R", 20)
	spare := f.room("Room S", 25)
	s := f.place(f.session("S", monday(10, 0), time.Hour, 15), uuid.Nil, r)
	_, err := f.registry.AddMaintenance(f.ctx, r.ID(),
		domain.NewMaintenanceWindow(domain.IntervalOf(monday(10, 0), time.Hour), domain.MaintenanceEmergency, "leak"))
	require.NoError(t, err)

	conflict := findConflict(t, f.detect(s), domain.ConflictMaintenance)
	assert.Equal(t, domain.SeverityCritical, conflict.Severity())
	_, err = f.resolver.Resolve(f.ctx, conflict, "")
	require.NoError(t, err)

	held, err := f.ledger.SessionAllocations(f.ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, spare.ID(), held[0].ResourceID())
}

func TestConflictResolver_CancelLowestPriority(t *testing.T) {
	f := newFixture(t)
	r := f.room("Room R", 20)
	popular := f.place(f.session("Popular", monday(10, 0), time.Hour, 15), uuid.Nil, r)
	quiet := f.place(f.session("Quiet", monday(10, 0), time.Hour, 15), uuid.Nil)
	f.forceAllocate(r, quiet)
	_, err := f.sessions.RecordCounts(f.ctx, popular.ID(), 12, 0)
	require.NoError(t, err)

	conflict := findConflict(t, f.detect(popular, quiet), domain.ConflictResourceDoubleBooking)
	outcome, err := f.resolver.Resolve(f.ctx, conflict, domain.ResolutionCancel)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{quiet.ID()}, outcome.Sessions)

	cancelled, err := f.sessions.GetSession(f.ctx, quiet.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCancelled, cancelled.Status())
	held, err := f.ledger.SessionAllocations(f.ctx, quiet.ID())
	require.NoError(t, err)
	assert.Empty(t, held)

	kept, err := f.ledger.SessionAllocations(f.ctx, popular.ID())
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestConflictResolver_ChangeInstructor(t *testing.T) {
	f := newFixture(t)
	ada := f.instructor("Ada", 4.8)
	bob := f.instructor("Bob", 4.2)
	a := f.place(f.session("A", monday(9, 0), time.Hour, 10), ada.ID())
	b := f.place(f.session("B", monday(9, 30), time.Hour, 10), ada.ID())

	conflict := findConflict(t, f.detect(a, b), domain.ConflictInstructor)
	outcome, err := f.resolver.Resolve(f.ctx, conflict, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionChangeInstructor, outcome.Strategy)
	require.Len(t, outcome.Sessions, 1)

	changed, err := f.sessions.GetSession(f.ctx, outcome.Sessions[0])
	require.NoError(t, err)
	assert.Equal(t, bob.ID(), changed.InstructorID())
	assert.Contains(t, f.events.RoutingKeys(), domain.RoutingKeySessionInstructorChanged)
}

func TestConflictResolver_RescheduleMinimumBreak(t *testing.T) {
	f := newFixture(t)
	ada := f.instructor("Ada", 4.8)
	x := f.place(f.session("X", monday(9, 0), time.Hour, 10), ada.ID())
	y := f.place(f.session("Y", monday(10, 5), 55*time.Minute, 10), ada.ID())

	conflict := findConflict(t, f.detect(x, y), domain.ConflictMinimumBreak)
	outcome, err := f.resolver.Resolve(f.ctx, conflict, domain.ResolutionReschedule)
	require.NoError(t, err)
	require.Len(t, outcome.Sessions, 1)
	require.NotEmpty(t, outcome.Reschedules)

	x, err = f.sessions.GetSession(f.ctx, x.ID())
	require.NoError(t, err)
	y, err = f.sessions.GetSession(f.ctx, y.ID())
	require.NoError(t, err)
	assert.Empty(t, f.detect(x, y))
	assert.Equal(t, ada.ID(), x.InstructorID())
	assert.Equal(t, ada.ID(), y.InstructorID())
}

func TestConflictResolver_ResolveByID(t *testing.T) {
	f := newFixture(t)
	_, err := f.resolver.ResolveByID(f.ctx, uuid.New(), domain.ResolutionCancel)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))

	r := f.room("Room R", 20)
	f.place(f.session("A", monday(10, 0), time.Hour, 15), uuid.Nil, r)
	b := f.place(f.session("B", monday(10, 0), time.Hour, 15), uuid.Nil)
	f.forceAllocate(r, b)
	report, err := f.audit.Run(f.ctx)
	require.NoError(t, err)
	conflict := findConflict(t, report.Conflicts, domain.ConflictResourceDoubleBooking)

	_, err = f.resolver.ResolveByID(f.ctx, conflict.ID(), domain.ResolutionCancel)
	require.NoError(t, err)
	logged, err := f.log.Get(f.ctx, conflict.ID())
	require.NoError(t, err)
	assert.True(t, logged.IsResolved())

	_, err = f.resolver.ResolveByID(f.ctx, conflict.ID(), domain.ResolutionCancel)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
}
