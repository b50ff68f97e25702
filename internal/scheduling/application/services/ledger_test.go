package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
)

func TestLedger_Allocate_RejectsOverlapAcceptsAdjacent(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)

	booked, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationConfirmed, booked.Status())

	_, err = f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 30), time.Hour), "")
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable))
	assert.ErrorIs(t, err, ErrAllocationExists)

	adjacent, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(11, 0), time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationConfirmed, adjacent.Status())

	all, err := f.ledger.QueryAllocations(f.ctx, room.ID(), monday(0, 0), monday(23, 0))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLedger_Allocate_RespectsAvailability(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)

	tests := []struct {
		name string
		iv   domain.Interval
	}{
		{"before opening", domain.IntervalOf(monday(8, 0), time.Hour)},
		{"past closing", domain.IntervalOf(monday(16, 30), time.Hour)},
		{"weekend", domain.IntervalOf(testNow.Add(2*time.Hour), time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), tt.iv, "")
			require.Error(t, err)
			assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable))
		})
	}

	_, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), -time.Hour), "")
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))

	_, err = f.ledger.Allocate(f.ctx, uuid.New(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))
}

func TestLedger_Allocate_BlockedResource(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	_, err := f.registry.SetResourceStatus(f.ctx, room.ID(), domain.ResourceBlocked)
	require.NoError(t, err)

	_, err = f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	assert.ErrorIs(t, err, ErrResourceBlocked)
}

func TestLedger_Release_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	a, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	require.NoError(t, err)
	f.events.Events = nil

	released, err := f.ledger.Release(f.ctx, a.ID(), "not needed")
	require.NoError(t, err)
	assert.True(t, released)

	again, err := f.ledger.Release(f.ctx, a.ID(), "not needed")
	require.NoError(t, err)
	assert.False(t, again)
	// the room was the only seat limit of its session
	assert.Equal(t, []string{
		domain.RoutingKeyAllocationReleased,
		domain.RoutingKeySessionCapacityChanged,
	}, f.events.RoutingKeys())

	// the slot is free again
	_, err = f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	assert.NoError(t, err)
}

func TestLedger_ReserveThenConfirm(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)

	pending, err := f.ledger.Reserve(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "hold")
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationPending, pending.Status())

	// a pending allocation holds the slot
	_, err = f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable))

	confirmed, err := f.ledger.Confirm(f.ctx, pending.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationConfirmed, confirmed.Status())

	_, err = f.ledger.Release(f.ctx, pending.ID(), "done")
	require.NoError(t, err)
	_, err = f.ledger.Confirm(f.ctx, pending.ID())
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
}

func TestLedger_ConcurrentAllocate_OneWins(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	iv := domain.IntervalOf(monday(10, 0), time.Hour)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), iv, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
}

func TestLedger_ReplaceSessionAllocations_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	a := f.room("A", 20)
	b := f.room("B", 20)
	c := f.room("C", 20)
	sessionID := uuid.New()
	iv := domain.IntervalOf(monday(10, 0), time.Hour)

	_, err := f.ledger.ReplaceSessionAllocations(f.ctx, sessionID, iv, []uuid.UUID{a.ID()}, "")
	require.NoError(t, err)
	_, err = f.ledger.Allocate(f.ctx, c.ID(), uuid.New(), iv, "")
	require.NoError(t, err)

	_, err = f.ledger.ReplaceSessionAllocations(f.ctx, sessionID, iv, []uuid.UUID{b.ID(), c.ID()}, "")
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable))

	held, err := f.ledger.SessionAllocations(f.ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, a.ID(), held[0].ResourceID())

	created, err := f.ledger.ReplaceSessionAllocations(f.ctx, sessionID, iv, []uuid.UUID{b.ID()}, "")
	require.NoError(t, err)
	require.Len(t, created, 1)
	held, err = f.ledger.SessionAllocations(f.ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, b.ID(), held[0].ResourceID())

	released, err := f.ledger.ReleaseSession(f.ctx, sessionID, "done")
	require.NoError(t, err)
	assert.Equal(t, 1, released)
}

// recordingLocker remembers the key set of every Lock call.
type recordingLocker struct {
	KeyedLocker
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	r.mu.Lock()
	r.calls = append(r.calls, NormalizeKeys(keys))
	r.mu.Unlock()
	return r.KeyedLocker.Lock(ctx, keys...)
}

// racingAllocations runs book once, right after the first FindBySession,
// standing in for a booking that lands between reading and locking.
type racingAllocations struct {
	domain.AllocationRepository
	once sync.Once
	book func()
}

func (r *racingAllocations) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Allocation, error) {
	out, err := r.AllocationRepository.FindBySession(ctx, sessionID)
	r.once.Do(r.book)
	return out, err
}

func TestLedger_ReplaceSessionAllocations_RelocksWhenHeldSetChanges(t *testing.T) {
	f := newFixture(t)
	a := f.room("A", 20)
	late := f.room("Late", 20)
	target := f.room("Target", 20)
	sessionID := uuid.New()
	iv := domain.IntervalOf(monday(10, 0), time.Hour)
	_, err := f.ledger.Allocate(f.ctx, a.ID(), sessionID, iv, "")
	require.NoError(t, err)

	locker := &recordingLocker{KeyedLocker: f.deps.Locker}
	deps := f.deps
	deps.Locker = locker
	deps.Repos.Allocations = &racingAllocations{
		AllocationRepository: f.deps.Repos.Allocations,
		book: func() {
			_, err := f.ledger.Allocate(f.ctx, late.ID(), sessionID, iv, "")
			require.NoError(t, err)
		},
	}
	ledger := NewLedger(deps)

	created, err := ledger.ReplaceSessionAllocations(f.ctx, sessionID, iv, []uuid.UUID{target.ID()}, "")
	require.NoError(t, err)
	require.Len(t, created, 1)

	require.Len(t, locker.calls, 2, "the locks are taken again once the late booking shows up")
	assert.NotContains(t, locker.calls[0], ResourceKey(late.ID()))
	assert.Contains(t, locker.calls[1], ResourceKey(late.ID()))
	assert.Contains(t, locker.calls[1], ResourceKey(a.ID()))

	held, err := f.ledger.SessionAllocations(f.ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, target.ID(), held[0].ResourceID())
}

func TestLedger_ReleaseSession_GivesUpWhenAllocationsNeverSettle(t *testing.T) {
	f := newFixture(t)
	sessionID := uuid.New()
	iv := domain.IntervalOf(monday(10, 0), time.Hour)

	deps := f.deps
	deps.Repos.Allocations = &churningAllocations{AllocationRepository: f.deps.Repos.Allocations, iv: iv}
	ledger := NewLedger(deps)

	_, err := ledger.ReleaseSession(f.ctx, sessionID, "done")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocationsUnsettled)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindConflict))
	assert.Zero(t, f.deps.Locker.(*MemoryLocker).Held())
}

// churningAllocations reports a new resource for the session on every read.
type churningAllocations struct {
	domain.AllocationRepository
	iv domain.Interval
}

func (r *churningAllocations) FindBySession(_ context.Context, sessionID uuid.UUID) ([]*domain.Allocation, error) {
	return []*domain.Allocation{domain.NewAllocation(uuid.New(), sessionID, r.iv, "", testNow)}, nil
}

func TestLedger_ReplaceSessionAllocations_RaisesCapacityWhenRoomGrows(t *testing.T) {
	f := newFixture(t)
	small := f.room("Small", 8)
	large := f.room("Large", 30)
	smaller := f.room("Smaller", 4)
	sessionID := uuid.New()
	iv := domain.IntervalOf(monday(10, 0), time.Hour)

	_, err := f.ledger.ReplaceSessionAllocations(f.ctx, sessionID, iv, []uuid.UUID{small.ID()}, "")
	require.NoError(t, err)
	assert.NotContains(t, f.events.RoutingKeys(), domain.RoutingKeySessionCapacityChanged, "a first room only lowers the seats")

	f.events.Events = nil
	_, err = f.ledger.ReplaceSessionAllocations(f.ctx, sessionID, iv, []uuid.UUID{large.ID()}, "")
	require.NoError(t, err)
	var changed *domain.SessionCapacityChangedEvent
	for _, e := range f.events.Events {
		if c, ok := e.(*domain.SessionCapacityChangedEvent); ok {
			changed = c
		}
	}
	require.NotNil(t, changed)
	assert.Equal(t, sessionID, changed.AggregateID())
	assert.Equal(t, domain.CapacityFromResources, changed.Source)
	assert.Equal(t, 8, changed.PreviousCapacity)
	assert.Equal(t, 30, changed.Capacity)

	f.events.Events = nil
	_, err = f.ledger.ReplaceSessionAllocations(f.ctx, sessionID, iv, []uuid.UUID{smaller.ID()}, "")
	require.NoError(t, err)
	assert.NotContains(t, f.events.RoutingKeys(), domain.RoutingKeySessionCapacityChanged)
}

func TestLedger_QueryAllocations_RejectsEmptyRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.QueryAllocations(f.ctx, uuid.New(), monday(10, 0), monday(10, 0))
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
}
