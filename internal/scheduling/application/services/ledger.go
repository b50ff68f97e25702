package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrResourceBlocked      = errors.New("resource is blocked")
	ErrAllocationExists     = errors.New("overlapping allocation exists")
	ErrAllocationsUnsettled = errors.New("session allocations kept changing while locking")
)

// maxLockAttempts bounds how often lockSession takes the resource locks
// again after the allocations of the session changed underneath it.
const maxLockAttempts = 5

// Ledger owns resource allocations. Every mutation runs under the resource
// locks of the resources it touches, so two overlapping allocations on one
// resource cannot both succeed.
type Ledger struct {
	deps   Deps
	logger *slog.Logger
}

// NewLedger creates an allocation ledger.
func NewLedger(deps Deps) *Ledger {
	deps = deps.withDefaults()
	return &Ledger{deps: deps, logger: deps.Logger.With("component", "ledger")}
}

// Allocate books a resource for a session and confirms it immediately.
func (l *Ledger) Allocate(ctx context.Context, resourceID, sessionID uuid.UUID, iv domain.Interval, notes string) (*domain.Allocation, error) {
	return l.book(ctx, "ledger.allocate", resourceID, sessionID, iv, notes, true)
}

// Reserve books a resource for a session as pending. A pending allocation
// holds the interval until it is confirmed or released.
func (l *Ledger) Reserve(ctx context.Context, resourceID, sessionID uuid.UUID, iv domain.Interval, notes string) (*domain.Allocation, error) {
	return l.book(ctx, "ledger.reserve", resourceID, sessionID, iv, notes, false)
}

func (l *Ledger) book(
	ctx context.Context,
	op string,
	resourceID, sessionID uuid.UUID,
	iv domain.Interval,
	notes string,
	confirm bool,
) (*domain.Allocation, error) {
	if !iv.End.After(iv.Start) {
		return nil, invalid(op, domain.ErrInvalidInterval, resourceID)
	}
	unlock, err := l.deps.Locker.Lock(ctx, ResourceKey(resourceID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var allocation *domain.Allocation
	err = application.WithUnitOfWork(ctx, l.deps.UoW, func(txCtx context.Context) error {
		resource, err := l.deps.Repos.Resources.FindByID(txCtx, resourceID)
		if err != nil {
			return fmt.Errorf("%s: resource: %w", op, err)
		}
		if resource == nil {
			return sharedDomain.NotFound(op, "resource", resourceID)
		}
		if err := l.checkResource(txCtx, op, resource, iv, uuid.Nil); err != nil {
			return err
		}

		now := l.deps.Clock()
		allocation = domain.NewAllocation(resourceID, sessionID, iv, notes, now)
		if confirm {
			if err := allocation.Confirm(now); err != nil {
				return err
			}
		}
		if err := l.deps.Repos.Allocations.Save(txCtx, allocation); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return l.deps.dispatch(txCtx, allocation)
	})
	if err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "allocation created",
		"allocation_id", allocation.ID(), "resource_id", resourceID, "session_id", sessionID,
		"status", allocation.Status(), "start", iv.Start, "end", iv.End)
	return allocation, nil
}

// Confirm confirms a pending allocation, re-checking that the resource is still free.
func (l *Ledger) Confirm(ctx context.Context, allocationID uuid.UUID) (*domain.Allocation, error) {
	const op = "ledger.confirm"
	allocation, err := l.find(ctx, op, allocationID)
	if err != nil {
		return nil, err
	}
	unlock, err := l.deps.Locker.Lock(ctx, ResourceKey(allocation.ResourceID()))
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = application.WithUnitOfWork(ctx, l.deps.UoW, func(txCtx context.Context) error {
		allocation, err = l.find(txCtx, op, allocationID)
		if err != nil {
			return err
		}
		if allocation.Status() == domain.AllocationConfirmed {
			return nil
		}
		if allocation.Status() == domain.AllocationReleased {
			return sharedDomain.NewError(sharedDomain.KindInvalidRequest, op, domain.ErrAllocationReleased, allocationID)
		}
		if err := l.checkOverlap(txCtx, op, allocation.ResourceID(), allocation.Interval(), allocation.ID(), uuid.Nil); err != nil {
			return err
		}
		if err := allocation.Confirm(l.deps.Clock()); err != nil {
			return err
		}
		if err := l.deps.Repos.Allocations.Save(txCtx, allocation); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return l.deps.dispatch(txCtx, allocation)
	})
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

// Release frees an allocation. It returns false, without changing anything,
// when the allocation was already released.
func (l *Ledger) Release(ctx context.Context, allocationID uuid.UUID, reason string) (bool, error) {
	const op = "ledger.release"
	allocation, err := l.find(ctx, op, allocationID)
	if err != nil {
		return false, err
	}
	if !allocation.IsActive() {
		return false, nil
	}
	unlock, err := l.deps.Locker.Lock(ctx, ResourceKey(allocation.ResourceID()))
	if err != nil {
		return false, err
	}
	defer unlock()

	released := false
	err = application.WithUnitOfWork(ctx, l.deps.UoW, func(txCtx context.Context) error {
		allocation, err = l.find(txCtx, op, allocationID)
		if err != nil {
			return err
		}
		held, err := l.deps.Repos.Allocations.FindBySession(txCtx, allocation.SessionID())
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		before, err := l.seatLimit(txCtx, held, uuid.Nil)
		if err != nil {
			return err
		}
		now := l.deps.Clock()
		if !allocation.Release(reason, now) {
			return nil
		}
		if err := l.deps.Repos.Allocations.Save(txCtx, allocation); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		released = true
		after, err := l.seatLimit(txCtx, held, allocation.ID())
		if err != nil {
			return err
		}
		return l.deps.dispatch(txCtx, allocation, capacityChange(allocation.SessionID(), before, after, now))
	})
	if err != nil {
		return false, err
	}
	if released {
		l.logger.InfoContext(ctx, "allocation released", "allocation_id", allocationID, "reason", reason)
	}
	return released, nil
}

// ReleaseSession releases every active allocation of a session.
func (l *Ledger) ReleaseSession(ctx context.Context, sessionID uuid.UUID, reason string) (int, error) {
	unlock, err := l.lockSession(ctx, sessionID, nil)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return l.releaseSession(ctx, sessionID, reason)
}

// releaseSession does the work of ReleaseSession. The caller holds the
// resource keys of the session.
func (l *Ledger) releaseSession(ctx context.Context, sessionID uuid.UUID, reason string) (int, error) {
	const op = "ledger.release_session"
	count := 0
	err := application.WithUnitOfWork(ctx, l.deps.UoW, func(txCtx context.Context) error {
		current, err := l.deps.Repos.Allocations.FindBySession(txCtx, sessionID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		now := l.deps.Clock()
		for _, a := range current {
			if !a.Release(reason, now) {
				continue
			}
			if err := l.deps.Repos.Allocations.Save(txCtx, a); err != nil {
				return fmt.Errorf("%s: save: %w", op, err)
			}
			count++
			if err := l.deps.dispatch(txCtx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && count > 0 {
		l.logger.InfoContext(ctx, "session allocations released", "session_id", sessionID, "count", count, "reason", reason)
	}
	return count, err
}

// QueryAllocations returns the active allocations of a resource intersecting [from, to).
func (l *Ledger) QueryAllocations(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*domain.Allocation, error) {
	if !to.After(from) {
		return nil, sharedDomain.InvalidRequest("ledger.query", "range end must be after start")
	}
	return l.deps.Repos.Allocations.FindByResource(ctx, resourceID, from, to)
}

// SessionAllocations returns the active allocations of a session.
func (l *Ledger) SessionAllocations(ctx context.Context, sessionID uuid.UUID) ([]*domain.Allocation, error) {
	return l.deps.Repos.Allocations.FindBySession(ctx, sessionID)
}

// ReplaceSessionAllocations swaps the active allocations of a session for
// confirmed allocations of resourceIDs over iv. It checks every new resource
// before writing anything and runs under the locks of the old and new
// resources, so the session never holds a half-applied set.
func (l *Ledger) ReplaceSessionAllocations(
	ctx context.Context,
	sessionID uuid.UUID,
	iv domain.Interval,
	resourceIDs []uuid.UUID,
	notes string,
) ([]*domain.Allocation, error) {
	unlock, err := l.lockSession(ctx, sessionID, resourceIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return l.replace(ctx, sessionID, iv, resourceIDs, notes)
}

// lockSession takes the locks a change to a session's allocations must hold:
// the resources the session holds now, the ones in resourceIDs and extra.
// The held resources are read again under the locks. When a concurrent
// booking added one that is not covered, the locks are dropped and taken
// again with the new set.
func (l *Ledger) lockSession(ctx context.Context, sessionID uuid.UUID, resourceIDs []uuid.UUID, extra ...string) (func(), error) {
	held, err := l.heldKeys(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		keys := make([]string, 0, len(held)+len(resourceIDs)+len(extra))
		keys = append(keys, held...)
		for _, id := range resourceIDs {
			keys = append(keys, ResourceKey(id))
		}
		keys = append(keys, extra...)

		unlock, err := l.deps.Locker.Lock(ctx, keys...)
		if err != nil {
			return nil, err
		}
		held, err = l.heldKeys(ctx, sessionID)
		if err != nil {
			unlock()
			return nil, err
		}
		if covers(keys, held) {
			return unlock, nil
		}
		unlock()
		if attempt == maxLockAttempts {
			return nil, sharedDomain.NewError(sharedDomain.KindConflict, "ledger.lock", ErrAllocationsUnsettled, sessionID)
		}
		l.logger.DebugContext(ctx, "session allocations changed while locking", "session_id", sessionID, "attempt", attempt)
	}
}

// heldKeys returns the resource keys of the active allocations of a session.
func (l *Ledger) heldKeys(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	current, err := l.deps.Repos.Allocations.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: allocations of session %s: %w", sessionID, err)
	}
	keys := make([]string, 0, len(current))
	for _, a := range current {
		if a.IsActive() {
			keys = append(keys, ResourceKey(a.ResourceID()))
		}
	}
	return keys, nil
}

func covers(locked, keys []string) bool {
	set := make(map[string]struct{}, len(locked))
	for _, k := range locked {
		set[k] = struct{}{}
	}
	for _, k := range keys {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

// replace does the work of ReplaceSessionAllocations. The caller holds the
// locks taken by lockSession.
func (l *Ledger) replace(
	ctx context.Context,
	sessionID uuid.UUID,
	iv domain.Interval,
	resourceIDs []uuid.UUID,
	notes string,
) ([]*domain.Allocation, error) {
	const op = "ledger.replace"
	released := 0
	var created []*domain.Allocation
	err := application.WithUnitOfWork(ctx, l.deps.UoW, func(txCtx context.Context) error {
		current, err := l.deps.Repos.Allocations.FindBySession(txCtx, sessionID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		seen := make(map[uuid.UUID]bool, len(resourceIDs))
		for _, id := range resourceIDs {
			if seen[id] {
				return sharedDomain.InvalidRequest(op, "resource %s listed twice", id)
			}
			seen[id] = true
			resource, err := l.deps.Repos.Resources.FindByID(txCtx, id)
			if err != nil {
				return fmt.Errorf("%s: resource: %w", op, err)
			}
			if resource == nil {
				return sharedDomain.NotFound(op, "resource", id)
			}
			if err := l.checkResource(txCtx, op, resource, iv, sessionID); err != nil {
				return err
			}
		}

		before, err := l.seatLimit(txCtx, current, uuid.Nil)
		if err != nil {
			return err
		}
		now := l.deps.Clock()
		var saved, undo []*domain.Allocation
		for _, a := range current {
			before := a.Clone()
			a.Release("replaced", now)
			if err := l.deps.Repos.Allocations.Save(txCtx, a); err != nil {
				l.compensate(txCtx, undo)
				return fmt.Errorf("%s: release: %w", op, err)
			}
			saved = append(saved, a)
			undo = append(undo, before)
			released++
		}
		for _, id := range resourceIDs {
			a := domain.NewAllocation(id, sessionID, iv, notes, now)
			if err := a.Confirm(now); err != nil {
				return err
			}
			if err := l.deps.Repos.Allocations.Save(txCtx, a); err != nil {
				l.compensate(txCtx, undo)
				return fmt.Errorf("%s: save: %w", op, err)
			}
			saved = append(saved, a)
			created = append(created, a)
			discarded := a.Clone()
			discarded.Release("rollback", now)
			undo = append(undo, discarded)
		}

		after, err := l.seatLimit(txCtx, created, uuid.Nil)
		if err != nil {
			return err
		}
		sources := make([]eventSource, 0, len(saved)+1)
		for _, a := range saved {
			sources = append(sources, a)
		}
		sources = append(sources, capacityChange(sessionID, before, after, now))
		return l.deps.dispatch(txCtx, sources...)
	})
	if err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "session allocations replaced",
		"session_id", sessionID, "released", released, "allocated", len(created))
	return created, nil
}

// seatLimit is the smallest capacity among the resources of the active
// allocations other than skip. Zero means none of them limits the seats.
func (l *Ledger) seatLimit(ctx context.Context, allocations []*domain.Allocation, skip uuid.UUID) (int, error) {
	limit := 0
	for _, a := range allocations {
		if !a.IsActive() || a.ID() == skip {
			continue
		}
		resource, err := l.deps.Repos.Resources.FindByID(ctx, a.ResourceID())
		if err != nil {
			return 0, fmt.Errorf("ledger: resource %s: %w", a.ResourceID(), err)
		}
		if resource == nil || !resource.HasCapacity() {
			continue
		}
		if limit == 0 || resource.Capacity() < limit {
			limit = resource.Capacity()
		}
	}
	return limit, nil
}

// raised carries events that belong to no aggregate at hand.
type raised []sharedDomain.DomainEvent

func (r raised) PullDomainEvents() []sharedDomain.DomainEvent { return r }

// capacityChange raises a capacity event for a session whose seat limit
// went from before to after, when more people fit than before.
func capacityChange(sessionID uuid.UUID, before, after int, now time.Time) raised {
	if sessionID == uuid.Nil {
		return nil
	}
	event := domain.NewSessionCapacityChanged(sessionID, domain.CapacityFromResources, before, after, now)
	if !event.Grew() {
		return nil
	}
	return raised{event}
}

// compensate writes back the prior state of a failed replace. SQL stores
// roll back with the transaction; the in-memory store needs the inverse writes.
func (l *Ledger) compensate(ctx context.Context, undo []*domain.Allocation) {
	if _, ok := l.deps.UoW.(application.NoopUnitOfWork); !ok {
		return
	}
	for _, a := range undo {
		if err := l.deps.Repos.Allocations.Save(ctx, a); err != nil {
			l.logger.ErrorContext(ctx, "allocation rollback failed", "allocation_id", a.ID(), "error", err)
		}
	}
}

// checkResource reports why resource cannot take iv for a session whose own
// allocations are ignored when ignoreSession is set.
func (l *Ledger) checkResource(ctx context.Context, op string, resource *domain.Resource, iv domain.Interval, ignoreSession uuid.UUID) error {
	if !resource.Bookable() {
		return sharedDomain.NewError(sharedDomain.KindResourceUnavailable, op, ErrResourceBlocked, resource.ID())
	}
	if err := resource.Check(iv); err != nil {
		return sharedDomain.NewError(sharedDomain.KindResourceUnavailable, op, err, resource.ID())
	}
	return l.checkOverlap(ctx, op, resource.ID(), iv, uuid.Nil, ignoreSession)
}

func (l *Ledger) checkOverlap(ctx context.Context, op string, resourceID uuid.UUID, iv domain.Interval, ignoreAllocation, ignoreSession uuid.UUID) error {
	existing, err := l.deps.Repos.Allocations.FindByResource(ctx, resourceID, iv.Start, iv.End)
	if err != nil {
		return fmt.Errorf("%s: allocations: %w", op, err)
	}
	for _, a := range existing {
		if a.ID() == ignoreAllocation || (ignoreSession != uuid.Nil && a.SessionID() == ignoreSession) {
			continue
		}
		if a.IsActive() && a.Interval().Overlaps(iv) {
			return sharedDomain.NewError(sharedDomain.KindResourceUnavailable, op,
				fmt.Errorf("%w: %s for session %s", ErrAllocationExists, a.ID(), a.SessionID()), resourceID, a.ID())
		}
	}
	return nil
}

func (l *Ledger) find(ctx context.Context, op string, id uuid.UUID) (*domain.Allocation, error) {
	allocation, err := l.deps.Repos.Allocations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if allocation == nil {
		return nil, sharedDomain.NotFound(op, "allocation", id)
	}
	return allocation, nil
}
