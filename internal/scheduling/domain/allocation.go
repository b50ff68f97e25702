package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var ErrAllocationReleased = errors.New("allocation already released")

// AllocationStatus is the state of a resource booking.
type AllocationStatus string

const (
	AllocationPending   AllocationStatus = "pending"
	AllocationConfirmed AllocationStatus = "confirmed"
	AllocationReleased  AllocationStatus = "released"
)

// Allocation books a resource for a session over an interval.
type Allocation struct {
	sharedDomain.BaseAggregateRoot
	resourceID uuid.UUID
	sessionID  uuid.UUID
	interval   Interval
	status     AllocationStatus
	notes      string
	releasedAt *time.Time
}

// NewAllocation creates a pending allocation. Overlap and availability are
// checked by the ledger before the allocation is created.
func NewAllocation(resourceID, sessionID uuid.UUID, iv Interval, notes string, now time.Time) *Allocation {
	return &Allocation{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRootFrom(sharedDomain.NewBaseEntityAt(uuid.New(), now)),
		resourceID:        resourceID,
		sessionID:         sessionID,
		interval:          iv,
		status:            AllocationPending,
		notes:             notes,
	}
}

// RehydrateAllocation recreates an allocation from persisted state.
func RehydrateAllocation(
	id, resourceID, sessionID uuid.UUID,
	iv Interval,
	status AllocationStatus,
	notes string,
	releasedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Allocation {
	return &Allocation{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt), 0,
		),
		resourceID: resourceID,
		sessionID:  sessionID,
		interval:   iv,
		status:     status,
		notes:      notes,
		releasedAt: releasedAt,
	}
}

func (a *Allocation) ResourceID() uuid.UUID    { return a.resourceID }
func (a *Allocation) SessionID() uuid.UUID     { return a.sessionID }
func (a *Allocation) Interval() Interval       { return a.interval }
func (a *Allocation) Status() AllocationStatus { return a.status }
func (a *Allocation) Notes() string            { return a.notes }
func (a *Allocation) ReleasedAt() *time.Time   { return a.releasedAt }

// IsActive reports whether the allocation still holds its resource.
func (a *Allocation) IsActive() bool { return a.status != AllocationReleased }

// Confirm marks a pending allocation confirmed.
func (a *Allocation) Confirm(now time.Time) error {
	if a.status == AllocationReleased {
		return ErrAllocationReleased
	}
	if a.status == AllocationConfirmed {
		return nil
	}
	a.status = AllocationConfirmed
	a.TouchAt(now)
	a.AddDomainEvent(NewAllocationConfirmed(a, now))
	return nil
}

// Release frees the resource. It returns false when the allocation was
// already released.
func (a *Allocation) Release(reason string, now time.Time) bool {
	if a.status == AllocationReleased {
		return false
	}
	at := now.UTC()
	a.status = AllocationReleased
	a.releasedAt = &at
	a.TouchAt(now)
	a.AddDomainEvent(NewAllocationReleased(a, reason, now))
	return true
}

// Clone returns a copy without pending domain events.
func (a *Allocation) Clone() *Allocation {
	c := *a
	c.BaseAggregateRoot = sharedDomain.RehydrateBaseAggregateRoot(a.BaseEntity, a.Version())
	if a.releasedAt != nil {
		at := *a.releasedAt
		c.releasedAt = &at
	}
	return &c
}
