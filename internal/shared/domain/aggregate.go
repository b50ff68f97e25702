package domain

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and audit stamps shared by all aggregates.
// Stamps are kept in UTC.
type BaseEntity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewBaseEntityAt stamps a fresh entity with now.
func NewBaseEntityAt(id uuid.UUID, now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{id: id, createdAt: now, updatedAt: now}
}

// RehydrateBaseEntity restores an entity loaded from storage as is.
func RehydrateBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{id: id, createdAt: createdAt, updatedAt: updatedAt}
}

func (e BaseEntity) ID() uuid.UUID        { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

// Touch moves the update stamp to the wall clock.
func (e *BaseEntity) Touch() { e.TouchAt(time.Now()) }

// TouchAt moves the update stamp to now.
func (e *BaseEntity) TouchAt(now time.Time) { e.updatedAt = now.UTC() }

// BaseAggregateRoot buffers the events raised since the aggregate was last
// saved. Every recorded event bumps the version, so the persisted version
// counts the changes an aggregate went through.
type BaseAggregateRoot struct {
	BaseEntity
	pending []DomainEvent
	version int
}

// NewBaseAggregateRoot creates an aggregate with a random id.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return NewBaseAggregateRootWithID(uuid.New())
}

// NewBaseAggregateRootWithID creates an aggregate with a caller chosen id,
// e.g. a roster keyed by its session.
func NewBaseAggregateRootWithID(id uuid.UUID) BaseAggregateRoot {
	return NewBaseAggregateRootFrom(NewBaseEntityAt(id, time.Now()))
}

func NewBaseAggregateRootFrom(entity BaseEntity) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity}
}

// RehydrateBaseAggregateRoot restores an aggregate at a stored version with
// no pending events.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, version: version}
}

// AddDomainEvent records event and bumps the version.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
	a.version++
}

// DomainEvents returns the pending events without clearing them.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent { return a.pending }

func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }

// PullDomainEvents hands the pending events over and forgets them.
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}

func (a *BaseAggregateRoot) Version() int { return a.version }
