package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate. The routing key doubles as
// the topic the event is published under, e.g. scheduling.session.scheduled.
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	RoutingKey() string
	OccurredAt() time.Time
	Metadata() EventMetadata
}

// EventMetadata traces an event back to the command that caused it.
// ActorID is uuid.Nil when the scheduler acted on its own.
type EventMetadata struct {
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
	ActorID       uuid.UUID
}

// BaseEvent is embedded by the concrete events.
type BaseEvent struct {
	id            uuid.UUID
	aggregateID   uuid.UUID
	aggregateType string
	routingKey    string
	occurredAt    time.Time
	metadata      EventMetadata
}

// NewBaseEvent stamps the event with the wall clock.
func NewBaseEvent(aggregateID uuid.UUID, aggregateType, routingKey string) BaseEvent {
	return NewBaseEventAt(aggregateID, aggregateType, routingKey, time.Now())
}

func NewBaseEventAt(aggregateID uuid.UUID, aggregateType, routingKey string, at time.Time) BaseEvent {
	return BaseEvent{
		id:            uuid.New(),
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		routingKey:    routingKey,
		occurredAt:    at.UTC(),
	}
}

func (e BaseEvent) EventID() uuid.UUID      { return e.id }
func (e BaseEvent) AggregateID() uuid.UUID  { return e.aggregateID }
func (e BaseEvent) AggregateType() string   { return e.aggregateType }
func (e BaseEvent) RoutingKey() string      { return e.routingKey }
func (e BaseEvent) OccurredAt() time.Time   { return e.occurredAt }
func (e BaseEvent) Metadata() EventMetadata { return e.metadata }

// SetMetadata is called by the application layer before dispatch.
func (e *BaseEvent) SetMetadata(metadata EventMetadata) { e.metadata = metadata }
