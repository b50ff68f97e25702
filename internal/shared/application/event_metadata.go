package application

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// EventDispatcher delivers the domain events produced by a use case.
// Implementations either stage them in the outbox of the current transaction
// or hand them straight to the event bus.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events ...domain.DomainEvent) error
}

// NewEventMetadata creates command-scoped metadata for domain events.
func NewEventMetadata(actorID uuid.UUID) domain.EventMetadata {
	return domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		ActorID:       actorID,
	}
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}

// CollectingDispatcher keeps dispatched events in memory.
type CollectingDispatcher struct {
	mu     sync.Mutex
	Events []domain.DomainEvent
}

// Dispatch appends the events.
func (d *CollectingDispatcher) Dispatch(_ context.Context, events ...domain.DomainEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Events = append(d.Events, events...)
	return nil
}

// RoutingKeys returns the routing keys of the collected events in order.
func (d *CollectingDispatcher) RoutingKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.Events))
	for _, e := range d.Events {
		keys = append(keys, e.RoutingKey())
	}
	return keys
}

type metadataKey struct{}

// WithEventMetadata attaches metadata to ctx so the events raised further
// down the call chain carry it.
func WithEventMetadata(ctx context.Context, metadata domain.EventMetadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, metadata)
}

// EventMetadataFromContext returns the metadata attached to ctx.
func EventMetadataFromContext(ctx context.Context) (domain.EventMetadata, bool) {
	metadata, ok := ctx.Value(metadataKey{}).(domain.EventMetadata)
	return metadata, ok
}

// WithActor attaches event metadata for one command. A correlation id
// already in ctx, e.g. from the CLI invocation, is kept so every event of
// the run can be traced together.
func WithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	metadata := NewEventMetadata(actorID)
	if existing, ok := EventMetadataFromContext(ctx); ok {
		if existing.CorrelationID != uuid.Nil {
			metadata.CausationID = existing.CorrelationID
			metadata.CorrelationID = existing.CorrelationID
		}
		if actorID == uuid.Nil {
			metadata.ActorID = existing.ActorID
		}
	}
	return WithEventMetadata(ctx, metadata)
}
