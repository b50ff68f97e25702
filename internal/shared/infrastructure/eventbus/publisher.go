package eventbus

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/cohort/internal/shared/domain"
)

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	// Publish sends an encoded envelope to the event bus.
	Publish(ctx context.Context, routingKey string, body []byte) error

	// Close closes the publisher connection.
	Close() error
}

// Dispatcher publishes domain events straight to a Publisher. It is used
// when there is no outbox, i.e. with the in-memory repositories.
type Dispatcher struct {
	publisher Publisher
}

// NewDispatcher creates a dispatcher on publisher.
func NewDispatcher(publisher Publisher) *Dispatcher {
	return &Dispatcher{publisher: publisher}
}

// Dispatch publishes each event in order and stops at the first failure.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...domain.DomainEvent) error {
	for _, event := range events {
		envelope, err := NewEnvelope(event)
		if err != nil {
			return err
		}
		body, err := envelope.Encode()
		if err != nil {
			return err
		}
		if err := d.publisher.Publish(ctx, envelope.RoutingKey, body); err != nil {
			return err
		}
	}
	return nil
}

// NoopPublisher drops everything. Used when no bus is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the message but doesn't actually publish.
func (p *NoopPublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	p.logger.Debug("noop publish", "routing_key", routingKey, "size", len(body))
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error { return nil }
