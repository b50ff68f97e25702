package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// EventConsumer handles specific event types.
type EventConsumer interface {
	// EventTypes returns the routing key patterns this consumer handles,
	// e.g. "scheduling.session.cancelled" or "waitlist.entry.*".
	EventTypes() []string

	// Handle processes the event.
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the envelope every event travels in on the bus.
// Payload holds the event specific fields.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata"`
}

// EventMetadata contains tracing information about the event.
type EventMetadata struct {
	ActorID       uuid.UUID `json:"actor_id,omitempty"`
	CorrelationID uuid.UUID `json:"correlation_id,omitempty"`
	CausationID   uuid.UUID `json:"causation_id,omitempty"`
}

// NewEnvelope wraps a domain event for publishing.
func NewEnvelope(event domain.DomainEvent) (*ConsumedEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.RoutingKey(), err)
	}
	md := event.Metadata()
	return &ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		Metadata: EventMetadata{
			ActorID:       md.ActorID,
			CorrelationID: md.CorrelationID,
			CausationID:   md.CausationID,
		},
	}, nil
}

// Encode returns the wire form of the envelope.
func (e *ConsumedEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the event specific fields into v.
func (e *ConsumedEvent) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.EventID)
	}
	return json.Unmarshal(e.Payload, v)
}

// Decode parses a wire envelope. The routing key of the delivery is used
// when the envelope carries none.
func Decode(body []byte, routingKey string) (*ConsumedEvent, error) {
	event := &ConsumedEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, err
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return event, nil
}

// Consumer defines the interface for consuming events from a message broker.
type Consumer interface {
	// Start begins consuming messages. This is a blocking call.
	Start(ctx context.Context) error

	// RegisterConsumer registers an event consumer.
	RegisterConsumer(consumer EventConsumer)

	// Close closes the consumer connection.
	Close() error
}

var (
	_ Consumer = (*RabbitMQConsumer)(nil)
	_ Consumer = (*InProcessEventBus)(nil)
)
