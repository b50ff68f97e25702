package outbox

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message is a domain event staged in outbox_events. RetryCount is the
// number of failed publishes; a message is done once PublishedAt or
// DeadLetteredAt is set.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage stages event. Metadata holds the tracing ids as JSON.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	envelope, err := eventbus.NewEnvelope(event)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(envelope.Metadata)
	if err != nil {
		return nil, err
	}
	return &Message{
		EventID:       envelope.EventID,
		AggregateType: envelope.AggregateType,
		AggregateID:   envelope.AggregateID,
		RoutingKey:    envelope.RoutingKey,
		Payload:       envelope.Payload,
		Metadata:      metadata,
		CreatedAt:     envelope.OccurredAt,
	}, nil
}

// Envelope rebuilds the bus envelope of the staged event.
func (m *Message) Envelope() (*eventbus.ConsumedEvent, error) {
	envelope := &eventbus.ConsumedEvent{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &envelope.Metadata); err != nil {
			return nil, err
		}
	}
	return envelope, nil
}

// Body is the wire form published to the bus.
func (m *Message) Body() ([]byte, error) {
	envelope, err := m.Envelope()
	if err != nil {
		return nil, err
	}
	return envelope.Encode()
}

// Attempts counts the publishes tried so far, including the one that is
// about to fail when called from the processor.
func (m *Message) Attempts() int {
	return m.RetryCount + 1
}
