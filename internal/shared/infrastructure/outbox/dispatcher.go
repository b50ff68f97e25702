package outbox

import (
	"context"

	"github.com/felixgeelhaar/cohort/internal/shared/domain"
)

// Dispatcher stages domain events in the outbox. Called inside a unit of
// work, the messages commit or roll back with the state change that raised
// them; the Processor publishes them later.
type Dispatcher struct {
	repo Repository
}

// NewDispatcher creates a dispatcher writing to repo.
func NewDispatcher(repo Repository) *Dispatcher {
	return &Dispatcher{repo: repo}
}

// Dispatch stages the events.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return d.repo.SaveBatch(ctx, msgs)
}
