// Package subscribers reacts to scheduling events on behalf of the waitlist.
package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	schedulingDomain "github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
)

// Reconciler reconciles the waitlist of one session.
type Reconciler interface {
	ProcessSession(ctx context.Context, sessionID uuid.UUID) (*services.ProcessResult, error)
}

// CapacitySubscriber promotes waiting participants as soon as a session can
// seat more people, instead of leaving them for the next sweep.
type CapacitySubscriber struct {
	waitlists Reconciler
	logger    *slog.Logger
}

// NewCapacitySubscriber creates a new capacity subscriber.
func NewCapacitySubscriber(waitlists Reconciler, logger *slog.Logger) *CapacitySubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapacitySubscriber{waitlists: waitlists, logger: logger.With("component", "capacity_subscriber")}
}

// EventTypes implements eventbus.EventConsumer.
func (s *CapacitySubscriber) EventTypes() []string {
	return []string{schedulingDomain.RoutingKeySessionCapacityChanged}
}

// Handle implements eventbus.EventConsumer. Sessions that are gone by the
// time the event arrives are skipped.
func (s *CapacitySubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var payload schedulingDomain.SessionCapacityChangedEvent
	if err := event.DecodePayload(&payload); err != nil {
		return fmt.Errorf("capacity: %s: %w", event.RoutingKey, err)
	}
	if !payload.Grew() {
		s.logger.DebugContext(ctx, "capacity did not grow",
			"session_id", event.AggregateID,
			"source", payload.Source,
			"previous", payload.PreviousCapacity,
			"capacity", payload.Capacity,
		)
		return nil
	}

	result, err := s.waitlists.ProcessSession(ctx, event.AggregateID)
	if sharedDomain.IsKind(err, sharedDomain.KindNotFound) {
		s.logger.DebugContext(ctx, "capacity change for unknown session", "session_id", event.AggregateID)
		return nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "waitlist reconciliation after capacity change failed",
			"session_id", event.AggregateID,
			"error", err,
		)
		return err
	}
	s.logger.InfoContext(ctx, "waitlist reconciled after capacity change",
		"session_id", event.AggregateID,
		"source", payload.Source,
		"capacity", payload.Capacity,
		"promoted", len(result.Promoted),
		"expired", len(result.Expired),
	)
	return nil
}
