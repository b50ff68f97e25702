// Package subscribers turns bus events into notices.
package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/cohort/internal/notification/domain"
	schedulingDomain "github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
	waitlistDomain "github.com/felixgeelhaar/cohort/internal/waitlist/domain"
)

// DefaultOpsRecipient receives conflict notices when none is configured.
const DefaultOpsRecipient = "scheduling-ops"

// notice is one message to send.
type notice struct {
	recipient string
	kind      domain.Kind
	data      map[string]any
}

// NotificationSubscriber sends notices for waitlist, session and conflict
// events. Delivery failures are logged and swallowed: a notice is never a
// reason to redeliver or undo the change behind it.
type NotificationSubscriber struct {
	notifier     domain.Notifier
	audience     Audience
	opsRecipient string
	logger       *slog.Logger
}

// NewNotificationSubscriber creates a subscriber. audience may be nil, in
// which case session notices only go to the instructor.
func NewNotificationSubscriber(notifier domain.Notifier, audience Audience, opsRecipient string, logger *slog.Logger) *NotificationSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if opsRecipient == "" {
		opsRecipient = DefaultOpsRecipient
	}
	return &NotificationSubscriber{
		notifier:     notifier,
		audience:     audience,
		opsRecipient: opsRecipient,
		logger:       logger.With("component", "notification_subscriber"),
	}
}

// EventTypes implements eventbus.EventConsumer.
func (s *NotificationSubscriber) EventTypes() []string {
	return []string{
		waitlistDomain.RoutingKeyEntryAdded,
		waitlistDomain.RoutingKeyEntryPositionChanged,
		waitlistDomain.RoutingKeyEntryPromoted,
		waitlistDomain.RoutingKeyEntryExpired,
		schedulingDomain.RoutingKeySessionCancelled,
		schedulingDomain.RoutingKeySessionRescheduled,
		schedulingDomain.RoutingKeyConflictDetected,
	}
}

// Handle implements eventbus.EventConsumer. Only an undecodable payload is
// returned as an error.
func (s *NotificationSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	notices, err := s.notices(ctx, event)
	if err != nil {
		return err
	}
	for _, n := range notices {
		if err := s.notifier.Notify(ctx, n.recipient, n.kind, n.data); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				"kind", n.kind,
				"recipient", n.recipient,
				"event_id", event.EventID,
				"error", err,
			)
		}
	}
	return nil
}

func (s *NotificationSubscriber) notices(ctx context.Context, event *eventbus.ConsumedEvent) ([]notice, error) {
	switch event.RoutingKey {
	case waitlistDomain.RoutingKeyEntryAdded:
		var p waitlistDomain.EntryAddedEvent
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		data := map[string]any{"session_id": p.SessionID, "entry_id": p.EntryID, "position": p.Position, "priority": p.Priority}
		if p.ExpiresAt != nil {
			data["expires_at"] = *p.ExpiresAt
		}
		return []notice{{p.RequesterID.String(), domain.KindWaitlistConfirmation, data}}, nil

	case waitlistDomain.RoutingKeyEntryPositionChanged:
		var p waitlistDomain.EntryPositionChangedEvent
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		data := map[string]any{"session_id": p.SessionID, "entry_id": p.EntryID, "position": p.Position, "waiting": p.Waiting}
		if p.PreviousPosition > 0 {
			data["previous_position"] = p.PreviousPosition
		}
		return []notice{{p.RequesterID.String(), domain.KindWaitlistPosition, data}}, nil

	case waitlistDomain.RoutingKeyEntryPromoted:
		var p waitlistDomain.EntryPromotedEvent
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		return []notice{{p.RequesterID.String(), domain.KindWaitlistPromoted, map[string]any{
			"session_id": p.SessionID, "entry_id": p.EntryID, "enrollment_id": p.EnrollmentID,
		}}}, nil

	case waitlistDomain.RoutingKeyEntryExpired:
		var p waitlistDomain.EntryExpiredEvent
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		return []notice{{p.RequesterID.String(), domain.KindWaitlistExpired, map[string]any{
			"session_id": p.SessionID, "entry_id": p.EntryID, "expired_at": p.ExpiredAt,
		}}}, nil

	case schedulingDomain.RoutingKeySessionCancelled:
		var p schedulingDomain.SessionCancelledEvent
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		data := map[string]any{"session_id": event.AggregateID, "title": p.Title, "start": p.StartTime, "reason": p.Reason}
		return s.broadcast(ctx, event.AggregateID, p.InstructorID, domain.KindSessionCancelled, data), nil

	case schedulingDomain.RoutingKeySessionRescheduled:
		var p schedulingDomain.SessionRescheduledEvent
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		data := map[string]any{
			"session_id": event.AggregateID,
			"title":      p.Title,
			"old_start":  p.OldStartTime,
			"new_start":  p.NewStartTime,
			"new_end":    p.NewEndTime,
		}
		return s.broadcast(ctx, event.AggregateID, p.InstructorID, domain.KindSessionRescheduled, data), nil

	case schedulingDomain.RoutingKeyConflictDetected:
		var p schedulingDomain.ConflictDetectedEvent
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		return []notice{{s.opsRecipient, domain.KindConflictDetected, map[string]any{
			"conflict_id": event.AggregateID,
			"type":        p.ConflictType,
			"severity":    p.Severity,
			"sessions":    p.SessionIDs,
			"description": p.Description,
		}}}, nil
	}
	return nil, nil
}

// broadcast addresses the instructor and the session's audience.
func (s *NotificationSubscriber) broadcast(ctx context.Context, sessionID, instructorID uuid.UUID, kind domain.Kind, data map[string]any) []notice {
	var recipients []string
	if instructorID != uuid.Nil {
		recipients = append(recipients, instructorID.String())
	}
	if s.audience != nil {
		audience, err := s.audience.Recipients(ctx, sessionID)
		if err != nil {
			s.logger.WarnContext(ctx, "session audience unavailable", "session_id", sessionID, "error", err)
		}
		recipients = append(recipients, audience...)
	}
	out := make([]notice, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, notice{r, kind, data})
	}
	return out
}

func decode(event *eventbus.ConsumedEvent, v any) error {
	if err := event.DecodePayload(v); err != nil {
		return fmt.Errorf("decode %s: %w", event.RoutingKey, err)
	}
	return nil
}
