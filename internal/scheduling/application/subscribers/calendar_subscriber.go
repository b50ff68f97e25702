package subscribers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// CalendarAction is what an external calendar has to do for a session.
type CalendarAction string

const (
	CalendarUpsert CalendarAction = "upsert"
	CalendarDelete CalendarAction = "delete"
)

// CalendarChange is one session change as a calendar sees it.
type CalendarChange struct {
	SessionID    uuid.UUID
	Action       CalendarAction
	Title        string
	InstructorID uuid.UUID
	Start        time.Time
	End          time.Time
	Reason       string
	OccurredAt   time.Time
}

// CalendarSink receives calendar changes. Two-way sync adapters live
// outside this module and implement it.
type CalendarSink interface {
	Apply(ctx context.Context, change CalendarChange) error
}

// LogCalendarSink writes changes to the log.
type LogCalendarSink struct {
	logger *slog.Logger
}

// NewLogCalendarSink creates a sink that only logs.
func NewLogCalendarSink(logger *slog.Logger) *LogCalendarSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCalendarSink{logger: logger}
}

// Apply implements CalendarSink.
func (s *LogCalendarSink) Apply(ctx context.Context, change CalendarChange) error {
	s.logger.InfoContext(ctx, "calendar change",
		"session_id", change.SessionID,
		"action", change.Action,
		"title", change.Title,
		"start", change.Start,
		"end", change.End,
	)
	return nil
}

// CalendarSubscriber translates session events into calendar changes.
type CalendarSubscriber struct {
	sink   CalendarSink
	logger *slog.Logger
}

// NewCalendarSubscriber creates a new calendar subscriber.
func NewCalendarSubscriber(sink CalendarSink, logger *slog.Logger) *CalendarSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarSubscriber{sink: sink, logger: logger}
}

// EventTypes returns the event types this subscriber handles.
func (s *CalendarSubscriber) EventTypes() []string {
	return []string{"scheduling.session.*"}
}

// Handle processes an event.
func (s *CalendarSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	change, ok, err := toCalendarChange(event)
	if err != nil {
		return fmt.Errorf("calendar: %s: %w", event.RoutingKey, err)
	}
	if !ok {
		s.logger.Debug("event ignored for calendar", "routing_key", event.RoutingKey)
		return nil
	}
	if err := s.sink.Apply(ctx, change); err != nil {
		s.logger.Error("failed to apply calendar change",
			"session_id", change.SessionID,
			"action", change.Action,
			"error", err,
		)
		return err
	}
	return nil
}

func toCalendarChange(event *eventbus.ConsumedEvent) (CalendarChange, bool, error) {
	change := CalendarChange{SessionID: event.AggregateID, OccurredAt: event.OccurredAt}
	switch event.RoutingKey {
	case domain.RoutingKeySessionScheduled:
		var payload domain.SessionScheduledEvent
		if err := event.DecodePayload(&payload); err != nil {
			return change, false, err
		}
		change.Action = CalendarUpsert
		change.Title = payload.Title
		change.InstructorID = payload.InstructorID
		change.Start, change.End = payload.StartTime, payload.EndTime
	case domain.RoutingKeySessionRescheduled:
		var payload domain.SessionRescheduledEvent
		if err := event.DecodePayload(&payload); err != nil {
			return change, false, err
		}
		change.Action = CalendarUpsert
		change.Title = payload.Title
		change.InstructorID = payload.InstructorID
		change.Start, change.End = payload.NewStartTime, payload.NewEndTime
	case domain.RoutingKeySessionCancelled:
		var payload domain.SessionCancelledEvent
		if err := event.DecodePayload(&payload); err != nil {
			return change, false, err
		}
		change.Action = CalendarDelete
		change.Title = payload.Title
		change.InstructorID = payload.InstructorID
		change.Start = payload.StartTime
		change.Reason = payload.Reason
	default:
		return change, false, nil
	}
	return change, true, nil
}
