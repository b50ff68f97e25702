package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// RosterAggregateType names the roster in event envelopes. The aggregate id
// is the session id.
const RosterAggregateType = "Roster"

const (
	RoutingKeyEntryAdded           = "waitlist.entry.added"
	RoutingKeyEntryRemoved         = "waitlist.entry.removed"
	RoutingKeyEntryExpired         = "waitlist.entry.expired"
	RoutingKeyEntryPromoted        = "waitlist.entry.promoted"
	RoutingKeyEntryPositionChanged = "waitlist.entry.position_changed"
	RoutingKeyEnrollmentCreated    = "waitlist.enrollment.created"
	RoutingKeyEnrollmentCancelled  = "waitlist.enrollment.cancelled"
)

// EntryAddedEvent is emitted when a requester joins a waitlist.
type EntryAddedEvent struct {
	sharedDomain.BaseEvent
	SessionID   uuid.UUID  `json:"session_id"`
	EntryID     uuid.UUID  `json:"entry_id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	Position    int        `json:"position"`
	Priority    Priority   `json:"priority"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// EntryRemovedEvent is emitted when an entry is taken off a waitlist.
type EntryRemovedEvent struct {
	sharedDomain.BaseEvent
	SessionID   uuid.UUID `json:"session_id"`
	EntryID     uuid.UUID `json:"entry_id"`
	RequesterID uuid.UUID `json:"requester_id"`
	Reason      string    `json:"reason,omitempty"`
}

// EntryExpiredEvent is emitted when an entry passes its expiry.
type EntryExpiredEvent struct {
	sharedDomain.BaseEvent
	SessionID   uuid.UUID `json:"session_id"`
	EntryID     uuid.UUID `json:"entry_id"`
	RequesterID uuid.UUID `json:"requester_id"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// EntryPromotedEvent is emitted when an entry becomes an enrollment.
type EntryPromotedEvent struct {
	sharedDomain.BaseEvent
	SessionID    uuid.UUID `json:"session_id"`
	EntryID      uuid.UUID `json:"entry_id"`
	RequesterID  uuid.UUID `json:"requester_id"`
	EnrollmentID uuid.UUID `json:"enrollment_id"`
}

// EntryPositionChangedEvent tells a waiting requester where they stand.
// PreviousPosition is zero for a plain position notice.
type EntryPositionChangedEvent struct {
	sharedDomain.BaseEvent
	SessionID        uuid.UUID `json:"session_id"`
	EntryID          uuid.UUID `json:"entry_id"`
	RequesterID      uuid.UUID `json:"requester_id"`
	Position         int       `json:"position"`
	PreviousPosition int       `json:"previous_position,omitempty"`
	Waiting          int       `json:"waiting"`
}

// EnrollmentCreatedEvent is emitted for direct enrollments.
type EnrollmentCreatedEvent struct {
	sharedDomain.BaseEvent
	SessionID     uuid.UUID        `json:"session_id"`
	EnrollmentID  uuid.UUID        `json:"enrollment_id"`
	ParticipantID uuid.UUID        `json:"participant_id"`
	Source        EnrollmentSource `json:"source"`
}

// EnrollmentCancelledEvent is emitted when a participant gives up a seat.
type EnrollmentCancelledEvent struct {
	sharedDomain.BaseEvent
	SessionID     uuid.UUID `json:"session_id"`
	EnrollmentID  uuid.UUID `json:"enrollment_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Reason        string    `json:"reason,omitempty"`
}

func rosterEvent(sessionID uuid.UUID, routingKey string, at time.Time) sharedDomain.BaseEvent {
	return sharedDomain.NewBaseEventAt(sessionID, RosterAggregateType, routingKey, at)
}
