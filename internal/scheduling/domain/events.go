package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	SessionAggregateType    = "Session"
	AllocationAggregateType = "Allocation"
	ConflictAggregateType   = "Conflict"

	RoutingKeySessionScheduled         = "scheduling.session.scheduled"
	RoutingKeySessionRescheduled       = "scheduling.session.rescheduled"
	RoutingKeySessionCancelled         = "scheduling.session.cancelled"
	RoutingKeySessionInstructorChanged = "scheduling.session.instructor_changed"
	RoutingKeySessionCapacityChanged   = "scheduling.session.capacity_changed"
	RoutingKeyAllocationConfirmed      = "scheduling.allocation.confirmed"
	RoutingKeyAllocationReleased       = "scheduling.allocation.released"
	RoutingKeyConflictDetected         = "scheduling.conflict.detected"
	RoutingKeyConflictResolved         = "scheduling.conflict.resolved"
)

// SessionScheduledEvent is emitted when a session is first placed.
type SessionScheduledEvent struct {
	sharedDomain.BaseEvent
	Title        string    `json:"title"`
	InstructorID uuid.UUID `json:"instructor_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

// NewSessionScheduled creates a SessionScheduledEvent.
func NewSessionScheduled(s *Session, at time.Time) *SessionScheduledEvent {
	return &SessionScheduledEvent{
		BaseEvent:    sharedDomain.NewBaseEventAt(s.ID(), SessionAggregateType, RoutingKeySessionScheduled, at),
		Title:        s.Title(),
		InstructorID: s.InstructorID(),
		StartTime:    s.Interval().Start,
		EndTime:      s.Interval().End,
	}
}

// SessionRescheduledEvent is emitted when a placed session moves.
type SessionRescheduledEvent struct {
	sharedDomain.BaseEvent
	Title        string    `json:"title"`
	InstructorID uuid.UUID `json:"instructor_id"`
	OldStartTime time.Time `json:"old_start_time"`
	OldEndTime   time.Time `json:"old_end_time"`
	NewStartTime time.Time `json:"new_start_time"`
	NewEndTime   time.Time `json:"new_end_time"`
}

// NewSessionRescheduled creates a SessionRescheduledEvent.
func NewSessionRescheduled(s *Session, previous Interval, at time.Time) *SessionRescheduledEvent {
	return &SessionRescheduledEvent{
		BaseEvent:    sharedDomain.NewBaseEventAt(s.ID(), SessionAggregateType, RoutingKeySessionRescheduled, at),
		Title:        s.Title(),
		InstructorID: s.InstructorID(),
		OldStartTime: previous.Start,
		OldEndTime:   previous.End,
		NewStartTime: s.Interval().Start,
		NewEndTime:   s.Interval().End,
	}
}

// SessionCancelledEvent is emitted when a session is cancelled.
type SessionCancelledEvent struct {
	sharedDomain.BaseEvent
	Title        string    `json:"title"`
	InstructorID uuid.UUID `json:"instructor_id"`
	StartTime    time.Time `json:"start_time"`
	Reason       string    `json:"reason"`
}

// NewSessionCancelled creates a SessionCancelledEvent.
func NewSessionCancelled(s *Session, reason string, at time.Time) *SessionCancelledEvent {
	return &SessionCancelledEvent{
		BaseEvent:    sharedDomain.NewBaseEventAt(s.ID(), SessionAggregateType, RoutingKeySessionCancelled, at),
		Title:        s.Title(),
		InstructorID: s.InstructorID(),
		StartTime:    s.Interval().Start,
		Reason:       reason,
	}
}

// SessionInstructorChangedEvent is emitted when a session gets a different instructor.
type SessionInstructorChangedEvent struct {
	sharedDomain.BaseEvent
	Title                string    `json:"title"`
	PreviousInstructorID uuid.UUID `json:"previous_instructor_id"`
	InstructorID         uuid.UUID `json:"instructor_id"`
}

// NewSessionInstructorChanged creates a SessionInstructorChangedEvent.
func NewSessionInstructorChanged(s *Session, previous uuid.UUID, at time.Time) *SessionInstructorChangedEvent {
	return &SessionInstructorChangedEvent{
		BaseEvent:            sharedDomain.NewBaseEventAt(s.ID(), SessionAggregateType, RoutingKeySessionInstructorChanged, at),
		Title:                s.Title(),
		PreviousInstructorID: previous,
		InstructorID:         s.InstructorID(),
	}
}

// CapacitySource names what moved the seat count of a session.
type CapacitySource string

const (
	// CapacityFromBounds is a change of the participant maximum.
	CapacityFromBounds CapacitySource = "bounds"
	// CapacityFromResources is a change of the smallest allocated capacity.
	// Zero means no allocated resource limits the seats.
	CapacityFromResources CapacitySource = "resources"
)

// SessionCapacityChangedEvent is emitted when the participant maximum of a
// session changes or its allocated resources start seating more people.
type SessionCapacityChangedEvent struct {
	sharedDomain.BaseEvent
	Source           CapacitySource `json:"source"`
	PreviousCapacity int            `json:"previous_capacity"`
	Capacity         int            `json:"capacity"`
}

// NewSessionCapacityChanged creates a SessionCapacityChangedEvent.
func NewSessionCapacityChanged(sessionID uuid.UUID, source CapacitySource, previous, capacity int, at time.Time) *SessionCapacityChangedEvent {
	return &SessionCapacityChangedEvent{
		BaseEvent:        sharedDomain.NewBaseEventAt(sessionID, SessionAggregateType, RoutingKeySessionCapacityChanged, at),
		Source:           source,
		PreviousCapacity: previous,
		Capacity:         capacity,
	}
}

// Grew reports whether more participants can be seated than before.
func (e *SessionCapacityChangedEvent) Grew() bool {
	if e.Source == CapacityFromResources {
		return e.PreviousCapacity > 0 && (e.Capacity == 0 || e.Capacity > e.PreviousCapacity)
	}
	return e.Capacity > e.PreviousCapacity
}

// AllocationConfirmedEvent is emitted when a resource booking is confirmed.
type AllocationConfirmedEvent struct {
	sharedDomain.BaseEvent
	ResourceID uuid.UUID `json:"resource_id"`
	SessionID  uuid.UUID `json:"session_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// NewAllocationConfirmed creates an AllocationConfirmed event.
func NewAllocationConfirmed(a *Allocation, at time.Time) *AllocationConfirmedEvent {
	return &AllocationConfirmedEvent{
		BaseEvent:  sharedDomain.NewBaseEventAt(a.ID(), AllocationAggregateType, RoutingKeyAllocationConfirmed, at),
		ResourceID: a.ResourceID(),
		SessionID:  a.SessionID(),
		StartTime:  a.Interval().Start,
		EndTime:    a.Interval().End,
	}
}

// AllocationReleasedEvent is emitted when a resource booking is released.
type AllocationReleasedEvent struct {
	sharedDomain.BaseEvent
	ResourceID uuid.UUID `json:"resource_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Reason     string    `json:"reason,omitempty"`
}

// NewAllocationReleased creates an AllocationReleased event.
func NewAllocationReleased(a *Allocation, reason string, at time.Time) *AllocationReleasedEvent {
	return &AllocationReleasedEvent{
		BaseEvent:  sharedDomain.NewBaseEventAt(a.ID(), AllocationAggregateType, RoutingKeyAllocationReleased, at),
		ResourceID: a.ResourceID(),
		SessionID:  a.SessionID(),
		Reason:     reason,
	}
}

// ConflictDetectedEvent is emitted by the audit for each newly seen conflict.
type ConflictDetectedEvent struct {
	sharedDomain.BaseEvent
	ConflictType ConflictType `json:"conflict_type"`
	Severity     Severity     `json:"severity"`
	SessionIDs   []uuid.UUID  `json:"session_ids"`
	ResourceIDs  []uuid.UUID  `json:"resource_ids,omitempty"`
	InstructorID uuid.UUID    `json:"instructor_id,omitempty"`
	Description  string       `json:"description"`
}

// NewConflictDetected creates a ConflictDetectedEvent.
func NewConflictDetected(c *SchedulingConflict) *ConflictDetectedEvent {
	return &ConflictDetectedEvent{
		BaseEvent:    sharedDomain.NewBaseEventAt(c.ID(), ConflictAggregateType, RoutingKeyConflictDetected, c.DetectedAt()),
		ConflictType: c.Type(),
		Severity:     c.Severity(),
		SessionIDs:   c.SessionIDs(),
		ResourceIDs:  c.ResourceIDs(),
		InstructorID: c.InstructorID(),
		Description:  c.Description(),
	}
}

// ConflictResolvedEvent is emitted when a resolution strategy succeeds.
type ConflictResolvedEvent struct {
	sharedDomain.BaseEvent
	ConflictType ConflictType   `json:"conflict_type"`
	Strategy     ResolutionType `json:"strategy"`
	SessionIDs   []uuid.UUID    `json:"session_ids"`
}

// NewConflictResolved creates a ConflictResolvedEvent.
func NewConflictResolved(c *SchedulingConflict, at time.Time) *ConflictResolvedEvent {
	return &ConflictResolvedEvent{
		BaseEvent:    sharedDomain.NewBaseEventAt(c.ID(), ConflictAggregateType, RoutingKeyConflictResolved, at),
		ConflictType: c.Type(),
		Strategy:     c.ResolvedBy(),
		SessionIDs:   c.SessionIDs(),
	}
}
