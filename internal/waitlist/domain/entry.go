package domain

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders waitlist entries ahead of their position.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the promotion weight, higher goes first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool { return p.Rank() > 0 }

// ParsePriority maps user input to a priority. Empty input is normal.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityNormal, nil
	}
	p := Priority(s)
	if !p.IsValid() {
		return "", ErrInvalidPriority
	}
	return p, nil
}

// EntryStatus is the lifecycle state of a waitlist entry. Only added
// entries are waiting, the rest are terminal.
type EntryStatus string

const (
	EntryAdded    EntryStatus = "added"
	EntryPromoted EntryStatus = "promoted"
	EntryExpired  EntryStatus = "expired"
	EntryRemoved  EntryStatus = "removed"
)

// Entry is one requester waiting for a seat in a session.
type Entry struct {
	id                uuid.UUID
	sessionID         uuid.UUID
	requesterID       uuid.UUID
	position          int
	priority          Priority
	status            EntryStatus
	autoEnroll        bool
	addedAt           time.Time
	expiresAt         *time.Time
	notificationsSent int
	lastNotifiedAt    *time.Time
	closedAt          *time.Time
}

func (e *Entry) ID() uuid.UUID              { return e.id }
func (e *Entry) SessionID() uuid.UUID       { return e.sessionID }
func (e *Entry) RequesterID() uuid.UUID     { return e.requesterID }
func (e *Entry) Position() int              { return e.position }
func (e *Entry) Priority() Priority         { return e.priority }
func (e *Entry) Status() EntryStatus        { return e.status }
func (e *Entry) AutoEnroll() bool           { return e.autoEnroll }
func (e *Entry) AddedAt() time.Time         { return e.addedAt }
func (e *Entry) ExpiresAt() *time.Time      { return e.expiresAt }
func (e *Entry) NotificationsSent() int     { return e.notificationsSent }
func (e *Entry) LastNotifiedAt() *time.Time { return e.lastNotifiedAt }
func (e *Entry) ClosedAt() *time.Time       { return e.closedAt }

// IsWaiting reports whether the entry still holds a place in the queue.
func (e *Entry) IsWaiting() bool { return e.status == EntryAdded }

// IsExpired reports whether the entry's expiry has passed at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return e.expiresAt != nil && !now.Before(*e.expiresAt)
}

// outranks orders entries by priority descending, position ascending.
func (e *Entry) outranks(other *Entry) bool {
	if e.priority.Rank() != other.priority.Rank() {
		return e.priority.Rank() > other.priority.Rank()
	}
	return e.position < other.position
}

func (e *Entry) close(status EntryStatus, now time.Time) {
	t := now.UTC()
	e.status = status
	e.closedAt = &t
	e.position = 0
}

// EntryState is the persisted form of an entry.
type EntryState struct {
	ID                uuid.UUID
	SessionID         uuid.UUID
	RequesterID       uuid.UUID
	Position          int
	Priority          Priority
	Status            EntryStatus
	AutoEnroll        bool
	AddedAt           time.Time
	ExpiresAt         *time.Time
	NotificationsSent int
	LastNotifiedAt    *time.Time
	ClosedAt          *time.Time
}

// State returns the persisted form of the entry.
func (e *Entry) State() EntryState {
	return EntryState{
		ID:                e.id,
		SessionID:         e.sessionID,
		RequesterID:       e.requesterID,
		Position:          e.position,
		Priority:          e.priority,
		Status:            e.status,
		AutoEnroll:        e.autoEnroll,
		AddedAt:           e.addedAt,
		ExpiresAt:         copyTime(e.expiresAt),
		NotificationsSent: e.notificationsSent,
		LastNotifiedAt:    copyTime(e.lastNotifiedAt),
		ClosedAt:          copyTime(e.closedAt),
	}
}

// RehydrateEntry recreates an entry from persisted state.
func RehydrateEntry(s EntryState) *Entry {
	return &Entry{
		id:                s.ID,
		sessionID:         s.SessionID,
		requesterID:       s.RequesterID,
		position:          s.Position,
		priority:          s.Priority,
		status:            s.Status,
		autoEnroll:        s.AutoEnroll,
		addedAt:           s.AddedAt,
		expiresAt:         copyTime(s.ExpiresAt),
		notificationsSent: s.NotificationsSent,
		lastNotifiedAt:    copyTime(s.LastNotifiedAt),
		closedAt:          copyTime(s.ClosedAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
