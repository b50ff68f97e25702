package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is what the waitlist needs to know about a session.
type SessionInfo struct {
	ID    uuid.UUID
	Title string
	Start time.Time
	// Active is false once the session is cancelled or completed.
	Active bool
	// Capacity is the number of seats, bounded by the session maximum and
	// the smallest allocated resource.
	Capacity             int
	WaitlistEnabled      bool
	AutoEnroll           bool
	EnrollmentDeadline   *time.Time
	CancellationDeadline *time.Time
}

// FreeSeats returns how many more participants fit.
func (s SessionInfo) FreeSeats(enrolled int) int {
	if free := s.Capacity - enrolled; free > 0 {
		return free
	}
	return 0
}

// EnrollmentOpen reports whether participants may still join at now.
func (s SessionInfo) EnrollmentOpen(now time.Time) bool {
	if !s.Active || !now.Before(s.Start) {
		return false
	}
	return s.EnrollmentDeadline == nil || now.Before(*s.EnrollmentDeadline)
}

// CancellationOpen reports whether participants may still withdraw at now.
func (s SessionInfo) CancellationOpen(now time.Time) bool {
	return s.CancellationDeadline == nil || now.Before(*s.CancellationDeadline)
}

// SessionDirectory is the waitlist's view of the scheduling context.
type SessionDirectory interface {
	// Lookup fails with a NotFound error for unknown sessions.
	Lookup(ctx context.Context, sessionID uuid.UUID) (*SessionInfo, error)
	// RecordCounts mirrors roster totals onto the session.
	RecordCounts(ctx context.Context, sessionID uuid.UUID, enrolled, waitlisted int) error
}
