package domain

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentSource records how a participant got their seat.
type EnrollmentSource string

const (
	SourceDirect   EnrollmentSource = "direct"
	SourceWaitlist EnrollmentSource = "waitlist"
)

// EnrollmentStatus is the state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// Enrollment is a participant's seat in a session.
type Enrollment struct {
	id            uuid.UUID
	sessionID     uuid.UUID
	participantID uuid.UUID
	source        EnrollmentSource
	status        EnrollmentStatus
	enrolledAt    time.Time
	cancelledAt   *time.Time
}

func newEnrollment(sessionID, participantID uuid.UUID, source EnrollmentSource, now time.Time) *Enrollment {
	return &Enrollment{
		id:            uuid.New(),
		sessionID:     sessionID,
		participantID: participantID,
		source:        source,
		status:        EnrollmentActive,
		enrolledAt:    now.UTC(),
	}
}

func (e *Enrollment) ID() uuid.UUID            { return e.id }
func (e *Enrollment) SessionID() uuid.UUID     { return e.sessionID }
func (e *Enrollment) ParticipantID() uuid.UUID { return e.participantID }
func (e *Enrollment) Source() EnrollmentSource { return e.source }
func (e *Enrollment) Status() EnrollmentStatus { return e.status }
func (e *Enrollment) EnrolledAt() time.Time    { return e.enrolledAt }
func (e *Enrollment) CancelledAt() *time.Time  { return e.cancelledAt }

// IsActive reports whether the enrollment holds a seat.
func (e *Enrollment) IsActive() bool { return e.status == EnrollmentActive }

// EnrollmentState is the persisted form of an enrollment.
type EnrollmentState struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	Source        EnrollmentSource
	Status        EnrollmentStatus
	EnrolledAt    time.Time
	CancelledAt   *time.Time
}

// State returns the persisted form of the enrollment.
func (e *Enrollment) State() EnrollmentState {
	return EnrollmentState{
		ID:            e.id,
		SessionID:     e.sessionID,
		ParticipantID: e.participantID,
		Source:        e.source,
		Status:        e.status,
		EnrolledAt:    e.enrolledAt,
		CancelledAt:   copyTime(e.cancelledAt),
	}
}

// RehydrateEnrollment recreates an enrollment from persisted state.
func RehydrateEnrollment(s EnrollmentState) *Enrollment {
	return &Enrollment{
		id:            s.ID,
		sessionID:     s.SessionID,
		participantID: s.ParticipantID,
		source:        s.Source,
		status:        s.Status,
		enrolledAt:    s.EnrolledAt,
		cancelledAt:   copyTime(s.CancelledAt),
	}
}
