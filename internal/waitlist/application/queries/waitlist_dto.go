package queries

import (
	"time"

	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// EntryDTO is the read model of a waitlist entry.
type EntryDTO struct {
	ID                uuid.UUID  `json:"id"`
	RequesterID       uuid.UUID  `json:"requester_id"`
	Position          int        `json:"position,omitempty"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	AutoEnroll        bool       `json:"auto_enroll"`
	AddedAt           time.Time  `json:"added_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	NotificationsSent int        `json:"notifications_sent"`
	LastNotifiedAt    *time.Time `json:"last_notified_at,omitempty"`
}

// EnrollmentDTO is the read model of an enrollment.
type EnrollmentDTO struct {
	ID            uuid.UUID  `json:"id"`
	ParticipantID uuid.UUID  `json:"participant_id"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	EnrolledAt    time.Time  `json:"enrolled_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

// WaitlistDTO is a session's queue and seats.
type WaitlistDTO struct {
	SessionID   uuid.UUID       `json:"session_id"`
	Enrolled    int             `json:"enrolled"`
	Waitlisted  int             `json:"waitlisted"`
	Entries     []EntryDTO      `json:"entries"`
	Enrollments []EnrollmentDTO `json:"enrollments,omitempty"`
}

func toEntryDTO(e *domain.Entry) EntryDTO {
	return EntryDTO{
		ID:                e.ID(),
		RequesterID:       e.RequesterID(),
		Position:          e.Position(),
		Priority:          string(e.Priority()),
		Status:            string(e.Status()),
		AutoEnroll:        e.AutoEnroll(),
		AddedAt:           e.AddedAt(),
		ExpiresAt:         e.ExpiresAt(),
		NotificationsSent: e.NotificationsSent(),
		LastNotifiedAt:    e.LastNotifiedAt(),
	}
}

func toEnrollmentDTO(e *domain.Enrollment) EnrollmentDTO {
	return EnrollmentDTO{
		ID:            e.ID(),
		ParticipantID: e.ParticipantID(),
		Source:        string(e.Source()),
		Status:        string(e.Status()),
		EnrolledAt:    e.EnrolledAt(),
		CancelledAt:   e.CancelledAt(),
	}
}
