package domain

import (
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrSessionTitleRequired = errors.New("session title is required")
	ErrInvalidCapacity      = errors.New("participant bounds must satisfy 0 <= min <= max and max > 0")
	ErrSessionClosed        = errors.New("session is cancelled or completed")
	ErrBelowMinimum         = errors.New("enrolled count is below the minimum")
	ErrAboveMaximum         = errors.New("enrolled count is above the maximum")
	ErrNegativeCount        = errors.New("counts cannot be negative")
)

// SessionStatus is the lifecycle state of a training session.
type SessionStatus string

const (
	SessionDraft      SessionStatus = "draft"
	SessionScheduled  SessionStatus = "scheduled"
	SessionConfirmed  SessionStatus = "confirmed"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionPostponed  SessionStatus = "postponed"
)

// WaitlistConfig controls how a session's waitlist behaves.
type WaitlistConfig struct {
	Enabled              bool       `json:"enabled" yaml:"enabled"`
	AutoEnroll           bool       `json:"auto_enroll" yaml:"auto_enroll"`
	EnrollmentDeadline   *time.Time `json:"enrollment_deadline,omitempty" yaml:"enrollment_deadline,omitempty"`
	CancellationDeadline *time.Time `json:"cancellation_deadline,omitempty" yaml:"cancellation_deadline,omitempty"`
}

// SessionSpec carries the caller supplied properties of a new session.
type SessionSpec struct {
	Title           string
	Interval        Interval
	Timezone        string
	MinParticipants int
	MaxParticipants int
	Waitlist        WaitlistConfig
	FundingRef      string
}

// Session is a time-boxed training session.
type Session struct {
	sharedDomain.BaseAggregateRoot
	title           string
	interval        Interval
	location        *time.Location
	status          SessionStatus
	minParticipants int
	maxParticipants int
	enrolledCount   int
	waitlistedCount int
	instructorID    uuid.UUID
	waitlist        WaitlistConfig
	request         *SchedulingRequest
	fundingRef      string
}

// NewSession creates a draft session.
func NewSession(spec SessionSpec) (*Session, error) {
	if strings.TrimSpace(spec.Title) == "" {
		return nil, ErrSessionTitleRequired
	}
	if !spec.Interval.End.After(spec.Interval.Start) {
		return nil, ErrInvalidInterval
	}
	if err := validateBounds(spec.MinParticipants, spec.MaxParticipants); err != nil {
		return nil, err
	}
	loc, err := loadLocation(spec.Timezone)
	if err != nil {
		return nil, err
	}
	return &Session{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		title:             spec.Title,
		interval:          spec.Interval,
		location:          loc,
		status:            SessionDraft,
		minParticipants:   spec.MinParticipants,
		maxParticipants:   spec.MaxParticipants,
		waitlist:          spec.Waitlist,
		fundingRef:        spec.FundingRef,
	}, nil
}

// SessionState is the persisted form of a session.
type SessionState struct {
	ID              uuid.UUID
	Spec            SessionSpec
	Status          SessionStatus
	EnrolledCount   int
	WaitlistedCount int
	InstructorID    uuid.UUID
	Request         *SchedulingRequest
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RehydrateSession recreates a session from persisted state.
func RehydrateSession(st SessionState) *Session {
	loc, err := loadLocation(st.Spec.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Session{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(st.ID, st.CreatedAt, st.UpdatedAt), st.Version,
		),
		title:           st.Spec.Title,
		interval:        st.Spec.Interval,
		location:        loc,
		status:          st.Status,
		minParticipants: st.Spec.MinParticipants,
		maxParticipants: st.Spec.MaxParticipants,
		enrolledCount:   st.EnrolledCount,
		waitlistedCount: st.WaitlistedCount,
		instructorID:    st.InstructorID,
		waitlist:        st.Spec.Waitlist,
		request:         st.Request,
		fundingRef:      st.Spec.FundingRef,
	}
}

// State returns the persisted form of the session.
func (s *Session) State() SessionState {
	return SessionState{
		ID: s.ID(),
		Spec: SessionSpec{
			Title:           s.title,
			Interval:        s.interval,
			Timezone:        s.location.String(),
			MinParticipants: s.minParticipants,
			MaxParticipants: s.maxParticipants,
			Waitlist:        s.waitlist,
			FundingRef:      s.fundingRef,
		},
		Status:          s.status,
		EnrolledCount:   s.enrolledCount,
		WaitlistedCount: s.waitlistedCount,
		InstructorID:    s.instructorID,
		Request:         s.request,
		Version:         s.Version(),
		CreatedAt:       s.CreatedAt(),
		UpdatedAt:       s.UpdatedAt(),
	}
}

func validateBounds(min, max int) error {
	if min < 0 || max <= 0 || min > max {
		return ErrInvalidCapacity
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Getters
func (s *Session) Title() string               { return s.title }
func (s *Session) Interval() Interval          { return s.interval }
func (s *Session) Location() *time.Location    { return s.location }
func (s *Session) Status() SessionStatus       { return s.status }
func (s *Session) MinParticipants() int        { return s.minParticipants }
func (s *Session) MaxParticipants() int        { return s.maxParticipants }
func (s *Session) EnrolledCount() int          { return s.enrolledCount }
func (s *Session) WaitlistedCount() int        { return s.waitlistedCount }
func (s *Session) InstructorID() uuid.UUID     { return s.instructorID }
func (s *Session) HasInstructor() bool         { return s.instructorID != uuid.Nil }
func (s *Session) Waitlist() WaitlistConfig    { return s.waitlist }
func (s *Session) Request() *SchedulingRequest { return s.request }
func (s *Session) FundingRef() string          { return s.fundingRef }
func (s *Session) Duration() time.Duration     { return s.interval.Duration() }

// IsActive reports whether the session still takes part in scheduling.
func (s *Session) IsActive() bool {
	return s.status != SessionCancelled && s.status != SessionCompleted
}

// FreeCapacity returns how many more participants fit.
func (s *Session) FreeCapacity() int {
	if free := s.maxParticipants - s.enrolledCount; free > 0 {
		return free
	}
	return 0
}

// PriorityRank orders sessions when one has to give way: higher wins.
// Sessions further along their lifecycle and with more enrolled participants rank higher.
func (s *Session) PriorityRank() int {
	stage := 0
	switch s.status {
	case SessionInProgress:
		stage = 4
	case SessionConfirmed:
		stage = 3
	case SessionScheduled:
		stage = 2
	case SessionDraft, SessionPostponed:
		stage = 1
	}
	return stage*100000 + s.enrolledCount
}

// Schedule places the session at iv with the given instructor. The request
// that produced the placement is kept for later rescheduling.
func (s *Session) Schedule(iv Interval, instructorID uuid.UUID, request *SchedulingRequest, now time.Time) error {
	if !s.IsActive() {
		return ErrSessionClosed
	}
	if !iv.End.After(iv.Start) {
		return ErrInvalidInterval
	}
	previous := s.interval
	wasPlaced := s.status == SessionScheduled || s.status == SessionConfirmed

	s.interval = iv
	s.instructorID = instructorID
	if request != nil {
		stored := request.Clone()
		s.request = &stored
	}
	if s.status == SessionDraft || s.status == SessionPostponed {
		s.status = SessionScheduled
	}
	s.TouchAt(now)

	if wasPlaced && previous != iv {
		s.AddDomainEvent(NewSessionRescheduled(s, previous, now))
	} else {
		s.AddDomainEvent(NewSessionScheduled(s, now))
	}
	return nil
}

// AssignInstructor changes the instructor without moving the session.
func (s *Session) AssignInstructor(instructorID uuid.UUID, now time.Time) error {
	if !s.IsActive() {
		return ErrSessionClosed
	}
	previous := s.instructorID
	s.instructorID = instructorID
	s.TouchAt(now)
	s.AddDomainEvent(NewSessionInstructorChanged(s, previous, now))
	return nil
}

// Confirm locks the session in; the participant bounds must hold.
func (s *Session) Confirm(now time.Time) error {
	if !s.IsActive() {
		return ErrSessionClosed
	}
	if s.enrolledCount < s.minParticipants {
		return ErrBelowMinimum
	}
	if s.enrolledCount > s.maxParticipants {
		return ErrAboveMaximum
	}
	s.status = SessionConfirmed
	s.TouchAt(now)
	return nil
}

// Cancel marks the session cancelled.
func (s *Session) Cancel(reason string, now time.Time) error {
	if !s.IsActive() {
		return ErrSessionClosed
	}
	s.status = SessionCancelled
	s.TouchAt(now)
	s.AddDomainEvent(NewSessionCancelled(s, reason, now))
	return nil
}

// SetStatus moves the session through its lifecycle without side effects.
func (s *Session) SetStatus(status SessionStatus, now time.Time) {
	s.status = status
	s.TouchAt(now)
}

// UpdateBounds changes the participant bounds of an active session. The
// maximum cannot drop below the enrolled count.
func (s *Session) UpdateBounds(min, max int, now time.Time) error {
	if !s.IsActive() {
		return ErrSessionClosed
	}
	if err := validateBounds(min, max); err != nil {
		return err
	}
	if max < s.enrolledCount {
		return ErrAboveMaximum
	}
	previous := s.maxParticipants
	s.minParticipants = min
	s.maxParticipants = max
	s.TouchAt(now)
	if max != previous {
		s.AddDomainEvent(NewSessionCapacityChanged(s.ID(), CapacityFromBounds, previous, max, now))
	}
	return nil
}

// SetCounts records the live enrolled and waitlisted counts.
func (s *Session) SetCounts(enrolled, waitlisted int, now time.Time) error {
	if enrolled < 0 || waitlisted < 0 {
		return ErrNegativeCount
	}
	s.enrolledCount = enrolled
	s.waitlistedCount = waitlisted
	s.TouchAt(now)
	return nil
}

// Clone returns a deep copy without pending domain events.
func (s *Session) Clone() *Session {
	c := *s
	c.BaseAggregateRoot = sharedDomain.RehydrateBaseAggregateRoot(s.BaseEntity, s.Version())
	if s.request != nil {
		req := s.request.Clone()
		c.request = &req
	}
	return &c
}
