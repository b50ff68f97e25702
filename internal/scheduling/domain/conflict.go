package domain

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrConflictResolved = errors.New("conflict already resolved")

// ConflictType represents the type of scheduling conflict.
type ConflictType string

const (
	// ConflictResourceDoubleBooking means a resource holds overlapping allocations.
	ConflictResourceDoubleBooking ConflictType = "resource_double_booking"
	// ConflictInstructor means an instructor teaches overlapping sessions.
	ConflictInstructor ConflictType = "instructor_conflict"
	// ConflictCapacityExceeded means enrolment or the session maximum does not fit.
	ConflictCapacityExceeded ConflictType = "capacity_exceeded"
	// ConflictTimeOverlap means two sessions overlap while sharing a resource or instructor.
	ConflictTimeOverlap ConflictType = "time_overlap"
	// ConflictMaintenance means a session runs into maintenance of one of its resources.
	ConflictMaintenance ConflictType = "maintenance_conflict"
	// ConflictMinimumBreak means an instructor's sessions are too close together.
	ConflictMinimumBreak ConflictType = "minimum_break_violated"
)

// Severity ranks how urgently a conflict needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// ResolutionType names a strategy for resolving a conflict.
type ResolutionType string

const (
	ResolutionReschedule         ResolutionType = "reschedule"
	ResolutionReallocateResource ResolutionType = "reallocate_resource"
	ResolutionChangeInstructor   ResolutionType = "change_instructor"
	ResolutionSplitSession       ResolutionType = "split_session"
	ResolutionCancel             ResolutionType = "cancel"
)

// Valid reports whether r is a known strategy.
func (r ResolutionType) Valid() bool {
	switch r {
	case ResolutionReschedule, ResolutionReallocateResource, ResolutionChangeInstructor,
		ResolutionSplitSession, ResolutionCancel:
		return true
	}
	return false
}

var candidateResolutions = map[ConflictType][]ResolutionType{
	ConflictResourceDoubleBooking: {ResolutionReschedule, ResolutionReallocateResource},
	ConflictInstructor:            {ResolutionChangeInstructor, ResolutionReschedule},
	ConflictMinimumBreak:          {ResolutionReschedule, ResolutionChangeInstructor},
	ConflictCapacityExceeded:      {ResolutionSplitSession, ResolutionReallocateResource},
	ConflictTimeOverlap:           {ResolutionReschedule, ResolutionReallocateResource, ResolutionChangeInstructor},
	ConflictMaintenance:           {ResolutionReallocateResource, ResolutionReschedule},
}

// CandidateResolutions returns the strategies that apply to a conflict type.
func CandidateResolutions(t ConflictType) []ResolutionType {
	return append([]ResolutionType(nil), candidateResolutions[t]...)
}

// SchedulingConflict is a detected violation of a scheduling invariant. It is
// derived from sessions and allocations and never the source of truth.
type SchedulingConflict struct {
	id           uuid.UUID
	conflictType ConflictType
	severity     Severity
	sessionIDs   []uuid.UUID
	resourceIDs  []uuid.UUID
	instructorID uuid.UUID
	interval     Interval
	description  string
	resolutions  []ResolutionType
	detectedAt   time.Time
	resolvedAt   *time.Time
	resolvedBy   ResolutionType
}

// ConflictSpec describes a detected conflict.
type ConflictSpec struct {
	Type         ConflictType
	Severity     Severity
	SessionIDs   []uuid.UUID
	ResourceIDs  []uuid.UUID
	InstructorID uuid.UUID
	Interval     Interval
	Description  string
}

// NewSchedulingConflict creates a conflict with the static candidate resolutions for its type.
func NewSchedulingConflict(spec ConflictSpec, detectedAt time.Time) *SchedulingConflict {
	return &SchedulingConflict{
		id:           uuid.New(),
		conflictType: spec.Type,
		severity:     spec.Severity,
		sessionIDs:   append([]uuid.UUID(nil), spec.SessionIDs...),
		resourceIDs:  append([]uuid.UUID(nil), spec.ResourceIDs...),
		instructorID: spec.InstructorID,
		interval:     spec.Interval,
		description:  spec.Description,
		resolutions:  CandidateResolutions(spec.Type),
		detectedAt:   detectedAt.UTC(),
	}
}

func (c *SchedulingConflict) ID() uuid.UUID                 { return c.id }
func (c *SchedulingConflict) Type() ConflictType            { return c.conflictType }
func (c *SchedulingConflict) Severity() Severity            { return c.severity }
func (c *SchedulingConflict) SessionIDs() []uuid.UUID       { return c.sessionIDs }
func (c *SchedulingConflict) ResourceIDs() []uuid.UUID      { return c.resourceIDs }
func (c *SchedulingConflict) InstructorID() uuid.UUID       { return c.instructorID }
func (c *SchedulingConflict) Interval() Interval            { return c.interval }
func (c *SchedulingConflict) Description() string           { return c.description }
func (c *SchedulingConflict) Resolutions() []ResolutionType { return c.resolutions }
func (c *SchedulingConflict) DetectedAt() time.Time         { return c.detectedAt }
func (c *SchedulingConflict) ResolvedAt() *time.Time        { return c.resolvedAt }
func (c *SchedulingConflict) ResolvedBy() ResolutionType    { return c.resolvedBy }

// IsResolved reports whether a resolution has been applied.
func (c *SchedulingConflict) IsResolved() bool { return c.resolvedAt != nil }

// Involves reports whether the conflict concerns the session.
func (c *SchedulingConflict) Involves(sessionID uuid.UUID) bool {
	for _, id := range c.sessionIDs {
		if id == sessionID {
			return true
		}
	}
	return false
}

// Fingerprint identifies the same conflict across detection runs: type plus
// the sorted sessions, resources and instructor involved.
func (c *SchedulingConflict) Fingerprint() string {
	parts := []string{string(c.conflictType)}
	parts = append(parts, sortedIDs(c.sessionIDs)...)
	parts = append(parts, sortedIDs(c.resourceIDs)...)
	if c.instructorID != uuid.Nil {
		parts = append(parts, c.instructorID.String())
	}
	return strings.Join(parts, "|")
}

func sortedIDs(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}

// Resolve stamps the conflict as resolved by the given strategy.
func (c *SchedulingConflict) Resolve(strategy ResolutionType, at time.Time) error {
	if c.resolvedAt != nil {
		return ErrConflictResolved
	}
	t := at.UTC()
	c.resolvedAt = &t
	c.resolvedBy = strategy
	return nil
}

// ConflictState is the stored form of a conflict.
type ConflictState struct {
	ID           uuid.UUID        `json:"id"`
	Type         ConflictType     `json:"type"`
	Severity     Severity         `json:"severity"`
	SessionIDs   []uuid.UUID      `json:"session_ids"`
	ResourceIDs  []uuid.UUID      `json:"resource_ids,omitempty"`
	InstructorID uuid.UUID        `json:"instructor_id,omitempty"`
	Interval     Interval         `json:"interval"`
	Description  string           `json:"description"`
	Resolutions  []ResolutionType `json:"resolutions"`
	DetectedAt   time.Time        `json:"detected_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy   ResolutionType   `json:"resolved_by,omitempty"`
}

// State returns the stored form of the conflict.
func (c *SchedulingConflict) State() ConflictState {
	return ConflictState{
		ID:           c.id,
		Type:         c.conflictType,
		Severity:     c.severity,
		SessionIDs:   c.sessionIDs,
		ResourceIDs:  c.resourceIDs,
		InstructorID: c.instructorID,
		Interval:     c.interval,
		Description:  c.description,
		Resolutions:  c.resolutions,
		DetectedAt:   c.detectedAt,
		ResolvedAt:   c.resolvedAt,
		ResolvedBy:   c.resolvedBy,
	}
}

// RehydrateConflict recreates a conflict from its stored form.
func RehydrateConflict(st ConflictState) *SchedulingConflict {
	return &SchedulingConflict{
		id:           st.ID,
		conflictType: st.Type,
		severity:     st.Severity,
		sessionIDs:   st.SessionIDs,
		resourceIDs:  st.ResourceIDs,
		instructorID: st.InstructorID,
		interval:     st.Interval,
		description:  st.Description,
		resolutions:  st.Resolutions,
		detectedAt:   st.DetectedAt,
		resolvedAt:   st.ResolvedAt,
		resolvedBy:   st.ResolvedBy,
	}
}
