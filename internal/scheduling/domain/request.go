package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceRequirement describes one resource a session needs.
type ResourceRequirement struct {
	Type        ResourceType `json:"type" yaml:"type" validate:"required"`
	MinCapacity int          `json:"min_capacity,omitempty" yaml:"min_capacity,omitempty" validate:"gte=0"`
	Features    []string     `json:"features,omitempty" yaml:"features,omitempty"`
	Optional    bool         `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// InstructorPreference selects an instructor by id or by filters.
type InstructorPreference struct {
	InstructorID    uuid.UUID `json:"instructor_id,omitempty" yaml:"instructor_id,omitempty"`
	Certifications  []string  `json:"certifications,omitempty" yaml:"certifications,omitempty"`
	Specializations []string  `json:"specializations,omitempty" yaml:"specializations,omitempty"`
	MinRating       float64   `json:"min_rating,omitempty" yaml:"min_rating,omitempty" validate:"gte=0,lte=5"`
}

// IsZero reports whether no instructor was asked for.
func (p InstructorPreference) IsZero() bool {
	return p.InstructorID == uuid.Nil && len(p.Certifications) == 0 &&
		len(p.Specializations) == 0 && p.MinRating == 0
}

// Flexibility says how far the engine may stray from the request.
type Flexibility struct {
	TimeToleranceMinutes        int  `json:"time_tolerance_minutes,omitempty" yaml:"time_tolerance_minutes,omitempty" validate:"gte=0"`
	DateToleranceDays           int  `json:"date_tolerance_days,omitempty" yaml:"date_tolerance_days,omitempty" validate:"gte=0"`
	AllowResourceSubstitution   bool `json:"allow_resource_substitution,omitempty" yaml:"allow_resource_substitution,omitempty"`
	AllowInstructorSubstitution bool `json:"allow_instructor_substitution,omitempty" yaml:"allow_instructor_substitution,omitempty"`
	AllowSplit                  bool `json:"allow_split,omitempty" yaml:"allow_split,omitempty"`
	AcceptVirtual               bool `json:"accept_virtual,omitempty" yaml:"accept_virtual,omitempty"`
}

// SchedulingRequest asks the optimization engine to place one session.
type SchedulingRequest struct {
	SessionID       uuid.UUID             `json:"session_id" yaml:"session_id" validate:"required"`
	PreferredStarts []time.Time           `json:"preferred_starts" yaml:"preferred_starts" validate:"required,min=1"`
	Resources       []ResourceRequirement `json:"resources,omitempty" yaml:"resources,omitempty" validate:"dive"`
	Instructor      InstructorPreference  `json:"instructor,omitempty" yaml:"instructor,omitempty"`
	Constraints     []ConstraintSpec      `json:"constraints,omitempty" yaml:"constraints,omitempty" validate:"dive"`
	Flexibility     Flexibility           `json:"flexibility,omitempty" yaml:"flexibility,omitempty"`
}

// FuturePreferredStarts drops preferred starts before now.
func (r SchedulingRequest) FuturePreferredStarts(now time.Time) []time.Time {
	out := make([]time.Time, 0, len(r.PreferredStarts))
	for _, t := range r.PreferredStarts {
		if t.After(now) {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of the request.
func (r SchedulingRequest) Clone() SchedulingRequest {
	c := r
	c.PreferredStarts = append([]time.Time(nil), r.PreferredStarts...)
	c.Resources = make([]ResourceRequirement, len(r.Resources))
	for i, req := range r.Resources {
		req.Features = append([]string(nil), req.Features...)
		c.Resources[i] = req
	}
	c.Instructor.Certifications = append([]string(nil), r.Instructor.Certifications...)
	c.Instructor.Specializations = append([]string(nil), r.Instructor.Specializations...)
	c.Constraints = append([]ConstraintSpec(nil), r.Constraints...)
	return c
}
