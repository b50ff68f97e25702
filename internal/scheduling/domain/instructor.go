package domain

import (
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrInstructorNameRequired = errors.New("instructor name is required")
	ErrInvalidRating          = errors.New("rating must be between 0 and 5")
	ErrNegativeSessionLimit   = errors.New("session limits cannot be negative")
)

// MaxRating is the top of the instructor rating scale.
const MaxRating = 5.0

// Certification is a qualification with an optional expiry.
type Certification struct {
	Name       string     `json:"name" yaml:"name"`
	ValidUntil *time.Time `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`
}

// ValidAt reports whether the certification holds at t.
func (c Certification) ValidAt(t time.Time) bool {
	return c.ValidUntil == nil || !t.After(*c.ValidUntil)
}

// InstructorSpec carries the mutable properties of an instructor.
type InstructorSpec struct {
	Name               string
	Specializations    []string
	Certifications     []Certification
	Availability       Availability
	MaxSessionsPerDay  int // 0 means unlimited
	MaxSessionsPerWeek int // 0 means unlimited
	Rating             float64
}

// Instructor teaches sessions and is booked like a resource.
type Instructor struct {
	sharedDomain.BaseAggregateRoot
	spec InstructorSpec
}

// NewInstructor registers an instructor.
func NewInstructor(spec InstructorSpec) (*Instructor, error) {
	if err := validateInstructor(spec); err != nil {
		return nil, err
	}
	spec.Specializations = normalizeTags(spec.Specializations)
	return &Instructor{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		spec:              spec,
	}, nil
}

// RehydrateInstructor recreates an instructor from persisted state.
func RehydrateInstructor(id uuid.UUID, spec InstructorSpec, createdAt, updatedAt time.Time) *Instructor {
	spec.Specializations = normalizeTags(spec.Specializations)
	return &Instructor{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt), 0,
		),
		spec: spec,
	}
}

func validateInstructor(spec InstructorSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return ErrInstructorNameRequired
	}
	if spec.Rating < 0 || spec.Rating > MaxRating {
		return ErrInvalidRating
	}
	if spec.MaxSessionsPerDay < 0 || spec.MaxSessionsPerWeek < 0 {
		return ErrNegativeSessionLimit
	}
	return nil
}

func (i *Instructor) Name() string                    { return i.spec.Name }
func (i *Instructor) Specializations() []string       { return i.spec.Specializations }
func (i *Instructor) Certifications() []Certification { return i.spec.Certifications }
func (i *Instructor) Availability() Availability      { return i.spec.Availability }
func (i *Instructor) MaxSessionsPerDay() int          { return i.spec.MaxSessionsPerDay }
func (i *Instructor) MaxSessionsPerWeek() int         { return i.spec.MaxSessionsPerWeek }
func (i *Instructor) Rating() float64                 { return i.spec.Rating }
func (i *Instructor) Spec() InstructorSpec            { return i.spec }

// Update replaces the mutable properties.
func (i *Instructor) Update(spec InstructorSpec) error {
	if err := validateInstructor(spec); err != nil {
		return err
	}
	spec.Specializations = normalizeTags(spec.Specializations)
	i.spec = spec
	i.Touch()
	return nil
}

// Check runs the availability model for the interval.
func (i *Instructor) Check(iv Interval) error {
	return i.spec.Availability.Check(iv)
}

// HasCertifications reports whether every named certification is valid at t.
func (i *Instructor) HasCertifications(names []string, at time.Time) bool {
	for _, name := range names {
		found := false
		for _, c := range i.spec.Certifications {
			if strings.EqualFold(c.Name, name) && c.ValidAt(at) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SpecializationMatch returns the share of required specializations the instructor has.
func (i *Instructor) SpecializationMatch(required []string) float64 {
	return tagMatch(i.spec.Specializations, required)
}

// Satisfies reports whether the instructor meets the filters of a preference.
func (i *Instructor) Satisfies(pref InstructorPreference, at time.Time) bool {
	if pref.InstructorID != uuid.Nil && pref.InstructorID != i.ID() {
		return false
	}
	if i.spec.Rating < pref.MinRating {
		return false
	}
	if !i.HasCertifications(pref.Certifications, at) {
		return false
	}
	return i.SpecializationMatch(pref.Specializations) == 1
}

// SatisfiesFilters is Satisfies without the identity check, used when
// looking for a substitute.
func (i *Instructor) SatisfiesFilters(pref InstructorPreference, at time.Time) bool {
	pref.InstructorID = uuid.Nil
	return i.Satisfies(pref, at)
}

// Clone returns a deep copy without pending domain events.
func (i *Instructor) Clone() *Instructor {
	c := *i
	c.BaseAggregateRoot = sharedDomain.RehydrateBaseAggregateRoot(i.BaseEntity, i.Version())
	c.spec.Specializations = append([]string(nil), i.spec.Specializations...)
	c.spec.Certifications = append([]Certification(nil), i.spec.Certifications...)
	c.spec.Availability = i.spec.Availability.Clone()
	return &c
}
