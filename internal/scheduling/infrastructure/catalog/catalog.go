// Package catalog loads resources, instructors and sessions from a YAML file.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	// ErrInvalidCatalog wraps every validation failure of a catalog file.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrUnknownWeekday is returned for a day name that is not recognised.
	ErrUnknownWeekday = errors.New("unknown weekday")
)

// File is the top level of a catalog document.
type File struct {
	Resources   []ResourceEntry   `yaml:"resources"`
	Instructors []InstructorEntry `yaml:"instructors"`
	Sessions    []SessionEntry    `yaml:"sessions"`
}

// Hours is a weekly opening rule, e.g. days [mon, tue] from 09:00 to 17:00.
type Hours struct {
	Days  []string         `yaml:"days"`
	Start domain.TimeOfDay `yaml:"start"`
	End   domain.TimeOfDay `yaml:"end"`
}

// Maintenance is a planned maintenance window.
type Maintenance struct {
	Start       time.Time              `yaml:"start"`
	End         time.Time              `yaml:"end"`
	Kind        domain.MaintenanceKind `yaml:"kind"`
	Description string                 `yaml:"description"`
}

// ResourceEntry describes one bookable resource.
type ResourceEntry struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	Capacity    int           `yaml:"capacity"`
	Location    string        `yaml:"location"`
	Features    []string      `yaml:"features"`
	Timezone    string        `yaml:"timezone"`
	Hours       []Hours       `yaml:"hours"`
	Maintenance []Maintenance `yaml:"maintenance"`
}

// InstructorEntry describes one instructor.
type InstructorEntry struct {
	Name               string                 `yaml:"name"`
	Specializations    []string               `yaml:"specializations"`
	Certifications     []domain.Certification `yaml:"certifications"`
	Rating             float64                `yaml:"rating"`
	MaxSessionsPerDay  int                    `yaml:"max_sessions_per_day"`
	MaxSessionsPerWeek int                    `yaml:"max_sessions_per_week"`
	Timezone           string                 `yaml:"timezone"`
	Hours              []Hours                `yaml:"hours"`
}

// Placement asks for a session to be scheduled right after import.
// Instructor names an instructor of the same catalog.
type Placement struct {
	PreferredStarts []time.Time                  `yaml:"preferred_starts"`
	Resources       []domain.ResourceRequirement `yaml:"resources"`
	Instructor      string                       `yaml:"instructor"`
	Specializations []string                     `yaml:"specializations"`
	Certifications  []string                     `yaml:"certifications"`
	MinRating       float64                      `yaml:"min_rating"`
	Constraints     []domain.ConstraintSpec      `yaml:"constraints"`
	Flexibility     domain.Flexibility           `yaml:"flexibility"`
}

// SessionEntry describes one session.
type SessionEntry struct {
	Title           string                `yaml:"title"`
	Start           time.Time             `yaml:"start"`
	Duration        time.Duration         `yaml:"duration"`
	Timezone        string                `yaml:"timezone"`
	MinParticipants int                   `yaml:"min_participants"`
	MaxParticipants int                   `yaml:"max_participants"`
	Waitlist        domain.WaitlistConfig `yaml:"waitlist"`
	FundingRef      string                `yaml:"funding_ref"`
	Schedule        *Placement            `yaml:"schedule"`
}

// Load reads and validates the catalog at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*File, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one catalog document from r. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks the cross references and the fields yaml cannot type.
func (f *File) Validate() error {
	var errs []error
	names := make(map[string]bool, len(f.Instructors))
	for i, inst := range f.Instructors {
		if inst.Name == "" {
			errs = append(errs, fmt.Errorf("instructors[%d]: name is required", i))
			continue
		}
		if names[inst.Name] {
			errs = append(errs, fmt.Errorf("instructors[%d]: duplicate name %q", i, inst.Name))
		}
		names[inst.Name] = true
		if _, err := availability(inst.Timezone, inst.Hours); err != nil {
			errs = append(errs, fmt.Errorf("instructors[%d]: %w", i, err))
		}
	}
	for i, r := range f.Resources {
		if _, err := r.Spec(); err != nil {
			errs = append(errs, fmt.Errorf("resources[%d]: %w", i, err))
		}
	}
	for i, s := range f.Sessions {
		if s.Title == "" {
			errs = append(errs, fmt.Errorf("sessions[%d]: title is required", i))
		}
		if s.Duration <= 0 {
			errs = append(errs, fmt.Errorf("sessions[%d]: duration must be positive", i))
		}
		if s.Schedule != nil && s.Schedule.Instructor != "" && !names[s.Schedule.Instructor] {
			errs = append(errs, fmt.Errorf("sessions[%d]: unknown instructor %q", i, s.Schedule.Instructor))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

// Spec converts the entry into a resource spec.
func (r ResourceEntry) Spec() (domain.ResourceSpec, error) {
	avail, err := availability(r.Timezone, r.Hours)
	if err != nil {
		return domain.ResourceSpec{}, err
	}
	for _, m := range r.Maintenance {
		iv, err := domain.NewInterval(m.Start, m.End)
		if err != nil {
			return domain.ResourceSpec{}, fmt.Errorf("maintenance %q: %w", m.Description, err)
		}
		kind := m.Kind
		if kind == "" {
			kind = domain.MaintenanceScheduled
		}
		avail.Maintenance = append(avail.Maintenance, domain.NewMaintenanceWindow(iv, kind, m.Description))
	}
	return domain.ResourceSpec{
		Name:         r.Name,
		Type:         domain.ResourceType(strings.ToLower(r.Type)),
		Capacity:     r.Capacity,
		Location:     r.Location,
		Features:     r.Features,
		Availability: avail,
	}, nil
}

// Spec converts the entry into an instructor spec.
func (e InstructorEntry) Spec() (domain.InstructorSpec, error) {
	avail, err := availability(e.Timezone, e.Hours)
	if err != nil {
		return domain.InstructorSpec{}, err
	}
	return domain.InstructorSpec{
		Name:               e.Name,
		Specializations:    e.Specializations,
		Certifications:     e.Certifications,
		Availability:       avail,
		MaxSessionsPerDay:  e.MaxSessionsPerDay,
		MaxSessionsPerWeek: e.MaxSessionsPerWeek,
		Rating:             e.Rating,
	}, nil
}

// Spec converts the entry into a session spec.
func (s SessionEntry) Spec() domain.SessionSpec {
	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return domain.SessionSpec{
		Title:           s.Title,
		Interval:        domain.IntervalOf(s.Start, s.Duration),
		Timezone:        tz,
		MinParticipants: s.MinParticipants,
		MaxParticipants: s.MaxParticipants,
		Waitlist:        s.Waitlist,
		FundingRef:      s.FundingRef,
	}
}

func availability(timezone string, hours []Hours) (domain.Availability, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return domain.Availability{}, fmt.Errorf("timezone %q: %w", timezone, err)
		}
	}
	avail := domain.Availability{Location: loc}
	for _, h := range hours {
		days := make([]time.Weekday, 0, len(h.Days))
		for _, name := range h.Days {
			day, err := ParseWeekday(name)
			if err != nil {
				return domain.Availability{}, err
			}
			days = append(days, day)
		}
		if h.End <= h.Start {
			return domain.Availability{}, fmt.Errorf("hours %s-%s: end must be after start", h.Start, h.End)
		}
		avail.Rules = append(avail.Rules, domain.WeeklyRules(h.Start, h.End, days...)...)
	}
	return avail, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short or full English day names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, s)
	}
	return day, nil
}
