package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownConstraint = errors.New("unknown constraint kind")

// ConstraintType represents the type of scheduling constraint
type ConstraintType string

const (
	ConstraintTypeHard ConstraintType = "hard" // Must be satisfied
	ConstraintTypeSoft ConstraintType = "soft" // Preferred but not required
)

// ConstraintEnv is the context a candidate is judged in.
type ConstraintEnv struct {
	Location *time.Location
	// Neighbors are the other sessions of the candidate's instructor.
	Neighbors []Interval
}

func (e ConstraintEnv) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// Constraint represents a scheduling constraint
type Constraint interface {
	Type() ConstraintType
	Satisfied(iv Interval, env ConstraintEnv) bool
	Describe() string
}

// TimeWindowConstraint restricts sessions to a daily window.
type TimeWindowConstraint struct {
	constraintType ConstraintType
	start          TimeOfDay
	end            TimeOfDay
}

// NewTimeWindowConstraint creates a constraint for allowed scheduling hours
func NewTimeWindowConstraint(constraintType ConstraintType, start, end TimeOfDay) *TimeWindowConstraint {
	return &TimeWindowConstraint{constraintType: constraintType, start: start, end: end}
}

func (c *TimeWindowConstraint) Type() ConstraintType { return c.constraintType }

func (c *TimeWindowConstraint) Satisfied(iv Interval, env ConstraintEnv) bool {
	loc := env.location()
	start := iv.Start.In(loc)
	endMinute, sameDay := minuteOfDay(start, iv.End.In(loc))
	if !sameDay {
		return false
	}
	startMinute := TimeOfDay(start.Hour()*60 + start.Minute())
	return startMinute >= c.start && endMinute <= c.end
}

func (c *TimeWindowConstraint) Describe() string {
	return fmt.Sprintf("%s window %s-%s", c.constraintType, c.start, c.end)
}

// DayOfWeekConstraint restricts scheduling to specific days
type DayOfWeekConstraint struct {
	constraintType ConstraintType
	allowedDays    map[time.Weekday]bool
}

// NewDayOfWeekConstraint creates a constraint for allowed days
func NewDayOfWeekConstraint(constraintType ConstraintType, days []time.Weekday) *DayOfWeekConstraint {
	allowed := make(map[time.Weekday]bool)
	for _, day := range days {
		allowed[day] = true
	}
	return &DayOfWeekConstraint{constraintType: constraintType, allowedDays: allowed}
}

func (c *DayOfWeekConstraint) Type() ConstraintType { return c.constraintType }

func (c *DayOfWeekConstraint) Satisfied(iv Interval, env ConstraintEnv) bool {
	return c.allowedDays[iv.Start.In(env.location()).Weekday()]
}

func (c *DayOfWeekConstraint) Describe() string {
	days := make([]string, 0, len(c.allowedDays))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if c.allowedDays[d] {
			days = append(days, d.String()[:3])
		}
	}
	return fmt.Sprintf("%s days %s", c.constraintType, strings.Join(days, ","))
}

// BreakConstraint requires a minimum gap to the instructor's other sessions.
type BreakConstraint struct {
	constraintType ConstraintType
	minBreak       time.Duration
}

// NewBreakConstraint creates a break duration constraint.
func NewBreakConstraint(constraintType ConstraintType, minBreak time.Duration) *BreakConstraint {
	return &BreakConstraint{constraintType: constraintType, minBreak: minBreak}
}

func (c *BreakConstraint) Type() ConstraintType { return c.constraintType }

func (c *BreakConstraint) Satisfied(iv Interval, env ConstraintEnv) bool {
	for _, n := range env.Neighbors {
		if n.Overlaps(iv) {
			return false
		}
		if !n.End.After(iv.Start) && iv.Start.Sub(n.End) < c.minBreak {
			return false
		}
		if !iv.End.After(n.Start) && n.Start.Sub(iv.End) < c.minBreak {
			return false
		}
	}
	return true
}

func (c *BreakConstraint) Describe() string {
	return fmt.Sprintf("%s break of %s", c.constraintType, c.minBreak)
}

// ConstraintSet holds a collection of constraints
type ConstraintSet struct {
	constraints []Constraint
}

// NewConstraintSet creates a new constraint set
func NewConstraintSet(constraints ...Constraint) *ConstraintSet {
	return &ConstraintSet{constraints: constraints}
}

// Add adds a constraint to the set
func (cs *ConstraintSet) Add(c Constraint) {
	cs.constraints = append(cs.constraints, c)
}

// Violations returns the hard and soft constraints iv breaks.
func (cs *ConstraintSet) Violations(iv Interval, env ConstraintEnv) (hard, soft []Constraint) {
	for _, c := range cs.constraints {
		if c.Satisfied(iv, env) {
			continue
		}
		if c.Type() == ConstraintTypeHard {
			hard = append(hard, c)
		} else {
			soft = append(soft, c)
		}
	}
	return hard, soft
}

// Len returns the number of constraints.
func (cs *ConstraintSet) Len() int { return len(cs.constraints) }

// ConstraintKind names a serializable constraint.
type ConstraintKind string

const (
	ConstraintTimeWindow ConstraintKind = "time_window"
	ConstraintWeekdays   ConstraintKind = "weekdays"
	ConstraintBreak      ConstraintKind = "break"
)

// ConstraintSpec is the stored form of a constraint on a scheduling request.
type ConstraintSpec struct {
	Kind         ConstraintKind `json:"kind" yaml:"kind" validate:"required,oneof=time_window weekdays break"`
	Type         ConstraintType `json:"type" yaml:"type" validate:"required,oneof=hard soft"`
	Start        TimeOfDay      `json:"start,omitempty" yaml:"start,omitempty"`
	End          TimeOfDay      `json:"end,omitempty" yaml:"end,omitempty"`
	Weekdays     []time.Weekday `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	BreakMinutes int            `json:"break_minutes,omitempty" yaml:"break_minutes,omitempty" validate:"gte=0"`
}

// Build turns the spec into a constraint.
func (s ConstraintSpec) Build() (Constraint, error) {
	switch s.Kind {
	case ConstraintTimeWindow:
		return NewTimeWindowConstraint(s.Type, s.Start, s.End), nil
	case ConstraintWeekdays:
		return NewDayOfWeekConstraint(s.Type, s.Weekdays), nil
	case ConstraintBreak:
		return NewBreakConstraint(s.Type, time.Duration(s.BreakMinutes)*time.Minute), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownConstraint, s.Kind)
	}
}

// BuildConstraintSet builds every spec into one set.
func BuildConstraintSet(specs []ConstraintSpec) (*ConstraintSet, error) {
	set := NewConstraintSet()
	for _, spec := range specs {
		c, err := spec.Build()
		if err != nil {
			return nil, err
		}
		set.Add(c)
	}
	return set, nil
}
