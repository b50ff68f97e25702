package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMultiDayInterval    = errors.New("interval spans more than one calendar day")
	ErrOutsideAvailability = errors.New("interval is outside the availability rules")
	ErrDateException       = errors.New("date is marked unavailable")
	ErrMaintenanceWindow   = errors.New("interval intersects a maintenance window")
	ErrInvalidTimeOfDay    = errors.New("time of day must be HH:MM between 00:00 and 24:00")
)

// DateLayout formats exception dates.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// TimeOfDay is a wall clock time expressed in minutes after midnight, 0..1440.
type TimeOfDay int

// At builds a TimeOfDay from hours and minutes.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM". "24:00" is accepted as the end of the day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	t := At(h, m)
	if h < 0 || m < 0 || m > 59 || t > minutesPerDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return t, nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText encodes the time as HH:MM.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes HH:MM.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// on returns the instant of t on the calendar day of day in loc.
func (t TimeOfDay) on(day time.Time, loc *time.Location) time.Time {
	y, mo, d := day.In(loc).Date()
	return time.Date(y, mo, d, int(t)/60, int(t)%60, 0, 0, loc)
}

// ExceptionKind says how a date exception changes a rule.
type ExceptionKind string

const (
	ExceptionUnavailable ExceptionKind = "unavailable"
	ExceptionExtended    ExceptionKind = "extended"
	ExceptionModified    ExceptionKind = "modified"
)

// DateException overrides an availability rule on one calendar date.
type DateException struct {
	Date   string        `json:"date" yaml:"date"`
	Kind   ExceptionKind `json:"kind" yaml:"kind"`
	Start  TimeOfDay     `json:"start,omitempty" yaml:"start,omitempty"`
	End    TimeOfDay     `json:"end,omitempty" yaml:"end,omitempty"`
	Reason string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// AvailabilityRule is a recurring weekly window.
type AvailabilityRule struct {
	Weekday    time.Weekday    `json:"weekday" yaml:"weekday"`
	Start      TimeOfDay       `json:"start" yaml:"start"`
	End        TimeOfDay       `json:"end" yaml:"end"`
	Active     bool            `json:"active" yaml:"active"`
	Exceptions []DateException `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
}

// exceptionFor returns the exception for the date, if any.
func (r AvailabilityRule) exceptionFor(date string) (DateException, bool) {
	for _, ex := range r.Exceptions {
		if ex.Date == date {
			return ex, true
		}
	}
	return DateException{}, false
}

// window returns the bookable window of the rule on a date and whether the
// rule is open at all that day.
func (r AvailabilityRule) window(date string) (TimeOfDay, TimeOfDay, bool) {
	ex, ok := r.exceptionFor(date)
	if !ok {
		return r.Start, r.End, true
	}
	if ex.Kind == ExceptionUnavailable {
		return 0, 0, false
	}
	return ex.Start, ex.End, true
}

// WeeklyRules builds one active rule per weekday with the same hours.
func WeeklyRules(start, end TimeOfDay, days ...time.Weekday) []AvailabilityRule {
	rules := make([]AvailabilityRule, 0, len(days))
	for _, day := range days {
		rules = append(rules, AvailabilityRule{Weekday: day, Start: start, End: end, Active: true})
	}
	return rules
}

// Weekdays is Monday to Friday.
var Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// MaintenanceKind classifies a maintenance blackout.
type MaintenanceKind string

const (
	MaintenanceScheduled  MaintenanceKind = "scheduled"
	MaintenanceEmergency  MaintenanceKind = "emergency"
	MaintenancePreventive MaintenanceKind = "preventive"
)

// MaintenanceWindow blocks a resource for an interval.
type MaintenanceWindow struct {
	ID          uuid.UUID       `json:"id" yaml:"id"`
	Interval    Interval        `json:"interval" yaml:"interval"`
	Kind        MaintenanceKind `json:"kind" yaml:"kind"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// NewMaintenanceWindow creates a maintenance window with a fresh id.
func NewMaintenanceWindow(interval Interval, kind MaintenanceKind, description string) MaintenanceWindow {
	return MaintenanceWindow{ID: uuid.New(), Interval: interval, Kind: kind, Description: description}
}

// Availability is the full bookability description of a resource or instructor.
type Availability struct {
	Location    *time.Location
	Rules       []AvailabilityRule
	Maintenance []MaintenanceWindow
}

func (a Availability) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

// IsAvailable reports whether the target described by a can be booked for iv.
func IsAvailable(a Availability, iv Interval) bool {
	return a.Check(iv) == nil
}

// Check returns why iv cannot be booked, or nil when it can.
func (a Availability) Check(iv Interval) error {
	if !iv.End.After(iv.Start) {
		return ErrInvalidInterval
	}

	loc := a.location()
	start := iv.Start.In(loc)
	end := iv.End.In(loc)
	if !sameDay(start, end) {
		return ErrMultiDayInterval
	}
	date := start.Format(DateLayout)

	var rules []AvailabilityRule
	for _, rule := range a.Rules {
		if rule.Active && rule.Weekday == start.Weekday() {
			rules = append(rules, rule)
		}
	}

	for _, rule := range rules {
		if ex, ok := rule.exceptionFor(date); ok && ex.Kind == ExceptionUnavailable {
			return ErrDateException
		}
	}

	fits := false
	for _, rule := range rules {
		opens, closes, ok := rule.window(date)
		if ok && !start.Before(opens.on(start, loc)) && !end.After(closes.on(start, loc)) {
			fits = true
			break
		}
	}
	if !fits {
		return ErrOutsideAvailability
	}

	if _, hit := a.MaintenanceAt(iv); hit {
		return ErrMaintenanceWindow
	}
	return nil
}

// MaintenanceAt returns the first maintenance window intersecting iv.
func (a Availability) MaintenanceAt(iv Interval) (MaintenanceWindow, bool) {
	for _, m := range a.Maintenance {
		if m.Interval.Overlaps(iv) {
			return m, true
		}
	}
	return MaintenanceWindow{}, false
}

// OpenSpans returns the bookable spans on the calendar day containing day,
// with date exceptions applied and maintenance removed.
func (a Availability) OpenSpans(day time.Time) []Interval {
	loc := a.location()
	local := day.In(loc)
	date := local.Format(DateLayout)

	var spans []Interval
	for _, rule := range a.Rules {
		if !rule.Active || rule.Weekday != local.Weekday() {
			continue
		}
		if ex, ok := rule.exceptionFor(date); ok && ex.Kind == ExceptionUnavailable {
			return nil
		}
		opens, closes, _ := rule.window(date)
		if closes <= opens {
			continue
		}
		spans = append(spans, Interval{Start: opens.on(local, loc), End: closes.on(local, loc)})
	}

	cuts := make([]Interval, 0, len(a.Maintenance))
	for _, m := range a.Maintenance {
		cuts = append(cuts, m.Interval)
	}
	return subtract(merge(spans), cuts)
}

// AvailableHours sums the bookable hours inside [from, to).
func (a Availability) AvailableHours(from, to time.Time) float64 {
	if !to.After(from) {
		return 0
	}
	window := Interval{Start: from, End: to}
	loc := a.location()

	total := time.Duration(0)
	y, m, d := from.In(loc).Date()
	for day := time.Date(y, m, d, 12, 0, 0, 0, loc); day.Before(to.Add(24 * time.Hour)); day = day.AddDate(0, 0, 1) {
		for _, span := range a.OpenSpans(day) {
			if clipped, ok := span.Intersect(window); ok {
				total += clipped.Duration()
			}
		}
	}
	return total.Hours()
}

// sameDay reports whether end falls on start's calendar day. An end exactly
// at the following midnight counts as 24:00 of the same day.
func sameDay(start, end time.Time) bool {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy == ey && sm == em && sd == ed {
		return true
	}
	return end.Equal(time.Date(sy, sm, sd+1, 0, 0, 0, 0, start.Location()))
}

// Clone returns a deep copy of the rules and maintenance windows.
func (a Availability) Clone() Availability {
	out := Availability{Location: a.Location}
	if a.Rules != nil {
		out.Rules = make([]AvailabilityRule, len(a.Rules))
		for i, rule := range a.Rules {
			rule.Exceptions = append([]DateException(nil), rule.Exceptions...)
			out.Rules[i] = rule
		}
	}
	if a.Maintenance != nil {
		out.Maintenance = append([]MaintenanceWindow(nil), a.Maintenance...)
	}
	return out
}
