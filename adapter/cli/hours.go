package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/catalog"
)

// DefaultHours is used when no --hours flag is given.
const DefaultHours = "mon-fri=09:00-17:00"

// ParseHours parses weekly opening rules of the form "mon-fri=09:00-17:00"
// or "mon,wed=13:00-18:00".
func ParseHours(values []string) ([]domain.AvailabilityRule, error) {
	var rules []domain.AvailabilityRule
	for _, v := range values {
		daysPart, timesPart, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid hours %q, use DAYS=HH:MM-HH:MM", v)
		}
		days, err := ParseDays(daysPart)
		if err != nil {
			return nil, fmt.Errorf("invalid hours %q: %w", v, err)
		}
		startPart, endPart, ok := strings.Cut(timesPart, "-")
		if !ok {
			return nil, fmt.Errorf("invalid hours %q, use DAYS=HH:MM-HH:MM", v)
		}
		start, err := domain.ParseTimeOfDay(startPart)
		if err != nil {
			return nil, err
		}
		end, err := domain.ParseTimeOfDay(endPart)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("invalid hours %q: end must be after start", v)
		}
		rules = append(rules, domain.WeeklyRules(start, end, days...)...)
	}
	return rules, nil
}

// ParseDays parses day lists such as "mon-fri" or "tue,thu".
func ParseDays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		from, to, isRange := strings.Cut(part, "-")
		first, err := catalog.ParseWeekday(from)
		if err != nil {
			return nil, err
		}
		if !isRange {
			days = append(days, first)
			continue
		}
		last, err := catalog.ParseWeekday(to)
		if err != nil {
			return nil, err
		}
		for d := first; ; d = (d + 1) % 7 {
			days = append(days, d)
			if d == last {
				break
			}
		}
	}
	return days, nil
}

// LoadLocation resolves a timezone flag, defaulting to UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
