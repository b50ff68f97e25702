package domain

import (
	"errors"
	"sort"
	"time"
)

var ErrInvalidInterval = errors.New("interval end must be after start")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval creates an interval, rejecting empty or inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

// IntervalOf creates an interval starting at start with the given duration.
func IntervalOf(start time.Time, d time.Duration) Interval {
	return Interval{Start: start, End: start.Add(d)}
}

// Overlaps checks if two intervals share any instant. Touching intervals do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether other lies entirely inside i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// GapTo returns the time between the end of i and the start of next.
// A negative gap means the two overlap.
func (i Interval) GapTo(next Interval) time.Duration {
	return next.Start.Sub(i.End)
}

// Intersect returns the overlapping part of both intervals.
func (i Interval) Intersect(other Interval) (Interval, bool) {
	if !i.Overlaps(other) {
		return Interval{}, false
	}
	start := i.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := i.End
	if other.End.Before(end) {
		end = other.End
	}
	return Interval{Start: start, End: end}, true
}

// IsZero reports whether the interval is unset.
func (i Interval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

// subtract removes every cut from spans and returns what remains.
func subtract(spans []Interval, cuts []Interval) []Interval {
	out := spans
	for _, cut := range cuts {
		next := make([]Interval, 0, len(out))
		for _, span := range out {
			if !span.Overlaps(cut) {
				next = append(next, span)
				continue
			}
			if span.Start.Before(cut.Start) {
				next = append(next, Interval{Start: span.Start, End: cut.Start})
			}
			if cut.End.Before(span.End) {
				next = append(next, Interval{Start: cut.End, End: span.End})
			}
		}
		out = next
	}
	return out
}

// merge sorts spans and joins the ones that overlap or touch.
func merge(spans []Interval) []Interval {
	if len(spans) < 2 {
		return spans
	}
	sorted := make([]Interval, len(spans))
	copy(sorted, spans)
	sortIntervals(sorted)

	out := []Interval{sorted[0]}
	for _, span := range sorted[1:] {
		last := &out[len(out)-1]
		if !span.Start.After(last.End) {
			if span.End.After(last.End) {
				last.End = span.End
			}
			continue
		}
		out = append(out, span)
	}
	return out
}

func sortIntervals(spans []Interval) {
	sort.Slice(spans, func(a, b int) bool { return spans[a].Start.Before(spans[b].Start) })
}
