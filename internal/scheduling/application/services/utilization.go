package services

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// UsageHistogram holds booked hours per weekday and hour of day, normalised
// against the busiest bucket so the peak is 1.
type UsageHistogram [7][24]float64

// UtilizationReport summarises how much of a resource's bookable time is used.
type UtilizationReport struct {
	ResourceID     uuid.UUID
	From           time.Time
	To             time.Time
	AvailableHours float64
	BookedHours    float64
	Percentage     float64
	Histogram      UsageHistogram
	PeakWeekday    time.Weekday
	PeakHour       int
}

// Utilization reports bookable against booked hours of a resource in [from, to).
// Booked hours come from confirmed allocations clipped to the range.
func (l *Ledger) Utilization(ctx context.Context, resourceID uuid.UUID, from, to time.Time) (*UtilizationReport, error) {
	const op = "ledger.utilization"
	if !to.After(from) {
		return nil, sharedDomain.InvalidRequest(op, "range end must be after start")
	}
	resource, err := l.deps.Repos.Resources.FindByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resource == nil {
		return nil, sharedDomain.NotFound(op, "resource", resourceID)
	}
	allocations, err := l.deps.Repos.Allocations.FindByResource(ctx, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: allocations: %w", op, err)
	}

	availability := resource.Availability()
	loc := availability.Location
	if loc == nil {
		loc = time.UTC
	}
	window := domain.Interval{Start: from, End: to}

	report := &UtilizationReport{
		ResourceID:     resourceID,
		From:           from,
		To:             to,
		AvailableHours: availability.AvailableHours(from, to),
	}

	var raw UsageHistogram
	booked := time.Duration(0)
	for _, a := range allocations {
		if a.Status() != domain.AllocationConfirmed {
			continue
		}
		clipped, ok := a.Interval().Intersect(window)
		if !ok {
			continue
		}
		booked += clipped.Duration()
		addToHistogram(&raw, clipped, loc)
	}
	report.BookedHours = booked.Hours()
	if report.AvailableHours > 0 {
		report.Percentage = report.BookedHours / report.AvailableHours * 100
	}

	peak := 0.0
	for d := range raw {
		for h := range raw[d] {
			if raw[d][h] > peak {
				peak = raw[d][h]
				report.PeakWeekday = time.Weekday(d)
				report.PeakHour = h
			}
		}
	}
	if peak > 0 {
		for d := range raw {
			for h := range raw[d] {
				report.Histogram[d][h] = raw[d][h] / peak
			}
		}
	}
	return report, nil
}

// addToHistogram spreads iv over the hour buckets it touches, in hours.
func addToHistogram(h *UsageHistogram, iv domain.Interval, loc *time.Location) {
	start := iv.Start.In(loc)
	end := iv.End.In(loc)
	for cursor := start; cursor.Before(end); {
		next := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), cursor.Hour()+1, 0, 0, 0, loc)
		if next.After(end) {
			next = end
		}
		h[cursor.Weekday()][cursor.Hour()] += next.Sub(cursor).Hours()
		cursor = next
	}
}
