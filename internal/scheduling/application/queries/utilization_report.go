package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/google/uuid"
)

// UtilizationReportQuery asks how busy a resource was over a range.
type UtilizationReportQuery struct {
	ResourceID uuid.UUID
	From       time.Time
	To         time.Time
}

// QueryName implements application.Query.
func (UtilizationReportQuery) QueryName() string { return "scheduling.utilization_report" }

// HourUsage is one non-empty cell of the weekday by hour histogram. Share
// is relative to the busiest cell, which has 1.
type HourUsage struct {
	Weekday string  `json:"weekday"`
	Hour    int     `json:"hour"`
	Share   float64 `json:"share"`
}

// UtilizationDTO is the read model of a utilization report.
type UtilizationDTO struct {
	ResourceID     uuid.UUID   `json:"resource_id"`
	From           time.Time   `json:"from"`
	To             time.Time   `json:"to"`
	AvailableHours float64     `json:"available_hours"`
	BookedHours    float64     `json:"booked_hours"`
	Percentage     float64     `json:"percentage"`
	PeakWeekday    string      `json:"peak_weekday,omitempty"`
	PeakHour       *int        `json:"peak_hour,omitempty"`
	Usage          []HourUsage `json:"usage"`
}

// UtilizationReportHandler handles UtilizationReportQuery.
type UtilizationReportHandler struct {
	ledger *services.Ledger
}

// NewUtilizationReportHandler creates a new UtilizationReportHandler.
func NewUtilizationReportHandler(ledger *services.Ledger) *UtilizationReportHandler {
	return &UtilizationReportHandler{ledger: ledger}
}

// Handle executes the UtilizationReportQuery.
func (h *UtilizationReportHandler) Handle(ctx context.Context, query UtilizationReportQuery) (*UtilizationDTO, error) {
	report, err := h.ledger.Utilization(ctx, query.ResourceID, query.From, query.To)
	if err != nil {
		return nil, err
	}
	dto := &UtilizationDTO{
		ResourceID:     report.ResourceID,
		From:           report.From,
		To:             report.To,
		AvailableHours: report.AvailableHours,
		BookedHours:    report.BookedHours,
		Percentage:     report.Percentage,
		Usage:          []HourUsage{},
	}
	for day := range report.Histogram {
		for hour, share := range report.Histogram[day] {
			if share > 0 {
				dto.Usage = append(dto.Usage, HourUsage{Weekday: time.Weekday(day).String(), Hour: hour, Share: share})
			}
		}
	}
	if report.BookedHours > 0 {
		hour := report.PeakHour
		dto.PeakWeekday = report.PeakWeekday.String()
		dto.PeakHour = &hour
	}
	return dto, nil
}
