package queries

import (
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/google/uuid"
)

// ConflictDTO is the read model of a scheduling conflict.
type ConflictDTO struct {
	ID           uuid.UUID   `json:"id"`
	Type         string      `json:"type"`
	Severity     string      `json:"severity"`
	SessionIDs   []uuid.UUID `json:"session_ids"`
	ResourceIDs  []uuid.UUID `json:"resource_ids,omitempty"`
	InstructorID *uuid.UUID  `json:"instructor_id,omitempty"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Description  string      `json:"description"`
	Resolutions  []string    `json:"resolutions"`
	DetectedAt   time.Time   `json:"detected_at"`
	ResolvedAt   *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy   string      `json:"resolved_by,omitempty"`
}

func toConflictDTO(c *domain.SchedulingConflict) ConflictDTO {
	dto := ConflictDTO{
		ID:          c.ID(),
		Type:        string(c.Type()),
		Severity:    string(c.Severity()),
		SessionIDs:  c.SessionIDs(),
		ResourceIDs: c.ResourceIDs(),
		Start:       c.Interval().Start,
		End:         c.Interval().End,
		Description: c.Description(),
		DetectedAt:  c.DetectedAt(),
		ResolvedAt:  c.ResolvedAt(),
		ResolvedBy:  string(c.ResolvedBy()),
	}
	if id := c.InstructorID(); id != uuid.Nil {
		dto.InstructorID = &id
	}
	dto.Resolutions = make([]string, 0, len(c.Resolutions()))
	for _, r := range c.Resolutions() {
		dto.Resolutions = append(dto.Resolutions, string(r))
	}
	return dto
}

func toConflictDTOs(conflicts []*domain.SchedulingConflict) []ConflictDTO {
	out := make([]ConflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, toConflictDTO(c))
	}
	return out
}
