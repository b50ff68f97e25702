package queries

import (
	"context"

	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// GetWaitlistQuery reads a session's waitlist. Entries are the waiting ones
// in queue order unless IncludeClosed adds the promoted, expired and removed
// ones after them.
type GetWaitlistQuery struct {
	SessionID          uuid.UUID
	IncludeClosed      bool
	IncludeEnrollments bool
}

// QueryName implements application.Query.
func (GetWaitlistQuery) QueryName() string { return "waitlist.get" }

// GetWaitlistHandler handles GetWaitlistQuery.
type GetWaitlistHandler struct {
	manager *services.Manager
}

// NewGetWaitlistHandler creates a new GetWaitlistHandler.
func NewGetWaitlistHandler(manager *services.Manager) *GetWaitlistHandler {
	return &GetWaitlistHandler{manager: manager}
}

// Handle executes the GetWaitlistQuery.
func (h *GetWaitlistHandler) Handle(ctx context.Context, query GetWaitlistQuery) (*WaitlistDTO, error) {
	roster, err := h.manager.Roster(ctx, query.SessionID)
	if err != nil {
		return nil, err
	}
	dto := &WaitlistDTO{
		SessionID:  roster.SessionID(),
		Enrolled:   roster.EnrolledCount(),
		Waitlisted: roster.WaitlistedCount(),
		Entries:    make([]EntryDTO, 0, len(roster.Entries())),
	}
	for _, e := range roster.Waiting() {
		dto.Entries = append(dto.Entries, toEntryDTO(e))
	}
	if query.IncludeClosed {
		for _, e := range roster.Entries() {
			if e.Status() != domain.EntryAdded {
				dto.Entries = append(dto.Entries, toEntryDTO(e))
			}
		}
	}
	if query.IncludeEnrollments {
		for _, e := range roster.Enrollments() {
			dto.Enrollments = append(dto.Enrollments, toEnrollmentDTO(e))
		}
	}
	return dto, nil
}
