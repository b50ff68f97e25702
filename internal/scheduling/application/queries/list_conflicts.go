package queries

import (
	"context"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/google/uuid"
)

// ListConflictsQuery lists logged conflicts, optionally only unresolved ones
// or those touching one session.
type ListConflictsQuery struct {
	OpenOnly  bool
	SessionID uuid.UUID
}

// QueryName implements application.Query.
func (ListConflictsQuery) QueryName() string { return "scheduling.list_conflicts" }

// ListConflictsHandler handles ListConflictsQuery.
type ListConflictsHandler struct {
	log services.ConflictLog
}

// NewListConflictsHandler creates a new ListConflictsHandler.
func NewListConflictsHandler(log services.ConflictLog) *ListConflictsHandler {
	return &ListConflictsHandler{log: log}
}

// Handle executes the ListConflictsQuery. The log's severity ordering is kept.
func (h *ListConflictsHandler) Handle(ctx context.Context, query ListConflictsQuery) ([]ConflictDTO, error) {
	conflicts, err := h.log.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ConflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		if query.OpenOnly && c.IsResolved() {
			continue
		}
		if query.SessionID != uuid.Nil && !c.Involves(query.SessionID) {
			continue
		}
		out = append(out, toConflictDTO(c))
	}
	return out, nil
}
