package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// DetectConflictsQuery checks a set of sessions against each other. Either
// SessionIDs or a From/To range selects the sessions.
type DetectConflictsQuery struct {
	SessionIDs []uuid.UUID
	From       time.Time
	To         time.Time
	// Record stores the findings in the conflict log so they can be
	// resolved by id.
	Record bool
}

// QueryName implements application.Query.
func (DetectConflictsQuery) QueryName() string { return "scheduling.detect_conflicts" }

// DetectConflictsHandler handles DetectConflictsQuery.
type DetectConflictsHandler struct {
	sessions domain.SessionRepository
	detector *services.ConflictDetector
	log      services.ConflictLog
}

// NewDetectConflictsHandler creates a new DetectConflictsHandler. log may be
// nil when findings are never recorded.
func NewDetectConflictsHandler(
	sessions domain.SessionRepository,
	detector *services.ConflictDetector,
	log services.ConflictLog,
) *DetectConflictsHandler {
	return &DetectConflictsHandler{sessions: sessions, detector: detector, log: log}
}

// Handle executes the DetectConflictsQuery.
func (h *DetectConflictsHandler) Handle(ctx context.Context, query DetectConflictsQuery) ([]ConflictDTO, error) {
	const op = "query.detect_conflicts"
	selected, err := h.selectSessions(ctx, op, query)
	if err != nil {
		return nil, err
	}
	conflicts, err := h.detector.Detect(ctx, selected)
	if err != nil {
		return nil, err
	}
	if query.Record && h.log != nil && len(conflicts) > 0 {
		if err := h.log.Put(ctx, conflicts...); err != nil {
			return nil, fmt.Errorf("%s: record: %w", op, err)
		}
	}
	return toConflictDTOs(conflicts), nil
}

func (h *DetectConflictsHandler) selectSessions(ctx context.Context, op string, query DetectConflictsQuery) ([]*domain.Session, error) {
	if len(query.SessionIDs) == 0 {
		if !query.To.After(query.From) {
			return nil, sharedDomain.InvalidRequest(op, "either session ids or a range is required")
		}
		sessions, err := h.sessions.FindInRange(ctx, query.From, query.To)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return sessions, nil
	}

	sessions := make([]*domain.Session, 0, len(query.SessionIDs))
	for _, id := range query.SessionIDs {
		session, err := h.sessions.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if session == nil {
			return nil, sharedDomain.NotFound(op, "session", id)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
