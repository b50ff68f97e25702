package commands

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/google/uuid"
)

// CancelSessionCommand cancels a session and frees what it holds.
type CancelSessionCommand struct {
	ActorID   uuid.UUID
	SessionID uuid.UUID
	Reason    string
}

// CommandName implements application.Command.
func (CancelSessionCommand) CommandName() string { return "scheduling.cancel_session" }

// CancelSessionHandler handles CancelSessionCommand.
type CancelSessionHandler struct {
	sessions *services.SessionService
}

// NewCancelSessionHandler creates a new CancelSessionHandler.
func NewCancelSessionHandler(sessions *services.SessionService) *CancelSessionHandler {
	return &CancelSessionHandler{sessions: sessions}
}

// Handle executes the CancelSessionCommand.
func (h *CancelSessionHandler) Handle(ctx context.Context, cmd CancelSessionCommand) (*domain.Session, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "cancelled"
	}
	return h.sessions.CancelSession(sharedApplication.WithActor(ctx, cmd.ActorID), cmd.SessionID, reason)
}
