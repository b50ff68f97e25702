package commands

import (
	"context"

	"github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/google/uuid"
)

// ProcessWaitlistsCommand runs reconciliation now, for one session or for
// every session with someone waiting.
type ProcessWaitlistsCommand struct {
	ActorID   uuid.UUID
	SessionID uuid.UUID
}

// CommandName implements application.Command.
func (ProcessWaitlistsCommand) CommandName() string { return "waitlist.process" }

// ProcessWaitlistsHandler handles ProcessWaitlistsCommand.
type ProcessWaitlistsHandler struct {
	manager *services.Manager
}

// NewProcessWaitlistsHandler creates a new ProcessWaitlistsHandler.
func NewProcessWaitlistsHandler(manager *services.Manager) *ProcessWaitlistsHandler {
	return &ProcessWaitlistsHandler{manager: manager}
}

// Handle executes the ProcessWaitlistsCommand.
func (h *ProcessWaitlistsHandler) Handle(ctx context.Context, cmd ProcessWaitlistsCommand) (*services.SweepResult, error) {
	ctx = application.WithActor(ctx, cmd.ActorID)
	if cmd.SessionID == uuid.Nil {
		return h.manager.ProcessAll(ctx)
	}
	result, err := h.manager.ProcessSession(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	return &services.SweepResult{Sessions: []*services.ProcessResult{result}}, nil
}
