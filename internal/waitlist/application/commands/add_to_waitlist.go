package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// AddToWaitlistCommand queues a requester for a full session.
type AddToWaitlistCommand struct {
	ActorID     uuid.UUID
	SessionID   uuid.UUID
	RequesterID uuid.UUID
	Priority    string
	AutoEnroll  bool
	ExpiresAt   *time.Time
}

// CommandName implements application.Command.
func (AddToWaitlistCommand) CommandName() string { return "waitlist.add" }

// AddToWaitlistHandler handles AddToWaitlistCommand.
type AddToWaitlistHandler struct {
	manager *services.Manager
}

// NewAddToWaitlistHandler creates a new AddToWaitlistHandler.
func NewAddToWaitlistHandler(manager *services.Manager) *AddToWaitlistHandler {
	return &AddToWaitlistHandler{manager: manager}
}

// Handle executes the AddToWaitlistCommand.
func (h *AddToWaitlistHandler) Handle(ctx context.Context, cmd AddToWaitlistCommand) (*domain.Entry, error) {
	return h.manager.Add(application.WithActor(ctx, cmd.ActorID), services.AddRequest{
		SessionID:   cmd.SessionID,
		RequesterID: cmd.RequesterID,
		Priority:    cmd.Priority,
		AutoEnroll:  cmd.AutoEnroll,
		ExpiresAt:   cmd.ExpiresAt,
	})
}
