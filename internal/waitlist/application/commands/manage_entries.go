package commands

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// RemoveEntryCommand takes an entry off a waitlist.
type RemoveEntryCommand struct {
	ActorID   uuid.UUID
	SessionID uuid.UUID
	EntryID   uuid.UUID
	Reason    string
}

// CommandName implements application.Command.
func (RemoveEntryCommand) CommandName() string { return "waitlist.remove" }

// ReorderWaitlistCommand sets a new queue order. With ByPriority the order
// is derived from entry priorities and Order is ignored.
type ReorderWaitlistCommand struct {
	ActorID    uuid.UUID
	SessionID  uuid.UUID
	Order      []uuid.UUID
	ByPriority bool
}

// CommandName implements application.Command.
func (ReorderWaitlistCommand) CommandName() string { return "waitlist.reorder" }

// ExtendExpiryCommand moves the expiry of a waiting entry.
type ExtendExpiryCommand struct {
	ActorID   uuid.UUID
	SessionID uuid.UUID
	EntryID   uuid.UUID
	Until     time.Time
}

// CommandName implements application.Command.
func (ExtendExpiryCommand) CommandName() string { return "waitlist.extend_expiry" }

// PromoteEntryCommand enrolls a waiting entry by hand.
type PromoteEntryCommand struct {
	ActorID   uuid.UUID
	SessionID uuid.UUID
	EntryID   uuid.UUID
}

// CommandName implements application.Command.
func (PromoteEntryCommand) CommandName() string { return "waitlist.promote" }

// EntryHandler handles the commands that act on waiting entries.
type EntryHandler struct {
	manager *services.Manager
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(manager *services.Manager) *EntryHandler {
	return &EntryHandler{manager: manager}
}

// Remove executes the RemoveEntryCommand.
func (h *EntryHandler) Remove(ctx context.Context, cmd RemoveEntryCommand) error {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "removed"
	}
	return h.manager.Remove(application.WithActor(ctx, cmd.ActorID), cmd.SessionID, cmd.EntryID, reason)
}

// Reorder executes the ReorderWaitlistCommand and returns the new queue.
func (h *EntryHandler) Reorder(ctx context.Context, cmd ReorderWaitlistCommand) ([]*domain.Entry, error) {
	ctx = application.WithActor(ctx, cmd.ActorID)
	if cmd.ByPriority {
		return h.manager.ReorderByPriority(ctx, cmd.SessionID)
	}
	return h.manager.Reorder(ctx, cmd.SessionID, cmd.Order)
}

// ExtendExpiry executes the ExtendExpiryCommand.
func (h *EntryHandler) ExtendExpiry(ctx context.Context, cmd ExtendExpiryCommand) (*domain.Entry, error) {
	return h.manager.ExtendExpiry(application.WithActor(ctx, cmd.ActorID), cmd.SessionID, cmd.EntryID, cmd.Until)
}

// Promote executes the PromoteEntryCommand.
func (h *EntryHandler) Promote(ctx context.Context, cmd PromoteEntryCommand) (*domain.Enrollment, error) {
	return h.manager.Promote(application.WithActor(ctx, cmd.ActorID), cmd.SessionID, cmd.EntryID)
}
