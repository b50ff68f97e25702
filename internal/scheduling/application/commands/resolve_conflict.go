package commands

import (
	"context"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/google/uuid"
)

// ResolveConflictCommand applies a strategy to a logged conflict. An empty
// Strategy uses the first candidate resolution of the conflict type.
type ResolveConflictCommand struct {
	ActorID    uuid.UUID
	ConflictID uuid.UUID
	Strategy   domain.ResolutionType
}

// CommandName implements application.Command.
func (ResolveConflictCommand) CommandName() string { return "scheduling.resolve_conflict" }

// ResolveConflictHandler handles ResolveConflictCommand.
type ResolveConflictHandler struct {
	resolver *services.ConflictResolver
}

// NewResolveConflictHandler creates a new ResolveConflictHandler.
func NewResolveConflictHandler(resolver *services.ConflictResolver) *ResolveConflictHandler {
	return &ResolveConflictHandler{resolver: resolver}
}

// Handle executes the ResolveConflictCommand.
func (h *ResolveConflictHandler) Handle(ctx context.Context, cmd ResolveConflictCommand) (*services.ResolutionOutcome, error) {
	return h.resolver.ResolveByID(sharedApplication.WithActor(ctx, cmd.ActorID), cmd.ConflictID, cmd.Strategy)
}
