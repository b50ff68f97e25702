package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/google/uuid"
)

// AllocateResourceCommand books a resource for a session interval. With Hold
// set the allocation stays pending until confirmed.
type AllocateResourceCommand struct {
	ActorID    uuid.UUID
	ResourceID uuid.UUID
	SessionID  uuid.UUID
	Start      time.Time
	End        time.Time
	Notes      string
	Hold       bool
}

// CommandName implements application.Command.
func (AllocateResourceCommand) CommandName() string { return "scheduling.allocate_resource" }

// AllocateResourceHandler handles AllocateResourceCommand.
type AllocateResourceHandler struct {
	ledger *services.Ledger
}

// NewAllocateResourceHandler creates a new AllocateResourceHandler.
func NewAllocateResourceHandler(ledger *services.Ledger) *AllocateResourceHandler {
	return &AllocateResourceHandler{ledger: ledger}
}

// Handle executes the AllocateResourceCommand.
func (h *AllocateResourceHandler) Handle(ctx context.Context, cmd AllocateResourceCommand) (*domain.Allocation, error) {
	ctx = sharedApplication.WithActor(ctx, cmd.ActorID)
	iv := domain.Interval{Start: cmd.Start, End: cmd.End}
	if cmd.Hold {
		return h.ledger.Reserve(ctx, cmd.ResourceID, cmd.SessionID, iv, cmd.Notes)
	}
	return h.ledger.Allocate(ctx, cmd.ResourceID, cmd.SessionID, iv, cmd.Notes)
}

// ReleaseAllocationCommand frees one allocation.
type ReleaseAllocationCommand struct {
	ActorID      uuid.UUID
	AllocationID uuid.UUID
	Reason       string
}

// CommandName implements application.Command.
func (ReleaseAllocationCommand) CommandName() string { return "scheduling.release_allocation" }

// ReleaseAllocationResult reports whether the call changed anything.
type ReleaseAllocationResult struct {
	AllocationID uuid.UUID
	Released     bool
}

// ReleaseAllocationHandler handles ReleaseAllocationCommand.
type ReleaseAllocationHandler struct {
	ledger *services.Ledger
}

// NewReleaseAllocationHandler creates a new ReleaseAllocationHandler.
func NewReleaseAllocationHandler(ledger *services.Ledger) *ReleaseAllocationHandler {
	return &ReleaseAllocationHandler{ledger: ledger}
}

// Handle executes the ReleaseAllocationCommand. Releasing twice succeeds
// with Released false.
func (h *ReleaseAllocationHandler) Handle(ctx context.Context, cmd ReleaseAllocationCommand) (*ReleaseAllocationResult, error) {
	released, err := h.ledger.Release(sharedApplication.WithActor(ctx, cmd.ActorID), cmd.AllocationID, cmd.Reason)
	if err != nil {
		return nil, err
	}
	return &ReleaseAllocationResult{AllocationID: cmd.AllocationID, Released: released}, nil
}
