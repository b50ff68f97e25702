package commands

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/google/uuid"
)

// ScheduleSessionCommand asks the optimizer to place a session.
type ScheduleSessionCommand struct {
	ActorID uuid.UUID
	Request domain.SchedulingRequest
}

// CommandName implements application.Command.
func (ScheduleSessionCommand) CommandName() string { return "scheduling.schedule_session" }

// ScheduleSessionHandler handles ScheduleSessionCommand.
type ScheduleSessionHandler struct {
	engine *services.OptimizationEngine
	logger *slog.Logger
}

// NewScheduleSessionHandler creates a new ScheduleSessionHandler.
func NewScheduleSessionHandler(engine *services.OptimizationEngine, logger *slog.Logger) *ScheduleSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleSessionHandler{engine: engine, logger: logger}
}

// Handle runs the optimizer. When nothing viable is found the result is
// returned together with an Unresolvable error so callers can show the
// alternatives.
func (h *ScheduleSessionHandler) Handle(ctx context.Context, cmd ScheduleSessionCommand) (*services.OptimizationResult, error) {
	ctx = sharedApplication.WithActor(ctx, cmd.ActorID)
	result, err := h.engine.Optimize(ctx, cmd.Request)
	if err != nil {
		return result, err
	}
	if !result.Success {
		h.logger.InfoContext(ctx, "session left unscheduled",
			"session_id", cmd.Request.SessionID,
			"alternatives", len(result.Alternatives),
			"conflicts", len(result.Conflicts),
		)
	}
	return result, nil
}

// RescheduleSessionCommand re-runs the optimizer with the request stored on
// a placed session.
type RescheduleSessionCommand struct {
	ActorID   uuid.UUID
	SessionID uuid.UUID
}

// CommandName implements application.Command.
func (RescheduleSessionCommand) CommandName() string { return "scheduling.reschedule_session" }

// RescheduleSessionHandler handles RescheduleSessionCommand.
type RescheduleSessionHandler struct {
	engine *services.OptimizationEngine
}

// NewRescheduleSessionHandler creates a new RescheduleSessionHandler.
func NewRescheduleSessionHandler(engine *services.OptimizationEngine) *RescheduleSessionHandler {
	return &RescheduleSessionHandler{engine: engine}
}

// Handle executes the RescheduleSessionCommand.
func (h *RescheduleSessionHandler) Handle(ctx context.Context, cmd RescheduleSessionCommand) (*services.OptimizationResult, error) {
	return h.engine.Reschedule(sharedApplication.WithActor(ctx, cmd.ActorID), cmd.SessionID)
}
