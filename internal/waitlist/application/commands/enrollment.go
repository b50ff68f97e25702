package commands

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// EnrollParticipantCommand seats a participant directly.
type EnrollParticipantCommand struct {
	ActorID       uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
}

// CommandName implements application.Command.
func (EnrollParticipantCommand) CommandName() string { return "waitlist.enroll" }

// EnrollParticipantHandler handles EnrollParticipantCommand.
type EnrollParticipantHandler struct {
	manager *services.Manager
}

// NewEnrollParticipantHandler creates a new EnrollParticipantHandler.
func NewEnrollParticipantHandler(manager *services.Manager) *EnrollParticipantHandler {
	return &EnrollParticipantHandler{manager: manager}
}

// Handle executes the EnrollParticipantCommand.
func (h *EnrollParticipantHandler) Handle(ctx context.Context, cmd EnrollParticipantCommand) (*domain.Enrollment, error) {
	return h.manager.Enroll(application.WithActor(ctx, cmd.ActorID), cmd.SessionID, cmd.ParticipantID)
}

// CancelEnrollmentCommand frees a participant's seat.
type CancelEnrollmentCommand struct {
	ActorID       uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	Reason        string
}

// CommandName implements application.Command.
func (CancelEnrollmentCommand) CommandName() string { return "waitlist.cancel_enrollment" }

// CancelEnrollmentHandler handles CancelEnrollmentCommand.
type CancelEnrollmentHandler struct {
	manager *services.Manager
}

// NewCancelEnrollmentHandler creates a new CancelEnrollmentHandler.
func NewCancelEnrollmentHandler(manager *services.Manager) *CancelEnrollmentHandler {
	return &CancelEnrollmentHandler{manager: manager}
}

// Handle executes the CancelEnrollmentCommand.
func (h *CancelEnrollmentHandler) Handle(ctx context.Context, cmd CancelEnrollmentCommand) (*services.CancellationResult, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "withdrawn"
	}
	return h.manager.CancelEnrollment(application.WithActor(ctx, cmd.ActorID), cmd.SessionID, cmd.ParticipantID, reason)
}
