package commands

import (
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
)

// The entry commands share EntryHandler, which has one method per command.
var (
	_ application.CommandHandler[AddToWaitlistCommand, *domain.Entry]                   = (*AddToWaitlistHandler)(nil)
	_ application.CommandHandler[ProcessWaitlistsCommand, *services.SweepResult]        = (*ProcessWaitlistsHandler)(nil)
	_ application.CommandHandler[EnrollParticipantCommand, *domain.Enrollment]          = (*EnrollParticipantHandler)(nil)
	_ application.CommandHandler[CancelEnrollmentCommand, *services.CancellationResult] = (*CancelEnrollmentHandler)(nil)

	_ application.Command = RemoveEntryCommand{}
	_ application.Command = ReorderWaitlistCommand{}
	_ application.Command = ExtendExpiryCommand{}
	_ application.Command = PromoteEntryCommand{}
)
