package cli

import (
	"context"

	"github.com/google/uuid"

	internalApp "github.com/felixgeelhaar/cohort/internal/app"
	schedulingCommands "github.com/felixgeelhaar/cohort/internal/scheduling/application/commands"
	schedulingQueries "github.com/felixgeelhaar/cohort/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/catalog"
	waitlistCommands "github.com/felixgeelhaar/cohort/internal/waitlist/application/commands"
	waitlistQueries "github.com/felixgeelhaar/cohort/internal/waitlist/application/queries"
	"github.com/felixgeelhaar/cohort/pkg/observability"
)

// App holds the CLI application dependencies.
type App struct {
	// Catalog services
	Registry *services.Registry
	Sessions *services.SessionService
	Ledger   *services.Ledger
	Audit    *services.ConflictAudit
	Importer *catalog.Importer
	Health   *observability.HealthRegistry

	// Scheduling Command Handlers
	ScheduleSessionHandler   *schedulingCommands.ScheduleSessionHandler
	RescheduleSessionHandler *schedulingCommands.RescheduleSessionHandler
	CancelSessionHandler     *schedulingCommands.CancelSessionHandler
	AllocateResourceHandler  *schedulingCommands.AllocateResourceHandler
	ReleaseAllocationHandler *schedulingCommands.ReleaseAllocationHandler
	ResolveConflictHandler   *schedulingCommands.ResolveConflictHandler

	// Scheduling Query Handlers
	DetectConflictsHandler   *schedulingQueries.DetectConflictsHandler
	ListConflictsHandler     *schedulingQueries.ListConflictsHandler
	UtilizationReportHandler *schedulingQueries.UtilizationReportHandler

	// Waitlist Handlers
	AddToWaitlistHandler     *waitlistCommands.AddToWaitlistHandler
	EnrollParticipantHandler *waitlistCommands.EnrollParticipantHandler
	CancelEnrollmentHandler  *waitlistCommands.CancelEnrollmentHandler
	EntryHandler             *waitlistCommands.EntryHandler
	ProcessWaitlistsHandler  *waitlistCommands.ProcessWaitlistsHandler
	GetWaitlistHandler       *waitlistQueries.GetWaitlistHandler

	// ActorID is recorded on the events of every command
	ActorID uuid.UUID

	flush func(ctx context.Context) error
}

// NewApp creates a new CLI application over a wired container.
func NewApp(c *internalApp.Container) *App {
	return &App{
		Registry:                 c.Registry,
		Sessions:                 c.Sessions,
		Ledger:                   c.Ledger,
		Audit:                    c.Audit,
		Importer:                 catalog.NewImporter(c.Registry, c.Sessions, c.Engine, c.Logger),
		Health:                   c.Health,
		ScheduleSessionHandler:   c.ScheduleSessionHandler,
		RescheduleSessionHandler: c.RescheduleSessionHandler,
		CancelSessionHandler:     c.CancelSessionHandler,
		AllocateResourceHandler:  c.AllocateResourceHandler,
		ReleaseAllocationHandler: c.ReleaseAllocationHandler,
		ResolveConflictHandler:   c.ResolveConflictHandler,
		DetectConflictsHandler:   c.DetectConflictsHandler,
		ListConflictsHandler:     c.ListConflictsHandler,
		UtilizationReportHandler: c.UtilizationReportHandler,
		AddToWaitlistHandler:     c.AddToWaitlistHandler,
		EnrollParticipantHandler: c.EnrollParticipantHandler,
		CancelEnrollmentHandler:  c.CancelEnrollmentHandler,
		EntryHandler:             c.EntryHandler,
		ProcessWaitlistsHandler:  c.ProcessWaitlistsHandler,
		GetWaitlistHandler:       c.GetWaitlistHandler,
		flush:                    c.FlushEvents,
	}
}

// SetActorID updates the actor recorded on events.
func (a *App) SetActorID(id uuid.UUID) {
	a.ActorID = id
}

// FlushEvents relays events still waiting in the outbox.
func (a *App) FlushEvents(ctx context.Context) error {
	if a.flush == nil {
		return nil
	}
	return a.flush(ctx)
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}
