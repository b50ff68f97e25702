package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
)

// horizonEnd bounds open-ended "from now on" queries.
var horizonEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Repositories bundles the scheduling stores.
type Repositories struct {
	Resources   domain.ResourceRepository
	Instructors domain.InstructorRepository
	Sessions    domain.SessionRepository
	Allocations domain.AllocationRepository
}

// Deps are the collaborators shared by the scheduling services.
type Deps struct {
	Repos  Repositories
	Locker KeyedLocker
	UoW    application.UnitOfWork
	Events application.EventDispatcher
	Clock  Clock
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = NewMemoryLocker()
	}
	if d.UoW == nil {
		d.UoW = application.NoopUnitOfWork{}
	}
	if d.Events == nil {
		d.Events = &application.CollectingDispatcher{}
	}
	if d.Clock == nil {
		d.Clock = systemClock
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// eventSource is an aggregate that records domain events.
type eventSource interface {
	PullDomainEvents() []sharedDomain.DomainEvent
}

// dispatch hands the pending events of every source to the dispatcher,
// stamped with the metadata carried by ctx.
func (d Deps) dispatch(ctx context.Context, sources ...eventSource) error {
	var events []sharedDomain.DomainEvent
	for _, s := range sources {
		events = append(events, s.PullDomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}
	if metadata, ok := application.EventMetadataFromContext(ctx); ok {
		application.ApplyEventMetadata(events, metadata)
	}
	return d.Events.Dispatch(ctx, events...)
}

