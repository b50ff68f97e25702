package commands

import (
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
)

var (
	_ sharedApplication.CommandHandler[ScheduleSessionCommand, *services.OptimizationResult]   = (*ScheduleSessionHandler)(nil)
	_ sharedApplication.CommandHandler[RescheduleSessionCommand, *services.OptimizationResult] = (*RescheduleSessionHandler)(nil)
	_ sharedApplication.CommandHandler[ResolveConflictCommand, *services.ResolutionOutcome]    = (*ResolveConflictHandler)(nil)
	_ sharedApplication.CommandHandler[CancelSessionCommand, *domain.Session]                  = (*CancelSessionHandler)(nil)
	_ sharedApplication.CommandHandler[AllocateResourceCommand, *domain.Allocation]            = (*AllocateResourceHandler)(nil)
	_ sharedApplication.CommandHandler[ReleaseAllocationCommand, *ReleaseAllocationResult]     = (*ReleaseAllocationHandler)(nil)
)
