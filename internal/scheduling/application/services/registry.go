package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// Registry manages the catalogue of resources and instructors.
type Registry struct {
	deps   Deps
	logger *slog.Logger
}

// NewRegistry creates a registry.
func NewRegistry(deps Deps) *Registry {
	deps = deps.withDefaults()
	return &Registry{deps: deps, logger: deps.Logger.With("component", "registry")}
}

// CreateResource registers a resource.
func (r *Registry) CreateResource(ctx context.Context, spec domain.ResourceSpec) (*domain.Resource, error) {
	const op = "registry.create_resource"
	resource, err := domain.NewResource(spec)
	if err != nil {
		return nil, invalid(op, err)
	}
	if err := r.deps.Repos.Resources.Save(ctx, resource); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	r.logger.InfoContext(ctx, "resource created",
		"resource_id", resource.ID(), "type", resource.Type(), "capacity", resource.Capacity())
	return resource, nil
}

// GetResource loads a resource.
func (r *Registry) GetResource(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	resource, err := r.deps.Repos.Resources.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("registry.get_resource: %w", err)
	}
	if resource == nil {
		return nil, sharedDomain.NotFound("registry.get_resource", "resource", id)
	}
	return resource, nil
}

// ListResources returns the resources matching filter.
func (r *Registry) ListResources(ctx context.Context, filter domain.ResourceFilter) ([]*domain.Resource, error) {
	return r.deps.Repos.Resources.List(ctx, filter)
}

// UpdateResource replaces the mutable properties of a resource.
func (r *Registry) UpdateResource(ctx context.Context, id uuid.UUID, spec domain.ResourceSpec) (*domain.Resource, error) {
	const op = "registry.update_resource"
	return r.mutateResource(ctx, op, id, func(resource *domain.Resource) error {
		if err := resource.Update(spec); err != nil {
			return invalid(op, err, id)
		}
		return nil
	})
}

// SetResourceStatus changes the operational state of a resource.
func (r *Registry) SetResourceStatus(ctx context.Context, id uuid.UUID, status domain.ResourceStatus) (*domain.Resource, error) {
	const op = "registry.set_resource_status"
	if !status.Valid() {
		return nil, invalid(op, domain.ErrUnknownStatus, id)
	}
	return r.mutateResource(ctx, op, id, func(resource *domain.Resource) error {
		resource.SetStatus(status)
		return nil
	})
}

// AddMaintenance blocks a resource for a maintenance window.
func (r *Registry) AddMaintenance(ctx context.Context, id uuid.UUID, window domain.MaintenanceWindow) (*domain.Resource, error) {
	const op = "registry.add_maintenance"
	if !window.Interval.End.After(window.Interval.Start) {
		return nil, invalid(op, domain.ErrInvalidInterval, id)
	}
	return r.mutateResource(ctx, op, id, func(resource *domain.Resource) error {
		resource.AddMaintenance(window)
		return nil
	})
}

// RemoveMaintenance deletes a maintenance window.
func (r *Registry) RemoveMaintenance(ctx context.Context, id, windowID uuid.UUID) (*domain.Resource, error) {
	const op = "registry.remove_maintenance"
	return r.mutateResource(ctx, op, id, func(resource *domain.Resource) error {
		if err := resource.RemoveMaintenance(windowID); err != nil {
			return sharedDomain.NewError(sharedDomain.KindNotFound, op, err, id, windowID)
		}
		return nil
	})
}

func (r *Registry) mutateResource(
	ctx context.Context,
	op string,
	id uuid.UUID,
	mutate func(*domain.Resource) error,
) (*domain.Resource, error) {
	unlock, err := r.deps.Locker.Lock(ctx, ResourceKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	resource, err := r.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(resource); err != nil {
		return nil, err
	}
	if err := r.deps.Repos.Resources.Save(ctx, resource); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	return resource, nil
}

// DeleteResource removes a resource. It fails with ResourceInUse while a
// confirmed allocation that has not ended references it.
func (r *Registry) DeleteResource(ctx context.Context, id uuid.UUID) error {
	const op = "registry.delete_resource"
	unlock, err := r.deps.Locker.Lock(ctx, ResourceKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := r.GetResource(ctx, id); err != nil {
		return err
	}

	return application.WithUnitOfWork(ctx, r.deps.UoW, func(txCtx context.Context) error {
		allocations, err := r.deps.Repos.Allocations.FindByResource(txCtx, id, r.deps.Clock(), horizonEnd)
		if err != nil {
			return fmt.Errorf("%s: allocations: %w", op, err)
		}
		for _, a := range allocations {
			if a.Status() == domain.AllocationConfirmed {
				return sharedDomain.NewError(sharedDomain.KindResourceInUse, op,
					fmt.Errorf("confirmed allocation %s until %s", a.ID(), a.Interval().End.Format("2006-01-02 15:04")), id, a.ID())
			}
		}
		if err := r.deps.Repos.Resources.Delete(txCtx, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		r.logger.InfoContext(txCtx, "resource deleted", "resource_id", id)
		return nil
	})
}

// CreateInstructor registers an instructor.
func (r *Registry) CreateInstructor(ctx context.Context, spec domain.InstructorSpec) (*domain.Instructor, error) {
	const op = "registry.create_instructor"
	instructor, err := domain.NewInstructor(spec)
	if err != nil {
		return nil, invalid(op, err)
	}
	if err := r.deps.Repos.Instructors.Save(ctx, instructor); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	r.logger.InfoContext(ctx, "instructor created", "instructor_id", instructor.ID(), "rating", instructor.Rating())
	return instructor, nil
}

// GetInstructor loads an instructor.
func (r *Registry) GetInstructor(ctx context.Context, id uuid.UUID) (*domain.Instructor, error) {
	instructor, err := r.deps.Repos.Instructors.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("registry.get_instructor: %w", err)
	}
	if instructor == nil {
		return nil, sharedDomain.NotFound("registry.get_instructor", "instructor", id)
	}
	return instructor, nil
}

// ListInstructors returns every instructor.
func (r *Registry) ListInstructors(ctx context.Context) ([]*domain.Instructor, error) {
	return r.deps.Repos.Instructors.List(ctx)
}

// UpdateInstructor replaces the mutable properties of an instructor.
func (r *Registry) UpdateInstructor(ctx context.Context, id uuid.UUID, spec domain.InstructorSpec) (*domain.Instructor, error) {
	const op = "registry.update_instructor"
	unlock, err := r.deps.Locker.Lock(ctx, InstructorKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	instructor, err := r.GetInstructor(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := instructor.Update(spec); err != nil {
		return nil, invalid(op, err, id)
	}
	if err := r.deps.Repos.Instructors.Save(ctx, instructor); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	return instructor, nil
}

// DeleteInstructor removes an instructor. It fails with ResourceInUse while an
// active session that has not ended is assigned to the instructor.
func (r *Registry) DeleteInstructor(ctx context.Context, id uuid.UUID) error {
	const op = "registry.delete_instructor"
	unlock, err := r.deps.Locker.Lock(ctx, InstructorKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := r.GetInstructor(ctx, id); err != nil {
		return err
	}
	sessions, err := r.deps.Repos.Sessions.FindByInstructor(ctx, id, r.deps.Clock(), horizonEnd)
	if err != nil {
		return fmt.Errorf("%s: sessions: %w", op, err)
	}
	for _, s := range sessions {
		if s.IsActive() {
			return sharedDomain.NewError(sharedDomain.KindResourceInUse, op,
				fmt.Errorf("assigned to session %s", s.ID()), id, s.ID())
		}
	}
	if err := r.deps.Repos.Instructors.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.logger.InfoContext(ctx, "instructor deleted", "instructor_id", id)
	return nil
}
