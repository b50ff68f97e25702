package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/google/uuid"
)

// InMemoryResourceRepository keeps resources in memory. Stored values are
// cloned on the way in and out so callers never share state.
type InMemoryResourceRepository struct {
	mu        sync.RWMutex
	resources map[uuid.UUID]*domain.Resource
}

// NewInMemoryResourceRepository creates an empty resource repository.
func NewInMemoryResourceRepository() *InMemoryResourceRepository {
	return &InMemoryResourceRepository{resources: make(map[uuid.UUID]*domain.Resource)}
}

func (r *InMemoryResourceRepository) Save(ctx context.Context, resource *domain.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[resource.ID()] = resource.Clone()
	return nil
}

func (r *InMemoryResourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[id]
	if !ok {
		return nil, nil
	}
	return res.Clone(), nil
}

func (r *InMemoryResourceRepository) List(ctx context.Context, filter domain.ResourceFilter) ([]*domain.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Resource, 0, len(r.resources))
	for _, res := range r.resources {
		if filter.Matches(res) {
			out = append(out, res.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func (r *InMemoryResourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resources, id)
	return nil
}

// InMemoryInstructorRepository keeps instructors in memory.
type InMemoryInstructorRepository struct {
	mu          sync.RWMutex
	instructors map[uuid.UUID]*domain.Instructor
}

// NewInMemoryInstructorRepository creates an empty instructor repository.
func NewInMemoryInstructorRepository() *InMemoryInstructorRepository {
	return &InMemoryInstructorRepository{instructors: make(map[uuid.UUID]*domain.Instructor)}
}

func (r *InMemoryInstructorRepository) Save(ctx context.Context, instructor *domain.Instructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instructors[instructor.ID()] = instructor.Clone()
	return nil
}

func (r *InMemoryInstructorRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Instructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instructors[id]
	if !ok {
		return nil, nil
	}
	return inst.Clone(), nil
}

func (r *InMemoryInstructorRepository) List(ctx context.Context) ([]*domain.Instructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Instructor, 0, len(r.instructors))
	for _, inst := range r.instructors {
		out = append(out, inst.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func (r *InMemoryInstructorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instructors, id)
	return nil
}

// InMemorySessionRepository keeps sessions in memory.
type InMemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session
}

// NewInMemorySessionRepository creates an empty session repository.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (r *InMemorySessionRepository) Save(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID()] = session.Clone()
	return nil
}

func (r *InMemorySessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (r *InMemorySessionRepository) FindInRange(ctx context.Context, from, to time.Time) ([]*domain.Session, error) {
	window := domain.Interval{Start: from, End: to}
	return r.collect(func(s *domain.Session) bool { return s.Interval().Overlaps(window) }), nil
}

func (r *InMemorySessionRepository) FindByInstructor(ctx context.Context, instructorID uuid.UUID, from, to time.Time) ([]*domain.Session, error) {
	window := domain.Interval{Start: from, End: to}
	return r.collect(func(s *domain.Session) bool {
		return s.InstructorID() == instructorID && s.Interval().Overlaps(window)
	}), nil
}

func (r *InMemorySessionRepository) FindActive(ctx context.Context) ([]*domain.Session, error) {
	return r.collect(func(s *domain.Session) bool { return s.IsActive() }), nil
}

func (r *InMemorySessionRepository) collect(keep func(*domain.Session) bool) []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Interval().Start.Equal(out[j].Interval().Start) {
			return out[i].Interval().Start.Before(out[j].Interval().Start)
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out
}

// InMemoryAllocationRepository keeps allocations in memory.
type InMemoryAllocationRepository struct {
	mu          sync.RWMutex
	allocations map[uuid.UUID]*domain.Allocation
}

// NewInMemoryAllocationRepository creates an empty allocation repository.
func NewInMemoryAllocationRepository() *InMemoryAllocationRepository {
	return &InMemoryAllocationRepository{allocations: make(map[uuid.UUID]*domain.Allocation)}
}

func (r *InMemoryAllocationRepository) Save(ctx context.Context, allocation *domain.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations[allocation.ID()] = allocation.Clone()
	return nil
}

func (r *InMemoryAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Allocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.allocations[id]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

func (r *InMemoryAllocationRepository) FindByResource(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*domain.Allocation, error) {
	window := domain.Interval{Start: from, End: to}
	return r.collect(func(a *domain.Allocation) bool {
		return a.ResourceID() == resourceID && a.IsActive() && a.Interval().Overlaps(window)
	}), nil
}

func (r *InMemoryAllocationRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Allocation, error) {
	return r.collect(func(a *domain.Allocation) bool {
		return a.SessionID() == sessionID && a.IsActive()
	}), nil
}

func (r *InMemoryAllocationRepository) collect(keep func(*domain.Allocation) bool) []*domain.Allocation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Allocation
	for _, a := range r.allocations {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Interval().Start.Equal(out[j].Interval().Start) {
			return out[i].Interval().Start.Before(out[j].Interval().Start)
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out
}
