package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ResourceFilter narrows a resource listing. Zero values match everything.
type ResourceFilter struct {
	Type        ResourceType
	Features    []string
	MinCapacity int
}

// Matches reports whether r passes the filter.
func (f ResourceFilter) Matches(r *Resource) bool {
	if f.Type != "" && r.Type() != f.Type {
		return false
	}
	if f.MinCapacity > 0 && r.HasCapacity() && r.Capacity() < f.MinCapacity {
		return false
	}
	return r.HasFeatures(f.Features)
}

// ResourceRepository persists resources together with their availability.
// FindByID returns (nil, nil) when the resource does not exist.
type ResourceRepository interface {
	Save(ctx context.Context, resource *Resource) error
	FindByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	List(ctx context.Context, filter ResourceFilter) ([]*Resource, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InstructorRepository persists instructors.
// FindByID returns (nil, nil) when the instructor does not exist.
type InstructorRepository interface {
	Save(ctx context.Context, instructor *Instructor) error
	FindByID(ctx context.Context, id uuid.UUID) (*Instructor, error)
	List(ctx context.Context) ([]*Instructor, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionRepository persists sessions.
// FindByID returns (nil, nil) when the session does not exist.
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// FindInRange returns sessions whose interval intersects [from, to).
	FindInRange(ctx context.Context, from, to time.Time) ([]*Session, error)
	FindByInstructor(ctx context.Context, instructorID uuid.UUID, from, to time.Time) ([]*Session, error)
	// FindActive returns sessions that are neither cancelled nor completed.
	FindActive(ctx context.Context) ([]*Session, error)
}

// AllocationRepository persists resource allocations.
// FindByID returns (nil, nil) when the allocation does not exist.
type AllocationRepository interface {
	Save(ctx context.Context, allocation *Allocation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)
	// FindByResource returns active allocations of the resource intersecting [from, to).
	FindByResource(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*Allocation, error)
	// FindBySession returns the active allocations of the session.
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*Allocation, error)
}
