package domain

import (
	"errors"
	"sort"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrResourceNameRequired = errors.New("resource name is required")
	ErrUnknownResourceType  = errors.New("unknown resource type")
	ErrUnknownStatus        = errors.New("unknown resource status")
	ErrNegativeCapacity     = errors.New("capacity cannot be negative")
	ErrMaintenanceNotFound  = errors.New("maintenance window not found")
)

// ResourceType identifies what kind of thing a resource is.
type ResourceType string

const (
	ResourceRoom           ResourceType = "room"
	ResourceEquipment      ResourceType = "equipment"
	ResourceInstructorSlot ResourceType = "instructor_slot"
	ResourceVehicle        ResourceType = "vehicle"
	ResourceVenue          ResourceType = "venue"
	ResourceVirtualRoom    ResourceType = "virtual_room"
)

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceRoom, ResourceEquipment, ResourceInstructorSlot, ResourceVehicle, ResourceVenue, ResourceVirtualRoom:
		return true
	}
	return false
}

// ResourceStatus is the operational state of a resource.
type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceOccupied    ResourceStatus = "occupied"
	ResourceMaintenance ResourceStatus = "maintenance"
	ResourceBlocked     ResourceStatus = "blocked"
	ResourceReserved    ResourceStatus = "reserved"
)

// Valid reports whether s is a known resource status.
func (s ResourceStatus) Valid() bool {
	switch s {
	case ResourceAvailable, ResourceOccupied, ResourceMaintenance, ResourceBlocked, ResourceReserved:
		return true
	}
	return false
}

// Resource is a bookable room, piece of equipment, vehicle, venue or virtual room.
type Resource struct {
	sharedDomain.BaseAggregateRoot
	name         string
	resourceType ResourceType
	status       ResourceStatus
	capacity     int // 0 when capacity does not apply
	location     string
	features     []string
	availability Availability
}

// ResourceSpec carries the mutable properties of a resource.
type ResourceSpec struct {
	Name         string
	Type         ResourceType
	Capacity     int
	Location     string
	Features     []string
	Availability Availability
}

// NewResource registers a new resource in the available state.
func NewResource(spec ResourceSpec) (*Resource, error) {
	r := &Resource{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		status:            ResourceAvailable,
	}
	if err := r.apply(spec); err != nil {
		return nil, err
	}
	return r, nil
}

// RehydrateResource recreates a resource from persisted state.
func RehydrateResource(
	id uuid.UUID,
	spec ResourceSpec,
	status ResourceStatus,
	createdAt, updatedAt time.Time,
) *Resource {
	return &Resource{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt), 0,
		),
		name:         spec.Name,
		resourceType: spec.Type,
		status:       status,
		capacity:     spec.Capacity,
		location:     spec.Location,
		features:     normalizeTags(spec.Features),
		availability: spec.Availability,
	}
}

func (r *Resource) apply(spec ResourceSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return ErrResourceNameRequired
	}
	if !spec.Type.Valid() {
		return ErrUnknownResourceType
	}
	if spec.Capacity < 0 {
		return ErrNegativeCapacity
	}
	r.name = spec.Name
	r.resourceType = spec.Type
	r.capacity = spec.Capacity
	r.location = spec.Location
	r.features = normalizeTags(spec.Features)
	r.availability = spec.Availability
	return nil
}

// Getters
func (r *Resource) Name() string               { return r.name }
func (r *Resource) Type() ResourceType         { return r.resourceType }
func (r *Resource) Status() ResourceStatus     { return r.status }
func (r *Resource) Capacity() int              { return r.capacity }
func (r *Resource) Location() string           { return r.location }
func (r *Resource) Features() []string         { return r.features }
func (r *Resource) Availability() Availability { return r.availability }

// HasCapacity reports whether capacity applies to this resource.
func (r *Resource) HasCapacity() bool { return r.capacity > 0 }

// Spec returns the mutable properties of the resource.
func (r *Resource) Spec() ResourceSpec {
	return ResourceSpec{
		Name:         r.name,
		Type:         r.resourceType,
		Capacity:     r.capacity,
		Location:     r.location,
		Features:     r.features,
		Availability: r.availability,
	}
}

// Update replaces the mutable properties, keeping maintenance windows when
// the update carries none.
func (r *Resource) Update(spec ResourceSpec) error {
	if spec.Availability.Maintenance == nil {
		spec.Availability.Maintenance = r.availability.Maintenance
	}
	if err := r.apply(spec); err != nil {
		return err
	}
	r.Touch()
	return nil
}

// SetStatus changes the operational state.
func (r *Resource) SetStatus(status ResourceStatus) {
	r.status = status
	r.Touch()
}

// Bookable reports whether new allocations may be placed on the resource.
func (r *Resource) Bookable() bool {
	return r.status != ResourceBlocked
}

// Check runs the availability model for the interval.
func (r *Resource) Check(iv Interval) error {
	return r.availability.Check(iv)
}

// AddMaintenance schedules a maintenance window.
func (r *Resource) AddMaintenance(window MaintenanceWindow) {
	if window.ID == uuid.Nil {
		window.ID = uuid.New()
	}
	r.availability.Maintenance = append(r.availability.Maintenance, window)
	r.Touch()
}

// RemoveMaintenance deletes a maintenance window.
func (r *Resource) RemoveMaintenance(id uuid.UUID) error {
	kept := make([]MaintenanceWindow, 0, len(r.availability.Maintenance))
	for _, m := range r.availability.Maintenance {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(r.availability.Maintenance) {
		return ErrMaintenanceNotFound
	}
	r.availability.Maintenance = kept
	r.Touch()
	return nil
}

// HasFeatures reports whether the resource carries every required feature.
func (r *Resource) HasFeatures(required []string) bool {
	return tagMatch(r.features, required) == 1
}

// FeatureMatch returns the share of required features the resource carries.
func (r *Resource) FeatureMatch(required []string) float64 {
	return tagMatch(r.features, required)
}

// normalizeTags lowercases, deduplicates and sorts tags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// tagMatch returns the fraction of required tags present in have. An empty
// requirement is fully matched.
func tagMatch(have, required []string) float64 {
	required = normalizeTags(required)
	if len(required) == 0 {
		return 1
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	hits := 0
	for _, want := range required {
		if _, ok := set[want]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(required))
}

// Clone returns a deep copy without pending domain events.
func (r *Resource) Clone() *Resource {
	c := *r
	c.BaseAggregateRoot = sharedDomain.RehydrateBaseAggregateRoot(r.BaseEntity, r.Version())
	c.features = append([]string(nil), r.features...)
	c.availability = r.availability.Clone()
	return &c
}
