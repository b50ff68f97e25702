package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource_Validation(t *testing.T) {
	_, err := NewResource(ResourceSpec{Type: ResourceRoom})
	assert.ErrorIs(t, err, ErrResourceNameRequired)

	_, err = NewResource(ResourceSpec{Name: "R", Type: "spaceship"})
	assert.ErrorIs(t, err, ErrUnknownResourceType)

	_, err = NewResource(ResourceSpec{Name: "R", Type: ResourceRoom, Capacity: -1})
	assert.ErrorIs(t, err, ErrNegativeCapacity)

	r, err := NewResource(ResourceSpec{Name: "R", Type: ResourceRoom, Capacity: 20, Features: []string{" Projector", "whiteboard", "projector"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"projector", "whiteboard"}, r.Features())
	assert.Equal(t, ResourceAvailable, r.Status())
}

func TestResource_Features(t *testing.T) {
	r, err := NewResource(ResourceSpec{Name: "R", Type: ResourceRoom, Features: []string{"projector", "whiteboard"}})
	require.NoError(t, err)

	assert.True(t, r.HasFeatures(nil))
	assert.True(t, r.HasFeatures([]string{"Projector"}))
	assert.False(t, r.HasFeatures([]string{"projector", "sink"}))
	assert.InDelta(t, 0.5, r.FeatureMatch([]string{"projector", "sink"}), 0.001)
}

func TestResource_Maintenance(t *testing.T) {
	r, err := NewResource(ResourceSpec{Name: "R", Type: ResourceRoom, Availability: officeHours()})
	require.NoError(t, err)

	window := NewMaintenanceWindow(span(monday, 10, 0, 12, 0), MaintenanceEmergency, "leak")
	r.AddMaintenance(window)
	assert.ErrorIs(t, r.Check(span(monday, 11, 0, 11, 30)), ErrMaintenanceWindow)

	// Updating without maintenance keeps the existing windows.
	spec := r.Spec()
	spec.Availability.Maintenance = nil
	require.NoError(t, r.Update(spec))
	assert.Len(t, r.Availability().Maintenance, 1)

	require.NoError(t, r.RemoveMaintenance(window.ID))
	assert.NoError(t, r.Check(span(monday, 11, 0, 11, 30)))
	assert.ErrorIs(t, r.RemoveMaintenance(window.ID), ErrMaintenanceNotFound)
}

func TestResource_Bookable(t *testing.T) {
	r, err := NewResource(ResourceSpec{Name: "R", Type: ResourceVehicle})
	require.NoError(t, err)

	r.SetStatus(ResourceMaintenance)
	assert.True(t, r.Bookable())
	r.SetStatus(ResourceBlocked)
	assert.False(t, r.Bookable())
}

func TestResourceFilter_Matches(t *testing.T) {
	r, err := NewResource(ResourceSpec{Name: "R", Type: ResourceRoom, Capacity: 12, Features: []string{"projector"}})
	require.NoError(t, err)

	assert.True(t, ResourceFilter{}.Matches(r))
	assert.True(t, ResourceFilter{Type: ResourceRoom, MinCapacity: 10}.Matches(r))
	assert.False(t, ResourceFilter{MinCapacity: 20}.Matches(r))
	assert.False(t, ResourceFilter{Type: ResourceVenue}.Matches(r))
	assert.False(t, ResourceFilter{Features: []string{"sink"}}.Matches(r))
}

func TestInstructor_Satisfies(t *testing.T) {
	expired := time.Date(2029, 12, 31, 0, 0, 0, 0, time.UTC)
	inst, err := NewInstructor(InstructorSpec{
		Name:            "Ada",
		Specializations: []string{"Forklift", "safety"},
		Certifications: []Certification{
			{Name: "first-aid"},
			{Name: "hazmat", ValidUntil: &expired},
		},
		Rating: 4.5,
	})
	require.NoError(t, err)
	on := at(monday, 9, 0)

	assert.True(t, inst.Satisfies(InstructorPreference{}, on))
	assert.True(t, inst.Satisfies(InstructorPreference{InstructorID: inst.ID(), Certifications: []string{"First-Aid"}}, on))
	assert.False(t, inst.Satisfies(InstructorPreference{Certifications: []string{"hazmat"}}, on))
	assert.False(t, inst.Satisfies(InstructorPreference{MinRating: 4.8}, on))
	assert.False(t, inst.Satisfies(InstructorPreference{Specializations: []string{"welding"}}, on))
	assert.False(t, inst.Satisfies(InstructorPreference{InstructorID: uuid.New()}, on))
	assert.True(t, inst.SatisfiesFilters(InstructorPreference{InstructorID: uuid.New(), Specializations: []string{"forklift"}}, on))
}

func TestNewInstructor_Validation(t *testing.T) {
	_, err := NewInstructor(InstructorSpec{})
	assert.ErrorIs(t, err, ErrInstructorNameRequired)

	_, err = NewInstructor(InstructorSpec{Name: "Ada", Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = NewInstructor(InstructorSpec{Name: "Ada", MaxSessionsPerWeek: -1})
	assert.ErrorIs(t, err, ErrNegativeSessionLimit)
}
