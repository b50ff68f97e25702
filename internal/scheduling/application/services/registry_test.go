package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
)

func TestRegistry_DeleteResource_InUse(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	a, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	require.NoError(t, err)

	err = f.registry.DeleteResource(f.ctx, room.ID())
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceInUse))

	_, err = f.ledger.Release(f.ctx, a.ID(), "moved")
	require.NoError(t, err)
	require.NoError(t, f.registry.DeleteResource(f.ctx, room.ID()))

	_, err = f.registry.GetResource(f.ctx, room.ID())
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))
}

func TestRegistry_DeleteResource_PastAllocationsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	_, err := f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(10, 0), time.Hour), "")
	require.NoError(t, err)

	f.now = monday(12, 0)
	assert.NoError(t, f.registry.DeleteResource(f.ctx, room.ID()))
}

func TestRegistry_CreateResource_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.CreateResource(f.ctx, domain.ResourceSpec{Type: domain.ResourceRoom})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))

	_, err = f.registry.CreateResource(f.ctx, domain.ResourceSpec{Name: "Lift", Type: domain.ResourceType("rocket")})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
}

func TestRegistry_Maintenance(t *testing.T) {
	f := newFixture(t)
	room := f.room("Room R", 20)
	window := domain.NewMaintenanceWindow(domain.IntervalOf(monday(12, 0), time.Hour), domain.MaintenancePreventive, "filters")

	updated, err := f.registry.AddMaintenance(f.ctx, room.ID(), window)
	require.NoError(t, err)
	require.Len(t, updated.Availability().Maintenance, 1)

	_, err = f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(12, 30), time.Hour), "")
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable))

	_, err = f.registry.RemoveMaintenance(f.ctx, room.ID(), window.ID)
	require.NoError(t, err)
	_, err = f.ledger.Allocate(f.ctx, room.ID(), uuid.New(), domain.IntervalOf(monday(12, 30), time.Hour), "")
	assert.NoError(t, err)

	_, err = f.registry.RemoveMaintenance(f.ctx, room.ID(), window.ID)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))

	_, err = f.registry.AddMaintenance(f.ctx, room.ID(),
		domain.NewMaintenanceWindow(domain.IntervalOf(monday(12, 0), -time.Hour), domain.MaintenanceScheduled, ""))
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
}

func TestRegistry_ListResources(t *testing.T) {
	f := newFixture(t)
	f.room("Small", 8, "whiteboard")
	f.room("Large", 40, "projector", "whiteboard")
	f.resource(domain.ResourceSpec{Name: "Beamer", Type: domain.ResourceEquipment, Features: []string{"hdmi"}})

	rooms, err := f.registry.ListResources(f.ctx, domain.ResourceFilter{Type: domain.ResourceRoom, MinCapacity: 10})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Large", rooms[0].Name())

	all, err := f.registry.ListResources(f.ctx, domain.ResourceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRegistry_DeleteInstructor_InUse(t *testing.T) {
	f := newFixture(t)
	ada := f.instructor("Ada", 4.8)
	s := f.place(f.session("A", monday(9, 0), time.Hour, 10), ada.ID())

	err := f.registry.DeleteInstructor(f.ctx, ada.ID())
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceInUse))

	_, err = f.sessions.CancelSession(f.ctx, s.ID(), "dropped")
	require.NoError(t, err)
	require.NoError(t, f.registry.DeleteInstructor(f.ctx, ada.ID()))
}

func TestRegistry_UpdateInstructor(t *testing.T) {
	f := newFixture(t)
	ada := f.instructor("Ada", 4.8)
	spec := ada.Spec()
	spec.Rating = 3.5
	spec.Specializations = []string{"Go", "SQL"}

	updated, err := f.registry.UpdateInstructor(f.ctx, ada.ID(), spec)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, updated.Rating(), 0.001)
	assert.Equal(t, []string{"go", "sql"}, updated.Specializations())

	spec.Rating = 7
	_, err = f.registry.UpdateInstructor(f.ctx, ada.ID(), spec)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))
}

func TestRegistry_SetResourceStatusRejectsUnknown(t *testing.T) {
	f := newFixture(t)
	r := f.room("Room R", 20)

	_, err := f.registry.SetResourceStatus(f.ctx, r.ID(), domain.ResourceStatus("flooded"))
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))

	updated, err := f.registry.SetResourceStatus(f.ctx, r.ID(), domain.ResourceBlocked)
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceBlocked, updated.Status())
}
