package commands

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
)

func TestScheduleSessionHandler_AttachesActor(t *testing.T) {
	h := newHarness(t)
	h.room("Room R", 20)
	s := h.session("Go basics", monday(10, 0), 12)
	actor := uuid.New()

	handler := NewScheduleSessionHandler(h.engine, h.deps.Logger)
	result, err := handler.Handle(h.ctx, ScheduleSessionCommand{
		ActorID: actor,
		Request: domain.SchedulingRequest{
			SessionID:       s.ID(),
			PreferredStarts: []time.Time{monday(10, 0)},
			Resources:       []domain.ResourceRequirement{{Type: domain.ResourceRoom}},
		},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	require.NotEmpty(t, h.events.Events)
	for _, event := range h.events.Events {
		assert.Equal(t, actor, event.Metadata().ActorID, event.RoutingKey())
		assert.NotEqual(t, uuid.Nil, event.Metadata().CorrelationID)
	}
}

func TestScheduleSessionHandler_NothingViable(t *testing.T) {
	h := newHarness(t)
	s := h.session("Go basics", monday(10, 0), 12)

	handler := NewScheduleSessionHandler(h.engine, nil)
	result, err := handler.Handle(h.ctx, ScheduleSessionCommand{Request: domain.SchedulingRequest{
		SessionID:       s.ID(),
		PreferredStarts: []time.Time{monday(10, 0)},
		Resources:       []domain.ResourceRequirement{{Type: domain.ResourceRoom}},
	}})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, h.events.Events)
}

func TestWithActor_KeepsCorrelation(t *testing.T) {
	correlation := uuid.New()
	original := sharedApplication.NewEventMetadata(uuid.New())
	original.CorrelationID = correlation
	ctx := sharedApplication.WithEventMetadata(newHarness(t).ctx, original)

	next := uuid.New()
	metadata, ok := sharedApplication.EventMetadataFromContext(sharedApplication.WithActor(ctx, next))
	require.True(t, ok)
	assert.Equal(t, correlation, metadata.CorrelationID)
	assert.Equal(t, correlation, metadata.CausationID)
	assert.Equal(t, next, metadata.ActorID)

	metadata, _ = sharedApplication.EventMetadataFromContext(sharedApplication.WithActor(ctx, uuid.Nil))
	assert.Equal(t, original.ActorID, metadata.ActorID)
}

func TestAllocateAndReleaseHandlers(t *testing.T) {
	h := newHarness(t)
	room := h.room("Room R", 20)
	sessionID := uuid.New()
	allocate := NewAllocateResourceHandler(h.ledger)
	release := NewReleaseAllocationHandler(h.ledger)

	held, err := allocate.Handle(h.ctx, AllocateResourceCommand{
		ResourceID: room.ID(),
		SessionID:  sessionID,
		Start:      monday(10, 0),
		End:        monday(11, 0),
		Hold:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationPending, held.Status())

	_, err = allocate.Handle(h.ctx, AllocateResourceCommand{
		ResourceID: room.ID(),
		SessionID:  uuid.New(),
		Start:      monday(10, 30),
		End:        monday(11, 30),
	})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable))

	_, err = allocate.Handle(h.ctx, AllocateResourceCommand{
		ResourceID: room.ID(),
		SessionID:  uuid.New(),
		Start:      monday(12, 0),
		End:        monday(11, 0),
	})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest))

	result, err := release.Handle(h.ctx, ReleaseAllocationCommand{AllocationID: held.ID(), Reason: "moved"})
	require.NoError(t, err)
	assert.True(t, result.Released)

	result, err = release.Handle(h.ctx, ReleaseAllocationCommand{AllocationID: held.ID()})
	require.NoError(t, err)
	assert.False(t, result.Released)
}

func TestCancelSessionHandler_DefaultReason(t *testing.T) {
	h := newHarness(t)
	s := h.session("Go basics", monday(10, 0), 12)

	cancelled, err := NewCancelSessionHandler(h.sessions).Handle(h.ctx, CancelSessionCommand{SessionID: s.ID(), Reason: "  "})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCancelled, cancelled.Status())
	assert.Contains(t, h.events.RoutingKeys(), domain.RoutingKeySessionCancelled)
}

func TestResolveConflictHandler(t *testing.T) {
	h := newHarness(t)
	handler := NewResolveConflictHandler(h.resolver)

	_, err := handler.Handle(h.ctx, ResolveConflictCommand{ConflictID: uuid.New()})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))

	room := h.room("Room R", 20)
	big := h.session("Big", monday(10, 0), 30)
	_, err = h.ledger.ReplaceSessionAllocations(h.ctx, big.ID(), big.Interval(), []uuid.UUID{room.ID()}, "")
	require.NoError(t, err)
	big, err = h.sessions.GetSession(h.ctx, big.ID())
	require.NoError(t, err)

	conflicts, err := h.detector.Detect(h.ctx, []*domain.Session{big})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.NoError(t, h.log.Put(h.ctx, conflicts...))

	_, err = handler.Handle(h.ctx, ResolveConflictCommand{
		ConflictID: conflicts[0].ID(),
		Strategy:   domain.ResolutionSplitSession,
	})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotSupported))
}
