package commands

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/felixgeelhaar/cohort/internal/waitlist/infrastructure/persistence"
)

var testNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type staticDirectory map[uuid.UUID]*services.SessionInfo

func (d staticDirectory) Lookup(_ context.Context, id uuid.UUID) (*services.SessionInfo, error) {
	info, ok := d[id]
	if !ok {
		return nil, sharedDomain.NotFound("sessions.get", "session", id)
	}
	return info, nil
}

func (staticDirectory) RecordCounts(context.Context, uuid.UUID, int, int) error { return nil }

func newManager(t *testing.T, capacity int) (*services.Manager, uuid.UUID, *application.CollectingDispatcher) {
	t.Helper()
	id := uuid.New()
	events := &application.CollectingDispatcher{}
	manager := services.NewManager(services.Deps{
		Rosters: persistence.NewInMemoryRosterRepository(),
		Sessions: staticDirectory{id: {
			ID:              id,
			Start:           testNow.Add(48 * time.Hour),
			Active:          true,
			Capacity:        capacity,
			WaitlistEnabled: true,
			AutoEnroll:      true,
		}},
		Events: events,
		Clock:  func() time.Time { return testNow },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return manager, id, events
}

func TestAddToWaitlistHandler_AttachesActor(t *testing.T) {
	manager, id, events := newManager(t, 1)
	actor := uuid.New()

	entry, err := NewAddToWaitlistHandler(manager).Handle(context.Background(), AddToWaitlistCommand{
		ActorID:     actor,
		SessionID:   id,
		RequesterID: uuid.New(),
		Priority:    "high",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, entry.Priority())
	require.Len(t, events.Events, 1)
	assert.Equal(t, actor, events.Events[0].Metadata().ActorID)
}

func TestCancelEnrollmentHandler_PromotesNext(t *testing.T) {
	manager, id, events := newManager(t, 1)
	ctx := context.Background()
	seated, err := NewEnrollParticipantHandler(manager).Handle(ctx, EnrollParticipantCommand{SessionID: id, ParticipantID: uuid.New()})
	require.NoError(t, err)
	waiting, err := NewAddToWaitlistHandler(manager).Handle(ctx, AddToWaitlistCommand{SessionID: id, RequesterID: uuid.New(), AutoEnroll: true})
	require.NoError(t, err)
	events.Events = nil

	result, err := NewCancelEnrollmentHandler(manager).Handle(ctx, CancelEnrollmentCommand{SessionID: id, ParticipantID: seated.ParticipantID()})
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCancelled, result.Enrollment.Status())
	require.Len(t, result.Reconciled.Promoted, 1)
	assert.Equal(t, waiting.ID(), result.Reconciled.Promoted[0].EntryID)
	assert.Contains(t, events.RoutingKeys(), domain.RoutingKeyEntryPromoted)
}

func TestEntryHandler(t *testing.T) {
	manager, id, _ := newManager(t, 0)
	ctx := context.Background()
	add := NewAddToWaitlistHandler(manager)
	a, err := add.Handle(ctx, AddToWaitlistCommand{SessionID: id, RequesterID: uuid.New()})
	require.NoError(t, err)
	b, err := add.Handle(ctx, AddToWaitlistCommand{SessionID: id, RequesterID: uuid.New(), Priority: "urgent"})
	require.NoError(t, err)
	h := NewEntryHandler(manager)

	waiting, err := h.Reorder(ctx, ReorderWaitlistCommand{SessionID: id, ByPriority: true})
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, b.ID(), waiting[0].ID())

	_, err = h.Reorder(ctx, ReorderWaitlistCommand{SessionID: id, Order: []uuid.UUID{a.ID()}})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindInvalidReorder))

	extended, err := h.ExtendExpiry(ctx, ExtendExpiryCommand{SessionID: id, EntryID: a.ID(), Until: testNow.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, extended.ExpiresAt())

	_, err = h.Promote(ctx, PromoteEntryCommand{SessionID: id, EntryID: a.ID()})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindCapacityExceeded))

	require.NoError(t, h.Remove(ctx, RemoveEntryCommand{SessionID: id, EntryID: b.ID()}))
	roster, err := manager.Roster(ctx, id)
	require.NoError(t, err)
	require.Len(t, roster.Waiting(), 1)
	assert.Equal(t, 1, roster.Waiting()[0].Position())
}

func TestProcessWaitlistsHandler(t *testing.T) {
	manager, id, _ := newManager(t, 1)
	ctx := context.Background()
	_, err := NewAddToWaitlistHandler(manager).Handle(ctx, AddToWaitlistCommand{SessionID: id, RequesterID: uuid.New(), AutoEnroll: true})
	require.NoError(t, err)
	h := NewProcessWaitlistsHandler(manager)

	one, err := h.Handle(ctx, ProcessWaitlistsCommand{SessionID: id})
	require.NoError(t, err)
	_, promoted, _, _ := one.Totals()
	assert.Equal(t, 1, promoted)

	all, err := h.Handle(ctx, ProcessWaitlistsCommand{})
	require.NoError(t, err)
	assert.Empty(t, all.Sessions)

	_, err = h.Handle(ctx, ProcessWaitlistsCommand{SessionID: uuid.New()})
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindNotFound))
}
