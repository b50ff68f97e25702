package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := outbox.NewMemoryRepository()
	events := stage(t, repo, "scheduling.session.cancelled", "waitlist.entry.expired", "waitlist.entry.added")
	assert.Equal(t, 3, repo.Pending())

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, events[0].EventID(), pending[0].EventID)

	require.NoError(t, repo.MarkPublished(ctx, pending[0].ID))
	require.NoError(t, repo.MarkFailed(ctx, pending[1].ID, "broker down", time.Now().Add(time.Hour)))
	require.NoError(t, repo.MarkDead(ctx, pending[2].ID, "gave up"))

	pending, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 1, repo.Pending(), "the message backing off is still pending")

	deleted, err := repo.DeleteOld(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestMemoryRepository_SkipsDuplicateEvents(t *testing.T) {
	ctx := context.Background()
	repo := outbox.NewMemoryRepository()
	events := stage(t, repo, "scheduling.session.confirmed")

	dup, err := outbox.NewMessage(events[0])
	require.NoError(t, err)
	require.NoError(t, repo.SaveBatch(ctx, []*outbox.Message{dup}))
	assert.Zero(t, dup.ID)
	assert.Equal(t, 1, repo.Pending())
}

func TestMemoryRepository_DrivesTheProcessor(t *testing.T) {
	repo := outbox.NewMemoryRepository()
	publisher := newRecordingPublisher()
	stage(t, repo, "scheduling.session.capacity_changed")
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)

	require.NoError(t, processor.ProcessOnce(context.Background()))
	assert.Len(t, publisher.bodies["scheduling.session.capacity_changed"], 1)
	assert.Zero(t, repo.Pending())
}
