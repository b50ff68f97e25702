package outbox_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRepo(t *testing.T) (*outbox.SQLRepository, database.Connection) {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "outbox.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))
	return outbox.NewSQLRepository(conn), conn
}

func TestSQLRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := openRepo(t)
	events := stage(t, repo, "scheduling.session.cancelled", "waitlist.entry.expired", "waitlist.entry.added")

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, events[0].EventID(), pending[0].EventID)
	assert.Equal(t, "scheduling.session.cancelled", pending[0].RoutingKey)
	assert.NotEmpty(t, pending[0].Metadata)

	require.NoError(t, repo.MarkPublished(ctx, pending[0].ID))
	require.NoError(t, repo.MarkFailed(ctx, pending[1].ID, "broker down", time.Now().Add(time.Hour)))
	require.NoError(t, repo.MarkDead(ctx, pending[2].ID, "gave up"))

	pending, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "published, backing off and dead messages are all skipped")

	deleted, err := repo.DeleteOld(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSQLRepository_SkipsDuplicateEvents(t *testing.T) {
	ctx := context.Background()
	repo, _ := openRepo(t)
	events := stage(t, repo, "scheduling.session.confirmed")

	dup, err := outbox.NewMessage(events[0])
	require.NoError(t, err)
	require.NoError(t, repo.SaveBatch(ctx, []*outbox.Message{dup}))
	assert.Zero(t, dup.ID)

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSQLRepository_RollsBackWithTheUnitOfWork(t *testing.T) {
	ctx := context.Background()
	repo, conn := openRepo(t)
	uow := database.NewUnitOfWork(conn)
	dispatcher := outbox.NewDispatcher(repo)

	boom := errors.New("allocation failed")
	err := application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		require.NoError(t, dispatcher.Dispatch(txCtx, stageEvents("scheduling.allocation.confirmed")...))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		return dispatcher.Dispatch(txCtx, stageEvents("scheduling.allocation.released")...)
	})
	require.NoError(t, err)

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "scheduling.allocation.released", pending[0].RoutingKey)
}
