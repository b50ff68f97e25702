package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

func TestConflictAudit_KeepsIDsAcrossRuns(t *testing.T) {
	f := newFixture(t)
	r := f.room("Room R", 20)
	f.place(f.session("A", monday(10, 0), time.Hour, 15), uuid.Nil, r)
	b := f.place(f.session("B", monday(10, 0), time.Hour, 15), uuid.Nil)
	f.forceAllocate(r, b)
	f.events.Events = nil

	first, err := f.audit.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Sessions)
	assert.Equal(t, 2, first.New)
	assert.Zero(t, first.Cleared)
	assert.Equal(t, []string{
		domain.RoutingKeyConflictDetected,
		domain.RoutingKeyConflictDetected,
	}, f.events.RoutingKeys())

	second, err := f.audit.Run(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, second.New)
	assert.Len(t, f.events.Events, 2)
	ids := func(report *AuditReport) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(report.Conflicts))
		for _, c := range report.Conflicts {
			out = append(out, c.ID())
		}
		return out
	}
	assert.ElementsMatch(t, ids(first), ids(second))

	listed, err := f.log.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	_, err = f.sessions.CancelSession(f.ctx, b.ID(), "merged")
	require.NoError(t, err)
	third, err := f.audit.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Cleared)
	assert.Empty(t, third.Conflicts)
}

func TestConflictAudit_SkipsFinishedSessions(t *testing.T) {
	f := newFixture(t)
	inst := f.instructor("Ines", 4.5)
	f.place(f.session("A", monday(9, 0), time.Hour, 10), inst.ID())
	f.place(f.session("B", monday(9, 30), time.Hour, 10), inst.ID())

	f.now = monday(11, 0)
	report, err := f.audit.Run(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Sessions)
	assert.Empty(t, report.Conflicts)
}
