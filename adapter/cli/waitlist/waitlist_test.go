package waitlist

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/adapter/cli/clitest"
	schedulingDomain "github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/queries"
)

func resetFlags() {
	requester = ""
	priority = "normal"
	autoEnroll = false
	expires = ""
	cancelReason = ""
	showAll, showEnrollments = false, false
	removeReason = ""
	byPriority = false
	extendUntil = ""
}

func seedSession(t *testing.T, app *cli.App, seats int) *schedulingDomain.Session {
	t.Helper()
	s, err := app.Sessions.CreateSession(context.Background(), schedulingDomain.SessionSpec{
		Title:           "Go basics",
		Interval:        schedulingDomain.IntervalOf(clitest.NextMonday(10), time.Hour),
		Timezone:        "UTC",
		MaxParticipants: seats,
		Waitlist:        schedulingDomain.WaitlistConfig{Enabled: true},
	})
	require.NoError(t, err)
	return s
}

func addEntry(t *testing.T, sessionID, requesterID uuid.UUID, prio string) entryView {
	t.Helper()
	requester = requesterID.String()
	priority = prio
	out, err := clitest.Run(t, addCmd, sessionID.String())
	require.NoError(t, err)
	var v entryView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func showWaitlist(t *testing.T, sessionID uuid.UUID) queries.WaitlistDTO {
	t.Helper()
	out, err := clitest.Run(t, showCmd, sessionID.String())
	require.NoError(t, err)
	var dto queries.WaitlistDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	return dto
}

func TestWaitlistLifecycle(t *testing.T) {
	app := clitest.Setup(t)
	resetFlags()
	cli.SetJSONOutput(true)
	s := seedSession(t, app, 1)
	sid := s.ID().String()
	ada, bob, cy := uuid.New(), uuid.New(), uuid.New()

	_, err := clitest.Run(t, enrollCmd, sid, ada.String())
	require.NoError(t, err)
	_, err = clitest.Run(t, enrollCmd, sid, bob.String())
	require.Error(t, err, "the only seat is taken")

	bobEntry := addEntry(t, s.ID(), bob, "normal")
	cyEntry := addEntry(t, s.ID(), cy, "urgent")
	assert.Equal(t, 1, bobEntry.Position)
	assert.Equal(t, 2, cyEntry.Position)

	byPriority = true
	_, err = clitest.Run(t, reorderCmd, sid)
	require.NoError(t, err)
	byPriority = false

	dto := showWaitlist(t, s.ID())
	assert.Equal(t, 1, dto.Enrolled)
	assert.Equal(t, 2, dto.Waitlisted)
	require.Len(t, dto.Entries, 2)
	assert.Equal(t, cyEntry.ID, dto.Entries[0].ID.String())

	extendUntil = clitest.NextMonday(8).Format(time.RFC3339)
	_, err = clitest.Run(t, extendCmd, sid, bobEntry.ID)
	require.NoError(t, err)

	cancelReason = "moved away"
	_, err = clitest.Run(t, cancelCmd, sid, ada.String())
	require.NoError(t, err)

	out, err := clitest.Run(t, promoteCmd, sid, cyEntry.ID)
	require.NoError(t, err)
	var enrolled enrollmentView
	require.NoError(t, json.Unmarshal([]byte(out), &enrolled))
	assert.Equal(t, cy.String(), enrolled.ParticipantID)

	_, err = clitest.Run(t, removeCmd, sid, bobEntry.ID)
	require.NoError(t, err)

	showEnrollments = true
	dto = showWaitlist(t, s.ID())
	assert.Equal(t, 1, dto.Enrolled)
	assert.Equal(t, 0, dto.Waitlisted)
	assert.Empty(t, dto.Entries)
	require.NotEmpty(t, dto.Enrollments)

	session, err := app.Sessions.GetSession(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, session.EnrolledCount())
	assert.Equal(t, 0, session.WaitlistedCount())
}

func TestReorderCmd_RequiresOneMode(t *testing.T) {
	app := clitest.Setup(t)
	resetFlags()
	s := seedSession(t, app, 1)

	_, err := clitest.Run(t, reorderCmd, s.ID().String())
	assert.Error(t, err)

	byPriority = true
	_, err = clitest.Run(t, reorderCmd, s.ID().String(), uuid.NewString())
	assert.Error(t, err)
}

func TestAddCmd_Rejects(t *testing.T) {
	app := clitest.Setup(t)
	resetFlags()
	s := seedSession(t, app, 1)

	requester = uuid.NewString()
	priority = "vip"
	_, err := clitest.Run(t, addCmd, s.ID().String())
	assert.Error(t, err)

	priority = "normal"
	requester = "someone"
	_, err = clitest.Run(t, addCmd, s.ID().String())
	assert.Error(t, err)
}

func TestProcessCmd(t *testing.T) {
	app := clitest.Setup(t)
	resetFlags()
	s := seedSession(t, app, 2)
	_, err := clitest.Run(t, enrollCmd, s.ID().String(), uuid.NewString())
	require.NoError(t, err)

	out, err := clitest.Run(t, processCmd, s.ID().String())
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 session(s)")

	_, err = clitest.Run(t, processCmd)
	require.NoError(t, err)
}
