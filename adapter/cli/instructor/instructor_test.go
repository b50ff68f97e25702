package instructor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/adapter/cli/clitest"
)

func resetFlags() {
	specializations = nil
	certifications = nil
	rating = 0
	maxPerDay, maxPerWeek = 0, 0
	hours = nil
	timezone = ""
}

func TestCreateCmd_CreatesInstructor(t *testing.T) {
	app := clitest.Setup(t)
	resetFlags()
	specializations = []string{"go", "testing"}
	certifications = []string{"first-aid:2027-01-31", "trainer"}
	rating = 4.8
	maxPerDay = 2
	hours = []string{"tue,thu=10:00-16:00"}

	out, err := clitest.Run(t, createCmd, "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Instructor created")

	instructors, err := app.Registry.ListInstructors(context.Background())
	require.NoError(t, err)
	require.Len(t, instructors, 1)
	ada := instructors[0]
	assert.Equal(t, "Ada", ada.Name())
	assert.Equal(t, 2, ada.MaxSessionsPerDay())
	require.Len(t, ada.Certifications(), 2)
	require.NotNil(t, ada.Certifications()[0].ValidUntil)
	assert.True(t, ada.Certifications()[0].ValidAt(time.Date(2027, 1, 31, 12, 0, 0, 0, time.UTC)))
	assert.False(t, ada.Certifications()[0].ValidAt(time.Date(2027, 2, 1, 12, 0, 0, 0, time.UTC)))
	assert.Nil(t, ada.Certifications()[1].ValidUntil)

	rules := ada.Availability().Rules
	require.Len(t, rules, 2)
	assert.Equal(t, time.Tuesday, rules[0].Weekday)
	assert.Equal(t, time.Thursday, rules[1].Weekday)
}

func TestCreateCmd_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"rating above scale", func() { rating = 6 }},
		{"bad certification date", func() { certifications = []string{"first-aid:soon"} }},
		{"negative limit", func() { maxPerDay = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clitest.Setup(t)
			resetFlags()
			tt.setup()
			_, err := clitest.Run(t, createCmd, "Ada")
			assert.Error(t, err)
		})
	}
}

func TestListShowDeleteCmds(t *testing.T) {
	app := clitest.Setup(t)
	resetFlags()
	rating = 4.2
	_, err := clitest.Run(t, createCmd, "Bob")
	require.NoError(t, err)

	cli.SetJSONOutput(true)
	out, err := clitest.Run(t, listCmd)
	require.NoError(t, err)
	var views []instructorView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Bob", views[0].Name)

	cli.SetJSONOutput(false)
	out, err = clitest.Run(t, showCmd, views[0].ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "rating: 4.2")

	_, err = clitest.Run(t, deleteCmd, views[0].ID.String())
	require.NoError(t, err)
	instructors, err := app.Registry.ListInstructors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, instructors)
}
