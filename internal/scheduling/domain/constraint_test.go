package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeWindowConstraint(t *testing.T) {
	c := NewTimeWindowConstraint(ConstraintTypeSoft, At(9, 0), At(12, 0))

	assert.True(t, c.Satisfied(span(monday, 9, 0, 12, 0), ConstraintEnv{}))
	assert.False(t, c.Satisfied(span(monday, 11, 0, 12, 30), ConstraintEnv{}))
	assert.Equal(t, ConstraintTypeSoft, c.Type())
}

func TestDayOfWeekConstraint(t *testing.T) {
	c := NewDayOfWeekConstraint(ConstraintTypeHard, []time.Weekday{time.Monday, time.Wednesday})

	assert.True(t, c.Satisfied(span(monday, 9, 0, 10, 0), ConstraintEnv{}))
	assert.False(t, c.Satisfied(span(monday.AddDate(0, 0, 1), 9, 0, 10, 0), ConstraintEnv{}))
	assert.Contains(t, c.Describe(), "Mon,Wed")
}

func TestBreakConstraint(t *testing.T) {
	c := NewBreakConstraint(ConstraintTypeHard, 15*time.Minute)
	env := ConstraintEnv{Neighbors: []Interval{span(monday, 9, 0, 10, 0)}}

	assert.False(t, c.Satisfied(span(monday, 10, 5, 11, 0), env))
	assert.True(t, c.Satisfied(span(monday, 10, 15, 11, 0), env))
	assert.False(t, c.Satisfied(span(monday, 8, 0, 8, 50), env))
	assert.False(t, c.Satisfied(span(monday, 9, 30, 10, 30), env))
	assert.True(t, c.Satisfied(span(monday, 10, 5, 11, 0), ConstraintEnv{}))
}

func TestConstraintSet_Violations(t *testing.T) {
	set, err := BuildConstraintSet([]ConstraintSpec{
		{Kind: ConstraintTimeWindow, Type: ConstraintTypeSoft, Start: At(9, 0), End: At(12, 0)},
		{Kind: ConstraintWeekdays, Type: ConstraintTypeHard, Weekdays: []time.Weekday{time.Tuesday}},
		{Kind: ConstraintBreak, Type: ConstraintTypeHard, BreakMinutes: 15},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	hard, soft := set.Violations(span(monday, 13, 0, 14, 0), ConstraintEnv{})
	assert.Len(t, hard, 1)
	assert.Len(t, soft, 1)

	_, err = BuildConstraintSet([]ConstraintSpec{{Kind: "lunar", Type: ConstraintTypeSoft}})
	assert.ErrorIs(t, err, ErrUnknownConstraint)
}
