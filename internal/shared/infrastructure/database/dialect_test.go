package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := "SELECT * FROM sessions WHERE status <> 'a?b' AND start_at < ? AND end_at > ?"

	assert.Equal(t, query, Rebind(DriverSQLite, query))
	assert.Equal(t,
		"SELECT * FROM sessions WHERE status <> 'a?b' AND start_at < $1 AND end_at > $2",
		Rebind(DriverPostgres, query))
}

func TestTimeArg_SQLiteSortsAsText(t *testing.T) {
	zone := time.FixedZone("CEST", 2*3600)
	early := time.Date(2026, 3, 2, 9, 0, 0, 0, zone)
	late := time.Date(2026, 3, 2, 8, 30, 0, 5, time.UTC)

	a := TimeArg(DriverSQLite, early).(string)
	b := TimeArg(DriverSQLite, late).(string)

	assert.Equal(t, "2026-03-02T07:00:00.000000000Z", a)
	assert.Less(t, a, b)
	assert.IsType(t, time.Time{}, TimeArg(DriverPostgres, early))
	assert.Nil(t, NullTimeArg(DriverSQLite, nil))
}

func TestTime_Scan(t *testing.T) {
	want := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	var fromText Time
	require.NoError(t, fromText.Scan("2026-03-02T07:00:00.000000000Z"))
	assert.True(t, fromText.Valid)
	assert.True(t, want.Equal(fromText.Time))

	var fromTime Time
	require.NoError(t, fromTime.Scan(want.In(time.FixedZone("X", 3600))))
	assert.Equal(t, time.UTC, fromTime.Time.Location())

	var null Time
	require.NoError(t, null.Scan(nil))
	assert.Nil(t, null.Ptr())

	var bad Time
	assert.Error(t, bad.Scan("yesterday"))
	assert.Error(t, bad.Scan(42))
}
