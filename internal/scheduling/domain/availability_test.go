package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday is 2030-01-07, a Monday.
var monday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func span(day time.Time, fromH, fromM, toH, toM int) Interval {
	return Interval{Start: at(day, fromH, fromM), End: at(day, toH, toM)}
}

func officeHours() Availability {
	return Availability{Rules: WeeklyRules(At(9, 0), At(17, 0), Weekdays...)}
}

func TestAvailability_Check(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	saturday := monday.AddDate(0, 0, 5)

	tests := []struct {
		name    string
		avail   func() Availability
		iv      Interval
		wantErr error
	}{
		{
			name:  "inside weekday window",
			avail: officeHours,
			iv:    span(monday, 10, 0, 11, 0),
		},
		{
			name:  "exactly the window",
			avail: officeHours,
			iv:    span(monday, 9, 0, 17, 0),
		},
		{
			name:    "starts before opening",
			avail:   officeHours,
			iv:      span(monday, 8, 30, 9, 30),
			wantErr: ErrOutsideAvailability,
		},
		{
			name:    "weekend has no rule",
			avail:   officeHours,
			iv:      span(saturday, 10, 0, 11, 0),
			wantErr: ErrOutsideAvailability,
		},
		{
			name:    "spans two days",
			avail:   officeHours,
			iv:      Interval{Start: at(monday, 16, 0), End: at(tuesday, 10, 0)},
			wantErr: ErrMultiDayInterval,
		},
		{
			name:    "inverted interval",
			avail:   officeHours,
			iv:      Interval{Start: at(monday, 11, 0), End: at(monday, 10, 0)},
			wantErr: ErrInvalidInterval,
		},
		{
			name: "unavailable exception",
			avail: func() Availability {
				a := officeHours()
				a.Rules[0].Exceptions = []DateException{{Date: "2030-01-07", Kind: ExceptionUnavailable, Reason: "holiday"}}
				return a
			},
			iv:      span(monday, 10, 0, 11, 0),
			wantErr: ErrDateException,
		},
		{
			name: "modified exception narrows the window",
			avail: func() Availability {
				a := officeHours()
				a.Rules[0].Exceptions = []DateException{{Date: "2030-01-07", Kind: ExceptionModified, Start: At(13, 0), End: At(17, 0)}}
				return a
			},
			iv:      span(monday, 10, 0, 11, 0),
			wantErr: ErrOutsideAvailability,
		},
		{
			name: "extended exception widens the window",
			avail: func() Availability {
				a := officeHours()
				a.Rules[0].Exceptions = []DateException{{Date: "2030-01-07", Kind: ExceptionExtended, Start: At(7, 0), End: At(20, 0)}}
				return a
			},
			iv: span(monday, 18, 0, 19, 30),
		},
		{
			name: "inactive rule is ignored",
			avail: func() Availability {
				a := officeHours()
				a.Rules[0].Active = false
				return a
			},
			iv:      span(monday, 10, 0, 11, 0),
			wantErr: ErrOutsideAvailability,
		},
		{
			name: "maintenance overlap",
			avail: func() Availability {
				a := officeHours()
				a.Maintenance = []MaintenanceWindow{NewMaintenanceWindow(span(monday, 10, 30, 12, 0), MaintenanceScheduled, "hvac")}
				return a
			},
			iv:      span(monday, 10, 0, 11, 0),
			wantErr: ErrMaintenanceWindow,
		},
		{
			name: "maintenance touching the interval is fine",
			avail: func() Availability {
				a := officeHours()
				a.Maintenance = []MaintenanceWindow{NewMaintenanceWindow(span(monday, 11, 0, 12, 0), MaintenanceScheduled, "hvac")}
				return a
			},
			iv: span(monday, 10, 0, 11, 0),
		},
		{
			name: "end at midnight stays on the same day",
			avail: func() Availability {
				return Availability{Rules: WeeklyRules(At(18, 0), minutesPerDay, time.Monday)}
			},
			iv: Interval{Start: at(monday, 22, 0), End: at(tuesday, 0, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.avail().Check(tt.iv)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.True(t, IsAvailable(tt.avail(), tt.iv))
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, IsAvailable(tt.avail(), tt.iv))
		})
	}
}

func TestAvailability_CheckUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	a := officeHours()
	a.Location = loc

	// 07:30 UTC is 09:30 local.
	assert.NoError(t, a.Check(span(monday, 7, 30, 8, 30)))
	// 15:30 UTC is 17:30 local.
	assert.ErrorIs(t, a.Check(span(monday, 15, 0, 15, 30)), ErrOutsideAvailability)
}

func TestAvailability_CheckEdgesToTheSecond(t *testing.T) {
	a := officeHours()
	opens := at(monday, 9, 0)
	closes := at(monday, 17, 0)

	tests := []struct {
		name    string
		iv      Interval
		wantErr error
	}{
		{"ends seconds after closing", Interval{Start: at(monday, 16, 0), End: closes.Add(40 * time.Second)}, ErrOutsideAvailability},
		{"ends a nanosecond after closing", Interval{Start: at(monday, 16, 0), End: closes.Add(time.Nanosecond)}, ErrOutsideAvailability},
		{"starts seconds before opening", Interval{Start: opens.Add(-20 * time.Second), End: at(monday, 10, 0)}, ErrOutsideAvailability},
		{"ends exactly at closing", Interval{Start: at(monday, 16, 0), End: closes}, nil},
		{"starts seconds after opening", Interval{Start: opens.Add(30 * time.Second), End: at(monday, 10, 0)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Check(tt.iv)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAvailability_AvailableHours(t *testing.T) {
	a := officeHours()
	a.Maintenance = []MaintenanceWindow{NewMaintenanceWindow(span(monday, 9, 0, 11, 0), MaintenancePreventive, "")}
	a.Rules[1].Exceptions = []DateException{{Date: "2030-01-08", Kind: ExceptionUnavailable}}

	hours := a.AvailableHours(monday, monday.AddDate(0, 0, 7))

	// Five eight hour days, minus the closed Tuesday and two hours of maintenance.
	assert.InDelta(t, 30.0, hours, 0.001)
	assert.Zero(t, a.AvailableHours(monday, monday))
}

func TestAvailability_OpenSpans(t *testing.T) {
	a := Availability{Rules: []AvailabilityRule{
		{Weekday: time.Monday, Start: At(9, 0), End: At(12, 0), Active: true},
		{Weekday: time.Monday, Start: At(11, 0), End: At(15, 0), Active: true},
	}}
	a.Maintenance = []MaintenanceWindow{NewMaintenanceWindow(span(monday, 12, 0, 13, 0), MaintenanceScheduled, "")}

	spans := a.OpenSpans(at(monday, 12, 0))

	require.Len(t, spans, 2)
	assert.Equal(t, span(monday, 9, 0, 12, 0), spans[0])
	assert.Equal(t, span(monday, 13, 0, 15, 0), spans[1])
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, At(9, 30), tod)
	assert.Equal(t, "09:30", tod.String())

	end, err := ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(minutesPerDay), end)

	for _, bad := range []string{"", "9", "25:00", "10:75", "24:01"} {
		_, err := ParseTimeOfDay(bad)
		assert.ErrorIs(t, err, ErrInvalidTimeOfDay, bad)
	}
}

func TestTimeOfDay_Text(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.UnmarshalText([]byte("17:45")))
	b, err := tod.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "17:45", string(b))
}
