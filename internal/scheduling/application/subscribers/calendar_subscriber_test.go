package subscribers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
)

type mockCalendarSink struct {
	mock.Mock
}

func (m *mockCalendarSink) Apply(ctx context.Context, change CalendarChange) error {
	return m.Called(ctx, change).Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envelope(t *testing.T, event sharedDomain.DomainEvent) *eventbus.ConsumedEvent {
	t.Helper()
	env, err := eventbus.NewEnvelope(event)
	require.NoError(t, err)
	return env
}

func session(t *testing.T, start time.Time) *domain.Session {
	t.Helper()
	s, err := domain.NewSession(domain.SessionSpec{
		Title:           "Forklift refresher",
		Interval:        domain.IntervalOf(start, 2*time.Hour),
		Timezone:        "UTC",
		MinParticipants: 1,
		MaxParticipants: 8,
	})
	require.NoError(t, err)
	return s
}

func TestCalendarSubscriber_Patterns(t *testing.T) {
	sub := NewCalendarSubscriber(NewLogCalendarSink(quietLogger()), quietLogger())
	registry := eventbus.NewConsumerRegistry(quietLogger())
	registry.Register(sub)

	assert.Len(t, registry.GetConsumers(domain.RoutingKeySessionCancelled), 1)
	assert.Empty(t, registry.GetConsumers(domain.RoutingKeyAllocationReleased))
}

func TestCalendarSubscriber_Changes(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := session(t, start)
	at := start.Add(-time.Hour)

	tests := []struct {
		name   string
		event  sharedDomain.DomainEvent
		expect CalendarChange
	}{
		{
			name:  "scheduled",
			event: domain.NewSessionScheduled(s, at),
			expect: CalendarChange{
				Action: CalendarUpsert, Start: start, End: start.Add(2 * time.Hour),
			},
		},
		{
			name:  "rescheduled",
			event: domain.NewSessionRescheduled(s, domain.IntervalOf(start.Add(-24*time.Hour), time.Hour), at),
			expect: CalendarChange{
				Action: CalendarUpsert, Start: start, End: start.Add(2 * time.Hour),
			},
		},
		{
			name:  "cancelled",
			event: domain.NewSessionCancelled(s, "trainer sick", at),
			expect: CalendarChange{
				Action: CalendarDelete, Start: start, Reason: "trainer sick",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := new(mockCalendarSink)
			var got CalendarChange
			sink.On("Apply", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				got = args.Get(1).(CalendarChange)
			}).Return(nil)

			sub := NewCalendarSubscriber(sink, quietLogger())
			require.NoError(t, sub.Handle(context.Background(), envelope(t, tt.event)))
			sink.AssertNumberOfCalls(t, "Apply", 1)

			assert.Equal(t, s.ID(), got.SessionID)
			assert.Equal(t, "Forklift refresher", got.Title)
			assert.Equal(t, tt.expect.Action, got.Action)
			assert.True(t, tt.expect.Start.Equal(got.Start))
			assert.True(t, tt.expect.End.Equal(got.End))
			assert.Equal(t, tt.expect.Reason, got.Reason)
			assert.True(t, at.Equal(got.OccurredAt))
		})
	}
}

func TestCalendarSubscriber_IgnoresInstructorChange(t *testing.T) {
	s := session(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	sink := new(mockCalendarSink)
	sub := NewCalendarSubscriber(sink, quietLogger())

	err := sub.Handle(context.Background(), envelope(t, domain.NewSessionInstructorChanged(s, uuid.New(), time.Now())))
	require.NoError(t, err)
	sink.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
}

func TestCalendarSubscriber_Errors(t *testing.T) {
	s := session(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	boom := errors.New("calendar offline")
	sink := new(mockCalendarSink)
	sink.On("Apply", mock.Anything, mock.Anything).Return(boom)
	sub := NewCalendarSubscriber(sink, quietLogger())

	err := sub.Handle(context.Background(), envelope(t, domain.NewSessionScheduled(s, time.Now())))
	assert.ErrorIs(t, err, boom)

	broken := envelope(t, domain.NewSessionScheduled(s, time.Now()))
	broken.Payload = nil
	assert.Error(t, sub.Handle(context.Background(), broken))
}
