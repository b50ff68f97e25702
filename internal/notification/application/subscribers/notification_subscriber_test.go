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

	"github.com/felixgeelhaar/cohort/internal/notification/domain"
	schedulingDomain "github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
	waitlistDomain "github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/felixgeelhaar/cohort/internal/waitlist/infrastructure/persistence"
)

var at = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, recipient string, kind domain.Kind, data map[string]any) error {
	return m.Called(ctx, recipient, kind, data).Error(0)
}

type staticAudience []string

func (a staticAudience) Recipients(context.Context, uuid.UUID) ([]string, error) { return a, nil }

func envelope(t *testing.T, event sharedDomain.DomainEvent) *eventbus.ConsumedEvent {
	t.Helper()
	e, err := eventbus.NewEnvelope(event)
	require.NoError(t, err)
	body, err := e.Encode()
	require.NoError(t, err)
	decoded, err := eventbus.Decode(body, e.RoutingKey)
	require.NoError(t, err)
	return decoded
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotificationSubscriber_EventTypesMatchBus(t *testing.T) {
	s := NewNotificationSubscriber(&mockNotifier{}, nil, "", quiet())
	registry := eventbus.NewConsumerRegistry(quiet())
	registry.Register(s)
	for _, key := range s.EventTypes() {
		assert.Len(t, registry.GetConsumers(key), 1, key)
	}
	assert.Empty(t, registry.GetConsumers(waitlistDomain.RoutingKeyEntryRemoved))
}

func TestNotificationSubscriber_WaitlistNotices(t *testing.T) {
	sessionID := uuid.New()
	roster := waitlistDomain.NewRoster(sessionID)
	entry, err := roster.Add(waitlistDomain.AddSpec{RequesterID: uuid.New(), AutoEnroll: true}, at)
	require.NoError(t, err)
	other, err := roster.Add(waitlistDomain.AddSpec{RequesterID: uuid.New()}, at)
	require.NoError(t, err)
	_, err = roster.Promote(entry.ID(), at)
	require.NoError(t, err)
	past := at.Add(time.Minute)
	_, err = roster.ExtendExpiry(other.ID(), past, at)
	require.NoError(t, err)
	roster.Expire(at.Add(time.Hour))

	want := map[string]domain.Kind{
		waitlistDomain.RoutingKeyEntryAdded:           domain.KindWaitlistConfirmation,
		waitlistDomain.RoutingKeyEntryPromoted:        domain.KindWaitlistPromoted,
		waitlistDomain.RoutingKeyEntryPositionChanged: domain.KindWaitlistPosition,
		waitlistDomain.RoutingKeyEntryExpired:         domain.KindWaitlistExpired,
	}
	seen := make(map[domain.Kind]bool)
	for _, event := range roster.PullDomainEvents() {
		kind, handled := want[event.RoutingKey()]
		if !handled {
			continue
		}
		notifier := &mockNotifier{}
		notifier.On("Notify", mock.Anything, mock.Anything, kind, mock.Anything).Return(nil).Once()
		s := NewNotificationSubscriber(notifier, nil, "", quiet())

		require.NoError(t, s.Handle(context.Background(), envelope(t, event)))
		notifier.AssertExpectations(t)
		call := notifier.Calls[0]
		assert.NotEmpty(t, call.Arguments.String(1))
		data := call.Arguments.Get(3).(map[string]any)
		assert.Equal(t, sessionID.String(), data["session_id"].(uuid.UUID).String())
		seen[kind] = true
	}
	assert.Len(t, seen, len(want))
}

func TestNotificationSubscriber_PositionNotice(t *testing.T) {
	sessionID := uuid.New()
	requester := uuid.New()
	event := &waitlistDomain.EntryPositionChangedEvent{
		BaseEvent:        sharedDomain.NewBaseEventAt(sessionID, waitlistDomain.RosterAggregateType, waitlistDomain.RoutingKeyEntryPositionChanged, at),
		SessionID:        sessionID,
		EntryID:          uuid.New(),
		RequesterID:      requester,
		Position:         1,
		PreviousPosition: 2,
		Waiting:          3,
	}
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, requester.String(), domain.KindWaitlistPosition, mock.MatchedBy(func(data map[string]any) bool {
		return data["position"] == 1 && data["previous_position"] == 2 && data["waiting"] == 3
	})).Return(nil).Once()

	s := NewNotificationSubscriber(notifier, nil, "", quiet())
	require.NoError(t, s.Handle(context.Background(), envelope(t, event)))
	notifier.AssertExpectations(t)
}

func TestNotificationSubscriber_SessionCancelledReachesEveryone(t *testing.T) {
	s, err := schedulingDomain.NewSession(schedulingDomain.SessionSpec{
		Title:           "Go basics",
		Interval:        schedulingDomain.IntervalOf(at.Add(48*time.Hour), time.Hour),
		Timezone:        "UTC",
		MaxParticipants: 10,
	})
	require.NoError(t, err)
	instructor := uuid.New()
	require.NoError(t, s.Schedule(s.Interval(), instructor, nil, at))
	s.PullDomainEvents()
	require.NoError(t, s.Cancel("trainer sick", at))
	events := s.PullDomainEvents()
	require.Len(t, events, 1)

	notifier := &mockNotifier{}
	for _, r := range []string{instructor.String(), "p-1", "p-2"} {
		notifier.On("Notify", mock.Anything, r, domain.KindSessionCancelled, mock.MatchedBy(func(data map[string]any) bool {
			return data["reason"] == "trainer sick" && data["title"] == "Go basics"
		})).Return(nil).Once()
	}

	sub := NewNotificationSubscriber(notifier, staticAudience{"p-1", "p-2"}, "", quiet())
	require.NoError(t, sub.Handle(context.Background(), envelope(t, events[0])))
	notifier.AssertExpectations(t)
}

func TestNotificationSubscriber_ConflictGoesToOps(t *testing.T) {
	c := schedulingDomain.NewSchedulingConflict(schedulingDomain.ConflictSpec{
		Type:        schedulingDomain.ConflictInstructor,
		Severity:    schedulingDomain.SeverityCritical,
		SessionIDs:  []uuid.UUID{uuid.New(), uuid.New()},
		Interval:    schedulingDomain.IntervalOf(at, time.Hour),
		Description: "instructor double booked",
	}, at)
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, "planning-desk", domain.KindConflictDetected, mock.Anything).Return(nil).Once()

	sub := NewNotificationSubscriber(notifier, nil, "planning-desk", quiet())
	require.NoError(t, sub.Handle(context.Background(), envelope(t, schedulingDomain.NewConflictDetected(c))))
	notifier.AssertExpectations(t)

	assert.Equal(t, DefaultOpsRecipient, NewNotificationSubscriber(notifier, nil, "", quiet()).opsRecipient)
}

func TestNotificationSubscriber_DeliveryFailureIsSwallowed(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	roster := waitlistDomain.NewRoster(uuid.New())
	_, err := roster.Add(waitlistDomain.AddSpec{RequesterID: uuid.New()}, at)
	require.NoError(t, err)

	sub := NewNotificationSubscriber(notifier, nil, "", quiet())
	assert.NoError(t, sub.Handle(context.Background(), envelope(t, roster.PullDomainEvents()[0])))
	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestNotificationSubscriber_BadPayload(t *testing.T) {
	notifier := &mockNotifier{}
	sub := NewNotificationSubscriber(notifier, nil, "", quiet())

	err := sub.Handle(context.Background(), &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: waitlistDomain.RoutingKeyEntryPromoted,
		Payload:    []byte(`{"session_id": 42}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), waitlistDomain.RoutingKeyEntryPromoted)

	assert.NoError(t, sub.Handle(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "waitlist.entry.removed"}))
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRosterAudience(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewInMemoryRosterRepository()
	audience := NewRosterAudience(repo)
	sessionID := uuid.New()

	none, err := audience.Recipients(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, none)

	roster := waitlistDomain.NewRoster(sessionID)
	seated, err := roster.Enroll(uuid.New(), at)
	require.NoError(t, err)
	waiting, err := roster.Add(waitlistDomain.AddSpec{RequesterID: uuid.New()}, at)
	require.NoError(t, err)
	gone, err := roster.Enroll(uuid.New(), at)
	require.NoError(t, err)
	_, err = roster.CancelEnrollment(gone.ParticipantID(), "moved", at)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, roster))

	recipients, err := audience.Recipients(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{seated.ParticipantID().String(), waiting.RequesterID().String()}, recipients)
}
