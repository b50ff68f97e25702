package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/notification/domain"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, recipient string, kind domain.Kind, data map[string]any) error {
	return m.Called(ctx, recipient, kind, data).Error(0)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	err := n.Notify(context.Background(), "ada", domain.KindWaitlistPosition, map[string]any{"position": 2})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "recipient=ada")
	assert.Contains(t, buf.String(), "kind=waitlist_position")
	assert.Contains(t, buf.String(), "position=2")

	assert.ErrorIs(t, n.Notify(context.Background(), "", domain.KindWaitlistPosition, nil), domain.ErrRecipientRequired)
}

func TestBreakerNotifier_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &mockNotifier{}
	down := errors.New("smtp unreachable")
	next.On("Notify", mock.Anything, "ada", domain.KindWaitlistPromoted, mock.Anything).Return(down).Times(3)

	n := NewBreakerNotifier(next, BreakerConfig{FailureThreshold: 3, Timeout: time.Hour}, nil)
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, n.Notify(context.Background(), "ada", domain.KindWaitlistPromoted, nil), down)
	}
	assert.Equal(t, gobreaker.StateOpen, n.State())

	err := n.Notify(context.Background(), "ada", domain.KindWaitlistPromoted, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	next.AssertExpectations(t)
}

func TestBreakerNotifier_PassesThrough(t *testing.T) {
	next := &mockNotifier{}
	data := map[string]any{"session_id": "s-1"}
	next.On("Notify", mock.Anything, "ops", domain.KindConflictDetected, data).Return(nil).Once()
	next.On("Notify", mock.Anything, "", domain.KindConflictDetected, mock.Anything).Return(domain.ErrRecipientRequired)

	n := NewBreakerNotifier(next, DefaultBreakerConfig(), nil)
	require.NoError(t, n.Notify(context.Background(), "ops", domain.KindConflictDetected, data))
	for i := 0; i < 10; i++ {
		_ = n.Notify(context.Background(), "", domain.KindConflictDetected, nil)
	}
	assert.Equal(t, gobreaker.StateClosed, n.State())
}
