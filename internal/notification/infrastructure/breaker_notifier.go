package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/cohort/internal/notification/domain"
)

// BreakerConfig configures the circuit breaker around a notifier.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// MaxRequests is the number of trial calls in the half-open state.
	MaxRequests uint32
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second, MaxRequests: 1}
}

// BreakerNotifier stops calling a failing notifier for a while so a broken
// delivery channel cannot slow the event consumers down.
type BreakerNotifier struct {
	next    domain.Notifier
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewBreakerNotifier wraps next in a circuit breaker.
func NewBreakerNotifier(next domain.Notifier, config BreakerConfig, logger *slog.Logger) *BreakerNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	n := &BreakerNotifier{next: next, logger: logger}
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: config.MaxRequests,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not the channel's fault
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrRecipientRequired)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return n
}

// Notify implements domain.Notifier. It fails fast with
// gobreaker.ErrOpenState while the breaker is open.
func (n *BreakerNotifier) Notify(ctx context.Context, recipient string, kind domain.Kind, data map[string]any) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.next.Notify(ctx, recipient, kind, data)
	})
	return err
}

// State reports the breaker state.
func (n *BreakerNotifier) State() gobreaker.State {
	return n.breaker.State()
}
