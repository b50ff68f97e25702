// Package domain defines the notices the engine sends to people.
package domain

import (
	"context"
	"errors"
)

// Kind identifies a notice template.
type Kind string

const (
	KindWaitlistConfirmation Kind = "waitlist_confirmation"
	KindWaitlistPosition     Kind = "waitlist_position"
	KindWaitlistPromoted     Kind = "waitlist_promoted"
	KindWaitlistExpired      Kind = "waitlist_expired"
	KindSessionCancelled     Kind = "session_cancelled"
	KindSessionRescheduled   Kind = "session_rescheduled"
	KindConflictDetected     Kind = "conflict_detected"
)

// ErrRecipientRequired is returned for a notice without a recipient.
var ErrRecipientRequired = errors.New("notification recipient is required")

// Notifier delivers a notice. Delivery mechanics live behind it.
type Notifier interface {
	Notify(ctx context.Context, recipient string, kind Kind, data map[string]any) error
}
