package domain

import (
	"context"

	"github.com/google/uuid"
)

// RosterRepository stores rosters with their entries and enrollments.
type RosterRepository interface {
	Save(ctx context.Context, roster *Roster) error
	// FindBySession returns (nil, nil) when the session has no roster yet.
	FindBySession(ctx context.Context, sessionID uuid.UUID) (*Roster, error)
	// SessionsWithWaiting lists sessions that have at least one waiting entry.
	SessionsWithWaiting(ctx context.Context) ([]uuid.UUID, error)
}
