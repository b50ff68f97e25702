package subscribers

import (
	"context"

	"github.com/google/uuid"

	waitlistDomain "github.com/felixgeelhaar/cohort/internal/waitlist/domain"
)

// Audience resolves who hears about a change to a session.
type Audience interface {
	Recipients(ctx context.Context, sessionID uuid.UUID) ([]string, error)
}

// RosterAudience addresses the enrolled participants of a session followed
// by the requesters still waiting. It only reads, so it is safe to call
// while scheduling locks are held.
type RosterAudience struct {
	rosters waitlistDomain.RosterRepository
}

// NewRosterAudience creates an audience over the roster store.
func NewRosterAudience(rosters waitlistDomain.RosterRepository) *RosterAudience {
	return &RosterAudience{rosters: rosters}
}

// Recipients implements Audience.
func (a *RosterAudience) Recipients(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	roster, err := a.rosters.FindBySession(ctx, sessionID)
	if err != nil || roster == nil {
		return nil, err
	}
	var out []string
	for _, e := range roster.Enrollments() {
		if e.IsActive() {
			out = append(out, e.ParticipantID().String())
		}
	}
	for _, e := range roster.Waiting() {
		out = append(out, e.RequesterID().String())
	}
	return out, nil
}
