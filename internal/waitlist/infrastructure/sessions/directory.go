// Package sessions adapts the scheduling context to the waitlist's
// SessionDirectory.
package sessions

import (
	"context"

	"github.com/google/uuid"

	schedulingDomain "github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	schedulingServices "github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
)

// Directory reads sessions and their allocated resources from scheduling.
type Directory struct {
	sessions *schedulingServices.SessionService
	ledger   *schedulingServices.Ledger
	registry *schedulingServices.Registry
}

var _ services.SessionDirectory = (*Directory)(nil)

// NewDirectory creates a directory over the scheduling services.
func NewDirectory(sessions *schedulingServices.SessionService, ledger *schedulingServices.Ledger, registry *schedulingServices.Registry) *Directory {
	return &Directory{sessions: sessions, ledger: ledger, registry: registry}
}

// Lookup returns the waitlist view of a session. Capacity is the session
// maximum, lowered to the smallest allocated resource that has a capacity.
func (d *Directory) Lookup(ctx context.Context, sessionID uuid.UUID) (*services.SessionInfo, error) {
	session, err := d.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	capacity, err := d.capacity(ctx, session)
	if err != nil {
		return nil, err
	}
	wl := session.Waitlist()
	return &services.SessionInfo{
		ID:                   session.ID(),
		Title:                session.Title(),
		Start:                session.Interval().Start,
		Active:               session.IsActive(),
		Capacity:             capacity,
		WaitlistEnabled:      wl.Enabled,
		AutoEnroll:           wl.AutoEnroll,
		EnrollmentDeadline:   wl.EnrollmentDeadline,
		CancellationDeadline: wl.CancellationDeadline,
	}, nil
}

// RecordCounts mirrors roster totals onto the session.
func (d *Directory) RecordCounts(ctx context.Context, sessionID uuid.UUID, enrolled, waitlisted int) error {
	_, err := d.sessions.RecordCounts(ctx, sessionID, enrolled, waitlisted)
	return err
}

func (d *Directory) capacity(ctx context.Context, session *schedulingDomain.Session) (int, error) {
	capacity := session.MaxParticipants()
	allocations, err := d.ledger.SessionAllocations(ctx, session.ID())
	if err != nil {
		return 0, err
	}
	for _, a := range allocations {
		if !a.IsActive() {
			continue
		}
		resource, err := d.registry.GetResource(ctx, a.ResourceID())
		if err != nil {
			return 0, err
		}
		if resource.HasCapacity() && resource.Capacity() < capacity {
			capacity = resource.Capacity()
		}
	}
	return capacity, nil
}
