package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// Promotion is one entry turned into an enrollment.
type Promotion struct {
	EntryID      uuid.UUID
	RequesterID  uuid.UUID
	EnrollmentID uuid.UUID
}

// EntryError is a failure confined to one entry.
type EntryError struct {
	EntryID uuid.UUID
	Err     error
}

func (e EntryError) Error() string { return fmt.Sprintf("entry %s: %v", e.EntryID, e.Err) }
func (e EntryError) Unwrap() error { return e.Err }

// ProcessResult is the outcome of reconciling one session.
type ProcessResult struct {
	SessionID uuid.UUID
	Expired   []uuid.UUID
	Promoted  []Promotion
	Notified  int
	Errors    []EntryError
}

// SessionError is a failure that stopped one session's reconciliation.
type SessionError struct {
	SessionID uuid.UUID
	Err       error
}

func (e SessionError) Error() string { return fmt.Sprintf("session %s: %v", e.SessionID, e.Err) }
func (e SessionError) Unwrap() error { return e.Err }

// SweepResult is the outcome of reconciling every session with a waitlist.
type SweepResult struct {
	Sessions []*ProcessResult
	Errors   []SessionError
}

// Totals sums the per-session results.
func (r *SweepResult) Totals() (expired, promoted, notified, failed int) {
	for _, s := range r.Sessions {
		expired += len(s.Expired)
		promoted += len(s.Promoted)
		notified += s.Notified
		failed += len(s.Errors)
	}
	return expired, promoted, notified, failed + len(r.Errors)
}

// Err joins every collected failure, or returns nil.
func (r *SweepResult) Err() error {
	var errs []error
	for _, s := range r.Sessions {
		for _, e := range s.Errors {
			errs = append(errs, SessionError{SessionID: s.SessionID, Err: e})
		}
	}
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// ProcessSession reconciles one session's waitlist: expire stale entries,
// promote into free seats, then tell the rest where they stand.
func (m *Manager) ProcessSession(ctx context.Context, sessionID uuid.UUID) (*ProcessResult, error) {
	const op = "waitlist.process_session"
	var result *ProcessResult
	err := m.withRoster(ctx, op, sessionID, func(info *SessionInfo, roster *domain.Roster) error {
		var err error
		result, err = m.reconcile(ctx, info, roster)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessAll reconciles every session that has someone waiting. A failing
// session is recorded and the sweep moves on.
func (m *Manager) ProcessAll(ctx context.Context) (*SweepResult, error) {
	ids, err := m.deps.Rosters.SessionsWithWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("waitlist.process_all: %w", err)
	}
	sweep := &SweepResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sweep, err
		}
		result, err := m.ProcessSession(ctx, id)
		if err != nil {
			m.logger.WarnContext(ctx, "waitlist reconciliation failed", "session_id", id, "error", err)
			sweep.Errors = append(sweep.Errors, SessionError{SessionID: id, Err: err})
			continue
		}
		sweep.Sessions = append(sweep.Sessions, result)
	}
	expired, promoted, notified, failed := sweep.Totals()
	m.logger.InfoContext(ctx, "waitlist sweep finished",
		"sessions", len(ids),
		"expired", expired,
		"promoted", promoted,
		"notified", notified,
		"failed", failed,
	)
	return sweep, nil
}

// reconcile runs with the roster lock held. Each promotion is persisted on
// its own so a failure leaves the entry waiting and the seat free.
func (m *Manager) reconcile(ctx context.Context, info *SessionInfo, roster *domain.Roster) (*ProcessResult, error) {
	now := m.deps.Clock()
	result := &ProcessResult{SessionID: info.ID}

	if expired := roster.Expire(now); len(expired) > 0 {
		if err := m.persist(ctx, roster); err != nil {
			return nil, fmt.Errorf("expire entries: %w", err)
		}
		for _, e := range expired {
			result.Expired = append(result.Expired, e.ID())
		}
	}

	if info.WaitlistEnabled && info.AutoEnroll && info.EnrollmentOpen(now) {
		free := info.FreeSeats(roster.EnrolledCount())
		for _, entry := range roster.PromotionOrder() {
			if free == 0 {
				break
			}
			before := roster.Clone()
			enrollment, err := roster.Promote(entry.ID(), now)
			if err == nil {
				err = m.persist(ctx, roster)
			}
			if err != nil {
				result.Errors = append(result.Errors, EntryError{EntryID: entry.ID(), Err: err})
				roster = before
				continue
			}
			free--
			result.Promoted = append(result.Promoted, Promotion{
				EntryID:      entry.ID(),
				RequesterID:  entry.RequesterID(),
				EnrollmentID: enrollment.ID(),
			})
		}
	}

	if notified := roster.NotifyPositions(now); len(notified) > 0 {
		if err := m.persist(ctx, roster); err != nil {
			return result, fmt.Errorf("notify positions: %w", err)
		}
		result.Notified = len(notified)
	}
	return result, nil
}
