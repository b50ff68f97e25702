package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// SessionService owns the session lifecycle outside of placement.
type SessionService struct {
	deps   Deps
	ledger *Ledger
	logger *slog.Logger
}

// NewSessionService creates a session service.
func NewSessionService(deps Deps, ledger *Ledger) *SessionService {
	deps = deps.withDefaults()
	return &SessionService{deps: deps, ledger: ledger, logger: deps.Logger.With("component", "sessions")}
}

// CreateSession registers a draft session.
func (s *SessionService) CreateSession(ctx context.Context, spec domain.SessionSpec) (*domain.Session, error) {
	const op = "sessions.create"
	session, err := domain.NewSession(spec)
	if err != nil {
		return nil, invalid(op, err)
	}
	if err := s.deps.Repos.Sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	s.logger.InfoContext(ctx, "session created", "session_id", session.ID(), "title", session.Title())
	return session, nil
}

// GetSession loads a session.
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	session, err := s.deps.Repos.Sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sessions.get: %w", err)
	}
	if session == nil {
		return nil, sharedDomain.NotFound("sessions.get", "session", id)
	}
	return session, nil
}

// ListSessions returns the sessions intersecting [from, to).
func (s *SessionService) ListSessions(ctx context.Context, from, to time.Time) ([]*domain.Session, error) {
	if !to.After(from) {
		return nil, sharedDomain.InvalidRequest("sessions.list", "range end must be after start")
	}
	return s.deps.Repos.Sessions.FindInRange(ctx, from, to)
}

// CancelSession cancels a session and releases its allocations in one unit
// of work. The SessionCancelled event carries the notices.
func (s *SessionService) CancelSession(ctx context.Context, id uuid.UUID, reason string) (*domain.Session, error) {
	const op = "sessions.cancel"
	unlock, err := s.deps.Locker.Lock(ctx, SessionKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, invalid(op, domain.ErrSessionClosed, id)
	}

	release, err := s.ledger.lockSession(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	defer release()

	released := 0
	err = application.WithUnitOfWork(ctx, s.deps.UoW, func(txCtx context.Context) error {
		if err := session.Cancel(reason, s.deps.Clock()); err != nil {
			return invalid(op, err, id)
		}
		if err := s.deps.Repos.Sessions.Save(txCtx, session); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		n, err := s.ledger.releaseSession(txCtx, id, "session cancelled")
		if err != nil {
			return err
		}
		released = n
		return s.deps.dispatch(txCtx, session)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "session cancelled", "session_id", id, "reason", reason, "released", released)
	return session, nil
}

// ConfirmSession locks the session in once its participant bounds hold.
func (s *SessionService) ConfirmSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	const op = "sessions.confirm"
	return s.mutate(ctx, op, id, func(session *domain.Session) error {
		if err := session.Confirm(s.deps.Clock()); err != nil {
			return sharedDomain.NewError(sharedDomain.KindCapacityExceeded, op, err, id)
		}
		return nil
	})
}

// RecordCounts stores the live enrolled and waitlisted counts of a session.
func (s *SessionService) RecordCounts(ctx context.Context, id uuid.UUID, enrolled, waitlisted int) (*domain.Session, error) {
	const op = "sessions.record_counts"
	return s.mutate(ctx, op, id, func(session *domain.Session) error {
		if err := session.SetCounts(enrolled, waitlisted, s.deps.Clock()); err != nil {
			return invalid(op, err, id)
		}
		return nil
	})
}

// UpdateBounds changes the participant bounds of a session.
func (s *SessionService) UpdateBounds(ctx context.Context, id uuid.UUID, min, max int) (*domain.Session, error) {
	const op = "sessions.update_bounds"
	return s.mutate(ctx, op, id, func(session *domain.Session) error {
		if err := session.UpdateBounds(min, max, s.deps.Clock()); err != nil {
			if errors.Is(err, domain.ErrAboveMaximum) {
				return sharedDomain.NewError(sharedDomain.KindCapacityExceeded, op, err, id)
			}
			return invalid(op, err, id)
		}
		return nil
	})
}

func (s *SessionService) mutate(ctx context.Context, op string, id uuid.UUID, fn func(*domain.Session) error) (*domain.Session, error) {
	unlock, err := s.deps.Locker.Lock(ctx, SessionKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	if err := s.deps.Repos.Sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	if err := s.deps.dispatch(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
