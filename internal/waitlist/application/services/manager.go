package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	schedulingServices "github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// RosterKey is the lock key of a session's roster. It is taken before the
// session key, which the directory takes when recording counts.
func RosterKey(sessionID uuid.UUID) string { return "roster:" + sessionID.String() }

// Deps are the collaborators of the waitlist manager.
type Deps struct {
	Rosters  domain.RosterRepository
	Sessions SessionDirectory
	Locker   schedulingServices.KeyedLocker
	UoW      application.UnitOfWork
	Events   application.EventDispatcher
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Manager owns the per-session waitlists and enrollments.
type Manager struct {
	deps   Deps
	logger *slog.Logger
}

// NewManager creates a waitlist manager.
func NewManager(deps Deps) *Manager {
	if deps.Locker == nil {
		deps.Locker = schedulingServices.NewMemoryLocker()
	}
	if deps.UoW == nil {
		deps.UoW = application.NoopUnitOfWork{}
	}
	if deps.Events == nil {
		deps.Events = &application.CollectingDispatcher{}
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps, logger: deps.Logger}
}

// AddRequest asks for a place on a session's waitlist.
type AddRequest struct {
	SessionID   uuid.UUID  `validate:"required"`
	RequesterID uuid.UUID  `validate:"required"`
	Priority    string     `validate:"omitempty,oneof=normal high urgent"`
	AutoEnroll  bool
	ExpiresAt   *time.Time
}

// Add puts a requester at the end of the waitlist.
func (m *Manager) Add(ctx context.Context, req AddRequest) (*domain.Entry, error) {
	const op = "waitlist.add"
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}
	var entry *domain.Entry
	err := m.withRoster(ctx, op, req.SessionID, func(info *SessionInfo, roster *domain.Roster) error {
		if !info.WaitlistEnabled {
			return sharedDomain.InvalidRequest(op, "session %s has no waitlist", info.ID)
		}
		if !info.EnrollmentOpen(m.deps.Clock()) {
			return sharedDomain.InvalidRequest(op, "enrollment for session %s is closed", info.ID)
		}
		priority, err := domain.ParsePriority(req.Priority)
		if err != nil {
			return rosterError(op, err, req.SessionID)
		}
		entry, err = roster.Add(domain.AddSpec{
			RequesterID: req.RequesterID,
			Priority:    priority,
			AutoEnroll:  req.AutoEnroll,
			ExpiresAt:   req.ExpiresAt,
		}, m.deps.Clock())
		if err != nil {
			return rosterError(op, err, req.SessionID, req.RequesterID)
		}
		return m.persist(ctx, roster)
	})
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "waitlist entry added",
		"session_id", req.SessionID,
		"entry_id", entry.ID(),
		"position", entry.Position(),
		"priority", entry.Priority(),
	)
	return entry, nil
}

// Remove takes an entry off the waitlist.
func (m *Manager) Remove(ctx context.Context, sessionID, entryID uuid.UUID, reason string) error {
	const op = "waitlist.remove"
	return m.withRoster(ctx, op, sessionID, func(_ *SessionInfo, roster *domain.Roster) error {
		if err := roster.Remove(entryID, reason, m.deps.Clock()); err != nil {
			return rosterError(op, err, sessionID, entryID)
		}
		return m.persist(ctx, roster)
	})
}

// Reorder sets the queue order explicitly.
func (m *Manager) Reorder(ctx context.Context, sessionID uuid.UUID, order []uuid.UUID) ([]*domain.Entry, error) {
	const op = "waitlist.reorder"
	var waiting []*domain.Entry
	err := m.withRoster(ctx, op, sessionID, func(_ *SessionInfo, roster *domain.Roster) error {
		if err := roster.Reorder(order, m.deps.Clock()); err != nil {
			return rosterError(op, err, sessionID)
		}
		waiting = roster.Waiting()
		return m.persist(ctx, roster)
	})
	return waiting, err
}

// ReorderByPriority sorts the queue by priority.
func (m *Manager) ReorderByPriority(ctx context.Context, sessionID uuid.UUID) ([]*domain.Entry, error) {
	const op = "waitlist.reorder_by_priority"
	var waiting []*domain.Entry
	err := m.withRoster(ctx, op, sessionID, func(_ *SessionInfo, roster *domain.Roster) error {
		roster.ReorderByPriority(m.deps.Clock())
		waiting = roster.Waiting()
		return m.persist(ctx, roster)
	})
	return waiting, err
}

// ExtendExpiry moves the expiry of a waiting entry.
func (m *Manager) ExtendExpiry(ctx context.Context, sessionID, entryID uuid.UUID, until time.Time) (*domain.Entry, error) {
	const op = "waitlist.extend_expiry"
	var entry *domain.Entry
	err := m.withRoster(ctx, op, sessionID, func(_ *SessionInfo, roster *domain.Roster) error {
		var err error
		entry, err = roster.ExtendExpiry(entryID, until, m.deps.Clock())
		if err != nil {
			return rosterError(op, err, sessionID, entryID)
		}
		return m.persist(ctx, roster)
	})
	return entry, err
}

// Promote enrolls a waiting entry ahead of reconciliation.
func (m *Manager) Promote(ctx context.Context, sessionID, entryID uuid.UUID) (*domain.Enrollment, error) {
	const op = "waitlist.promote"
	var enrollment *domain.Enrollment
	err := m.withRoster(ctx, op, sessionID, func(info *SessionInfo, roster *domain.Roster) error {
		if roster.Entry(entryID) == nil {
			return sharedDomain.NotFound(op, "waitlist entry", entryID)
		}
		if info.FreeSeats(roster.EnrolledCount()) == 0 {
			return sharedDomain.NewError(sharedDomain.KindCapacityExceeded, op,
				fmt.Errorf("session %s is full", sessionID), sessionID)
		}
		var err error
		enrollment, err = roster.Promote(entryID, m.deps.Clock())
		if err != nil {
			return rosterError(op, err, sessionID, entryID)
		}
		roster.NotifyPositions(m.deps.Clock())
		return m.persist(ctx, roster)
	})
	return enrollment, err
}

// Enroll seats a participant directly.
func (m *Manager) Enroll(ctx context.Context, sessionID, participantID uuid.UUID) (*domain.Enrollment, error) {
	const op = "waitlist.enroll"
	var enrollment *domain.Enrollment
	err := m.withRoster(ctx, op, sessionID, func(info *SessionInfo, roster *domain.Roster) error {
		now := m.deps.Clock()
		if !info.EnrollmentOpen(now) {
			return sharedDomain.InvalidRequest(op, "enrollment for session %s is closed", sessionID)
		}
		if roster.EnrollmentOf(participantID) != nil {
			return rosterError(op, domain.ErrAlreadyEnrolled, sessionID, participantID)
		}
		if info.FreeSeats(roster.EnrolledCount()) == 0 {
			return sharedDomain.NewError(sharedDomain.KindCapacityExceeded, op,
				fmt.Errorf("session %s is full", sessionID), sessionID)
		}
		var err error
		enrollment, err = roster.Enroll(participantID, now)
		if err != nil {
			return rosterError(op, err, sessionID, participantID)
		}
		return m.persist(ctx, roster)
	})
	return enrollment, err
}

// CancellationResult reports a cancelled enrollment and the reconciliation
// it triggered, if any.
type CancellationResult struct {
	Enrollment *domain.Enrollment
	Reconciled *ProcessResult
}

// CancelEnrollment frees a participant's seat. When the session fills from
// its waitlist the freed seat is offered right away, under the same lock the
// periodic sweep takes.
func (m *Manager) CancelEnrollment(ctx context.Context, sessionID, participantID uuid.UUID, reason string) (*CancellationResult, error) {
	const op = "waitlist.cancel_enrollment"
	result := &CancellationResult{}
	err := m.withRoster(ctx, op, sessionID, func(info *SessionInfo, roster *domain.Roster) error {
		now := m.deps.Clock()
		if !info.CancellationOpen(now) {
			return sharedDomain.InvalidRequest(op, "cancellation deadline for session %s has passed", sessionID)
		}
		enrollment, err := roster.CancelEnrollment(participantID, reason, now)
		if err != nil {
			return rosterError(op, err, sessionID, participantID)
		}
		if err := m.persist(ctx, roster); err != nil {
			return err
		}
		result.Enrollment = enrollment
		if info.WaitlistEnabled && info.AutoEnroll {
			result.Reconciled, err = m.reconcile(ctx, info, roster)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Roster returns the session's roster, empty when nobody has joined yet.
func (m *Manager) Roster(ctx context.Context, sessionID uuid.UUID) (*domain.Roster, error) {
	const op = "waitlist.roster"
	if _, err := m.deps.Sessions.Lookup(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.load(ctx, op, sessionID)
}

// withRoster runs fn holding the roster lock with the session and its
// current roster loaded.
func (m *Manager) withRoster(ctx context.Context, op string, sessionID uuid.UUID, fn func(*SessionInfo, *domain.Roster) error) error {
	unlock, err := m.deps.Locker.Lock(ctx, RosterKey(sessionID))
	if err != nil {
		return err
	}
	defer unlock()

	info, err := m.deps.Sessions.Lookup(ctx, sessionID)
	if err != nil {
		return err
	}
	roster, err := m.load(ctx, op, sessionID)
	if err != nil {
		return err
	}
	return fn(info, roster)
}

func (m *Manager) load(ctx context.Context, op string, sessionID uuid.UUID) (*domain.Roster, error) {
	roster, err := m.deps.Rosters.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: load roster: %w", op, err)
	}
	if roster == nil {
		roster = domain.NewRoster(sessionID)
	}
	return roster, nil
}

// persist writes the roster, mirrors its totals onto the session and hands
// off its events in one unit of work.
func (m *Manager) persist(ctx context.Context, roster *domain.Roster) error {
	return application.WithUnitOfWork(ctx, m.deps.UoW, func(txCtx context.Context) error {
		if err := m.deps.Sessions.RecordCounts(txCtx, roster.SessionID(), roster.EnrolledCount(), roster.WaitlistedCount()); err != nil {
			return err
		}
		if err := m.deps.Rosters.Save(txCtx, roster); err != nil {
			m.restoreCounts(txCtx, roster.SessionID())
			return fmt.Errorf("save roster: %w", err)
		}
		events := roster.PullDomainEvents()
		if len(events) == 0 {
			return nil
		}
		if metadata, ok := application.EventMetadataFromContext(ctx); ok {
			application.ApplyEventMetadata(events, metadata)
		}
		return m.deps.Events.Dispatch(txCtx, events...)
	})
}

// restoreCounts mirrors the stored roster back onto the session after its
// save failed. SQL stores roll back with the transaction instead.
func (m *Manager) restoreCounts(ctx context.Context, sessionID uuid.UUID) {
	if _, ok := m.deps.UoW.(application.NoopUnitOfWork); !ok {
		return
	}
	stored, err := m.deps.Rosters.FindBySession(ctx, sessionID)
	if err == nil {
		if stored == nil {
			stored = domain.NewRoster(sessionID)
		}
		err = m.deps.Sessions.RecordCounts(ctx, sessionID, stored.EnrolledCount(), stored.WaitlistedCount())
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "session counts rollback failed", "session_id", sessionID, "error", err)
	}
}

// rosterError maps roster rule violations onto error kinds.
func rosterError(op string, err error, ids ...uuid.UUID) error {
	kind := sharedDomain.KindInvalidRequest
	switch {
	case errors.Is(err, domain.ErrAlreadyEnrolled), errors.Is(err, domain.ErrAlreadyWaitlisted):
		kind = sharedDomain.KindAlreadyEnrolled
	case errors.Is(err, domain.ErrReorderMismatch):
		kind = sharedDomain.KindInvalidReorder
	case errors.Is(err, domain.ErrEntryNotFound), errors.Is(err, domain.ErrEnrollmentNotFound):
		kind = sharedDomain.KindNotFound
	}
	return sharedDomain.NewError(kind, op, err, ids...)
}
