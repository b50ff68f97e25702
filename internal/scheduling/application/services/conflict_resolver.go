package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrSplitNotSupported = errors.New("splitting a session is not supported")
	ErrNoSubstitute      = errors.New("no substitute found")
	ErrConflictPersists  = errors.New("conflict persists after resolution")
	ErrUnknownResolution = errors.New("unknown resolution strategy")
)

// ResolutionOutcome reports what a resolution changed.
type ResolutionOutcome struct {
	ConflictID uuid.UUID
	Strategy   domain.ResolutionType
	// Sessions are the sessions that were changed.
	Sessions    []uuid.UUID
	Details     []string
	Reschedules []*OptimizationResult
}

// ConflictResolver applies a resolution strategy to a conflict.
type ConflictResolver struct {
	deps     Deps
	ledger   *Ledger
	engine   *OptimizationEngine
	sessions *SessionService
	detector *ConflictDetector
	log      ConflictLog
	logger   *slog.Logger
}

// NewConflictResolver creates a resolver.
func NewConflictResolver(
	deps Deps,
	ledger *Ledger,
	engine *OptimizationEngine,
	sessions *SessionService,
	detector *ConflictDetector,
	log ConflictLog,
) *ConflictResolver {
	deps = deps.withDefaults()
	return &ConflictResolver{
		deps:     deps,
		ledger:   ledger,
		engine:   engine,
		sessions: sessions,
		detector: detector,
		log:      log,
		logger:   deps.Logger.With("component", "conflict_resolver"),
	}
}

// ResolveByID resolves a conflict from the conflict log.
func (r *ConflictResolver) ResolveByID(ctx context.Context, conflictID uuid.UUID, strategy domain.ResolutionType) (*ResolutionOutcome, error) {
	const op = "resolver.resolve"
	conflict, err := r.log.Get(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if conflict == nil {
		return nil, sharedDomain.NotFound(op, "conflict", conflictID)
	}
	return r.Resolve(ctx, conflict, strategy)
}

// Resolve applies strategy to conflict. An empty strategy picks the first
// candidate resolution of the conflict's type.
func (r *ConflictResolver) Resolve(ctx context.Context, conflict *domain.SchedulingConflict, strategy domain.ResolutionType) (*ResolutionOutcome, error) {
	const op = "resolver.resolve"
	if conflict.IsResolved() {
		return nil, invalid(op, domain.ErrConflictResolved, conflict.ID())
	}
	if strategy == "" {
		candidates := conflict.Resolutions()
		if len(candidates) == 0 {
			return nil, sharedDomain.NewError(sharedDomain.KindUnresolvable, op, ErrNoSubstitute, conflict.ID())
		}
		strategy = candidates[0]
	}
	if !strategy.Valid() {
		return nil, invalid(op, fmt.Errorf("%w: %q", ErrUnknownResolution, strategy), conflict.ID())
	}

	sessions, err := r.affectedSessions(ctx, conflict)
	if err != nil {
		return nil, err
	}
	outcome := &ResolutionOutcome{ConflictID: conflict.ID(), Strategy: strategy}

	switch strategy {
	case domain.ResolutionReschedule:
		err = r.reschedule(ctx, conflict, sessions, outcome)
	case domain.ResolutionReallocateResource:
		err = r.reallocate(ctx, conflict, sessions, outcome)
	case domain.ResolutionChangeInstructor:
		err = r.changeInstructor(ctx, conflict, sessions, outcome)
	case domain.ResolutionSplitSession:
		err = sharedDomain.NewError(sharedDomain.KindNotSupported, op, ErrSplitNotSupported, conflict.ID())
	case domain.ResolutionCancel:
		err = r.cancel(ctx, conflict, sessions, outcome)
	}
	if err != nil {
		r.logger.InfoContext(ctx, "conflict not resolved",
			"conflict_id", conflict.ID(), "strategy", strategy, "error", err)
		return outcome, err
	}

	now := r.deps.Clock()
	if err := conflict.Resolve(strategy, now); err != nil {
		return nil, invalid(op, err, conflict.ID())
	}
	if err := r.log.Put(ctx, conflict); err != nil {
		return nil, fmt.Errorf("%s: log: %w", op, err)
	}
	event := domain.NewConflictResolved(conflict, now)
	events := []sharedDomain.DomainEvent{event}
	if metadata, ok := application.EventMetadataFromContext(ctx); ok {
		application.ApplyEventMetadata(events, metadata)
	}
	if err := r.deps.Events.Dispatch(ctx, events...); err != nil {
		return nil, fmt.Errorf("%s: dispatch: %w", op, err)
	}
	r.logger.InfoContext(ctx, "conflict resolved",
		"conflict_id", conflict.ID(), "type", conflict.Type(), "strategy", strategy, "sessions", len(outcome.Sessions))
	return outcome, nil
}

// affectedSessions loads the conflict's active sessions, the one that gives
// way first: lowest priority, and among equals the most recently created.
func (r *ConflictResolver) affectedSessions(ctx context.Context, conflict *domain.SchedulingConflict) ([]*domain.Session, error) {
	sessions := make([]*domain.Session, 0, len(conflict.SessionIDs()))
	for _, id := range conflict.SessionIDs() {
		s, err := r.deps.Repos.Sessions.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolver: session %s: %w", id, err)
		}
		if s != nil && s.IsActive() {
			sessions = append(sessions, s)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.PriorityRank() != b.PriorityRank() {
			return a.PriorityRank() < b.PriorityRank()
		}
		return a.CreatedAt().After(b.CreatedAt())
	})
	return sessions, nil
}

// persists re-detects over the conflict's sessions and reports whether the
// same conflict is still there.
func (r *ConflictResolver) persists(ctx context.Context, conflict *domain.SchedulingConflict) (bool, error) {
	sessions := make([]*domain.Session, 0, len(conflict.SessionIDs()))
	for _, id := range conflict.SessionIDs() {
		s, err := r.deps.Repos.Sessions.FindByID(ctx, id)
		if err != nil {
			return false, fmt.Errorf("resolver: session %s: %w", id, err)
		}
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	detected, err := r.detector.Detect(ctx, sessions)
	if err != nil {
		return false, err
	}
	fp := conflict.Fingerprint()
	for _, c := range detected {
		if c.Fingerprint() == fp {
			return true, nil
		}
	}
	return false, nil
}

func (r *ConflictResolver) reschedule(
	ctx context.Context,
	conflict *domain.SchedulingConflict,
	sessions []*domain.Session,
	outcome *ResolutionOutcome,
) error {
	const op = "resolver.reschedule"
	for _, s := range sessions {
		result, err := r.engine.Reschedule(ctx, s.ID())
		if result != nil {
			outcome.Reschedules = append(outcome.Reschedules, result)
		}
		if err != nil {
			if sharedDomain.IsKind(err, sharedDomain.KindUnresolvable) || sharedDomain.IsKind(err, sharedDomain.KindInvalidRequest) {
				outcome.Details = append(outcome.Details, fmt.Sprintf("%s: %v", s.Title(), err))
				continue
			}
			return err
		}
		if !result.Success {
			outcome.Details = append(outcome.Details, fmt.Sprintf("%s: no conflict-free placement", s.Title()))
			continue
		}
		outcome.Sessions = append(outcome.Sessions, s.ID())
		outcome.Details = append(outcome.Details,
			fmt.Sprintf("%s moved to %s", s.Title(), formatInterval(result.Committed.Interval)))
		still, err := r.persists(ctx, conflict)
		if err != nil {
			return err
		}
		if !still {
			return nil
		}
	}
	if len(outcome.Sessions) == 0 {
		return sharedDomain.NewError(sharedDomain.KindUnresolvable, op, ErrNoSubstitute, conflict.SessionIDs()...)
	}
	return sharedDomain.NewError(sharedDomain.KindUnresolvable, op, ErrConflictPersists, conflict.SessionIDs()...)
}

// reallocate moves the conflicting resources of the lowest priority session
// to substitutes of the same type with enough capacity and every feature
// of the original.
func (r *ConflictResolver) reallocate(
	ctx context.Context,
	conflict *domain.SchedulingConflict,
	sessions []*domain.Session,
	outcome *ResolutionOutcome,
) error {
	const op = "resolver.reallocate"
	contested := make(map[uuid.UUID]bool, len(conflict.ResourceIDs()))
	for _, id := range conflict.ResourceIDs() {
		contested[id] = true
	}
	for _, s := range sessions {
		moved, err := r.reallocateSession(ctx, s, contested, outcome)
		if err != nil {
			return err
		}
		if !moved {
			continue
		}
		outcome.Sessions = append(outcome.Sessions, s.ID())
		still, err := r.persists(ctx, conflict)
		if err != nil {
			return err
		}
		if !still {
			return nil
		}
	}
	return sharedDomain.NewError(sharedDomain.KindUnresolvable, op, ErrNoSubstitute, conflict.SessionIDs()...)
}

func (r *ConflictResolver) reallocateSession(
	ctx context.Context,
	s *domain.Session,
	contested map[uuid.UUID]bool,
	outcome *ResolutionOutcome,
) (bool, error) {
	const op = "resolver.reallocate"
	unlock, err := r.deps.Locker.Lock(ctx, SessionKey(s.ID()))
	if err != nil {
		return false, err
	}
	defer unlock()

	allocations, err := r.deps.Repos.Allocations.FindBySession(ctx, s.ID())
	if err != nil {
		return false, fmt.Errorf("%s: allocations: %w", op, err)
	}
	all, err := r.deps.Repos.Resources.List(ctx, domain.ResourceFilter{})
	if err != nil {
		return false, fmt.Errorf("%s: resources: %w", op, err)
	}
	held := make(map[uuid.UUID]bool, len(allocations))
	for _, a := range allocations {
		held[a.ResourceID()] = true
	}

	ids := make([]uuid.UUID, 0, len(allocations))
	changed := false
	for _, a := range allocations {
		if !contested[a.ResourceID()] && len(contested) > 0 {
			ids = append(ids, a.ResourceID())
			continue
		}
		original, err := r.deps.Repos.Resources.FindByID(ctx, a.ResourceID())
		if err != nil {
			return false, fmt.Errorf("%s: resource: %w", op, err)
		}
		if original == nil {
			ids = append(ids, a.ResourceID())
			continue
		}
		sub := r.substituteResource(ctx, s, original, all, held)
		if sub == nil {
			ids = append(ids, a.ResourceID())
			continue
		}
		held[sub.ID()] = true
		ids = append(ids, sub.ID())
		changed = true
		outcome.Details = append(outcome.Details, fmt.Sprintf("%s moved from %s to %s", s.Title(), original.Name(), sub.Name()))
	}
	if !changed {
		return false, nil
	}
	if _, err := r.ledger.ReplaceSessionAllocations(ctx, s.ID(), s.Interval(), ids, "reallocated by conflict resolution"); err != nil {
		if sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// substituteResource picks the best free resource that can stand in for
// original during the session.
func (r *ConflictResolver) substituteResource(
	ctx context.Context,
	s *domain.Session,
	original *domain.Resource,
	all []*domain.Resource,
	held map[uuid.UUID]bool,
) *domain.Resource {
	need := s.MaxParticipants()
	var options []*domain.Resource
	for _, res := range all {
		if res.ID() == original.ID() || held[res.ID()] || res.Type() != original.Type() {
			continue
		}
		if original.HasCapacity() && res.Capacity() < need {
			continue
		}
		if !res.HasFeatures(original.Features()) {
			continue
		}
		if err := r.ledger.checkResource(ctx, "resolver.reallocate", res, s.Interval(), s.ID()); err != nil {
			continue
		}
		options = append(options, res)
	}
	if len(options) == 0 {
		return nil
	}
	// Tightest fit first.
	sort.SliceStable(options, func(i, j int) bool { return options[i].Capacity() < options[j].Capacity() })
	return options[0]
}

func (r *ConflictResolver) changeInstructor(
	ctx context.Context,
	conflict *domain.SchedulingConflict,
	sessions []*domain.Session,
	outcome *ResolutionOutcome,
) error {
	const op = "resolver.change_instructor"
	instructors, err := r.deps.Repos.Instructors.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: instructors: %w", op, err)
	}
	sort.SliceStable(instructors, func(i, j int) bool { return instructors[i].Rating() > instructors[j].Rating() })

	for _, s := range sessions {
		if !s.HasInstructor() {
			continue
		}
		if conflict.InstructorID() != uuid.Nil && s.InstructorID() != conflict.InstructorID() {
			continue
		}
		var pref domain.InstructorPreference
		if req := s.Request(); req != nil {
			pref = req.Instructor
		}
		for _, inst := range instructors {
			if inst.ID() == s.InstructorID() || !inst.SatisfiesFilters(pref, s.Interval().Start) {
				continue
			}
			ok, err := r.assignInstructor(ctx, s.ID(), inst)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			outcome.Sessions = append(outcome.Sessions, s.ID())
			outcome.Details = append(outcome.Details, fmt.Sprintf("%s now taught by %s", s.Title(), inst.Name()))
			still, err := r.persists(ctx, conflict)
			if err != nil {
				return err
			}
			if !still {
				return nil
			}
			break
		}
	}
	return sharedDomain.NewError(sharedDomain.KindUnresolvable, op, ErrNoSubstitute, conflict.SessionIDs()...)
}

// assignInstructor hands the session to inst if inst is free, under the
// session and instructor locks.
func (r *ConflictResolver) assignInstructor(ctx context.Context, sessionID uuid.UUID, inst *domain.Instructor) (bool, error) {
	const op = "resolver.change_instructor"
	unlock, err := r.deps.Locker.Lock(ctx, SessionKey(sessionID), InstructorKey(inst.ID()))
	if err != nil {
		return false, err
	}
	defer unlock()

	session, err := r.deps.Repos.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("%s: session: %w", op, err)
	}
	if session == nil || !session.IsActive() {
		return false, nil
	}
	from, to := instructorWindow(session.Interval())
	teaching, err := r.deps.Repos.Sessions.FindByInstructor(ctx, inst.ID(), from, to)
	if err != nil {
		return false, fmt.Errorf("%s: instructor sessions: %w", op, err)
	}
	others := make([]*domain.Session, 0, len(teaching))
	for _, t := range teaching {
		if t.ID() != sessionID && t.IsActive() {
			others = append(others, t)
		}
	}
	if instructorClash(inst, session.Interval(), others, session.Location(), r.engine.config.MinBreak) != "" {
		return false, nil
	}

	err = application.WithUnitOfWork(ctx, r.deps.UoW, func(txCtx context.Context) error {
		if err := session.AssignInstructor(inst.ID(), r.deps.Clock()); err != nil {
			return invalid(op, err, sessionID)
		}
		if err := r.deps.Repos.Sessions.Save(txCtx, session); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return r.deps.dispatch(txCtx, session)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// cancel cancels the lowest priority session of the conflict.
func (r *ConflictResolver) cancel(
	ctx context.Context,
	conflict *domain.SchedulingConflict,
	sessions []*domain.Session,
	outcome *ResolutionOutcome,
) error {
	if len(sessions) == 0 {
		return sharedDomain.NewError(sharedDomain.KindUnresolvable, "resolver.cancel", ErrNoSubstitute, conflict.ID())
	}
	loser := sessions[0]
	reason := fmt.Sprintf("cancelled to resolve %s", conflict.Type())
	if _, err := r.sessions.CancelSession(ctx, loser.ID(), reason); err != nil {
		return err
	}
	outcome.Sessions = append(outcome.Sessions, loser.ID())
	outcome.Details = append(outcome.Details, fmt.Sprintf("%s cancelled", loser.Title()))
	return nil
}
