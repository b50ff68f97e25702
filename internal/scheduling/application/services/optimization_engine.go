package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrNoFutureStart   = errors.New("no preferred start time is in the future")
	ErrInstructorBusy  = errors.New("instructor is no longer free")
	ErrNoViableOptions = errors.New("no candidate cleared the score threshold")
)

// EngineConfig tunes the candidate search.
type EngineConfig struct {
	MinBreak time.Duration
	// FallbackDays is how far the fallback search widens when the request
	// sets no date tolerance.
	FallbackDays    int
	BusinessStart   domain.TimeOfDay
	BusinessEnd     domain.TimeOfDay
	SlotStep        time.Duration
	ToleranceStep   time.Duration
	MaxAlternatives int
	ScoreThreshold  float64
}

// DefaultEngineConfig returns the default search configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinBreak:        DefaultMinBreak,
		FallbackDays:    7,
		BusinessStart:   domain.At(9, 0),
		BusinessEnd:     domain.At(17, 0),
		SlotStep:        30 * time.Minute,
		ToleranceStep:   15 * time.Minute,
		MaxAlternatives: 5,
		ScoreThreshold:  20,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.MinBreak <= 0 {
		c.MinBreak = d.MinBreak
	}
	if c.FallbackDays <= 0 {
		c.FallbackDays = d.FallbackDays
	}
	if c.BusinessEnd <= c.BusinessStart {
		c.BusinessStart, c.BusinessEnd = d.BusinessStart, d.BusinessEnd
	}
	if c.SlotStep <= 0 {
		c.SlotStep = d.SlotStep
	}
	if c.ToleranceStep <= 0 {
		c.ToleranceStep = d.ToleranceStep
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = d.MaxAlternatives
	}
	if c.ScoreThreshold <= 0 {
		c.ScoreThreshold = d.ScoreThreshold
	}
	return c
}

// Alternative is one scored placement of a session.
type Alternative struct {
	Interval     domain.Interval
	ResourceIDs  []uuid.UUID
	InstructorID uuid.UUID
	// Score is the heuristic rating. Bonuses can lift it above 100.
	Score     float64
	Conflicts []*domain.SchedulingConflict
	Tradeoffs []string
	Fallback  bool
	Viable    bool
}

// OptimizationResult is the outcome of placing one session.
type OptimizationResult struct {
	SessionID    uuid.UUID
	Success      bool
	Committed    *Alternative
	Allocations  []*domain.Allocation
	Alternatives []Alternative
	// Conflicts are those of the best-scoring attempt when nothing was committed.
	Conflicts []*domain.SchedulingConflict
}

// OptimizationEngine places sessions by scoring candidate time, resource and
// instructor combinations and committing the best conflict-free one.
type OptimizationEngine struct {
	deps     Deps
	ledger   *Ledger
	detector *ConflictDetector
	config   EngineConfig
	logger   *slog.Logger
}

// NewOptimizationEngine creates an engine.
func NewOptimizationEngine(deps Deps, ledger *Ledger, detector *ConflictDetector, config EngineConfig) *OptimizationEngine {
	deps = deps.withDefaults()
	return &OptimizationEngine{
		deps:     deps,
		ledger:   ledger,
		detector: detector,
		config:   config.withDefaults(),
		logger:   deps.Logger.With("component", "optimization_engine"),
	}
}

// Optimize searches placements for the request's session and commits the
// best viable one. A result with Success false and a nil error means viable
// looking candidates existed but none could be committed; when no candidate
// clears the score threshold the error is of kind Unresolvable.
func (e *OptimizationEngine) Optimize(ctx context.Context, req domain.SchedulingRequest) (*OptimizationResult, error) {
	const op = "engine.optimize"
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}
	now := e.deps.Clock()
	starts := req.FuturePreferredStarts(now)
	if len(starts) == 0 {
		return nil, invalid(op, ErrNoFutureStart, req.SessionID)
	}
	constraints, err := domain.BuildConstraintSet(req.Constraints)
	if err != nil {
		return nil, invalid(op, err, req.SessionID)
	}

	unlock, err := e.deps.Locker.Lock(ctx, SessionKey(req.SessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := e.deps.Repos.Sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: session: %w", op, err)
	}
	if session == nil {
		return nil, sharedDomain.NotFound(op, "session", req.SessionID)
	}
	if !session.IsActive() {
		return nil, invalid(op, domain.ErrSessionClosed, session.ID())
	}

	p, err := e.preload(ctx, session, req, constraints, starts, now)
	if err != nil {
		return nil, err
	}

	evaluated := e.search(p, starts)
	ranked := e.rank(evaluated)

	result := &OptimizationResult{SessionID: session.ID()}
	for _, c := range ranked {
		if len(result.Alternatives) == e.config.MaxAlternatives {
			break
		}
		result.Alternatives = append(result.Alternatives, c.alternative())
	}

	if len(ranked) == 0 {
		result.Conflicts = bestConflicts(evaluated)
		e.logger.InfoContext(ctx, "no candidate cleared threshold",
			"session_id", session.ID(), "evaluated", len(evaluated))
		return result, sharedDomain.NewError(sharedDomain.KindUnresolvable, op, ErrNoViableOptions, session.ID()).
			WithDetails(map[string]string{"evaluated": fmt.Sprint(len(evaluated))})
	}

	for _, c := range ranked {
		if !c.viable() {
			continue
		}
		allocations, err := e.commit(ctx, p, c)
		if err != nil {
			if sharedDomain.IsKind(err, sharedDomain.KindResourceUnavailable) || errors.Is(err, ErrInstructorBusy) {
				e.logger.DebugContext(ctx, "candidate lost at commit", "session_id", session.ID(),
					"start", c.interval.Start, "error", err)
				continue
			}
			return nil, err
		}
		committed := c.alternative()
		result.Success = true
		result.Committed = &committed
		result.Allocations = allocations
		e.logger.InfoContext(ctx, "session scheduled",
			"session_id", session.ID(), "start", c.interval.Start, "score", committed.Score,
			"resources", len(c.resources), "fallback", c.fallback)
		return result, nil
	}

	result.Conflicts = ranked[0].conflicts
	e.logger.InfoContext(ctx, "no conflict-free candidate", "session_id", session.ID(), "ranked", len(ranked))
	return result, nil
}

// Reschedule re-runs the search for a placed session, seeded with the
// request that placed it. Sessions placed without a request get one derived
// from their current allocations and instructor.
func (e *OptimizationEngine) Reschedule(ctx context.Context, sessionID uuid.UUID) (*OptimizationResult, error) {
	const op = "engine.reschedule"
	session, err := e.deps.Repos.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: session: %w", op, err)
	}
	if session == nil {
		return nil, sharedDomain.NotFound(op, "session", sessionID)
	}
	now := e.deps.Clock()

	var req domain.SchedulingRequest
	if stored := session.Request(); stored != nil {
		req = stored.Clone()
	} else {
		req = domain.SchedulingRequest{
			SessionID:  sessionID,
			Instructor: domain.InstructorPreference{InstructorID: session.InstructorID()},
			Flexibility: domain.Flexibility{
				AllowResourceSubstitution: true,
				DateToleranceDays:         e.config.FallbackDays,
			},
		}
		allocations, err := e.deps.Repos.Allocations.FindBySession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("%s: allocations: %w", op, err)
		}
		for _, a := range allocations {
			resource, err := e.deps.Repos.Resources.FindByID(ctx, a.ResourceID())
			if err != nil {
				return nil, fmt.Errorf("%s: resource: %w", op, err)
			}
			if resource != nil {
				req.Resources = append(req.Resources, domain.ResourceRequirement{Type: resource.Type()})
			}
		}
	}

	starts := req.FuturePreferredStarts(now)
	if session.Interval().Start.After(now) && !containsTime(starts, session.Interval().Start) {
		starts = append(starts, session.Interval().Start)
	}
	if len(starts) == 0 {
		starts = []time.Time{nextSlot(now, e.config.SlotStep)}
	}
	req.PreferredStarts = starts
	return e.Optimize(ctx, req)
}

// commit applies a candidate: the session's allocations are replaced and
// the session is placed, in one unit of work under the instructor and
// resource locks.
func (e *OptimizationEngine) commit(ctx context.Context, p *plan, c *candidate) ([]*domain.Allocation, error) {
	resourceIDs := c.resourceIDs()
	var extra []string
	if c.instructor != nil {
		extra = append(extra, InstructorKey(c.instructor.ID()))
	}
	unlock, err := e.ledger.lockSession(ctx, p.session.ID(), resourceIDs, extra...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if c.instructor != nil {
		if err := e.recheckInstructor(ctx, p, c); err != nil {
			return nil, err
		}
	}

	var allocations []*domain.Allocation
	err = application.WithUnitOfWork(ctx, e.deps.UoW, func(txCtx context.Context) error {
		created, err := e.ledger.replace(txCtx, p.session.ID(), c.interval, resourceIDs, "scheduled by optimizer")
		if err != nil {
			return err
		}
		allocations = created
		instructorID := uuid.Nil
		if c.instructor != nil {
			instructorID = c.instructor.ID()
		}
		request := p.request
		if err := p.session.Schedule(c.interval, instructorID, &request, e.deps.Clock()); err != nil {
			return invalid("engine.commit", err, p.session.ID())
		}
		if err := e.deps.Repos.Sessions.Save(txCtx, p.session); err != nil {
			return fmt.Errorf("engine.commit: save session: %w", err)
		}
		return e.deps.dispatch(txCtx, p.session)
	})
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// recheckInstructor repeats the instructor checks with fresh data once the
// instructor lock is held.
func (e *OptimizationEngine) recheckInstructor(ctx context.Context, p *plan, c *candidate) error {
	from, to := instructorWindow(c.interval)
	sessions, err := e.deps.Repos.Sessions.FindByInstructor(ctx, c.instructor.ID(), from, to)
	if err != nil {
		return fmt.Errorf("engine.commit: instructor sessions: %w", err)
	}
	others := make([]*domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID() != p.session.ID() && s.IsActive() {
			others = append(others, s)
		}
	}
	if reason := p.instructorClash(c.instructor, c.interval, others); reason != "" {
		return sharedDomain.NewError(sharedDomain.KindConflict, "engine.commit",
			fmt.Errorf("%w: %s", ErrInstructorBusy, reason), c.instructor.ID())
	}
	return nil
}

// rank drops candidates below the threshold and orders the rest by score,
// then by how close they are to the request.
func (e *OptimizationEngine) rank(evaluated []*candidate) []*candidate {
	ranked := make([]*candidate, 0, len(evaluated))
	for _, c := range evaluated {
		if c.score >= e.config.ScoreThreshold {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.interval.Start.Before(b.interval.Start)
	})
	return ranked
}

func bestConflicts(evaluated []*candidate) []*domain.SchedulingConflict {
	var best *candidate
	for _, c := range evaluated {
		if best == nil || c.score > best.score {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return best.conflicts
}

func (c *candidate) alternative() Alternative {
	alt := Alternative{
		Interval:    c.interval,
		ResourceIDs: c.resourceIDs(),
		Score:       math.Max(0, math.Min(100, c.score)),
		Conflicts:   c.conflicts,
		Tradeoffs:   c.tradeoffs,
		Fallback:    c.fallback,
		Viable:      c.viable(),
	}
	if c.instructor != nil {
		alt.InstructorID = c.instructor.ID()
	}
	return alt
}

func containsTime(ts []time.Time, t time.Time) bool {
	for _, x := range ts {
		if x.Equal(t) {
			return true
		}
	}
	return false
}

func nextSlot(now time.Time, step time.Duration) time.Time {
	next := now.Truncate(step)
	if !next.After(now) {
		next = next.Add(step)
	}
	return next
}
