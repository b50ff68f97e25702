package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// resourceOption is a resource that can serve a requirement, with its
// quality for that requirement in 0..1.
type resourceOption struct {
	resource *domain.Resource
	quality  float64
	virtual  bool
	partial  bool // lacks some required features
}

type requirementPlan struct {
	req     domain.ResourceRequirement
	options []resourceOption
}

// plan is everything the search reads, loaded once per request so that
// evaluating a candidate does no I/O.
type plan struct {
	session      *domain.Session
	request      domain.SchedulingRequest
	constraints  *domain.ConstraintSet
	requirements []requirementPlan
	preference   domain.InstructorPreference
	// instructors are the instructor options in preference order. The first
	// is the preferred one when the request names an instructor.
	instructors      []*domain.Instructor
	instructorNeeded bool
	busy             map[uuid.UUID][]*domain.Allocation
	owners           map[uuid.UUID]*domain.Session
	teaching         map[uuid.UUID][]*domain.Session
	detector         *ConflictDetector
	config           EngineConfig
	now              time.Time
}

// candidate is one evaluated placement.
type candidate struct {
	interval   domain.Interval
	order      int
	fallback   bool
	resources  []*domain.Resource
	missed     []*domain.Resource
	resourceOK bool
	instructor *domain.Instructor
	wanted     *domain.Instructor
	instructOK bool
	hard, soft []domain.Constraint
	conflicts  []*domain.SchedulingConflict
	tradeoffs  []string
	score      float64
}

func (c *candidate) viable() bool {
	return c.resourceOK && c.instructOK && len(c.hard) == 0 && len(c.conflicts) == 0
}

func (c *candidate) resourceIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.resources))
	for _, r := range c.resources {
		ids = append(ids, r.ID())
	}
	return ids
}

func (e *OptimizationEngine) preload(
	ctx context.Context,
	session *domain.Session,
	req domain.SchedulingRequest,
	constraints *domain.ConstraintSet,
	starts []time.Time,
	now time.Time,
) (*plan, error) {
	const op = "engine.preload"
	p := &plan{
		session:     session,
		request:     req,
		constraints: constraints,
		busy:        make(map[uuid.UUID][]*domain.Allocation),
		owners:      make(map[uuid.UUID]*domain.Session),
		teaching:    make(map[uuid.UUID][]*domain.Session),
		detector:    e.detector,
		config:      e.config,
		now:         now,
	}
	from, to := e.searchWindow(req, starts, session.Duration())

	for _, r := range req.Resources {
		options, err := e.resourceOptions(ctx, session, req, r)
		if err != nil {
			return nil, err
		}
		p.requirements = append(p.requirements, requirementPlan{req: r, options: options})
		for _, o := range options {
			id := o.resource.ID()
			if _, ok := p.busy[id]; ok {
				continue
			}
			allocations, err := e.deps.Repos.Allocations.FindByResource(ctx, id, from, to)
			if err != nil {
				return nil, fmt.Errorf("%s: allocations: %w", op, err)
			}
			kept := make([]*domain.Allocation, 0, len(allocations))
			for _, a := range allocations {
				if a.SessionID() == session.ID() || !a.IsActive() {
					continue
				}
				kept = append(kept, a)
				if err := e.loadOwner(ctx, p, a.SessionID()); err != nil {
					return nil, err
				}
			}
			p.busy[id] = kept
		}
	}

	if err := e.instructorOptions(ctx, p, req); err != nil {
		return nil, err
	}
	wFrom, wTo := instructorWindow(domain.Interval{Start: from, End: to})
	for _, inst := range p.instructors {
		sessions, err := e.deps.Repos.Sessions.FindByInstructor(ctx, inst.ID(), wFrom, wTo)
		if err != nil {
			return nil, fmt.Errorf("%s: instructor sessions: %w", op, err)
		}
		others := make([]*domain.Session, 0, len(sessions))
		for _, s := range sessions {
			if s.ID() != session.ID() && s.IsActive() {
				others = append(others, s)
			}
		}
		p.teaching[inst.ID()] = others
	}
	return p, nil
}

func (e *OptimizationEngine) loadOwner(ctx context.Context, p *plan, sessionID uuid.UUID) error {
	if _, ok := p.owners[sessionID]; ok {
		return nil
	}
	owner, err := e.deps.Repos.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("engine.preload: session %s: %w", sessionID, err)
	}
	if owner != nil {
		p.owners[sessionID] = owner
	}
	return nil
}

// searchWindow bounds every instant a candidate may touch.
func (e *OptimizationEngine) searchWindow(req domain.SchedulingRequest, starts []time.Time, d time.Duration) (time.Time, time.Time) {
	tolerance := time.Duration(req.Flexibility.TimeToleranceMinutes) * time.Minute
	from, to := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(from) {
			from = s
		}
		if s.After(to) {
			to = s
		}
	}
	from = from.Add(-tolerance).AddDate(0, 0, -1)
	to = to.Add(tolerance+d).AddDate(0, 0, e.fallbackDays(req)+1)
	return from, to
}

func (e *OptimizationEngine) fallbackDays(req domain.SchedulingRequest) int {
	if req.Flexibility.DateToleranceDays > 0 {
		return req.Flexibility.DateToleranceDays
	}
	return e.config.FallbackDays
}

// instructorWindow widens iv to whole weeks on either side so per-week
// limits can be counted.
func instructorWindow(iv domain.Interval) (time.Time, time.Time) {
	return iv.Start.AddDate(0, 0, -7), iv.End.AddDate(0, 0, 7)
}

// resourceOptions lists the resources that can serve a requirement, best
// quality first.
func (e *OptimizationEngine) resourceOptions(
	ctx context.Context,
	session *domain.Session,
	req domain.SchedulingRequest,
	r domain.ResourceRequirement,
) ([]resourceOption, error) {
	types := []domain.ResourceType{r.Type}
	if r.Type == domain.ResourceRoom && req.Flexibility.AcceptVirtual {
		types = append(types, domain.ResourceVirtualRoom)
	}
	need := r.MinCapacity
	if session.MaxParticipants() > need && (r.Type == domain.ResourceRoom || r.Type == domain.ResourceVenue || r.Type == domain.ResourceVirtualRoom) {
		need = session.MaxParticipants()
	}

	var options []resourceOption
	for _, t := range types {
		resources, err := e.deps.Repos.Resources.List(ctx, domain.ResourceFilter{Type: t})
		if err != nil {
			return nil, fmt.Errorf("engine.preload: resources: %w", err)
		}
		for _, res := range resources {
			if !res.Bookable() {
				continue
			}
			capacityFit := 1.0
			if res.HasCapacity() {
				if res.Capacity() < need {
					continue
				}
				if need > 0 {
					capacityFit = float64(need) / float64(res.Capacity())
				}
			} else if r.MinCapacity > 0 {
				continue
			}
			hasFeatures := res.HasFeatures(r.Features)
			if !hasFeatures && !req.Flexibility.AllowResourceSubstitution {
				continue
			}
			options = append(options, resourceOption{
				resource: res,
				quality:  0.5*res.FeatureMatch(r.Features) + 0.5*capacityFit,
				virtual:  t != r.Type,
				partial:  !hasFeatures,
			})
		}
	}
	sort.SliceStable(options, func(i, j int) bool {
		if options[i].virtual != options[j].virtual {
			return !options[i].virtual
		}
		return options[i].quality > options[j].quality
	})
	return options, nil
}

// instructorOptions resolves the instructor preference into candidates.
// An empty preference keeps the session's current instructor, if any.
func (e *OptimizationEngine) instructorOptions(ctx context.Context, p *plan, req domain.SchedulingRequest) error {
	const op = "engine.preload"
	pref := req.Instructor
	if pref.IsZero() && p.session.HasInstructor() {
		pref.InstructorID = p.session.InstructorID()
	}
	p.preference = pref
	if pref.IsZero() {
		return nil
	}
	p.instructorNeeded = true

	if pref.InstructorID != uuid.Nil {
		preferred, err := e.deps.Repos.Instructors.FindByID(ctx, pref.InstructorID)
		if err != nil {
			return fmt.Errorf("%s: instructor: %w", op, err)
		}
		if preferred == nil {
			return sharedDomain.NotFound(op, "instructor", pref.InstructorID)
		}
		p.instructors = append(p.instructors, preferred)
		if !req.Flexibility.AllowInstructorSubstitution {
			return nil
		}
	}

	all, err := e.deps.Repos.Instructors.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: instructors: %w", op, err)
	}
	var substitutes []*domain.Instructor
	for _, inst := range all {
		if inst.ID() == pref.InstructorID {
			continue
		}
		if inst.SatisfiesFilters(pref, p.now) {
			substitutes = append(substitutes, inst)
		}
	}
	sort.SliceStable(substitutes, func(i, j int) bool { return substitutes[i].Rating() > substitutes[j].Rating() })
	p.instructors = append(p.instructors, substitutes...)
	return nil
}

// search evaluates the preferred starts and their tolerance offsets, then
// widens to business-hour slots day by day until enough viable candidates
// are found or the date tolerance is used up.
func (e *OptimizationEngine) search(p *plan, starts []time.Time) []*candidate {
	d := p.session.Duration()
	seen := make(map[int64]bool)
	var evaluated []*candidate
	order := 0
	try := func(start time.Time, fallback bool) *candidate {
		key := start.UnixNano()
		if seen[key] || !start.After(p.now) {
			return nil
		}
		seen[key] = true
		c := p.evaluate(domain.IntervalOf(start, d), order, fallback)
		order++
		evaluated = append(evaluated, c)
		return c
	}

	viable := 0
	for _, s := range starts {
		if c := try(s, false); c != nil && c.viable() {
			viable++
		}
	}
	tolerance := time.Duration(p.request.Flexibility.TimeToleranceMinutes) * time.Minute
	for off := e.config.ToleranceStep; off <= tolerance; off += e.config.ToleranceStep {
		for _, s := range starts {
			for _, shifted := range []time.Time{s.Add(-off), s.Add(off)} {
				if c := try(shifted, false); c != nil && c.viable() {
					viable++
				}
			}
		}
	}
	if viable > 0 {
		return evaluated
	}

	earliest := starts[0]
	for _, s := range starts {
		if s.Before(earliest) {
			earliest = s
		}
	}
	loc := p.session.Location()
	if loc == nil {
		loc = time.UTC
	}
	day := earliest.In(loc)
	for offset := 0; offset <= e.fallbackDays(p.request); offset++ {
		base := time.Date(day.Year(), day.Month(), day.Day()+offset, 0, 0, 0, 0, loc)
		first := time.Date(base.Year(), base.Month(), base.Day(), e.config.BusinessStart.Hour(), e.config.BusinessStart.Minute(), 0, 0, loc)
		last := time.Date(base.Year(), base.Month(), base.Day(), e.config.BusinessEnd.Hour(), e.config.BusinessEnd.Minute(), 0, 0, loc)
		for start := first; !start.Add(d).After(last); start = start.Add(e.config.SlotStep) {
			if c := try(start, true); c != nil && c.viable() {
				viable++
			}
		}
		if viable >= e.config.MaxAlternatives {
			break
		}
	}
	return evaluated
}
