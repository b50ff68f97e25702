package services

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/google/uuid"
)

// Score weights.
const (
	baseScore                = 100.0
	softViolationPenalty     = 20.0
	hardViolationPenalty     = 25.0
	resourceFailurePenalty   = 40.0
	instructorFailurePenalty = 30.0
	qualityBonus             = 10.0
)

// evaluate scores one interval against the plan.
func (p *plan) evaluate(iv domain.Interval, order int, fallback bool) *candidate {
	c := &candidate{interval: iv, order: order, fallback: fallback}
	if fallback {
		c.tradeoffs = append(c.tradeoffs, "moved to a fallback slot outside the preferred times")
	}
	c.score = baseScore

	quality := p.assignResources(c)
	if c.resourceOK {
		if len(c.resources) > 0 {
			c.score += qualityBonus * quality
		}
	} else {
		c.score -= resourceFailurePenalty
	}

	if p.instructorNeeded {
		p.assignInstructor(c)
		if c.instructOK {
			c.score += qualityBonus * (0.5*c.instructor.Rating()/domain.MaxRating +
				0.5*c.instructor.SpecializationMatch(p.preference.Specializations))
		} else {
			c.score -= instructorFailurePenalty
		}
	} else {
		c.instructOK = true
	}

	env := domain.ConstraintEnv{Location: p.session.Location()}
	if inst := c.judgedBy(); inst != nil {
		for _, s := range p.teaching[inst.ID()] {
			env.Neighbors = append(env.Neighbors, s.Interval())
		}
	}
	c.hard, c.soft = p.constraints.Violations(iv, env)
	c.score -= softViolationPenalty * float64(len(c.soft))
	c.score -= hardViolationPenalty * float64(len(c.hard))
	for _, v := range c.soft {
		c.tradeoffs = append(c.tradeoffs, "violates "+v.Describe())
	}

	c.conflicts = p.trialConflicts(c)
	return c
}

// judgedBy returns the instructor the candidate is judged with: the assigned
// one, or the preferred one when assignment failed.
func (c *candidate) judgedBy() *domain.Instructor {
	if c.instructor != nil {
		return c.instructor
	}
	return c.wanted
}

// assignResources picks the best free option for every requirement and
// returns the mean quality of the picks.
func (p *plan) assignResources(c *candidate) float64 {
	c.resourceOK = true
	taken := make(map[uuid.UUID]bool)
	total := 0.0
	for _, rp := range p.requirements {
		var pick *resourceOption
		for i := range rp.options {
			o := &rp.options[i]
			if taken[o.resource.ID()] || !p.resourceFree(o.resource, c.interval) {
				continue
			}
			pick = o
			break
		}
		if pick == nil {
			if len(rp.options) > 0 && !taken[rp.options[0].resource.ID()] {
				c.missed = append(c.missed, rp.options[0].resource)
			}
			if rp.req.Optional {
				c.tradeoffs = append(c.tradeoffs, fmt.Sprintf("optional %s not available", rp.req.Type))
				continue
			}
			c.resourceOK = false
			continue
		}
		taken[pick.resource.ID()] = true
		c.resources = append(c.resources, pick.resource)
		total += pick.quality
		if pick.virtual {
			c.tradeoffs = append(c.tradeoffs, fmt.Sprintf("virtual room %s instead of a %s", pick.resource.Name(), rp.req.Type))
		}
		if pick.partial {
			c.tradeoffs = append(c.tradeoffs, fmt.Sprintf("%s lacks some requested features", pick.resource.Name()))
		}
	}
	if len(c.resources) == 0 {
		return 0
	}
	return total / float64(len(c.resources))
}

func (p *plan) resourceFree(r *domain.Resource, iv domain.Interval) bool {
	if r.Check(iv) != nil {
		return false
	}
	for _, a := range p.busy[r.ID()] {
		if a.Interval().Overlaps(iv) {
			return false
		}
	}
	return true
}

// assignInstructor picks the first instructor option free at the interval.
func (p *plan) assignInstructor(c *candidate) {
	for i, inst := range p.instructors {
		ok := inst.Satisfies(p.preference, c.interval.Start)
		if i > 0 || p.preference.InstructorID == uuid.Nil {
			ok = inst.SatisfiesFilters(p.preference, c.interval.Start)
		}
		if !ok || p.instructorClash(inst, c.interval, p.teaching[inst.ID()]) != "" {
			continue
		}
		c.instructor = inst
		c.instructOK = true
		if i > 0 && p.preference.InstructorID != uuid.Nil {
			c.tradeoffs = append(c.tradeoffs, "substitute instructor "+inst.Name())
		}
		return
	}
	if len(p.instructors) > 0 {
		c.wanted = p.instructors[0]
	}
}

func (p *plan) instructorClash(inst *domain.Instructor, iv domain.Interval, others []*domain.Session) string {
	return instructorClash(inst, iv, others, p.session.Location(), p.config.MinBreak)
}

// instructorClash explains why inst cannot teach iv given its other
// sessions, or returns "" when it can. Daily and weekly limits are counted
// in the instructor's zone, falling back to loc.
func instructorClash(
	inst *domain.Instructor,
	iv domain.Interval,
	others []*domain.Session,
	loc *time.Location,
	minBreak time.Duration,
) string {
	if err := inst.Check(iv); err != nil {
		return err.Error()
	}
	if l := inst.Availability().Location; l != nil {
		loc = l
	}
	if loc == nil {
		loc = time.UTC
	}
	day := iv.Start.In(loc)
	year, week := day.ISOWeek()
	perDay, perWeek := 1, 1
	for _, s := range others {
		other := s.Interval()
		if other.Overlaps(iv) {
			return fmt.Sprintf("teaches %q at the same time", s.Title())
		}
		if gap := other.GapTo(iv); gap >= 0 && gap < minBreak {
			return fmt.Sprintf("only %s after %q", gap, s.Title())
		}
		if gap := iv.GapTo(other); gap >= 0 && gap < minBreak {
			return fmt.Sprintf("only %s before %q", gap, s.Title())
		}
		start := other.Start.In(loc)
		if y, w := start.ISOWeek(); y == year && w == week {
			perWeek++
			if start.YearDay() == day.YearDay() {
				perDay++
			}
		}
	}
	if limit := inst.MaxSessionsPerDay(); limit > 0 && perDay > limit {
		return fmt.Sprintf("already teaches %d sessions that day", perDay-1)
	}
	if limit := inst.MaxSessionsPerWeek(); limit > 0 && perWeek > limit {
		return fmt.Sprintf("already teaches %d sessions that week", perWeek-1)
	}
	return ""
}

// trialConflicts runs the conflict detector over the candidate placed as if it were
// committed, together with every session it could collide with. Resources
// and instructors the candidate failed to get are included so the report
// says why.
func (p *plan) trialConflicts(c *candidate) []*domain.SchedulingConflict {
	placed := p.session.Clone()
	instructorID := uuid.Nil
	if inst := c.judgedBy(); inst != nil {
		instructorID = inst.ID()
	}
	if err := placed.Schedule(c.interval, instructorID, nil, p.now); err != nil {
		return nil
	}
	placed.PullDomainEvents()

	snap := Snapshot{
		Sessions:    []*domain.Session{placed},
		Allocations: make(map[uuid.UUID][]*domain.Allocation),
		Resources:   make(map[uuid.UUID]*domain.Resource),
	}
	included := map[uuid.UUID]bool{placed.ID(): true}
	addSession := func(s *domain.Session) {
		if !included[s.ID()] {
			included[s.ID()] = true
			snap.Sessions = append(snap.Sessions, s)
		}
	}

	for _, r := range append(append([]*domain.Resource(nil), c.resources...), c.missed...) {
		snap.Resources[r.ID()] = r
		snap.Allocations[placed.ID()] = append(snap.Allocations[placed.ID()],
			domain.NewAllocation(r.ID(), placed.ID(), c.interval, "", p.now))
		for _, a := range p.busy[r.ID()] {
			if !a.Interval().Overlaps(c.interval) {
				continue
			}
			owner, ok := p.owners[a.SessionID()]
			if !ok {
				continue
			}
			addSession(owner)
			snap.Allocations[owner.ID()] = append(snap.Allocations[owner.ID()], a)
		}
	}
	if instructorID != uuid.Nil {
		window := domain.Interval{Start: c.interval.Start.Add(-p.config.MinBreak), End: c.interval.End.Add(p.config.MinBreak)}
		for _, s := range p.teaching[instructorID] {
			if s.Interval().Overlaps(window) {
				addSession(s)
			}
		}
	}

	var out []*domain.SchedulingConflict
	for _, conflict := range p.detector.Analyze(snap) {
		if conflict.Involves(placed.ID()) {
			out = append(out, conflict)
		}
	}
	return out
}
