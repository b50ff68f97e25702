package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/google/uuid"
)

// DefaultMinBreak is the minimum gap between two sessions of one instructor.
const DefaultMinBreak = 15 * time.Minute

// DetectorConfig configures conflict detection.
type DetectorConfig struct {
	MinBreak time.Duration
}

// DefaultDetectorConfig returns the default configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{MinBreak: DefaultMinBreak}
}

// Snapshot is the state conflict detection runs over.
type Snapshot struct {
	Sessions []*domain.Session
	// Allocations holds the active allocations of each session.
	Allocations map[uuid.UUID][]*domain.Allocation
	Resources   map[uuid.UUID]*domain.Resource
}

// ConflictDetector computes the conflicts of a set of sessions. It never
// changes state.
type ConflictDetector struct {
	repos  Repositories
	config DetectorConfig
	clock  Clock
	logger *slog.Logger
}

// NewConflictDetector creates a detector.
func NewConflictDetector(deps Deps, config DetectorConfig) *ConflictDetector {
	deps = deps.withDefaults()
	if config.MinBreak <= 0 {
		config.MinBreak = DefaultMinBreak
	}
	return &ConflictDetector{
		repos:  deps.Repos,
		config: config,
		clock:  deps.Clock,
		logger: deps.Logger.With("component", "conflict_detector"),
	}
}

// Detect loads the allocations and resources of sessions and analyses them.
func (d *ConflictDetector) Detect(ctx context.Context, sessions []*domain.Session) ([]*domain.SchedulingConflict, error) {
	snap, err := d.Load(ctx, sessions)
	if err != nil {
		return nil, err
	}
	conflicts := d.Analyze(snap)
	d.logger.DebugContext(ctx, "conflicts detected", "sessions", len(sessions), "conflicts", len(conflicts))
	return conflicts, nil
}

// Load builds a snapshot of sessions with their allocations and resources.
func (d *ConflictDetector) Load(ctx context.Context, sessions []*domain.Session) (Snapshot, error) {
	snap := Snapshot{
		Sessions:    sessions,
		Allocations: make(map[uuid.UUID][]*domain.Allocation, len(sessions)),
		Resources:   make(map[uuid.UUID]*domain.Resource),
	}
	for _, s := range sessions {
		if !s.IsActive() {
			continue
		}
		allocations, err := d.repos.Allocations.FindBySession(ctx, s.ID())
		if err != nil {
			return Snapshot{}, fmt.Errorf("detector: allocations of %s: %w", s.ID(), err)
		}
		snap.Allocations[s.ID()] = allocations
		for _, a := range allocations {
			if _, ok := snap.Resources[a.ResourceID()]; ok {
				continue
			}
			resource, err := d.repos.Resources.FindByID(ctx, a.ResourceID())
			if err != nil {
				return Snapshot{}, fmt.Errorf("detector: resource %s: %w", a.ResourceID(), err)
			}
			if resource != nil {
				snap.Resources[resource.ID()] = resource
			}
		}
	}
	return snap, nil
}

// Analyze computes every conflict in the snapshot. Cancelled and completed
// sessions take no part. Results are ordered by severity, then start.
func (d *ConflictDetector) Analyze(snap Snapshot) []*domain.SchedulingConflict {
	now := d.clock()
	active := make([]*domain.Session, 0, len(snap.Sessions))
	byID := make(map[uuid.UUID]*domain.Session, len(snap.Sessions))
	for _, s := range snap.Sessions {
		if s.IsActive() {
			active = append(active, s)
			byID[s.ID()] = s
		}
	}

	var conflicts []*domain.SchedulingConflict
	conflicts = append(conflicts, d.doubleBookings(snap, byID, now)...)
	conflicts = append(conflicts, d.instructorConflicts(active, now)...)
	conflicts = append(conflicts, d.capacityConflicts(snap, active, now)...)
	conflicts = append(conflicts, d.timeOverlaps(snap, active, now)...)
	conflicts = append(conflicts, d.maintenanceConflicts(snap, active, now)...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Severity().Rank() != b.Severity().Rank() {
			return a.Severity().Rank() > b.Severity().Rank()
		}
		if a.Type() != b.Type() {
			return a.Type() < b.Type()
		}
		return a.Interval().Start.Before(b.Interval().Start)
	})
	return conflicts
}

// doubleBookings sweeps each resource's allocations in start order and
// flags every pair that overlaps.
func (d *ConflictDetector) doubleBookings(snap Snapshot, byID map[uuid.UUID]*domain.Session, now time.Time) []*domain.SchedulingConflict {
	byResource := make(map[uuid.UUID][]*domain.Allocation)
	for sessionID, allocations := range snap.Allocations {
		if _, ok := byID[sessionID]; !ok {
			continue
		}
		for _, a := range allocations {
			if a.IsActive() {
				byResource[a.ResourceID()] = append(byResource[a.ResourceID()], a)
			}
		}
	}

	var out []*domain.SchedulingConflict
	for _, resourceID := range sortedKeys(byResource) {
		allocations := byResource[resourceID]
		sort.Slice(allocations, func(i, j int) bool {
			return allocations[i].Interval().Start.Before(allocations[j].Interval().Start)
		})
		var open []*domain.Allocation
		for _, a := range allocations {
			kept := open[:0]
			for _, prev := range open {
				if prev.Interval().End.After(a.Interval().Start) {
					kept = append(kept, prev)
				}
			}
			open = kept
			for _, prev := range open {
				overlap, _ := prev.Interval().Intersect(a.Interval())
				out = append(out, domain.NewSchedulingConflict(domain.ConflictSpec{
					Type:        domain.ConflictResourceDoubleBooking,
					Severity:    domain.SeverityHigh,
					SessionIDs:  uniqueIDs(prev.SessionID(), a.SessionID()),
					ResourceIDs: []uuid.UUID{resourceID},
					Interval:    overlap,
					Description: fmt.Sprintf("resource %s is booked twice %s", resourceName(snap, resourceID), formatInterval(overlap)),
				}, now))
			}
			open = append(open, a)
		}
	}
	return out
}

// instructorConflicts sweeps each instructor's sessions in start order.
// Overlap with any earlier session is an instructor conflict; otherwise a gap
// to the latest ending earlier session below the minimum break is a break
// violation. A zero gap is a break violation.
func (d *ConflictDetector) instructorConflicts(active []*domain.Session, now time.Time) []*domain.SchedulingConflict {
	byInstructor := make(map[uuid.UUID][]*domain.Session)
	for _, s := range active {
		if s.HasInstructor() {
			byInstructor[s.InstructorID()] = append(byInstructor[s.InstructorID()], s)
		}
	}

	var out []*domain.SchedulingConflict
	for _, instructorID := range sortedKeys(byInstructor) {
		sessions := sortByStart(byInstructor[instructorID])
		var latest *domain.Session
		for i, cur := range sessions {
			overlapped := false
			for _, prev := range sessions[:i] {
				if !prev.Interval().Overlaps(cur.Interval()) {
					continue
				}
				overlapped = true
				overlap, _ := prev.Interval().Intersect(cur.Interval())
				out = append(out, domain.NewSchedulingConflict(domain.ConflictSpec{
					Type:         domain.ConflictInstructor,
					Severity:     domain.SeverityCritical,
					SessionIDs:   []uuid.UUID{prev.ID(), cur.ID()},
					InstructorID: instructorID,
					Interval:     overlap,
					Description:  fmt.Sprintf("instructor teaches %q and %q at the same time", prev.Title(), cur.Title()),
				}, now))
			}
			if !overlapped && latest != nil {
				gap := latest.Interval().GapTo(cur.Interval())
				if gap >= 0 && gap < d.config.MinBreak {
					out = append(out, domain.NewSchedulingConflict(domain.ConflictSpec{
						Type:         domain.ConflictMinimumBreak,
						Severity:     domain.SeverityMedium,
						SessionIDs:   []uuid.UUID{latest.ID(), cur.ID()},
						InstructorID: instructorID,
						Interval:     domain.Interval{Start: latest.Interval().End, End: cur.Interval().Start},
						Description: fmt.Sprintf("only %s between %q and %q, minimum break is %s",
							gap, latest.Title(), cur.Title(), d.config.MinBreak),
					}, now))
				}
			}
			if latest == nil || cur.Interval().End.After(latest.Interval().End) {
				latest = cur
			}
		}
	}
	return out
}

func (d *ConflictDetector) capacityConflicts(snap Snapshot, active []*domain.Session, now time.Time) []*domain.SchedulingConflict {
	var out []*domain.SchedulingConflict
	for _, s := range active {
		if s.EnrolledCount() > s.MaxParticipants() {
			out = append(out, domain.NewSchedulingConflict(domain.ConflictSpec{
				Type:        domain.ConflictCapacityExceeded,
				Severity:    domain.SeverityHigh,
				SessionIDs:  []uuid.UUID{s.ID()},
				Interval:    s.Interval(),
				Description: fmt.Sprintf("%d enrolled in %q, maximum is %d", s.EnrolledCount(), s.Title(), s.MaxParticipants()),
			}, now))
		}
		for _, a := range snap.Allocations[s.ID()] {
			resource, ok := snap.Resources[a.ResourceID()]
			if !ok || !a.IsActive() || !resource.HasCapacity() || s.MaxParticipants() <= resource.Capacity() {
				continue
			}
			out = append(out, domain.NewSchedulingConflict(domain.ConflictSpec{
				Type:        domain.ConflictCapacityExceeded,
				Severity:    domain.SeverityMedium,
				SessionIDs:  []uuid.UUID{s.ID()},
				ResourceIDs: []uuid.UUID{resource.ID()},
				Interval:    s.Interval(),
				Description: fmt.Sprintf("%q allows %d participants but %s holds %d",
					s.Title(), s.MaxParticipants(), resource.Name(), resource.Capacity()),
			}, now))
		}
	}
	return out
}

// timeOverlaps flags pairs of overlapping sessions that share a resource or
// an instructor. Overlap without sharing is not a conflict.
func (d *ConflictDetector) timeOverlaps(snap Snapshot, active []*domain.Session, now time.Time) []*domain.SchedulingConflict {
	sessions := sortByStart(active)
	resourcesOf := make(map[uuid.UUID]map[uuid.UUID]bool, len(sessions))
	for _, s := range sessions {
		set := make(map[uuid.UUID]bool)
		for _, a := range snap.Allocations[s.ID()] {
			if a.IsActive() {
				set[a.ResourceID()] = true
			}
		}
		resourcesOf[s.ID()] = set
	}

	var out []*domain.SchedulingConflict
	for i, a := range sessions {
		for _, b := range sessions[i+1:] {
			if !b.Interval().Start.Before(a.Interval().End) {
				break
			}
			if !a.Interval().Overlaps(b.Interval()) {
				continue
			}
			var shared []uuid.UUID
			for id := range resourcesOf[a.ID()] {
				if resourcesOf[b.ID()][id] {
					shared = append(shared, id)
				}
			}
			sort.Slice(shared, func(i, j int) bool { return shared[i].String() < shared[j].String() })
			instructor := uuid.Nil
			if a.HasInstructor() && a.InstructorID() == b.InstructorID() {
				instructor = a.InstructorID()
			}
			if len(shared) == 0 && instructor == uuid.Nil {
				continue
			}
			overlap, _ := a.Interval().Intersect(b.Interval())
			out = append(out, domain.NewSchedulingConflict(domain.ConflictSpec{
				Type:         domain.ConflictTimeOverlap,
				Severity:     domain.SeverityHigh,
				SessionIDs:   []uuid.UUID{a.ID(), b.ID()},
				ResourceIDs:  shared,
				InstructorID: instructor,
				Interval:     overlap,
				Description:  fmt.Sprintf("%q and %q overlap %s", a.Title(), b.Title(), formatInterval(overlap)),
			}, now))
		}
	}
	return out
}

func (d *ConflictDetector) maintenanceConflicts(snap Snapshot, active []*domain.Session, now time.Time) []*domain.SchedulingConflict {
	var out []*domain.SchedulingConflict
	for _, s := range active {
		for _, a := range snap.Allocations[s.ID()] {
			resource, ok := snap.Resources[a.ResourceID()]
			if !ok || !a.IsActive() {
				continue
			}
			for _, m := range resource.Availability().Maintenance {
				overlap, hit := m.Interval.Intersect(a.Interval())
				if !hit {
					continue
				}
				severity := domain.SeverityHigh
				if m.Kind == domain.MaintenanceEmergency {
					severity = domain.SeverityCritical
				}
				out = append(out, domain.NewSchedulingConflict(domain.ConflictSpec{
					Type:        domain.ConflictMaintenance,
					Severity:    severity,
					SessionIDs:  []uuid.UUID{s.ID()},
					ResourceIDs: []uuid.UUID{resource.ID()},
					Interval:    overlap,
					Description: fmt.Sprintf("%s has %s maintenance %s", resource.Name(), m.Kind, formatInterval(overlap)),
				}, now))
			}
		}
	}
	return out
}

func sortByStart(sessions []*domain.Session) []*domain.Session {
	out := append([]*domain.Session(nil), sessions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Interval().Start.Before(out[j].Interval().Start)
	})
	return out
}

func sortedKeys[V any](m map[uuid.UUID]V) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func uniqueIDs(ids ...uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		dup := false
		for _, seen := range out {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

func resourceName(snap Snapshot, id uuid.UUID) string {
	if r, ok := snap.Resources[id]; ok {
		return r.Name()
	}
	return id.String()
}

func formatInterval(iv domain.Interval) string {
	return iv.Start.Format("Mon 2006-01-02 15:04") + "-" + iv.End.Format("15:04")
}
