package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// ConflictLog keeps the most recent set of detected conflicts so they can be
// listed and resolved by id.
type ConflictLog interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.SchedulingConflict, error)
	List(ctx context.Context) ([]*domain.SchedulingConflict, error)
	Put(ctx context.Context, conflicts ...*domain.SchedulingConflict) error
	Replace(ctx context.Context, conflicts []*domain.SchedulingConflict) error
}

// MemoryConflictLog is a process-local ConflictLog.
type MemoryConflictLog struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*domain.SchedulingConflict
}

// NewMemoryConflictLog creates an empty log.
func NewMemoryConflictLog() *MemoryConflictLog {
	return &MemoryConflictLog{entries: make(map[uuid.UUID]*domain.SchedulingConflict)}
}

func (l *MemoryConflictLog) Get(_ context.Context, id uuid.UUID) (*domain.SchedulingConflict, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[id], nil
}

func (l *MemoryConflictLog) List(_ context.Context) ([]*domain.SchedulingConflict, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.SchedulingConflict, 0, len(l.entries))
	for _, c := range l.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity().Rank() != out[j].Severity().Rank() {
			return out[i].Severity().Rank() > out[j].Severity().Rank()
		}
		return out[i].Interval().Start.Before(out[j].Interval().Start)
	})
	return out, nil
}

func (l *MemoryConflictLog) Put(_ context.Context, conflicts ...*domain.SchedulingConflict) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range conflicts {
		l.entries[c.ID()] = c
	}
	return nil
}

func (l *MemoryConflictLog) Replace(_ context.Context, conflicts []*domain.SchedulingConflict) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[uuid.UUID]*domain.SchedulingConflict, len(conflicts))
	for _, c := range conflicts {
		l.entries[c.ID()] = c
	}
	return nil
}

// AuditReport summarises one audit run.
type AuditReport struct {
	Sessions  int
	Conflicts []*domain.SchedulingConflict
	New       int
	Cleared   int
}

// ConflictAudit re-detects conflicts over all upcoming sessions and updates
// the conflict log. A conflict already in the log keeps its id across runs.
type ConflictAudit struct {
	deps     Deps
	detector *ConflictDetector
	log      ConflictLog
	logger   *slog.Logger
}

// NewConflictAudit creates an audit.
func NewConflictAudit(deps Deps, detector *ConflictDetector, log ConflictLog) *ConflictAudit {
	deps = deps.withDefaults()
	return &ConflictAudit{
		deps:     deps,
		detector: detector,
		log:      log,
		logger:   deps.Logger.With("component", "conflict_audit"),
	}
}

// Run detects conflicts among active sessions that have not ended yet.
// Newly seen conflicts raise ConflictDetected events.
func (a *ConflictAudit) Run(ctx context.Context) (*AuditReport, error) {
	const op = "conflict_audit.run"
	now := a.deps.Clock()
	active, err := a.deps.Repos.Sessions.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: sessions: %w", op, err)
	}
	upcoming := make([]*domain.Session, 0, len(active))
	for _, s := range active {
		if s.Interval().End.After(now) {
			upcoming = append(upcoming, s)
		}
	}

	detected, err := a.detector.Detect(ctx, upcoming)
	if err != nil {
		return nil, err
	}

	previous, err := a.log.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: log: %w", op, err)
	}
	known := make(map[string]*domain.SchedulingConflict, len(previous))
	for _, c := range previous {
		if !c.IsResolved() {
			known[c.Fingerprint()] = c
		}
	}

	report := &AuditReport{Sessions: len(upcoming)}
	current := make([]*domain.SchedulingConflict, 0, len(detected))
	var events []sharedDomain.DomainEvent
	seen := make(map[string]bool, len(detected))
	for _, c := range detected {
		fp := c.Fingerprint()
		if seen[fp] {
			continue
		}
		seen[fp] = true
		if existing, ok := known[fp]; ok {
			current = append(current, existing)
			continue
		}
		current = append(current, c)
		events = append(events, domain.NewConflictDetected(c))
		report.New++
	}
	for fp := range known {
		if !seen[fp] {
			report.Cleared++
		}
	}

	if err := a.log.Replace(ctx, current); err != nil {
		return nil, fmt.Errorf("%s: log: %w", op, err)
	}
	if len(events) > 0 {
		if metadata, ok := application.EventMetadataFromContext(ctx); ok {
			application.ApplyEventMetadata(events, metadata)
		}
		if err := a.deps.Events.Dispatch(ctx, events...); err != nil {
			return nil, fmt.Errorf("%s: dispatch: %w", op, err)
		}
	}
	report.Conflicts = current

	a.logger.InfoContext(ctx, "conflict audit complete",
		"sessions", report.Sessions, "conflicts", len(current), "new", report.New, "cleared", report.Cleared)
	return report, nil
}
