package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

// Report summarises an import.
type Report struct {
	Resources   []uuid.UUID
	Instructors map[string]uuid.UUID
	Sessions    []uuid.UUID
	// Placed holds the optimizer outcome of every session with a schedule
	// block, keyed by session id.
	Placed map[uuid.UUID]*services.OptimizationResult
	// Failed records placement errors. The session itself stays in draft.
	Failed map[uuid.UUID]error
}

// Importer writes a catalog through the scheduling services.
type Importer struct {
	registry *services.Registry
	sessions *services.SessionService
	engine   *services.OptimizationEngine
	logger   *slog.Logger
}

// NewImporter creates a new importer. engine may be nil to skip placement.
func NewImporter(registry *services.Registry, sessions *services.SessionService, engine *services.OptimizationEngine, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{registry: registry, sessions: sessions, engine: engine, logger: logger}
}

// Import creates everything in f. Resources and instructors come first so
// session placements can refer to them. The first creation error stops the
// import; placement failures do not.
func (im *Importer) Import(ctx context.Context, f *File) (*Report, error) {
	report := &Report{
		Instructors: make(map[string]uuid.UUID, len(f.Instructors)),
		Placed:      make(map[uuid.UUID]*services.OptimizationResult),
		Failed:      make(map[uuid.UUID]error),
	}

	for _, entry := range f.Resources {
		spec, err := entry.Spec()
		if err != nil {
			return report, fmt.Errorf("resource %q: %w", entry.Name, err)
		}
		r, err := im.registry.CreateResource(ctx, spec)
		if err != nil {
			return report, fmt.Errorf("resource %q: %w", entry.Name, err)
		}
		report.Resources = append(report.Resources, r.ID())
	}

	for _, entry := range f.Instructors {
		spec, err := entry.Spec()
		if err != nil {
			return report, fmt.Errorf("instructor %q: %w", entry.Name, err)
		}
		inst, err := im.registry.CreateInstructor(ctx, spec)
		if err != nil {
			return report, fmt.Errorf("instructor %q: %w", entry.Name, err)
		}
		report.Instructors[entry.Name] = inst.ID()
	}

	for _, entry := range f.Sessions {
		s, err := im.sessions.CreateSession(ctx, entry.Spec())
		if err != nil {
			return report, fmt.Errorf("session %q: %w", entry.Title, err)
		}
		report.Sessions = append(report.Sessions, s.ID())

		if entry.Schedule == nil || im.engine == nil {
			continue
		}
		req := entry.Schedule.request(s.ID(), entry.Start, report.Instructors)
		result, err := im.engine.Optimize(ctx, req)
		if result != nil {
			report.Placed[s.ID()] = result
		}
		if err != nil {
			im.logger.WarnContext(ctx, "catalog session not placed", "title", entry.Title, "error", err)
			report.Failed[s.ID()] = err
		}
	}

	placed := 0
	for _, result := range report.Placed {
		if result.Success {
			placed++
		}
	}
	im.logger.InfoContext(ctx, "catalog imported",
		"resources", len(report.Resources),
		"instructors", len(report.Instructors),
		"sessions", len(report.Sessions),
		"placed", placed,
	)
	return report, nil
}

// request builds the scheduling request. Without preferred starts the
// session's own start is used.
func (p *Placement) request(sessionID uuid.UUID, start time.Time, instructors map[string]uuid.UUID) domain.SchedulingRequest {
	starts := p.PreferredStarts
	if len(starts) == 0 {
		starts = []time.Time{start}
	}
	return domain.SchedulingRequest{
		SessionID:       sessionID,
		PreferredStarts: starts,
		Resources:       p.Resources,
		Instructor: domain.InstructorPreference{
			InstructorID:    instructors[p.Instructor],
			Specializations: p.Specializations,
			Certifications:  p.Certifications,
			MinRating:       p.MinRating,
		},
		Constraints: p.Constraints,
		Flexibility: p.Flexibility,
	}
}
