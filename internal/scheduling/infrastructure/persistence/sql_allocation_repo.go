package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const allocationColumns = `id, resource_id, session_id, start_at, end_at, status, notes, released_at, created_at, updated_at`

// SQLAllocationRepository implements domain.AllocationRepository.
type SQLAllocationRepository struct {
	sqlStore
}

// NewSQLAllocationRepository creates an allocation repository on conn.
func NewSQLAllocationRepository(conn database.Connection) *SQLAllocationRepository {
	return &SQLAllocationRepository{sqlStore{conn: conn}}
}

// Save inserts or updates an allocation.
func (r *SQLAllocationRepository) Save(ctx context.Context, a *domain.Allocation) error {
	err := r.exec(ctx, `
		INSERT INTO allocations (`+allocationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			status = excluded.status,
			notes = excluded.notes,
			released_at = excluded.released_at,
			updated_at = excluded.updated_at`,
		a.ID().String(),
		a.ResourceID().String(),
		a.SessionID().String(),
		r.ts(a.Interval().Start),
		r.ts(a.Interval().End),
		string(a.Status()),
		a.Notes(),
		r.nullTS(a.ReleasedAt()),
		r.ts(a.CreatedAt()),
		r.ts(a.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("save allocation: %w", err)
	}
	return nil
}

// FindByID returns (nil, nil) when the allocation does not exist.
func (r *SQLAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Allocation, error) {
	row := r.queryRow(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = ?`, id.String())
	a, err := scanAllocation(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find allocation: %w", err)
	}
	return a, nil
}

// FindByResource returns active allocations of the resource intersecting [from, to).
func (r *SQLAllocationRepository) FindByResource(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*domain.Allocation, error) {
	return r.list(ctx, `WHERE resource_id = ? AND status <> ? AND start_at < ? AND end_at > ?`,
		resourceID.String(), string(domain.AllocationReleased), r.ts(to), r.ts(from))
}

// FindBySession returns the active allocations of the session.
func (r *SQLAllocationRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Allocation, error) {
	return r.list(ctx, `WHERE session_id = ? AND status <> ?`,
		sessionID.String(), string(domain.AllocationReleased))
}

func (r *SQLAllocationRepository) list(ctx context.Context, where string, args ...any) ([]*domain.Allocation, error) {
	rows, err := r.query(ctx, `SELECT `+allocationColumns+` FROM allocations `+where+` ORDER BY start_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("list allocations: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return out, nil
}

func scanAllocation(row database.Row) (*domain.Allocation, error) {
	var (
		id, resourceID, sessionID uuid.UUID
		status, notes             string
		start, end, releasedAt    database.Time
		createdAt, updatedAt      database.Time
	)
	if err := row.Scan(&id, &resourceID, &sessionID, &start, &end, &status, &notes, &releasedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return domain.RehydrateAllocation(
		id, resourceID, sessionID,
		domain.Interval{Start: start.Time, End: end.Time},
		domain.AllocationStatus(status),
		notes,
		releasedAt.Ptr(),
		createdAt.Time, updatedAt.Time,
	), nil
}
