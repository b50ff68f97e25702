package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLConflictLog stores the latest audit result so conflicts can be
// resolved by id from another process.
type SQLConflictLog struct {
	sqlStore
}

// NewSQLConflictLog creates a conflict log on conn.
func NewSQLConflictLog(conn database.Connection) *SQLConflictLog {
	return &SQLConflictLog{sqlStore{conn: conn}}
}

// Get returns (nil, nil) when the conflict is unknown.
func (l *SQLConflictLog) Get(ctx context.Context, id uuid.UUID) (*domain.SchedulingConflict, error) {
	var payload string
	err := l.queryRow(ctx, `SELECT payload FROM conflicts WHERE id = ?`, id.String()).Scan(&payload)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	return decodeConflict(payload)
}

// List returns conflicts by severity, most severe first.
func (l *SQLConflictLog) List(ctx context.Context) ([]*domain.SchedulingConflict, error) {
	rows, err := l.query(ctx, `SELECT payload FROM conflicts ORDER BY severity_rank DESC, start_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []*domain.SchedulingConflict
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("list conflicts: %w", err)
		}
		c, err := decodeConflict(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return out, nil
}

// Put inserts or updates conflicts.
func (l *SQLConflictLog) Put(ctx context.Context, conflicts ...*domain.SchedulingConflict) error {
	for _, c := range conflicts {
		payload, err := encodeJSON(c.State())
		if err != nil {
			return fmt.Errorf("put conflict: %w", err)
		}
		err = l.exec(ctx, `
			INSERT INTO conflicts (id, fingerprint, severity_rank, start_at, resolved_at, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				resolved_at = excluded.resolved_at,
				payload = excluded.payload`,
			c.ID().String(),
			c.Fingerprint(),
			c.Severity().Rank(),
			l.ts(c.Interval().Start),
			l.nullTS(c.ResolvedAt()),
			payload,
		)
		if err != nil {
			return fmt.Errorf("put conflict: %w", err)
		}
	}
	return nil
}

// Replace swaps the stored set for conflicts.
func (l *SQLConflictLog) Replace(ctx context.Context, conflicts []*domain.SchedulingConflict) error {
	if err := l.exec(ctx, `DELETE FROM conflicts`); err != nil {
		return fmt.Errorf("replace conflicts: %w", err)
	}
	return l.Put(ctx, conflicts...)
}

func decodeConflict(payload string) (*domain.SchedulingConflict, error) {
	var st domain.ConflictState
	if err := decodeJSON(payload, &st); err != nil {
		return nil, fmt.Errorf("decode conflict: %w", err)
	}
	return domain.RehydrateConflict(st), nil
}
