package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const sessionColumns = `id, title, start_at, end_at, timezone, status,
	min_participants, max_participants, enrolled_count, waitlisted_count,
	instructor_id, waitlist, request, funding_ref, version, created_at, updated_at`

// SQLSessionRepository implements domain.SessionRepository.
type SQLSessionRepository struct {
	sqlStore
}

// NewSQLSessionRepository creates a session repository on conn.
func NewSQLSessionRepository(conn database.Connection) *SQLSessionRepository {
	return &SQLSessionRepository{sqlStore{conn: conn}}
}

// Save inserts or updates a session.
func (r *SQLSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	st := session.State()
	waitlist, err := encodeJSON(st.Spec.Waitlist)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	var request any
	if st.Request != nil {
		raw, err := encodeJSON(st.Request)
		if err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		request = raw
	}
	var instructorID any
	if st.InstructorID != uuid.Nil {
		instructorID = st.InstructorID.String()
	}

	err = r.exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			timezone = excluded.timezone,
			status = excluded.status,
			min_participants = excluded.min_participants,
			max_participants = excluded.max_participants,
			enrolled_count = excluded.enrolled_count,
			waitlisted_count = excluded.waitlisted_count,
			instructor_id = excluded.instructor_id,
			waitlist = excluded.waitlist,
			request = excluded.request,
			funding_ref = excluded.funding_ref,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		st.ID.String(),
		st.Spec.Title,
		r.ts(st.Spec.Interval.Start),
		r.ts(st.Spec.Interval.End),
		st.Spec.Timezone,
		string(st.Status),
		st.Spec.MinParticipants,
		st.Spec.MaxParticipants,
		st.EnrolledCount,
		st.WaitlistedCount,
		instructorID,
		waitlist,
		request,
		st.Spec.FundingRef,
		st.Version,
		r.ts(st.CreatedAt),
		r.ts(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// FindByID returns (nil, nil) when the session does not exist.
func (r *SQLSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	row := r.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id.String())
	s, err := scanSession(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return s, nil
}

// FindInRange returns sessions whose interval intersects [from, to).
func (r *SQLSessionRepository) FindInRange(ctx context.Context, from, to time.Time) ([]*domain.Session, error) {
	return r.list(ctx, `WHERE start_at < ? AND end_at > ?`, r.ts(to), r.ts(from))
}

// FindByInstructor returns the instructor's sessions intersecting [from, to).
func (r *SQLSessionRepository) FindByInstructor(ctx context.Context, instructorID uuid.UUID, from, to time.Time) ([]*domain.Session, error) {
	return r.list(ctx, `WHERE instructor_id = ? AND start_at < ? AND end_at > ?`,
		instructorID.String(), r.ts(to), r.ts(from))
}

// FindActive returns sessions that are neither cancelled nor completed.
func (r *SQLSessionRepository) FindActive(ctx context.Context) ([]*domain.Session, error) {
	return r.list(ctx, `WHERE status NOT IN (?, ?)`,
		string(domain.SessionCancelled), string(domain.SessionCompleted))
}

func (r *SQLSessionRepository) list(ctx context.Context, where string, args ...any) ([]*domain.Session, error) {
	rows, err := r.query(ctx, `SELECT `+sessionColumns+` FROM sessions `+where+` ORDER BY start_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func scanSession(row database.Row) (*domain.Session, error) {
	var (
		st                   domain.SessionState
		status               string
		instructorID         uuid.NullUUID
		waitlist             string
		request              *string
		start, end           database.Time
		createdAt, updatedAt database.Time
	)
	err := row.Scan(
		&st.ID, &st.Spec.Title, &start, &end, &st.Spec.Timezone, &status,
		&st.Spec.MinParticipants, &st.Spec.MaxParticipants, &st.EnrolledCount, &st.WaitlistedCount,
		&instructorID, &waitlist, &request, &st.Spec.FundingRef, &st.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.Status = domain.SessionStatus(status)
	st.Spec.Interval = domain.Interval{Start: start.Time, End: end.Time}
	if instructorID.Valid {
		st.InstructorID = instructorID.UUID
	}
	if err := decodeJSON(waitlist, &st.Spec.Waitlist); err != nil {
		return nil, fmt.Errorf("decode waitlist: %w", err)
	}
	if request != nil && *request != "" {
		st.Request = &domain.SchedulingRequest{}
		if err := decodeJSON(*request, st.Request); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
	}
	st.CreatedAt, st.UpdatedAt = createdAt.Time, updatedAt.Time
	return domain.RehydrateSession(st), nil
}
