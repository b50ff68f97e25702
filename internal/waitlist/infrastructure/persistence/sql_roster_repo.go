package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

const (
	entryColumns = `id, session_id, requester_id, position, priority, status, auto_enroll,
	added_at, expires_at, notifications_sent, last_notified_at, closed_at`
	enrollmentColumns = `id, session_id, participant_id, source, status, enrolled_at, cancelled_at`
)

// SQLRosterRepository implements domain.RosterRepository over the
// waitlist_entries and enrollments tables.
type SQLRosterRepository struct {
	conn database.Connection
}

// NewSQLRosterRepository creates a roster repository on conn.
func NewSQLRosterRepository(conn database.Connection) *SQLRosterRepository {
	return &SQLRosterRepository{conn: conn}
}

func (r *SQLRosterRepository) executor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *SQLRosterRepository) rebind(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

// Save upserts every entry and enrollment of the roster. Run it inside a
// unit of work to write the roster atomically.
func (r *SQLRosterRepository) Save(ctx context.Context, roster *domain.Roster) error {
	exec := r.executor(ctx)
	driver := r.conn.Driver()
	for _, e := range roster.Entries() {
		st := e.State()
		_, err := exec.Exec(ctx, r.rebind(`
			INSERT INTO waitlist_entries (`+entryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				position = excluded.position,
				priority = excluded.priority,
				status = excluded.status,
				auto_enroll = excluded.auto_enroll,
				expires_at = excluded.expires_at,
				notifications_sent = excluded.notifications_sent,
				last_notified_at = excluded.last_notified_at,
				closed_at = excluded.closed_at`),
			st.ID.String(),
			st.SessionID.String(),
			st.RequesterID.String(),
			st.Position,
			string(st.Priority),
			string(st.Status),
			st.AutoEnroll,
			database.TimeArg(driver, st.AddedAt),
			database.NullTimeArg(driver, st.ExpiresAt),
			st.NotificationsSent,
			database.NullTimeArg(driver, st.LastNotifiedAt),
			database.NullTimeArg(driver, st.ClosedAt),
		)
		if err != nil {
			return fmt.Errorf("save waitlist entry %s: %w", st.ID, err)
		}
	}
	for _, e := range roster.Enrollments() {
		st := e.State()
		_, err := exec.Exec(ctx, r.rebind(`
			INSERT INTO enrollments (`+enrollmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				status = excluded.status,
				cancelled_at = excluded.cancelled_at`),
			st.ID.String(),
			st.SessionID.String(),
			st.ParticipantID.String(),
			string(st.Source),
			string(st.Status),
			database.TimeArg(driver, st.EnrolledAt),
			database.NullTimeArg(driver, st.CancelledAt),
		)
		if err != nil {
			return fmt.Errorf("save enrollment %s: %w", st.ID, err)
		}
	}
	return nil
}

// FindBySession returns (nil, nil) when the session has neither entries
// nor enrollments.
func (r *SQLRosterRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) (*domain.Roster, error) {
	entries, err := r.entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	enrollments, err := r.enrollments(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && len(enrollments) == 0 {
		return nil, nil
	}
	return domain.RehydrateRoster(sessionID, entries, enrollments), nil
}

// SessionsWithWaiting lists sessions with at least one waiting entry.
func (r *SQLRosterRepository) SessionsWithWaiting(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.executor(ctx).Query(ctx, r.rebind(
		`SELECT DISTINCT session_id FROM waitlist_entries WHERE status = ? ORDER BY session_id`),
		string(domain.EntryAdded))
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list waiting sessions: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}
	return ids, nil
}

func (r *SQLRosterRepository) entries(ctx context.Context, sessionID uuid.UUID) ([]domain.EntryState, error) {
	rows, err := r.executor(ctx).Query(ctx, r.rebind(
		`SELECT `+entryColumns+` FROM waitlist_entries WHERE session_id = ? ORDER BY added_at, id`),
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("load waitlist entries: %w", err)
	}
	defer rows.Close()

	var out []domain.EntryState
	for rows.Next() {
		var (
			st                       domain.EntryState
			priority, status         string
			addedAt, expiresAt       database.Time
			lastNotifiedAt, closedAt database.Time
		)
		err := rows.Scan(&st.ID, &st.SessionID, &st.RequesterID, &st.Position, &priority, &status, &st.AutoEnroll,
			&addedAt, &expiresAt, &st.NotificationsSent, &lastNotifiedAt, &closedAt)
		if err != nil {
			return nil, fmt.Errorf("load waitlist entries: %w", err)
		}
		st.Priority = domain.Priority(priority)
		st.Status = domain.EntryStatus(status)
		st.AddedAt = addedAt.Time
		st.ExpiresAt = expiresAt.Ptr()
		st.LastNotifiedAt = lastNotifiedAt.Ptr()
		st.ClosedAt = closedAt.Ptr()
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load waitlist entries: %w", err)
	}
	return out, nil
}

func (r *SQLRosterRepository) enrollments(ctx context.Context, sessionID uuid.UUID) ([]domain.EnrollmentState, error) {
	rows, err := r.executor(ctx).Query(ctx, r.rebind(
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE session_id = ? ORDER BY enrolled_at, id`),
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	defer rows.Close()

	var out []domain.EnrollmentState
	for rows.Next() {
		var (
			st                      domain.EnrollmentState
			source, status          string
			enrolledAt, cancelledAt database.Time
		)
		if err := rows.Scan(&st.ID, &st.SessionID, &st.ParticipantID, &source, &status, &enrolledAt, &cancelledAt); err != nil {
			return nil, fmt.Errorf("load enrollments: %w", err)
		}
		st.Source = domain.EnrollmentSource(source)
		st.Status = domain.EnrollmentStatus(status)
		st.EnrolledAt = enrolledAt.Time
		st.CancelledAt = cancelledAt.Ptr()
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	return out, nil
}
