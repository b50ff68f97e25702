package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const messageColumns = `id, event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata,
	created_at, published_at, retry_count, last_error, next_retry_at, dead_lettered_at, dead_letter_reason`

// SQLRepository implements Repository on the outbox_events table for both
// SQLite and PostgreSQL.
type SQLRepository struct {
	conn database.Connection
	now  func() time.Time
}

// NewSQLRepository creates an outbox repository on conn.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn, now: time.Now}
}

func (r *SQLRepository) executor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *SQLRepository) rebind(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

func (r *SQLRepository) ts(t time.Time) any {
	return database.TimeArg(r.conn.Driver(), t)
}

// SaveBatch stores messages. Without a transaction in ctx each insert
// commits on its own. A message whose event is already queued is skipped
// and keeps ID zero.
func (r *SQLRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	query := r.rebind(`
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id`)
	exec := r.executor(ctx)
	for _, msg := range msgs {
		var metadata any
		if len(msg.Metadata) > 0 {
			metadata = string(msg.Metadata)
		}
		err := exec.QueryRow(ctx, query,
			msg.EventID.String(),
			msg.AggregateType,
			msg.AggregateID.String(),
			msg.RoutingKey,
			msg.RoutingKey,
			string(msg.Payload),
			metadata,
			r.ts(msg.CreatedAt),
		).Scan(&msg.ID)
		if database.IsNoRows(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("save outbox message %s: %w", msg.EventID, err)
		}
	}
	return nil
}

// GetUnpublished returns the next batch to publish.
func (r *SQLRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.executor(ctx).Query(ctx, r.rebind(`
		SELECT `+messageColumns+` FROM outbox_events
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
			AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`), r.ts(r.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("get unpublished: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *SQLRepository) MarkPublished(ctx context.Context, id int64) error {
	return r.update(ctx, `UPDATE outbox_events SET published_at = ? WHERE id = ?`, r.ts(r.now()), id)
}

// MarkFailed records a publish failure.
func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	return r.update(ctx, `
		UPDATE outbox_events SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`, errMsg, r.ts(nextRetryAt), id)
}

// MarkDead marks a message as dead-lettered.
func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	return r.update(ctx, `
		UPDATE outbox_events SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ?
		WHERE id = ?`, r.ts(r.now()), reason, id)
}

// DeleteOld removes published messages older than retention.
func (r *SQLRepository) DeleteOld(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := r.executor(ctx).Exec(ctx,
		r.rebind(`DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < ?`),
		r.ts(r.now().Add(-retention)))
	if err != nil {
		return 0, fmt.Errorf("delete old outbox messages: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLRepository) update(ctx context.Context, query string, args ...any) error {
	if _, err := r.executor(ctx).Exec(ctx, r.rebind(query), args...); err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	return nil
}

func scanMessage(row database.Row) (*Message, error) {
	var (
		msg                          Message
		eventID, aggregateID         string
		eventType, payload           string
		metadata, lastErr, deadCause *string
		created                      database.Time
		published, retry, dead       database.Time
	)
	err := row.Scan(&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &eventType, &msg.RoutingKey,
		&payload, &metadata, &created, &published, &msg.RetryCount, &lastErr, &retry, &dead, &deadCause)
	if err != nil {
		return nil, fmt.Errorf("scan outbox message: %w", err)
	}
	if msg.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("scan outbox message: event id: %w", err)
	}
	if msg.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return nil, fmt.Errorf("scan outbox message: aggregate id: %w", err)
	}
	msg.Payload = json.RawMessage(payload)
	if metadata != nil {
		msg.Metadata = json.RawMessage(*metadata)
	}
	msg.CreatedAt = created.Time
	msg.PublishedAt = published.Ptr()
	msg.NextRetryAt = retry.Ptr()
	msg.DeadLetteredAt = dead.Ptr()
	msg.LastError = lastErr
	msg.DeadLetterReason = deadCause
	return &msg, nil
}
