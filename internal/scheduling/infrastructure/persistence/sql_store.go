package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
)

// sqlStore is shared by the SQL repositories. Queries are written with ?
// placeholders and run on the transaction in context when there is one.
type sqlStore struct {
	conn database.Connection
}

func (s sqlStore) executor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, s.conn)
}

func (s sqlStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.executor(ctx).Exec(ctx, database.Rebind(s.conn.Driver(), query), args...)
	return err
}

func (s sqlStore) queryRow(ctx context.Context, query string, args ...any) database.Row {
	return s.executor(ctx).QueryRow(ctx, database.Rebind(s.conn.Driver(), query), args...)
}

func (s sqlStore) query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return s.executor(ctx).Query(ctx, database.Rebind(s.conn.Driver(), query), args...)
}

func (s sqlStore) ts(t time.Time) any {
	return database.TimeArg(s.conn.Driver(), t)
}

func (s sqlStore) nullTS(t *time.Time) any {
	return database.NullTimeArg(s.conn.Driver(), t)
}

// availabilityRecord is the stored form of domain.Availability. The zone is
// kept by name since time.Location has no JSON form.
type availabilityRecord struct {
	Timezone    string                     `json:"timezone,omitempty"`
	Rules       []domain.AvailabilityRule  `json:"rules,omitempty"`
	Maintenance []domain.MaintenanceWindow `json:"maintenance,omitempty"`
}

func encodeAvailability(a domain.Availability) (string, error) {
	rec := availabilityRecord{Rules: a.Rules, Maintenance: a.Maintenance}
	if a.Location != nil {
		rec.Timezone = a.Location.String()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode availability: %w", err)
	}
	return string(b), nil
}

func decodeAvailability(raw string) (domain.Availability, error) {
	var rec availabilityRecord
	if err := decodeJSON(raw, &rec); err != nil {
		return domain.Availability{}, fmt.Errorf("decode availability: %w", err)
	}
	a := domain.Availability{Rules: rec.Rules, Maintenance: rec.Maintenance}
	if rec.Timezone != "" {
		loc, err := time.LoadLocation(rec.Timezone)
		if err != nil {
			return domain.Availability{}, fmt.Errorf("decode availability: %w", err)
		}
		a.Location = loc
	}
	return a, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
