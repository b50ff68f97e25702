package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const resourceColumns = `id, name, type, status, capacity, location, features, availability, created_at, updated_at`

// SQLResourceRepository implements domain.ResourceRepository on SQLite or
// PostgreSQL.
type SQLResourceRepository struct {
	sqlStore
}

// NewSQLResourceRepository creates a resource repository on conn.
func NewSQLResourceRepository(conn database.Connection) *SQLResourceRepository {
	return &SQLResourceRepository{sqlStore{conn: conn}}
}

// Save inserts or updates a resource.
func (r *SQLResourceRepository) Save(ctx context.Context, resource *domain.Resource) error {
	features, err := encodeJSON(resource.Features())
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	availability, err := encodeAvailability(resource.Availability())
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	err = r.exec(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			status = excluded.status,
			capacity = excluded.capacity,
			location = excluded.location,
			features = excluded.features,
			availability = excluded.availability,
			updated_at = excluded.updated_at`,
		resource.ID().String(),
		resource.Name(),
		string(resource.Type()),
		string(resource.Status()),
		resource.Capacity(),
		resource.Location(),
		features,
		availability,
		r.ts(resource.CreatedAt()),
		r.ts(resource.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	return nil
}

// FindByID returns (nil, nil) when the resource does not exist.
func (r *SQLResourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	row := r.queryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id.String())
	res, err := scanResource(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find resource: %w", err)
	}
	return res, nil
}

// List returns resources matching filter ordered by name. The type is
// filtered in SQL, features and capacity in memory.
func (r *SQLResourceRepository) List(ctx context.Context, filter domain.ResourceFilter) ([]*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources`
	var args []any
	if filter.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY name, id`

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []*domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		if filter.Matches(res) {
			out = append(out, res)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return out, nil
}

// Delete removes a resource.
func (r *SQLResourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.exec(ctx, `DELETE FROM resources WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}

func scanResource(row database.Row) (*domain.Resource, error) {
	var (
		id                          uuid.UUID
		name, typ, status, location string
		capacity                    int
		features, availability      string
		createdAt, updatedAt        database.Time
	)
	if err := row.Scan(&id, &name, &typ, &status, &capacity, &location, &features, &availability, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	spec := domain.ResourceSpec{
		Name:     name,
		Type:     domain.ResourceType(typ),
		Capacity: capacity,
		Location: location,
	}
	if err := decodeJSON(features, &spec.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	a, err := decodeAvailability(availability)
	if err != nil {
		return nil, err
	}
	spec.Availability = a
	return domain.RehydrateResource(id, spec, domain.ResourceStatus(status), createdAt.Time, updatedAt.Time), nil
}
