package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const instructorColumns = `id, name, specializations, certifications, availability,
	max_sessions_per_day, max_sessions_per_week, rating, created_at, updated_at`

// SQLInstructorRepository implements domain.InstructorRepository.
type SQLInstructorRepository struct {
	sqlStore
}

// NewSQLInstructorRepository creates an instructor repository on conn.
func NewSQLInstructorRepository(conn database.Connection) *SQLInstructorRepository {
	return &SQLInstructorRepository{sqlStore{conn: conn}}
}

// Save inserts or updates an instructor.
func (r *SQLInstructorRepository) Save(ctx context.Context, instructor *domain.Instructor) error {
	spec := instructor.Spec()
	specializations, err := encodeJSON(spec.Specializations)
	if err != nil {
		return fmt.Errorf("save instructor: %w", err)
	}
	certifications, err := encodeJSON(spec.Certifications)
	if err != nil {
		return fmt.Errorf("save instructor: %w", err)
	}
	availability, err := encodeAvailability(spec.Availability)
	if err != nil {
		return fmt.Errorf("save instructor: %w", err)
	}
	err = r.exec(ctx, `
		INSERT INTO instructors (`+instructorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			specializations = excluded.specializations,
			certifications = excluded.certifications,
			availability = excluded.availability,
			max_sessions_per_day = excluded.max_sessions_per_day,
			max_sessions_per_week = excluded.max_sessions_per_week,
			rating = excluded.rating,
			updated_at = excluded.updated_at`,
		instructor.ID().String(),
		spec.Name,
		specializations,
		certifications,
		availability,
		spec.MaxSessionsPerDay,
		spec.MaxSessionsPerWeek,
		spec.Rating,
		r.ts(instructor.CreatedAt()),
		r.ts(instructor.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("save instructor: %w", err)
	}
	return nil
}

// FindByID returns (nil, nil) when the instructor does not exist.
func (r *SQLInstructorRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Instructor, error) {
	row := r.queryRow(ctx, `SELECT `+instructorColumns+` FROM instructors WHERE id = ?`, id.String())
	inst, err := scanInstructor(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find instructor: %w", err)
	}
	return inst, nil
}

// List returns every instructor ordered by name.
func (r *SQLInstructorRepository) List(ctx context.Context) ([]*domain.Instructor, error) {
	rows, err := r.query(ctx, `SELECT `+instructorColumns+` FROM instructors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	defer rows.Close()

	var out []*domain.Instructor
	for rows.Next() {
		inst, err := scanInstructor(rows)
		if err != nil {
			return nil, fmt.Errorf("list instructors: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return out, nil
}

// Delete removes an instructor.
func (r *SQLInstructorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.exec(ctx, `DELETE FROM instructors WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete instructor: %w", err)
	}
	return nil
}

func scanInstructor(row database.Row) (*domain.Instructor, error) {
	var (
		id                                            uuid.UUID
		spec                                          domain.InstructorSpec
		specializations, certifications, availability string
		createdAt, updatedAt                          database.Time
	)
	if err := row.Scan(&id, &spec.Name, &specializations, &certifications, &availability,
		&spec.MaxSessionsPerDay, &spec.MaxSessionsPerWeek, &spec.Rating, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(specializations, &spec.Specializations); err != nil {
		return nil, fmt.Errorf("decode specializations: %w", err)
	}
	if err := decodeJSON(certifications, &spec.Certifications); err != nil {
		return nil, fmt.Errorf("decode certifications: %w", err)
	}
	a, err := decodeAvailability(availability)
	if err != nil {
		return nil, err
	}
	spec.Availability = a
	return domain.RehydrateInstructor(id, spec, createdAt.Time, updatedAt.Time), nil
}
