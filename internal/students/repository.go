// Package students exposes the read-only directory of students, classes and
// academic years that the fee ledger validates against. The directory itself
// is owned by the enrolment system; this module only queries it.
package students

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/fees"
)

// Repository provides PostgreSQL backed directory lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ fees.Directory = (*Repository)(nil)

// StudentInSchool reports whether the student exists and is enrolled in the
// school. Students of other schools read as absent.
func (r *Repository) StudentInSchool(ctx context.Context, schoolID, studentID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1 AND school_id = $2 AND is_active)`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, studentID, schoolID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ClassInSchool reports whether the class belongs to the school.
func (r *Repository) ClassInSchool(ctx context.Context, schoolID, classID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1 AND school_id = $2)`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, classID, schoolID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// AcademicYearInSchool returns the academic year span for schedule
// generation.
func (r *Repository) AcademicYearInSchool(ctx context.Context, schoolID, yearID int64) (fees.AcademicYear, error) {
	query := `SELECT id, starts_on, ends_on FROM academic_years WHERE id = $1 AND school_id = $2`
	var year fees.AcademicYear
	err := r.pool.QueryRow(ctx, query, yearID, schoolID).Scan(&year.ID, &year.StartsOn, &year.EndsOn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fees.AcademicYear{}, fees.ErrNotFound
		}
		return fees.AcademicYear{}, err
	}
	return year, nil
}
