package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Student is the directory entry the scan path authorizes against.
type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	DepartmentID string    `json:"department_id"`
	YearLevel    int       `json:"year_level"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrNotFound is returned when no student matches the requested id.
var ErrNotFound = errors.New("student not found")

// Repository reads the student directory. The barcode subsystem never writes
// student profiles.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns one student.
func (r *Repository) Get(ctx context.Context, id string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(name, ''), department_id, year_level, created_at
		FROM students WHERE id = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.DepartmentID, &s.YearLevel, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}
