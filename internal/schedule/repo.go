package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no schedule matches the requested id.
var ErrNotFound = errors.New("schedule not found")

// Repository reads timetables from Postgres. The barcode subsystem never
// writes schedules; timetable CRUD lives elsewhere.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns one schedule with its full week plan.
func (r *Repository) Get(ctx context.Context, id string) (Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, department_id, year_level, week_plan, created_at
		FROM schedules WHERE id = $1
	`, id)
	var s Schedule
	var plan []byte
	if err := row.Scan(&s.ID, &s.DepartmentID, &s.YearLevel, &plan, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Schedule{}, ErrNotFound
		}
		return Schedule{}, fmt.Errorf("get schedule: %w", err)
	}
	if err := json.Unmarshal(plan, &s.WeekPlan); err != nil {
		return Schedule{}, fmt.Errorf("decode week plan for %s: %w", id, err)
	}
	return s, nil
}

// LectureAt resolves a lecture by day bucket and index within the bucket.
func (r *Repository) LectureAt(ctx context.Context, scheduleID string, day Weekday, index int) (Schedule, Lecture, error) {
	s, err := r.Get(ctx, scheduleID)
	if err != nil {
		return Schedule{}, Lecture{}, err
	}
	bucket, ok := s.WeekPlan.DayPlanFor(day)
	if !ok {
		return Schedule{}, Lecture{}, fmt.Errorf("schedule %s has no %s bucket: %w", scheduleID, day, ErrNotFound)
	}
	if index < 0 || index >= len(bucket.Lectures) {
		return Schedule{}, Lecture{}, fmt.Errorf("schedule %s %s has no lecture %d: %w", scheduleID, day, index, ErrNotFound)
	}
	return s, bucket.Lectures[index], nil
}
