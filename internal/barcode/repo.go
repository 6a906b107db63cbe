package barcode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"classattend/internal/schedule"
)

// Repository persists tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const tokenColumns = `id, schedule_id, department_id, year_level, course_name, course_code,
	instructor_name, room_number, day_of_week, start_time, end_time, lecture_type,
	value, rendered_code, expiry_time, is_active, created_by, created_at`

func scanToken(row interface{ Scan(...any) error }) (Token, error) {
	var t Token
	var rendered, createdBy sql.NullString
	var day int
	err := row.Scan(&t.ID, &t.ScheduleID, &t.DepartmentID, &t.YearLevel,
		&t.Lecture.CourseName, &t.Lecture.CourseCode, &t.Lecture.InstructorName,
		&t.Lecture.RoomNumber, &day, &t.Lecture.StartTime, &t.Lecture.EndTime,
		&t.Lecture.LectureType, &t.Value, &rendered, &t.ExpiryTime, &t.IsActive,
		&createdBy, &t.CreatedAt)
	if err != nil {
		return Token{}, err
	}
	t.Lecture.Day = schedule.Weekday(day)
	t.RenderedCode = rendered.String
	t.CreatedBy = createdBy.String
	return t, nil
}

// ActiveBySlot returns the active token for a slot, or nil when none exists.
func (r *Repository) ActiveBySlot(ctx context.Context, scheduleID string, day schedule.Weekday, startTime string) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM barcodes
		WHERE schedule_id = $1 AND day_of_week = $2 AND start_time = $3 AND is_active
	`, scheduleID, int(day), startTime)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("active by slot: %w", err)
	}
	return &t, nil
}

// ActiveByValue looks up an active token by its scanned payload.
func (r *Repository) ActiveByValue(ctx context.Context, value string) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM barcodes WHERE value = $1 AND is_active
	`, value)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("active by value: %w", err)
	}
	return &t, nil
}

// Get returns a token by id regardless of activity.
func (r *Repository) Get(ctx context.Context, id string) (Token, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM barcodes WHERE id = $1`, id)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("get barcode: %w", err)
	}
	return t, nil
}

// Insert writes a new token. The partial unique index on active slots turns a
// concurrent double-issue into ErrSlotTaken.
func (r *Repository) Insert(ctx context.Context, t Token) (Token, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO barcodes (id, schedule_id, department_id, year_level, course_name,
			course_code, instructor_name, room_number, day_of_week, start_time, end_time,
			lecture_type, value, rendered_code, expiry_time, is_active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),$15,TRUE,NULLIF($16,''))
		RETURNING created_at
	`, t.ID, t.ScheduleID, t.DepartmentID, t.YearLevel, t.Lecture.CourseName,
		t.Lecture.CourseCode, t.Lecture.InstructorName, t.Lecture.RoomNumber,
		int(t.Lecture.Day), t.Lecture.StartTime, t.Lecture.EndTime, t.Lecture.LectureType,
		t.Value, t.RenderedCode, t.ExpiryTime, t.CreatedBy)
	if err := row.Scan(&t.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Token{}, ErrSlotTaken
		}
		return Token{}, fmt.Errorf("insert barcode: %w", err)
	}
	t.IsActive = true
	return t, nil
}

// Replace deactivates whatever holds the slot and inserts the new token in
// one transaction, so a failure never leaves two active tokens for a slot.
func (r *Repository) Replace(ctx context.Context, t Token) (Token, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Token{}, fmt.Errorf("replace barcode: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE barcodes SET is_active = FALSE
		WHERE schedule_id = $1 AND day_of_week = $2 AND start_time = $3 AND is_active
	`, t.ScheduleID, int(t.Lecture.Day), t.Lecture.StartTime); err != nil {
		return Token{}, fmt.Errorf("deactivate slot: %w", err)
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO barcodes (id, schedule_id, department_id, year_level, course_name,
			course_code, instructor_name, room_number, day_of_week, start_time, end_time,
			lecture_type, value, rendered_code, expiry_time, is_active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),$15,TRUE,NULLIF($16,''))
		RETURNING created_at
	`, t.ID, t.ScheduleID, t.DepartmentID, t.YearLevel, t.Lecture.CourseName,
		t.Lecture.CourseCode, t.Lecture.InstructorName, t.Lecture.RoomNumber,
		int(t.Lecture.Day), t.Lecture.StartTime, t.Lecture.EndTime, t.Lecture.LectureType,
		t.Value, t.RenderedCode, t.ExpiryTime, t.CreatedBy)
	if err := row.Scan(&t.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Token{}, ErrSlotTaken
		}
		return Token{}, fmt.Errorf("insert replacement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Token{}, fmt.Errorf("replace barcode: %w", err)
	}
	t.IsActive = true
	return t, nil
}

// UpdateExpiry persists a recomputed expiry.
func (r *Repository) UpdateExpiry(ctx context.Context, id string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE barcodes SET expiry_time = $2 WHERE id = $1`, id, expiry)
	if err != nil {
		return fmt.Errorf("update expiry: %w", err)
	}
	return nil
}

// UpdateRenderedCode stores the rendered image reference for a token.
func (r *Repository) UpdateRenderedCode(ctx context.Context, id, rendered string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE barcodes SET rendered_code = $2 WHERE id = $1`, id, rendered)
	if err != nil {
		return fmt.Errorf("update rendered code: %w", err)
	}
	return nil
}

// ListActiveByDay returns all active tokens whose slot falls on the weekday.
func (r *Repository) ListActiveByDay(ctx context.Context, day schedule.Weekday) ([]Token, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tokenColumns+` FROM barcodes
		WHERE day_of_week = $1 AND is_active
		ORDER BY start_time, schedule_id
	`, int(day))
	if err != nil {
		return nil, fmt.Errorf("list by day: %w", err)
	}
	defer rows.Close()
	var res []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
