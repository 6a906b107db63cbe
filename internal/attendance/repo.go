package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, date, check_in_time, barcode_id, lecture_id,
	department_id, year_level, status, created_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var barcodeID, lectureID sql.NullString
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.CheckInTime,
		&barcodeID, &lectureID, &rec.DepartmentID, &rec.YearLevel, &rec.Status, &rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	rec.BarcodeID = barcodeID.String
	rec.LectureID = lectureID.String
	return rec, nil
}

// FindForScan returns the record for (student, date, barcode), or nil.
func (r *Repository) FindForScan(ctx context.Context, studentID string, date time.Time, barcodeID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = $1 AND date = $2 AND barcode_id = $3
	`, studentID, date, barcodeID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &rec, nil
}

// Insert writes a new record. The unique index on (student, date, barcode) is
// the authoritative duplicate guard: a constraint violation is translated to
// DuplicateError carrying the row that won the race.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, date, check_in_time, barcode_id,
			lecture_id, department_id, year_level, status)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7,$8,$9)
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.Date, rec.CheckInTime, rec.BarcodeID,
		rec.LectureID, rec.DepartmentID, rec.YearLevel, rec.Status)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, lookupErr := r.FindForScan(ctx, rec.StudentID, rec.Date, rec.BarcodeID)
			if lookupErr == nil && existing != nil {
				return Record{}, &DuplicateError{Existing: *existing}
			}
			return Record{}, &DuplicateError{Existing: rec}
		}
		return Record{}, fmt.Errorf("insert attendance: %w", err)
	}
	return rec, nil
}

// ListByStudent returns a student's records, newest first.
func (r *Repository) ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = $1
		ORDER BY check_in_time DESC
		LIMIT $2 OFFSET $3
	`, studentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
