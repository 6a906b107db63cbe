package store

import "context"

// The uniqueness guarantees of the service live in these indexes:
// one active barcode per schedule/day/start-time slot, and one attendance
// row per student/date/barcode. Application code relies on the resulting
// constraint violations rather than check-then-insert.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id            TEXT PRIMARY KEY,
		department_id TEXT NOT NULL,
		year_level    INT  NOT NULL,
		week_plan     JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id            TEXT PRIMARY KEY,
		name          TEXT,
		department_id TEXT NOT NULL,
		year_level    INT  NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS barcodes (
		id              TEXT PRIMARY KEY,
		schedule_id     TEXT NOT NULL REFERENCES schedules(id),
		department_id   TEXT NOT NULL,
		year_level      INT  NOT NULL,
		course_name     TEXT NOT NULL,
		course_code     TEXT,
		instructor_name TEXT,
		room_number     TEXT,
		day_of_week     INT  NOT NULL,
		start_time      TEXT NOT NULL,
		end_time        TEXT NOT NULL,
		lecture_type    TEXT,
		value           TEXT NOT NULL UNIQUE,
		rendered_code   TEXT,
		expiry_time     TIMESTAMPTZ NOT NULL,
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		created_by      TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS barcodes_active_slot
		ON barcodes (schedule_id, day_of_week, start_time)
		WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id            TEXT PRIMARY KEY,
		student_id    TEXT NOT NULL REFERENCES students(id),
		date          DATE NOT NULL,
		check_in_time TIMESTAMPTZ NOT NULL,
		barcode_id    TEXT REFERENCES barcodes(id),
		lecture_id    TEXT,
		department_id TEXT NOT NULL,
		year_level    INT  NOT NULL,
		status        TEXT NOT NULL DEFAULT 'present',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS attendance_once_per_barcode
		ON attendance_records (student_id, date, barcode_id)`,
}

// Migrate applies the schema. Statements are idempotent so it is safe to run
// on every startup.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
