package attendance

import (
	"context"
	"errors"
	"time"

	"classattend/internal/barcode"
	"classattend/internal/clock"
	"classattend/internal/student"
)

// RecordStore is the persistence surface the scanner needs.
// *Repository implements it.
type RecordStore interface {
	FindForScan(ctx context.Context, studentID string, date time.Time, barcodeID string) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
}

// TokenSource resolves presented payloads to active tokens.
type TokenSource interface {
	ActiveByValue(ctx context.Context, value string) (*barcode.Token, error)
}

// TokenRenewer lazily extends a token during a scan.
type TokenRenewer interface {
	RenewIfNeeded(ctx context.Context, t *barcode.Token) (bool, error)
}

// ValidationResult is what a successful ValidateScan returns.
type ValidationResult struct {
	Token   barcode.Token
	Renewed bool
}

// ScanResult is the outcome of a full scan (validate + record).
type ScanResult struct {
	Record          Record              `json:"record"`
	Lecture         barcode.LectureInfo `json:"lecture_info"`
	DepartmentID    string              `json:"department_id"`
	YearLevel       int                 `json:"year_level"`
	Renewed         bool                `json:"-"`
	AlreadyRecorded bool                `json:"already_recorded"`
}

// Scanner runs the scan pipeline: validation, lazy renewal, and exactly-once
// recording.
type Scanner struct {
	records RecordStore
	tokens  TokenSource
	renewer TokenRenewer
	clk     clock.Clock
}

// NewScanner creates a scanner.
func NewScanner(records RecordStore, tokens TokenSource, renewer TokenRenewer, clk clock.Clock) *Scanner {
	if clk == nil {
		clk = clock.System{}
	}
	return &Scanner{records: records, tokens: tokens, renewer: renewer, clk: clk}
}

// ValidateScan checks a presented payload against the requesting student.
// Check order matters: existence and expiry are judged before the cohort so a
// stale or unknown token never leaks who it was issued for, and renewal runs
// before the expiry check so a token at the boundary of its old window does
// not fail mid-lecture.
func (s *Scanner) ValidateScan(ctx context.Context, value string, st student.Student) (ValidationResult, error) {
	if value == "" {
		return ValidationResult{}, ErrEmptyCode
	}
	token, err := s.tokens.ActiveByValue(ctx, value)
	if err != nil {
		return ValidationResult{}, err
	}
	renewed, err := s.renewer.RenewIfNeeded(ctx, token)
	if err != nil {
		return ValidationResult{}, err
	}
	now := s.clk.Now()
	if !now.Before(token.ExpiryTime) {
		return ValidationResult{}, &ExpiredError{ExpiredAt: token.ExpiryTime}
	}
	if st.DepartmentID != token.DepartmentID || st.YearLevel != token.YearLevel {
		return ValidationResult{}, &CohortMismatchError{
			TokenDepartment:   token.DepartmentID,
			TokenYear:         token.YearLevel,
			StudentDepartment: st.DepartmentID,
			StudentYear:       st.YearLevel,
		}
	}
	return ValidationResult{Token: *token, Renewed: renewed}, nil
}

// RecordAttendance writes the attendance row for a validated scan. Cohort
// fields are copied from the student, not the token: the person is the audit
// authority, not the door they walked through. The duplicate pre-check keeps
// the common retap cheap; the unique index in the store is what actually
// guarantees exactly-once under concurrency.
func (s *Scanner) RecordAttendance(ctx context.Context, st student.Student, token barcode.Token, lectureID string) (Record, error) {
	now := s.clk.Now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if existing, err := s.records.FindForScan(ctx, st.ID, date, token.ID); err != nil {
		return Record{}, err
	} else if existing != nil {
		return Record{}, &DuplicateError{Existing: *existing}
	}

	return s.records.Insert(ctx, Record{
		StudentID:    st.ID,
		Date:         date,
		CheckInTime:  now,
		BarcodeID:    token.ID,
		LectureID:    lectureID,
		DepartmentID: st.DepartmentID,
		YearLevel:    st.YearLevel,
		Status:       StatusPresent,
	})
}

// Scan validates and records in one call; this is what the scan endpoint
// uses. A duplicate comes back as a successful result with AlreadyRecorded
// set, matching how the mobile client presents it.
func (s *Scanner) Scan(ctx context.Context, value string, st student.Student) (ScanResult, error) {
	validated, err := s.ValidateScan(ctx, value, st)
	if err != nil {
		return ScanResult{}, err
	}
	rec, err := s.RecordAttendance(ctx, st, validated.Token, "")
	if err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			return ScanResult{
				Record:          dup.Existing,
				Lecture:         validated.Token.Lecture,
				DepartmentID:    validated.Token.DepartmentID,
				YearLevel:       validated.Token.YearLevel,
				Renewed:         validated.Renewed,
				AlreadyRecorded: true,
			}, nil
		}
		return ScanResult{}, err
	}
	return ScanResult{
		Record:       rec,
		Lecture:      validated.Token.Lecture,
		DepartmentID: validated.Token.DepartmentID,
		YearLevel:    validated.Token.YearLevel,
		Renewed:      validated.Renewed,
	}, nil
}
