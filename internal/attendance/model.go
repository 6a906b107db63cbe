package attendance

import (
	"errors"
	"fmt"
	"time"
)

// StatusPresent is the only status a successful scan produces.
const StatusPresent = "present"

// Record is one attendance row. Rows are written once per successful scan and
// never mutated afterwards by this subsystem.
type Record struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Date         time.Time `json:"date"`
	CheckInTime  time.Time `json:"check_in_time"`
	BarcodeID    string    `json:"barcode_id,omitempty"`
	LectureID    string    `json:"lecture_id,omitempty"`
	DepartmentID string    `json:"department_id"`
	YearLevel    int       `json:"year_level"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrEmptyCode is returned when a scan presents a blank payload.
var ErrEmptyCode = errors.New("barcode value is empty")

// ExpiredError rejects a scan after the token's expiry. The message carries
// the expiry so the student can see the window has closed.
type ExpiredError struct {
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("barcode expired at %s", e.ExpiredAt.Format("2006-01-02 15:04"))
}

// CohortMismatchError rejects a scan when the student's department or year
// does not match the token's. Both sides are named for diagnosability.
type CohortMismatchError struct {
	TokenDepartment   string
	TokenYear         int
	StudentDepartment string
	StudentYear       int
}

func (e *CohortMismatchError) Error() string {
	return fmt.Sprintf("barcode is for department %s year %d, student is department %s year %d",
		e.TokenDepartment, e.TokenYear, e.StudentDepartment, e.StudentYear)
}

// DuplicateError carries the existing row when a student scans the same
// barcode twice on one day. Handlers treat it as "already recorded", not as a
// server failure.
type DuplicateError struct {
	Existing Record
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("attendance already recorded at %s", e.Existing.CheckInTime.Format("15:04"))
}
