package barcode

import (
	"errors"
	"time"

	"classattend/internal/schedule"
)

// LectureInfo is the snapshot of the lecture slot taken at issuance. Tokens
// keep their own copy so later timetable edits do not move a live barcode.
type LectureInfo struct {
	schedule.Lecture
	Day schedule.Weekday `json:"day"`
}

// Token is the scannable credential for one weekly lecture slot.
type Token struct {
	ID           string      `json:"id"`
	ScheduleID   string      `json:"schedule_id"`
	Lecture      LectureInfo `json:"lecture_info"`
	DepartmentID string      `json:"department_id"`
	YearLevel    int         `json:"year_level"`
	Value        string      `json:"value"`
	RenderedCode string      `json:"rendered_code,omitempty"`
	ExpiryTime   time.Time   `json:"expiry_time"`
	IsActive     bool        `json:"is_active"`
	CreatedBy    string      `json:"created_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ErrNotFound is returned when no active token matches a lookup.
var ErrNotFound = errors.New("barcode not found")

// ErrSlotTaken signals a concurrent writer already holds the active slot.
var ErrSlotTaken = errors.New("active barcode exists for slot")
