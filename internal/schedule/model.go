package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Lecture is one slot inside a day bucket of the week plan.
type Lecture struct {
	CourseName     string `json:"course_name"`
	CourseCode     string `json:"course_code"`
	InstructorName string `json:"instructor_name"`
	RoomNumber     string `json:"room_number"`
	StartTime      string `json:"start_time"` // "HH:MM"
	EndTime        string `json:"end_time"`   // "HH:MM"
	LectureType    string `json:"lecture_type"`
}

// Validate reports whether the slot carries the fields issuance depends on.
func (l Lecture) Validate() error {
	if l.CourseName == "" {
		return errors.New("lecture missing course name")
	}
	if l.StartTime == "" || l.EndTime == "" {
		return errors.New("lecture missing start or end time")
	}
	if _, _, err := ParseHHMM(l.StartTime); err != nil {
		return fmt.Errorf("bad start time: %w", err)
	}
	if _, _, err := ParseHHMM(l.EndTime); err != nil {
		return fmt.Errorf("bad end time: %w", err)
	}
	return nil
}

// DayPlan is an ordered lecture list for one weekday.
type DayPlan struct {
	Day      Weekday   `json:"day"`
	Lectures []Lecture `json:"lectures"`
}

// WeekPlan is the ordered list of day buckets for a schedule.
type WeekPlan struct {
	Days []DayPlan `json:"days"`
}

// DayPlanFor returns the bucket for a weekday, if present.
func (p WeekPlan) DayPlanFor(day Weekday) (DayPlan, bool) {
	for _, d := range p.Days {
		if d.Day == day {
			return d, true
		}
	}
	return DayPlan{}, false
}

// Schedule is the weekly timetable for one department/year cohort.
type Schedule struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"department_id"`
	YearLevel    int       `json:"year_level"`
	WeekPlan     WeekPlan  `json:"week_plan"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParseHHMM splits a "HH:MM" wall-clock string.
func ParseHHMM(s string) (hour, minute int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time %q out of range", s)
	}
	return hour, minute, nil
}
