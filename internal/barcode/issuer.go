package barcode

import (
	"context"
	"fmt"
	"time"

	"classattend/internal/clock"
	"classattend/internal/schedule"
)

// Store is the persistence surface the issuer and renewer need.
// *Repository implements it; tests use in-memory fakes.
type Store interface {
	ActiveBySlot(ctx context.Context, scheduleID string, day schedule.Weekday, startTime string) (*Token, error)
	ActiveByValue(ctx context.Context, value string) (*Token, error)
	Insert(ctx context.Context, t Token) (Token, error)
	Replace(ctx context.Context, t Token) (Token, error)
	UpdateExpiry(ctx context.Context, id string, expiry time.Time) error
	ListActiveByDay(ctx context.Context, day schedule.Weekday) ([]Token, error)
}

// Schedules is the read-only timetable surface.
type Schedules interface {
	Get(ctx context.Context, id string) (schedule.Schedule, error)
	LectureAt(ctx context.Context, scheduleID string, day schedule.Weekday, index int) (schedule.Schedule, schedule.Lecture, error)
}

// Issuer derives one token per schedule/day/lecture slot.
type Issuer struct {
	store     Store
	schedules Schedules
	clk       clock.Clock
}

// NewIssuer creates an issuer.
func NewIssuer(store Store, schedules Schedules, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.System{}
	}
	return &Issuer{store: store, schedules: schedules, clk: clk}
}

// IssueToken issues the token for one lecture slot. If an active token
// already holds the slot it is returned unchanged.
func (i *Issuer) IssueToken(ctx context.Context, scheduleID string, day schedule.Weekday, lectureIndex int, createdBy string) (Token, error) {
	sched, lec, err := i.schedules.LectureAt(ctx, scheduleID, day, lectureIndex)
	if err != nil {
		return Token{}, err
	}
	if err := lec.Validate(); err != nil {
		return Token{}, fmt.Errorf("lecture %s/%s[%d]: %w", scheduleID, day, lectureIndex, err)
	}

	if existing, err := i.store.ActiveBySlot(ctx, scheduleID, day, lec.StartTime); err != nil {
		return Token{}, err
	} else if existing != nil {
		return *existing, nil
	}

	t, err := i.build(sched, lec, day, createdBy)
	if err != nil {
		return Token{}, err
	}
	created, err := i.store.Insert(ctx, t)
	if err == ErrSlotTaken {
		// Lost the race to a concurrent issuer; its token is the slot's token.
		if existing, lookupErr := i.store.ActiveBySlot(ctx, scheduleID, day, lec.StartTime); lookupErr == nil && existing != nil {
			return *existing, nil
		}
		return Token{}, err
	}
	return created, err
}

// SlotError reports one failed slot inside a bulk run.
type SlotError struct {
	Day     schedule.Weekday `json:"day"`
	Index   int              `json:"index"`
	Message string           `json:"message"`
}

// BulkReport summarizes a bulk issuance run.
type BulkReport struct {
	Slots    int         `json:"slots"`
	Created  int         `json:"created"`
	TokenIDs []string    `json:"token_ids,omitempty"`
	Errors   []SlotError `json:"errors,omitempty"`
}

// BulkIssueForSchedule walks the whole week plan, deactivating and replacing
// the token for every slot. Malformed slots are reported and skipped; the
// rest of the run continues.
func (i *Issuer) BulkIssueForSchedule(ctx context.Context, scheduleID, createdBy string) (BulkReport, error) {
	sched, err := i.schedules.Get(ctx, scheduleID)
	if err != nil {
		return BulkReport{}, err
	}

	var report BulkReport
	for _, dayPlan := range sched.WeekPlan.Days {
		for idx, lec := range dayPlan.Lectures {
			report.Slots++
			if err := lec.Validate(); err != nil {
				report.Errors = append(report.Errors, SlotError{Day: dayPlan.Day, Index: idx, Message: err.Error()})
				continue
			}
			t, err := i.build(sched, lec, dayPlan.Day, createdBy)
			if err != nil {
				report.Errors = append(report.Errors, SlotError{Day: dayPlan.Day, Index: idx, Message: err.Error()})
				continue
			}
			created, err := i.store.Replace(ctx, t)
			if err != nil {
				report.Errors = append(report.Errors, SlotError{Day: dayPlan.Day, Index: idx, Message: err.Error()})
				continue
			}
			report.Created++
			report.TokenIDs = append(report.TokenIDs, created.ID)
		}
	}
	return report, nil
}

func (i *Issuer) build(sched schedule.Schedule, lec schedule.Lecture, day schedule.Weekday, createdBy string) (Token, error) {
	now := i.clk.Now()
	expiry, err := NextExpiry(now, day, lec.EndTime)
	if err != nil {
		return Token{}, err
	}
	return Token{
		ScheduleID:   sched.ID,
		Lecture:      LectureInfo{Lecture: lec, Day: day},
		DepartmentID: sched.DepartmentID,
		YearLevel:    sched.YearLevel,
		Value:        NewValue(sched.ID, sched.DepartmentID, lec.CourseCode, day, lec.StartTime, now),
		ExpiryTime:   expiry,
		IsActive:     true,
		CreatedBy:    createdBy,
	}, nil
}
