package barcode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"classattend/internal/schedule"
)

// fakeStore is an in-memory Store enforcing the same uniqueness the Postgres
// partial index provides.
type fakeStore struct {
	mu           sync.Mutex
	tokens       map[string]Token
	expiryErrFor map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: map[string]Token{}, expiryErrFor: map[string]error{}}
}

func (f *fakeStore) ActiveBySlot(_ context.Context, scheduleID string, day schedule.Weekday, startTime string) (*Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.IsActive && t.ScheduleID == scheduleID && t.Lecture.Day == day && t.Lecture.StartTime == startTime {
			copied := t
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ActiveByValue(_ context.Context, value string) (*Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.IsActive && t.Value == value {
			copied := t
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) Insert(_ context.Context, t Token) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tokens {
		if existing.IsActive && existing.ScheduleID == t.ScheduleID &&
			existing.Lecture.Day == t.Lecture.Day && existing.Lecture.StartTime == t.Lecture.StartTime {
			return Token{}, ErrSlotTaken
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.IsActive = true
	t.CreatedAt = time.Now()
	f.tokens[t.ID] = t
	return t, nil
}

func (f *fakeStore) Replace(_ context.Context, t Token) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.tokens {
		if existing.IsActive && existing.ScheduleID == t.ScheduleID &&
			existing.Lecture.Day == t.Lecture.Day && existing.Lecture.StartTime == t.Lecture.StartTime {
			existing.IsActive = false
			f.tokens[id] = existing
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.IsActive = true
	t.CreatedAt = time.Now()
	f.tokens[t.ID] = t
	return t, nil
}

func (f *fakeStore) UpdateExpiry(_ context.Context, id string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.expiryErrFor[id]; err != nil {
		return err
	}
	t, ok := f.tokens[id]
	if !ok {
		return ErrNotFound
	}
	t.ExpiryTime = expiry
	f.tokens[id] = t
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok {
		return Token{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) ListActiveByDay(_ context.Context, day schedule.Weekday) ([]Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []Token
	for _, t := range f.tokens {
		if t.IsActive && t.Lecture.Day == day {
			res = append(res, t)
		}
	}
	return res, nil
}

func (f *fakeStore) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.IsActive {
			n++
		}
	}
	return n
}

// fakeSchedules serves timetables from memory with the repo's lookup rules.
type fakeSchedules struct {
	schedules map[string]schedule.Schedule
}

func (f *fakeSchedules) Get(_ context.Context, id string) (schedule.Schedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	return s, nil
}

func (f *fakeSchedules) LectureAt(ctx context.Context, scheduleID string, day schedule.Weekday, index int) (schedule.Schedule, schedule.Lecture, error) {
	s, err := f.Get(ctx, scheduleID)
	if err != nil {
		return schedule.Schedule{}, schedule.Lecture{}, err
	}
	bucket, ok := s.WeekPlan.DayPlanFor(day)
	if !ok {
		return schedule.Schedule{}, schedule.Lecture{}, fmt.Errorf("no %s bucket: %w", day, schedule.ErrNotFound)
	}
	if index < 0 || index >= len(bucket.Lectures) {
		return schedule.Schedule{}, schedule.Lecture{}, fmt.Errorf("no lecture %d: %w", index, schedule.ErrNotFound)
	}
	return s, bucket.Lectures[index], nil
}
