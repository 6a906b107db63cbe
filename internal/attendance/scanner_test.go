package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/barcode"
	"classattend/internal/clock"
	"classattend/internal/schedule"
	"classattend/internal/student"
)

// 2026-08-29 is a Saturday.
func saturday(hour, minute int) time.Time {
	return time.Date(2026, 8, 29, hour, minute, 0, 0, time.UTC)
}

// fakeRecords enforces the same (student, date, barcode) uniqueness the
// Postgres index provides.
type fakeRecords struct {
	mu   sync.Mutex
	rows map[string]Record
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{rows: map[string]Record{}}
}

func key(studentID string, date time.Time, barcodeID string) string {
	return fmt.Sprintf("%s|%s|%s", studentID, date.Format("2006-01-02"), barcodeID)
}

func (f *fakeRecords) FindForScan(_ context.Context, studentID string, date time.Time, barcodeID string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.rows[key(studentID, date, barcodeID)]; ok {
		copied := rec
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRecords) Insert(_ context.Context, rec Record) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(rec.StudentID, rec.Date, rec.BarcodeID)
	if existing, ok := f.rows[k]; ok {
		return Record{}, &DuplicateError{Existing: existing}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now()
	f.rows[k] = rec
	return rec, nil
}

func (f *fakeRecords) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeTokens struct {
	byValue map[string]barcode.Token
}

func (f *fakeTokens) ActiveByValue(_ context.Context, value string) (*barcode.Token, error) {
	if t, ok := f.byValue[value]; ok {
		copied := t
		return &copied, nil
	}
	return nil, barcode.ErrNotFound
}

type renewerFunc func(ctx context.Context, t *barcode.Token) (bool, error)

func (f renewerFunc) RenewIfNeeded(ctx context.Context, t *barcode.Token) (bool, error) {
	return f(ctx, t)
}

func noRenew() renewerFunc {
	return func(context.Context, *barcode.Token) (bool, error) { return false, nil }
}

func csToken() barcode.Token {
	return barcode.Token{
		ID:           "tok-1",
		ScheduleID:   "sched-cs-3",
		DepartmentID: "CS",
		YearLevel:    3,
		Lecture: barcode.LectureInfo{
			Lecture: schedule.Lecture{
				CourseName: "Operating Systems",
				StartTime:  "08:00",
				EndTime:    "09:30",
			},
			Day: schedule.Saturday,
		},
		Value:      "cs-token-value",
		ExpiryTime: saturday(9, 30),
		IsActive:   true,
	}
}

func csStudent() student.Student {
	return student.Student{ID: "stu-1", DepartmentID: "CS", YearLevel: 3}
}

func newTestScanner(tokens *fakeTokens, renewer TokenRenewer, now time.Time) (*Scanner, *fakeRecords) {
	records := newFakeRecords()
	return NewScanner(records, tokens, renewer, clock.Fixed{T: now}), records
}

func TestValidateScanRejections(t *testing.T) {
	tokens := &fakeTokens{byValue: map[string]barcode.Token{"cs-token-value": csToken()}}

	tests := []struct {
		name    string
		value   string
		student student.Student
		now     time.Time
		check   func(t *testing.T, err error)
	}{
		{
			name:    "Empty value",
			value:   "",
			student: csStudent(),
			now:     saturday(9, 15),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyCode)
			},
		},
		{
			name:    "Unknown value",
			value:   "someone-elses-token",
			student: csStudent(),
			now:     saturday(9, 15),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, barcode.ErrNotFound)
			},
		},
		{
			name:    "Expired token",
			value:   "cs-token-value",
			student: csStudent(),
			now:     saturday(10, 0),
			check: func(t *testing.T, err error) {
				var expired *ExpiredError
				require.ErrorAs(t, err, &expired)
				assert.Equal(t, saturday(9, 30), expired.ExpiredAt)
				assert.Contains(t, err.Error(), "09:30")
			},
		},
		{
			name:    "Department mismatch",
			value:   "cs-token-value",
			student: student.Student{ID: "stu-2", DepartmentID: "EE", YearLevel: 3},
			now:     saturday(9, 15),
			check: func(t *testing.T, err error) {
				var mismatch *CohortMismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, "CS", mismatch.TokenDepartment)
				assert.Equal(t, "EE", mismatch.StudentDepartment)
			},
		},
		{
			name:    "Year mismatch",
			value:   "cs-token-value",
			student: student.Student{ID: "stu-3", DepartmentID: "CS", YearLevel: 1},
			now:     saturday(9, 15),
			check: func(t *testing.T, err error) {
				var mismatch *CohortMismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, 3, mismatch.TokenYear)
				assert.Equal(t, 1, mismatch.StudentYear)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner, _ := newTestScanner(tokens, noRenew(), tt.now)
			_, err := scanner.ValidateScan(context.Background(), tt.value, tt.student)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestValidateScanSuccess(t *testing.T) {
	tokens := &fakeTokens{byValue: map[string]barcode.Token{"cs-token-value": csToken()}}
	scanner, _ := newTestScanner(tokens, noRenew(), saturday(9, 15))

	result, err := scanner.ValidateScan(context.Background(), "cs-token-value", csStudent())
	require.NoError(t, err)
	assert.Equal(t, "Operating Systems", result.Token.Lecture.CourseName)
	assert.Equal(t, "CS", result.Token.DepartmentID)
	assert.Equal(t, 3, result.Token.YearLevel)
	assert.False(t, result.Renewed)
}

func TestValidateScanRenewsBeforeExpiryCheck(t *testing.T) {
	stale := csToken()
	stale.ExpiryTime = saturday(9, 30).AddDate(0, 0, -7)
	tokens := &fakeTokens{byValue: map[string]barcode.Token{"cs-token-value": stale}}

	extend := renewerFunc(func(_ context.Context, tok *barcode.Token) (bool, error) {
		tok.ExpiryTime = saturday(9, 30)
		return true, nil
	})

	scanner, _ := newTestScanner(tokens, extend, saturday(8, 15))
	result, err := scanner.ValidateScan(context.Background(), "cs-token-value", csStudent())
	require.NoError(t, err)
	assert.True(t, result.Renewed)
	assert.Equal(t, saturday(9, 30), result.Token.ExpiryTime)
}

func TestScanRecordsAttendance(t *testing.T) {
	tokens := &fakeTokens{byValue: map[string]barcode.Token{"cs-token-value": csToken()}}
	scanner, records := newTestScanner(tokens, noRenew(), saturday(9, 15))
	ctx := context.Background()

	result, err := scanner.Scan(ctx, "cs-token-value", csStudent())
	require.NoError(t, err)
	assert.False(t, result.AlreadyRecorded)
	assert.Equal(t, StatusPresent, result.Record.Status)
	assert.Equal(t, "stu-1", result.Record.StudentID)
	assert.Equal(t, "tok-1", result.Record.BarcodeID)
	assert.Equal(t, saturday(9, 15), result.Record.CheckInTime)
	assert.Equal(t, saturday(0, 0), result.Record.Date)
	// Cohort comes from the student, not the token.
	assert.Equal(t, "CS", result.Record.DepartmentID)
	assert.Equal(t, 3, result.Record.YearLevel)
	assert.Equal(t, 1, records.count())
}

func TestScanDuplicateReturnsFirstRecord(t *testing.T) {
	tokens := &fakeTokens{byValue: map[string]barcode.Token{"cs-token-value": csToken()}}
	scanner, records := newTestScanner(tokens, noRenew(), saturday(9, 15))
	ctx := context.Background()

	first, err := scanner.Scan(ctx, "cs-token-value", csStudent())
	require.NoError(t, err)

	second, err := scanner.Scan(ctx, "cs-token-value", csStudent())
	require.NoError(t, err)
	assert.True(t, second.AlreadyRecorded)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, 1, records.count())
}

func TestScanExactlyOnceUnderConcurrency(t *testing.T) {
	tokens := &fakeTokens{byValue: map[string]barcode.Token{"cs-token-value": csToken()}}
	scanner, records := newTestScanner(tokens, noRenew(), saturday(9, 15))

	const scans = 16
	results := make([]ScanResult, scans)
	errs := make([]error, scans)

	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = scanner.Scan(context.Background(), "cs-token-value", csStudent())
		}(i)
	}
	wg.Wait()

	firstID := ""
	duplicates := 0
	for i := 0; i < scans; i++ {
		require.NoError(t, errs[i])
		if firstID == "" {
			firstID = results[i].Record.ID
		}
		assert.Equal(t, firstID, results[i].Record.ID, "every scan must see the same record")
		if results[i].AlreadyRecorded {
			duplicates++
		}
	}

	assert.Equal(t, 1, records.count())
	assert.Equal(t, scans-1, duplicates)
}

func TestRecordAttendanceDistinctTokensSameDay(t *testing.T) {
	morning := csToken()
	afternoon := csToken()
	afternoon.ID = "tok-2"
	afternoon.Value = "cs-token-afternoon"
	afternoon.Lecture.CourseName = "Databases"
	afternoon.ExpiryTime = saturday(13, 30)

	tokens := &fakeTokens{byValue: map[string]barcode.Token{
		"cs-token-value":     morning,
		"cs-token-afternoon": afternoon,
	}}
	scanner, records := newTestScanner(tokens, noRenew(), saturday(9, 15))
	ctx := context.Background()

	_, err := scanner.Scan(ctx, "cs-token-value", csStudent())
	require.NoError(t, err)
	result, err := scanner.Scan(ctx, "cs-token-afternoon", csStudent())
	require.NoError(t, err)
	assert.False(t, result.AlreadyRecorded)
	assert.Equal(t, 2, records.count())
}

func TestScanPropagatesStorageError(t *testing.T) {
	tokens := &fakeTokens{byValue: map[string]barcode.Token{"cs-token-value": csToken()}}
	broken := renewerFunc(func(context.Context, *barcode.Token) (bool, error) {
		return false, errors.New("storage unavailable")
	})
	scanner, _ := newTestScanner(tokens, broken, saturday(9, 15))

	_, err := scanner.Scan(context.Background(), "cs-token-value", csStudent())
	assert.EqualError(t, err, "storage unavailable")
}
