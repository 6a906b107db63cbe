package barcode

import (
	"time"

	"classattend/internal/schedule"
)

// NextExpiry computes the instant a token for the given weekday slot should
// expire: the lecture's end time on the next calendar date falling on that
// weekday. Today counts only while the end time has not yet passed, so the
// result is never in the past.
func NextExpiry(now time.Time, day schedule.Weekday, endTime string) (time.Time, error) {
	hour, minute, err := schedule.ParseHHMM(endTime)
	if err != nil {
		return time.Time{}, err
	}
	daysAhead := (int(day.ToTime()) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	candidate = candidate.AddDate(0, 0, daysAhead)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate, nil
}
