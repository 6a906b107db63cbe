package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is the day slot a lecture occupies. It is a typed value internally;
// localized display strings exist only at the parse/format boundary so that
// comparisons never depend on locale.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var englishNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var arabicNames = [...]string{"الأحد", "الاثنين", "الثلاثاء", "الأربعاء", "الخميس", "الجمعة", "السبت"}

// String returns the lowercase English name.
func (w Weekday) String() string {
	if w < Sunday || w > Saturday {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return englishNames[w]
}

// ArabicLabel returns the localized display name used by the mobile clients.
func (w Weekday) ArabicLabel() string {
	if w < Sunday || w > Saturday {
		return ""
	}
	return arabicNames[w]
}

// FromTime converts a time.Weekday.
func FromTime(d time.Weekday) Weekday { return Weekday(d) }

// ToTime converts to a time.Weekday.
func (w Weekday) ToTime() time.Weekday { return time.Weekday(w) }

// ParseWeekday accepts English names (any case) and Arabic display labels.
func ParseWeekday(s string) (Weekday, error) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	for i, name := range englishNames {
		if lower == name {
			return Weekday(i), nil
		}
	}
	for i, name := range arabicNames {
		if trimmed == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// MarshalJSON encodes the English name.
func (w Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// UnmarshalJSON accepts English or Arabic names.
func (w *Weekday) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
