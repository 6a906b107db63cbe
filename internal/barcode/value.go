package barcode

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"classattend/internal/schedule"
)

// NewValue builds the opaque scanned payload. The slot fields make the value
// human-debuggable; uniqueness under concurrent issuance comes from the
// timestamp plus UUID tail, not from the slot fields. The value carries no
// signature; anyone holding it within the cohort can present it until expiry.
func NewValue(scheduleID, departmentID, courseCode string, day schedule.Weekday, startTime string, now time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		scheduleID, departmentID, courseCode, day, startTime, now.UnixNano(), uuid.NewString())
}
