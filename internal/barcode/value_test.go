package barcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"classattend/internal/schedule"
)

func TestNewValueUnique(t *testing.T) {
	now := saturday(7, 0)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		v := NewValue("sched-cs-3", "CS", "CS301", schedule.Saturday, "08:00", now)
		assert.False(t, seen[v], "value collision: %s", v)
		seen[v] = true
	}
}

func TestNewValueCarriesSlot(t *testing.T) {
	v := NewValue("sched-cs-3", "CS", "CS301", schedule.Saturday, "08:00", saturday(7, 0))
	assert.True(t, strings.HasPrefix(v, "sched-cs-3|CS|CS301|saturday|08:00|"))
}
