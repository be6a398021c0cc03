package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviousWeek(t *testing.T) {
	// Wednesday.
	now := time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)
	from, to := PreviousWeek(now, time.Monday)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 6, 8, 23, 59, 59, 999999999, time.UTC), to)

	// On the cycle day itself the week that just closed is returned.
	from, _ = PreviousWeek(time.Date(2025, 6, 9, 0, 0, 1, 0, time.UTC), time.Monday)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), from)

	from, to = PreviousWeek(now, time.Sunday)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Sunday, from.Weekday())
	assert.Equal(t, time.Saturday, to.Weekday())
}
