package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeWindow_MalformedTime(t *testing.T) {
	_, err := NewTimeWindow("9am", "17:00", time.Monday)
	require.ErrorIs(t, err, ErrMalformedTime)

	_, err = NewTimeWindow("09:00", "25:99", time.Monday)
	require.ErrorIs(t, err, ErrMalformedTime)

	w, err := NewTimeWindow("09:00:00", "17:00", time.Monday)
	require.NoError(t, err, "seconds suffix is tolerated")
	assert.Equal(t, "09:00:00", w.StartTime)
}

func TestTimeWindow_Overlaps(t *testing.T) {
	mon := func(start, end string) TimeWindow {
		return TimeWindow{StartTime: start, EndTime: end, Days: []time.Weekday{time.Monday}}
	}

	assert.True(t, mon("09:00", "12:00").Overlaps(mon("11:00", "14:00")))
	assert.True(t, mon("11:00", "14:00").Overlaps(mon("09:00", "12:00")))
	assert.True(t, mon("09:00", "17:00").Overlaps(mon("10:00", "11:00")), "containment overlaps")

	// Touching boundaries do not overlap: the ranges are half-open.
	assert.False(t, mon("09:00", "12:00").Overlaps(mon("12:00", "14:00")))

	tue := TimeWindow{StartTime: "09:00", EndTime: "12:00", Days: []time.Weekday{time.Tuesday}}
	assert.False(t, mon("09:00", "12:00").Overlaps(tue), "no shared day")

	multi := TimeWindow{StartTime: "10:00", EndTime: "11:00", Days: []time.Weekday{time.Sunday, time.Monday}}
	assert.True(t, mon("09:00", "12:00").Overlaps(multi), "one shared day is enough")
}

func TestTimeWindow_AppliesTo(t *testing.T) {
	w := TimeWindow{StartTime: "09:00", EndTime: "17:00", Days: []time.Weekday{time.Monday, time.Friday}}

	mon := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.True(t, w.AppliesTo(mon))
	assert.True(t, w.AppliesTo(mon.AddDate(0, 0, 4)), "friday")
	assert.False(t, w.AppliesTo(mon.AddDate(0, 0, 1)), "tuesday")
}
