package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() SchedulingSettings {
	return SchedulingSettings{
		MinimumNoticeHours: 2,
		DateRangeDays:      30,
		TimeSlots: []TimeWindow{{
			StartTime: "09:00",
			EndTime:   "17:00",
			Days:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		}},
		Timezone: "America/New_York",
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	result := ValidateSettings(validSettings())
	assert.True(t, result.Valid(), "unexpected violations: %v", result)
}

func TestValidateSettings_OverlappingWindows(t *testing.T) {
	s := validSettings()
	s.TimeSlots = []TimeWindow{
		{StartTime: "09:00", EndTime: "12:00", Days: []time.Weekday{time.Monday}},
		{StartTime: "11:00", EndTime: "14:00", Days: []time.Weekday{time.Monday}},
	}

	result := ValidateSettings(s)
	require.Len(t, result, 1, "exactly one violation for the pair")
	v, ok := result["timeSlots.0.overlap.1"]
	require.True(t, ok, "violation keyed by both indices, got: %v", result)
	assert.False(t, v.IsValid)
	assert.Contains(t, v.Error, "time slot 0")
	assert.Contains(t, v.Error, "time slot 1")
}

func TestValidateSettings_NoticeSmallerThanBuffers(t *testing.T) {
	s := validSettings()
	s.MinimumNoticeHours = 0
	s.BufferBeforeMins = 30
	s.BufferAfterMins = 30

	result := ValidateSettings(s)
	require.Contains(t, result, "minimumNotice.buffer")
	assert.False(t, result.Valid())
}

func TestValidateSettings_ReportsEveryViolation(t *testing.T) {
	s := SchedulingSettings{
		MinimumNoticeHours: -1,
		DateRangeDays:      0,
		DailyLimit:         -2,
		WeeklyLimit:        -3,
		BufferBeforeMins:   -10,
		Timezone:           "Not/AZone",
		TimeSlots: []TimeWindow{
			{StartTime: "17:00", EndTime: "09:00", Days: []time.Weekday{time.Monday}},
			{StartTime: "oops", EndTime: "10:00", Days: nil},
		},
	}

	result := ValidateSettings(s)
	for _, key := range []string{
		"minimumNotice", "dateRange", "dailyLimit", "weeklyLimit",
		"bufferBefore", "timezone",
		"timeSlots.0.endTime", "timeSlots.1.startTime", "timeSlots.1.daysOfWeek",
	} {
		assert.Contains(t, result, key)
	}
}

func TestValidateSettings_WeeklyBelowDaily(t *testing.T) {
	s := validSettings()
	s.DailyLimit = 5
	s.WeeklyLimit = 2

	result := ValidateSettings(s)
	require.Contains(t, result, "weeklyLimit")

	// Zero means unlimited on either side and never trips the cross-check.
	s.WeeklyLimit = 0
	assert.True(t, ValidateSettings(s).Valid())
	s.DailyLimit = 0
	s.WeeklyLimit = 1
	assert.True(t, ValidateSettings(s).Valid())
}

func TestValidateSettings_EmptyTimeSlots(t *testing.T) {
	s := validSettings()
	s.TimeSlots = nil
	result := ValidateSettings(s)
	require.Contains(t, result, "timeSlots")
}

func TestValidateSettings_Deterministic(t *testing.T) {
	s := validSettings()
	s.TimeSlots = append(s.TimeSlots, TimeWindow{
		StartTime: "10:00", EndTime: "11:00", Days: []time.Weekday{time.Monday},
	})
	first := ValidateSettings(s)
	second := ValidateSettings(s)
	assert.Equal(t, first, second)
	assert.False(t, first.Valid())
}
