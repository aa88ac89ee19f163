package schedule

import (
	"fmt"
	"time"
)

// FieldError is one configuration violation, keyed by field path in a
// ValidationResult.
type FieldError struct {
	IsValid bool   `json:"isValid"`
	Error   string `json:"error"`
}

// ValidationResult maps a field path (e.g. "timeSlots.2.endTime") to its
// violation. An empty result means the settings are valid.
type ValidationResult map[string]FieldError

func (r ValidationResult) Valid() bool { return len(r) == 0 }

func (r ValidationResult) fail(path, format string, args ...any) {
	r[path] = FieldError{IsValid: false, Error: fmt.Sprintf(format, args...)}
}

// ValidateSettings checks a scheduling configuration for internal
// consistency. Every violation is reported, not just the first; the same
// input always yields the same result. It performs no I/O.
func ValidateSettings(s SchedulingSettings) ValidationResult {
	result := ValidationResult{}

	if s.MinimumNoticeHours < 0 {
		result.fail("minimumNotice", "minimum notice must not be negative")
	}
	if s.DateRangeDays < 1 {
		result.fail("dateRange", "date range must be at least 1 day")
	}
	if s.DailyLimit < 0 {
		result.fail("dailyLimit", "daily limit must not be negative")
	}
	if s.WeeklyLimit < 0 {
		result.fail("weeklyLimit", "weekly limit must not be negative")
	}
	if s.DailyLimit > 0 && s.WeeklyLimit > 0 && s.WeeklyLimit < s.DailyLimit {
		result.fail("weeklyLimit", "weekly limit must be at least the daily limit")
	}
	if s.BufferBeforeMins < 0 {
		result.fail("bufferBefore", "buffer before must not be negative")
	}
	if s.BufferAfterMins < 0 {
		result.fail("bufferAfter", "buffer after must not be negative")
	}
	if s.MinimumNoticeHours >= 0 && s.BufferBeforeMins >= 0 && s.BufferAfterMins >= 0 &&
		s.MinimumNoticeHours*60 < s.BufferBeforeMins+s.BufferAfterMins {
		result.fail("minimumNotice.buffer",
			"minimum notice must cover the total buffer time (%d minutes)",
			s.BufferBeforeMins+s.BufferAfterMins)
	}

	if _, err := time.LoadLocation(s.Timezone); err != nil || s.Timezone == "" {
		result.fail("timezone", "timezone %q is not a valid IANA timezone", s.Timezone)
	}

	if len(s.TimeSlots) == 0 {
		result.fail("timeSlots", "at least one time slot is required")
		return result
	}

	for i, w := range s.TimeSlots {
		start, startErr := w.startMinutes()
		if startErr != nil {
			result.fail(fmt.Sprintf("timeSlots.%d.startTime", i), "start time %q is not HH:MM", w.StartTime)
		}
		end, endErr := w.endMinutes()
		if endErr != nil {
			result.fail(fmt.Sprintf("timeSlots.%d.endTime", i), "end time %q is not HH:MM", w.EndTime)
		}
		if startErr == nil && endErr == nil && end <= start {
			result.fail(fmt.Sprintf("timeSlots.%d.endTime", i), "end time must be after start time")
		}
		if len(w.Days) == 0 {
			result.fail(fmt.Sprintf("timeSlots.%d.daysOfWeek", i), "at least one day must be selected")
		}
		for _, d := range w.Days {
			if d < time.Sunday || d > time.Saturday {
				result.fail(fmt.Sprintf("timeSlots.%d.daysOfWeek", i), "invalid day of week %d", d)
				break
			}
		}
	}

	// Pairwise, across all window pairs, one entry per offending pair.
	for i := 0; i < len(s.TimeSlots); i++ {
		for j := i + 1; j < len(s.TimeSlots); j++ {
			if s.TimeSlots[i].Overlaps(s.TimeSlots[j]) {
				result.fail(fmt.Sprintf("timeSlots.%d.overlap.%d", i, j),
					"time slot %d overlaps time slot %d on a shared day", i, j)
			}
		}
	}

	return result
}
