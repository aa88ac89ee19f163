package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedTime is returned when a wall-clock string is not "HH:MM".
var ErrMalformedTime = errors.New("malformed time, want HH:MM")

// TimeWindow is one recurring weekly availability rule: a wall-clock
// [StartTime, EndTime) range applied on each listed day of the week,
// interpreted in the owning settings' timezone.
type TimeWindow struct {
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Days      []time.Weekday `json:"days_of_week"`
}

// NewTimeWindow builds a window and rejects malformed wall-clock strings.
// Range and day-set sanity is the validator's job, not construction's.
func NewTimeWindow(start, end string, days ...time.Weekday) (TimeWindow, error) {
	if _, err := parseWallClock(start); err != nil {
		return TimeWindow{}, err
	}
	if _, err := parseWallClock(end); err != nil {
		return TimeWindow{}, err
	}
	return TimeWindow{StartTime: start, EndTime: end, Days: days}, nil
}

// parseWallClock parses "HH:MM" into minutes from midnight. Longer strings
// such as "09:00:00" are truncated to their HH:MM prefix.
func parseWallClock(s string) (int, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	tt, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	return tt.Hour()*60 + tt.Minute(), nil
}

func (w TimeWindow) startMinutes() (int, error) { return parseWallClock(w.StartTime) }
func (w TimeWindow) endMinutes() (int, error)   { return parseWallClock(w.EndTime) }

// Overlaps reports whether the two windows share at least one day of the
// week and their half-open time ranges intersect. Touching boundaries
// (a.end == b.start) do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	if !w.sharesDay(o) {
		return false
	}
	aStart, err := w.startMinutes()
	if err != nil {
		return false
	}
	aEnd, err := w.endMinutes()
	if err != nil {
		return false
	}
	bStart, err := o.startMinutes()
	if err != nil {
		return false
	}
	bEnd, err := o.endMinutes()
	if err != nil {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// AppliesTo reports whether the window covers date's day of week. The date
// must already be expressed in the settings' timezone.
func (w TimeWindow) AppliesTo(date time.Time) bool {
	for _, d := range w.Days {
		if d == date.Weekday() {
			return true
		}
	}
	return false
}

func (w TimeWindow) sharesDay(o TimeWindow) bool {
	for _, a := range w.Days {
		for _, b := range o.Days {
			if a == b {
				return true
			}
		}
	}
	return false
}
