package schedule

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/google/uuid"
)

// Booking request rejection reasons. Callers match with errors.Is and map
// each to a specific user-facing retry path; none of these is exceptional.
var (
	ErrInsufficientNotice = errors.New("booking start violates the minimum notice")
	ErrOutOfRange         = errors.New("booking date is beyond the allowed range")
	ErrSlotUnavailable    = errors.New("slot is not available")
)

// BusyInterval is a [StartUTC, EndUTC) range reported by a connected
// external calendar. Purely advisory input, never persisted.
type BusyInterval struct {
	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`
}

// BookedSlot is an already-confirmed booking's occupied range. Its buffers
// are the owning settings' buffers, applied during the conflict test.
type BookedSlot struct {
	StartUTC time.Time
	EndUTC   time.Time
}

// BookingRequest is a client's submission, not persisted until accepted.
// Date and Time are wall-clock values interpreted in the event type's
// configured timezone; Timezone is the requester's display zone.
type BookingRequest struct {
	EventTypeID uuid.UUID      `json:"eventTypeId"`
	Date        string         `json:"date"` // "2006-01-02"
	Time        string         `json:"time"` // "15:04:05" or "15:04"
	Timezone    string         `json:"timezone,omitempty"`
	Answers     map[string]any `json:"answers"`
}

// StartIn resolves the request's wall-clock start in loc.
func (r BookingRequest) StartIn(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", r.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse booking date: %w", err)
	}
	clock := r.Time
	if len(clock) > 5 {
		clock = clock[:5]
	}
	mins, err := parseWallClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return wallClock(day, mins), nil
}

// ResolveFreeSlots filters candidates down to the slots a client may book:
// a slot survives only if its buffered interval clears every external busy
// interval and every existing booking's buffered interval, and its day and
// ISO week are still under the configured caps. Output order follows the
// candidate order (ascending start).
func ResolveFreeSlots(candidates iter.Seq[CandidateSlot], busy []BusyInterval, booked []BookedSlot, s SchedulingSettings) []CandidateSlot {
	loc, err := s.Location()
	if err != nil {
		return nil
	}

	perDay := map[string]int{}
	perWeek := map[string]int{}
	for _, b := range booked {
		local := b.StartUTC.In(loc)
		perDay[dayKey(local)]++
		perWeek[weekKey(local)]++
	}

	var free []CandidateSlot
	for c := range candidates {
		if conflicts(c, busy, booked, s) {
			continue
		}
		local := c.StartUTC.In(loc)
		if s.DailyLimit > 0 && perDay[dayKey(local)] >= s.DailyLimit {
			continue
		}
		if s.WeeklyLimit > 0 && perWeek[weekKey(local)] >= s.WeeklyLimit {
			continue
		}
		free = append(free, c)
	}
	return free
}

func conflicts(c CandidateSlot, busy []BusyInterval, booked []BookedSlot, s SchedulingSettings) bool {
	start, end := c.BufferedStart(), c.BufferedEnd()
	for _, b := range busy {
		if intersects(start, end, b.StartUTC, b.EndUTC) {
			return true
		}
	}
	for _, b := range booked {
		if intersects(start, end, b.StartUTC.Add(-s.bufferBefore()), b.EndUTC.Add(s.bufferAfter())) {
			return true
		}
	}
	return false
}

// intersects applies the half-open overlap rule to two [start, end) ranges.
func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ValidateBookingRequest is the atomic gate run at submission time. busy and
// booked must be fetched at validation time, not reused from an earlier slot
// listing, so the check closes the race between listing and submitting.
// Checks run in order and short-circuit on the first failure.
func ValidateBookingRequest(req BookingRequest, s SchedulingSettings, duration time.Duration, busy []BusyInterval, booked []BookedSlot, nowUTC time.Time) error {
	loc, err := s.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone %q: %w", s.Timezone, err)
	}
	startLocal, err := req.StartIn(loc)
	if err != nil {
		return err
	}
	startUTC := startLocal.UTC()

	if startUTC.Sub(nowUTC) < s.minimumNotice() {
		return ErrInsufficientNotice
	}

	day := midnight(startLocal)
	today := midnight(nowUTC.In(loc))
	// Rounding absorbs the off-by-an-hour a DST transition introduces.
	daysAhead := int(math.Round(day.Sub(today).Hours() / 24))
	if daysAhead > s.DateRangeDays {
		return ErrOutOfRange
	}

	// Candidates are regenerated with the requested duration, so matching the
	// start instant pins the whole slot.
	for _, c := range ResolveFreeSlots(CandidateSlots(s, duration, day, day, nowUTC), busy, booked, s) {
		if c.StartUTC.Equal(startUTC) {
			return nil
		}
	}
	return ErrSlotUnavailable
}

// BookedFetchRange widens [fromUTC, toUTC) to whole ISO weeks in the
// settings' timezone: Monday 00:00 local of the week containing fromUTC
// through the Monday after the week containing toUTC. The day and week
// counters in ResolveFreeSlots are only complete when the booked slots
// passed in cover at least this span; a narrower fetch undercounts the
// weekly cap.
func BookedFetchRange(s SchedulingSettings, fromUTC, toUTC time.Time) (time.Time, time.Time) {
	loc, err := s.Location()
	if err != nil {
		return fromUTC, toUTC
	}
	from := weekStart(fromUTC.In(loc))
	to := weekStart(toUTC.In(loc)).AddDate(0, 0, 7)
	return from.UTC(), to.UTC()
}

// weekStart is Monday 00:00 of local's ISO week.
func weekStart(local time.Time) time.Time {
	day := midnight(local)
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}

func dayKey(local time.Time) string {
	return local.Format("2006-01-02")
}

func weekKey(local time.Time) string {
	year, week := local.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
