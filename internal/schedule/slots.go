package schedule

import (
	"iter"
	"sort"
	"time"
)

// CandidateSlot is a computed, not-yet-checked potential booking. Buffers
// are carried as metadata for the resolver's conflict test; they are not
// subtracted from the availability window at generation time.
type CandidateSlot struct {
	StartUTC     time.Time     `json:"start_utc"`
	EndUTC       time.Time     `json:"end_utc"`
	BufferBefore time.Duration `json:"-"`
	BufferAfter  time.Duration `json:"-"`
}

// BufferedStart is the start of the slot's exclusive interval.
func (c CandidateSlot) BufferedStart() time.Time { return c.StartUTC.Add(-c.BufferBefore) }

// BufferedEnd is the end of the slot's exclusive interval.
func (c CandidateSlot) BufferedEnd() time.Time { return c.EndUTC.Add(c.BufferAfter) }

// CandidateSlots walks each calendar day between rangeStart and rangeEnd
// (both interpreted as dates in the settings' timezone) and emits every slot
// of the given duration that fits entirely inside an applicable time window
// and starts no earlier than now plus the minimum notice. The horizon is
// additionally capped at DateRangeDays from now.
//
// All day and wall-clock arithmetic happens in the configured timezone, so
// slot starts stay correct local times across DST transitions; only the
// emitted instants are UTC. The sequence is lazy, finite and restartable.
// An unresolvable timezone or an empty range yields an empty sequence.
func CandidateSlots(s SchedulingSettings, duration time.Duration, rangeStart, rangeEnd, nowUTC time.Time) iter.Seq[CandidateSlot] {
	return func(yield func(CandidateSlot) bool) {
		loc, err := s.Location()
		if err != nil || duration <= 0 {
			return
		}

		nowLocal := nowUTC.In(loc)
		today := midnight(nowLocal)
		earliest := nowUTC.Add(s.minimumNotice())

		first := midnight(rangeStart.In(loc))
		if first.Before(today) {
			first = today
		}
		horizon := today.AddDate(0, 0, s.DateRangeDays)
		last := midnight(rangeEnd.In(loc))
		if horizon.Before(last) {
			last = horizon
		}

		durMins := int(duration / time.Minute)

		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			for _, w := range windowsFor(s.TimeSlots, day) {
				startMin, err := w.startMinutes()
				if err != nil {
					continue
				}
				endMin, err := w.endMinutes()
				if err != nil {
					continue
				}
				// No partial slot at the window's tail.
				for m := startMin; m+durMins <= endMin; m += durMins {
					slot := CandidateSlot{
						StartUTC:     wallClock(day, m).UTC(),
						EndUTC:       wallClock(day, m+durMins).UTC(),
						BufferBefore: s.bufferBefore(),
						BufferAfter:  s.bufferAfter(),
					}
					if slot.StartUTC.Before(earliest) {
						continue
					}
					if !yield(slot) {
						return
					}
				}
			}
		}
	}
}

// windowsFor returns the windows applying to day, ordered by start time so
// the day's slots come out ascending even when the configured windows are
// not sorted.
func windowsFor(windows []TimeWindow, day time.Time) []TimeWindow {
	var out []TimeWindow
	for _, w := range windows {
		if w.AppliesTo(day) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := out[i].startMinutes()
		b, errB := out[j].startMinutes()
		if errA != nil || errB != nil {
			return false
		}
		return a < b
	})
	return out
}

// midnight truncates t to the start of its calendar day in t's location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// wallClock builds the instant for the given minutes-from-midnight on day,
// in day's location. Going through time.Date keeps the wall-clock reading
// correct on days whose UTC offset changes.
func wallClock(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, day.Location())
}
