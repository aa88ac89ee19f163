package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondaySlots(t *testing.T, s SchedulingSettings, duration time.Duration, busy []BusyInterval, booked []BookedSlot) []CandidateSlot {
	t.Helper()
	loc := nyc(t)
	monday := testMonday(loc)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return ResolveFreeSlots(CandidateSlots(s, duration, monday, monday, now), busy, booked, s)
}

func TestResolveFreeSlots_BusyIntervalConflict(t *testing.T) {
	s := validSettings()

	// 14:00-15:00 UTC busy blots out the 09:00 and 09:30 EST slots.
	busy := []BusyInterval{{
		StartUTC: time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC),
	}}

	free := mondaySlots(t, s, 30*time.Minute, busy, nil)
	require.Len(t, free, 14)
	assert.Equal(t, time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC), free[0].StartUTC,
		"10:00 EST is the first slot clearing the busy interval")
}

func TestResolveFreeSlots_BufferWidensConflict(t *testing.T) {
	s := validSettings()
	s.BufferBeforeMins = 15
	s.BufferAfterMins = 15

	// Busy 15:00-15:30 UTC. Without buffers 14:00-14:30 would clear it, but
	// its buffered interval runs to 14:45; the 14:30 slot's buffered
	// interval [14:15, 15:15) collides.
	busy := []BusyInterval{{
		StartUTC: time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 1, 5, 15, 30, 0, 0, time.UTC),
	}}

	free := mondaySlots(t, s, 30*time.Minute, busy, nil)
	require.NotEmpty(t, free)
	assert.Equal(t, time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC), free[0].StartUTC)
	assert.Equal(t, time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC), free[1].StartUTC,
		"14:30 and 15:30 slots are buffered out")
}

func TestResolveFreeSlots_TouchingBoundaryIsNotAConflict(t *testing.T) {
	s := validSettings()
	busy := []BusyInterval{{
		StartUTC: time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC),
	}}

	free := mondaySlots(t, s, 30*time.Minute, busy, nil)
	assert.Equal(t, time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC), free[0].StartUTC,
		"a slot ending exactly when the busy interval starts survives")
	assert.Equal(t, time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC), free[1].StartUTC)
}

func TestResolveFreeSlots_DailyLimit(t *testing.T) {
	s := validSettings()
	s.DailyLimit = 1
	s.BufferBeforeMins = 45 // irrelevant to the cap

	booked := []BookedSlot{{
		StartUTC: time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC),
	}}

	free := mondaySlots(t, s, 30*time.Minute, nil, booked)
	assert.Empty(t, free, "one confirmed booking exhausts the daily cap")
}

func TestResolveFreeSlots_WeeklyLimit(t *testing.T) {
	loc := nyc(t)
	s := validSettings()
	s.WeeklyLimit = 2

	// Two confirmed bookings in the week of 2026-01-05.
	booked := []BookedSlot{
		{StartUTC: time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC), EndUTC: time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)},
		{StartUTC: time.Date(2026, 1, 7, 14, 0, 0, 0, time.UTC), EndUTC: time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC)},
	}

	monday := testMonday(loc)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Friday of the same ISO week, then Monday of the following week.
	sameWeek := ResolveFreeSlots(CandidateSlots(s, 30*time.Minute, monday.AddDate(0, 0, 4), monday.AddDate(0, 0, 4), now), nil, booked, s)
	nextWeek := ResolveFreeSlots(CandidateSlots(s, 30*time.Minute, monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 7), now), nil, booked, s)

	assert.Empty(t, sameWeek, "cap reached for the ISO week")
	assert.NotEmpty(t, nextWeek)
}

func TestResolveFreeSlots_ZeroLimitsAreUnlimited(t *testing.T) {
	s := validSettings()
	booked := []BookedSlot{{
		StartUTC: time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC),
	}}

	free := mondaySlots(t, s, 30*time.Minute, nil, booked)
	assert.Len(t, free, 15, "only the booked slot itself is gone")
}

func TestBookedFetchRange_CoversWholeISOWeeks(t *testing.T) {
	s := validSettings()

	// A Friday slot; the fetch range must reach back to Monday 00:00 EST so
	// bookings made earlier in the week still count toward the weekly cap.
	from, to := BookedFetchRange(s,
		time.Date(2026, 1, 9, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 9, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 1, 5, 5, 0, 0, 0, time.UTC), from, "Monday 00:00 EST")
	assert.Equal(t, time.Date(2026, 1, 12, 5, 0, 0, 0, time.UTC), to, "following Monday 00:00 EST")

	// A Sunday belongs to the week begun the previous Monday.
	sunFrom, _ := BookedFetchRange(s,
		time.Date(2026, 1, 11, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 11, 16, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 1, 5, 5, 0, 0, 0, time.UTC), sunFrom)
}

func bookingFor(date, clock string) BookingRequest {
	return BookingRequest{Date: date, Time: clock}
}

func TestValidateBookingRequest_OK(t *testing.T) {
	s := validSettings()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	err := ValidateBookingRequest(bookingFor("2026-01-05", "10:00:00"), s, 30*time.Minute, nil, nil, now)
	assert.NoError(t, err)
}

func TestValidateBookingRequest_InsufficientNotice(t *testing.T) {
	s := validSettings()
	s.MinimumNoticeHours = 24
	loc := nyc(t)
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, loc).UTC()

	err := ValidateBookingRequest(bookingFor("2026-01-05", "10:00:00"), s, 30*time.Minute, nil, nil, now)
	assert.ErrorIs(t, err, ErrInsufficientNotice)
}

func TestValidateBookingRequest_OutOfRange(t *testing.T) {
	s := validSettings()
	s.DateRangeDays = 7
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	err := ValidateBookingRequest(bookingFor("2026-02-02", "10:00:00"), s, 30*time.Minute, nil, nil, now)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestValidateBookingRequest_SlotTakenConcurrently(t *testing.T) {
	s := validSettings()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// The slot was free when listed, then a concurrent booking landed on it.
	booked := []BookedSlot{{
		StartUTC: time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC), // 10:00 EST
		EndUTC:   time.Date(2026, 1, 5, 15, 30, 0, 0, time.UTC),
	}}

	err := ValidateBookingRequest(bookingFor("2026-01-05", "10:00:00"), s, 30*time.Minute, nil, booked, now)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestValidateBookingRequest_OffGridTime(t *testing.T) {
	s := validSettings()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	err := ValidateBookingRequest(bookingFor("2026-01-05", "10:07:00"), s, 30*time.Minute, nil, nil, now)
	assert.ErrorIs(t, err, ErrSlotUnavailable, "start must match a generated slot exactly")
}

func TestValidateBookingRequest_MalformedTime(t *testing.T) {
	s := validSettings()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	err := ValidateBookingRequest(bookingFor("2026-01-05", "ten"), s, 30*time.Minute, nil, nil, now)
	assert.ErrorIs(t, err, ErrMalformedTime)
}

func TestValidateBookingRequest_ChecksOrder(t *testing.T) {
	s := validSettings()
	s.MinimumNoticeHours = 24
	s.DateRangeDays = 1

	// Violates notice, range and availability at once; notice wins.
	booked := []BookedSlot{{
		StartUTC: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC),
	}}
	now := time.Date(2026, 3, 2, 14, 45, 0, 0, time.UTC)

	err := ValidateBookingRequest(bookingFor("2026-03-02", "10:00:00"), s, 30*time.Minute, nil, booked, now)
	assert.ErrorIs(t, err, ErrInsufficientNotice)
}
