package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scheduling-service/internal/calendar"
	"scheduling-service/internal/schedule"
)

// slotGoneMessage is the exact conflict message booking clients key their
// re-fetch behavior on.
const slotGoneMessage = "This time slot is no longer available"

// App wires the engine to HTTP. Now is injectable for tests and defaults to
// the wall clock.
type App struct {
	Store     Store
	Calendars CalendarGateway
	Logger    *slog.Logger
	Now       func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// POST /api/event-types
func (a *App) CreateEventTypeHandler(c *gin.Context) {
	var et schedule.EventType
	if err := c.BindJSON(&et); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if failures := validateEventType(&et); len(failures) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": failures})
		return
	}
	if result := schedule.ValidateSettings(et.Scheduling); !result.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": result})
		return
	}
	if err := a.Store.CreateEventType(c.Request.Context(), &et); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, et)
}

// PUT /api/event-types/:id
func (a *App) UpdateEventTypeHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type id"})
		return
	}
	var et schedule.EventType
	if err := c.BindJSON(&et); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	et.ID = id
	if failures := validateEventType(&et); len(failures) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": failures})
		return
	}
	if result := schedule.ValidateSettings(et.Scheduling); !result.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": result})
		return
	}
	if err := a.Store.UpdateEventType(c.Request.Context(), &et); err != nil {
		if errors.Is(err, ErrEventTypeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event type not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, et)
}

// GET /api/event-types/:id
func (a *App) GetEventTypeHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type id"})
		return
	}
	et, err := a.Store.GetEventType(c.Request.Context(), id)
	if errors.Is(err, ErrEventTypeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event type not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, et)
}

// DELETE /api/event-types/:id
func (a *App) DeleteEventTypeHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type id"})
		return
	}
	if err := a.Store.DeleteEventType(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrEventTypeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event type not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/event-types/:id/slots?from=ISO&to=ISO
func (a *App) GetSlotsHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type id"})
		return
	}
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	et, err := a.Store.GetEventType(ctx, id)
	if errors.Is(err, ErrEventTypeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event type not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	free, degraded, err := a.resolveSlots(c, et, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"slots": free, "count": len(free)}
	if degraded {
		resp["calendar_sync"] = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}

// resolveSlots fetches busy intervals and confirmed bookings at call time
// and runs them through the engine. degraded is true only when every
// connected provider failed.
func (a *App) resolveSlots(c *gin.Context, et *schedule.EventType, fromUTC, toUTC time.Time) ([]schedule.CandidateSlot, bool, error) {
	ctx := c.Request.Context()

	conns, err := a.Store.ListCalendarConnections(ctx, et.ID)
	if err != nil {
		return nil, false, err
	}
	busy, failures := a.Calendars.Busy(ctx, conns, fromUTC, toUTC)
	degraded := len(conns) > 0 && len(failures) >= len(conns)

	// Bookings are fetched over the full ISO weeks around the range (padded
	// for buffer conflicts at the edges) so the weekly cap sees every booking
	// in those weeks, not just the ones near the requested instants.
	bookedFrom, bookedTo := schedule.BookedFetchRange(et.Scheduling, fromUTC.Add(-24*time.Hour), toUTC.Add(24*time.Hour))
	bookings, err := a.Store.ListConfirmedBookings(ctx, et.ID, bookedFrom, bookedTo)
	if err != nil {
		return nil, false, err
	}
	booked := make([]schedule.BookedSlot, 0, len(bookings))
	for _, b := range bookings {
		booked = append(booked, schedule.BookedSlot{StartUTC: b.StartAtUTC, EndUTC: b.EndAtUTC})
	}

	candidates := schedule.CandidateSlots(et.Scheduling, et.Duration(), fromUTC, toUTC, a.now())
	free := schedule.ResolveFreeSlots(candidates, busy, booked, et.Scheduling)

	// The generator walks whole local calendar days; trim back to the
	// requested instants so no slot starts before from or after to.
	trimmed := free[:0]
	for _, slot := range free {
		if !slot.StartUTC.Before(fromUTC) && slot.StartUTC.Before(toUTC) {
			trimmed = append(trimmed, slot)
		}
	}
	return trimmed, degraded, nil
}

type createBookingReq struct {
	EventTypeID string         `json:"eventTypeId" binding:"required"`
	Date        string         `json:"date" binding:"required"`
	Time        string         `json:"time" binding:"required"`
	Duration    int            `json:"duration,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Answers     map[string]any `json:"answers"`
}

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req createBookingReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eventTypeID, err := uuid.Parse(req.EventTypeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid eventTypeId"})
		return
	}

	ctx := c.Request.Context()
	et, err := a.Store.GetEventType(ctx, eventTypeID)
	if errors.Is(err, ErrEventTypeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event type not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.Duration != 0 && req.Duration != et.DurationMins {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration does not match the event type"})
		return
	}

	if failures := schedule.ValidateAnswers(et.Questions, req.Answers); len(failures) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": failures})
		return
	}

	breq := schedule.BookingRequest{
		EventTypeID: eventTypeID,
		Date:        req.Date,
		Time:        req.Time,
		Timezone:    req.Timezone,
		Answers:     req.Answers,
	}
	loc, err := et.Scheduling.Location()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	startLocal, err := breq.StartIn(loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	startUTC := startLocal.UTC()
	endUTC := startLocal.Add(et.Duration()).UTC()

	// Busy intervals and bookings are re-fetched here, not trusted from the
	// client's earlier slot listing. Bookings cover the full ISO week around
	// the slot; the weekly cap counts bookings made days earlier.
	conns, err := a.Store.ListCalendarConnections(ctx, eventTypeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	busy, _ := a.Calendars.Busy(ctx, conns, startUTC.Add(-48*time.Hour), endUTC.Add(48*time.Hour))
	bookedFrom, bookedTo := schedule.BookedFetchRange(et.Scheduling, startUTC.Add(-48*time.Hour), endUTC.Add(48*time.Hour))
	bookings, err := a.Store.ListConfirmedBookings(ctx, eventTypeID, bookedFrom, bookedTo)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	booked := make([]schedule.BookedSlot, 0, len(bookings))
	for _, b := range bookings {
		booked = append(booked, schedule.BookedSlot{StartUTC: b.StartAtUTC, EndUTC: b.EndAtUTC})
	}

	if err := schedule.ValidateBookingRequest(breq, et.Scheduling, et.Duration(), busy, booked, a.now()); err != nil {
		a.rejectBooking(c, err)
		return
	}

	booking := &Booking{
		EventTypeID:  eventTypeID,
		StartAtUTC:   startUTC,
		EndAtUTC:     endUTC,
		DurationMins: et.DurationMins,
		Questions:    et.Questions,
		Answers:      req.Answers,
	}
	if err := a.Store.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			// A concurrent submission won the slot; same retry path as the
			// logical check.
			c.JSON(http.StatusConflict, gin.H{"message": slotGoneMessage})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if link := a.createCalendarEvent(c, et, conns, booking); link != "" {
		booking.CalendarLink = link
	}

	c.JSON(http.StatusCreated, gin.H{"booking": booking})
}

// createCalendarEvent mirrors the booking onto the first connected calendar.
// Best effort: a provider failure leaves the booking valid and unlinked.
func (a *App) createCalendarEvent(c *gin.Context, et *schedule.EventType, conns []CalendarConnection, booking *Booking) string {
	if len(conns) == 0 {
		return ""
	}
	ctx := c.Request.Context()
	created, err := a.Calendars.CreateEvent(ctx, conns[0], calendar.Event{
		Summary:     et.Title,
		Description: et.Description,
		Location:    string(et.Location),
		StartUTC:    booking.StartAtUTC,
		EndUTC:      booking.EndAtUTC,
	})
	if err != nil {
		a.logger().Warn("calendar event creation failed",
			"booking_id", booking.ID, "provider", conns[0].Provider, "error", err)
		return ""
	}
	if err := a.Store.SetCalendarLink(ctx, booking.ID, created.Link); err != nil {
		a.logger().Warn("storing calendar link failed", "booking_id", booking.ID, "error", err)
	}
	return created.Link
}

func (a *App) rejectBooking(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schedule.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{"message": slotGoneMessage})
	case errors.Is(err, schedule.ErrInsufficientNotice):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "This time slot does not meet the minimum notice"})
	case errors.Is(err, schedule.ErrOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "This date is outside the bookable range"})
	case errors.Is(err, schedule.ErrMalformedTime):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// GET /api/event-types/:id/bookings?from=ISO&to=ISO
func (a *App) ListBookingsHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event type id"})
		return
	}

	fromStr, toStr := c.Query("from"), c.Query("to")
	var from, to time.Time
	filtered := fromStr != "" && toStr != ""
	if filtered {
		if from, to, err = parseRange(fromStr, toStr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	bookings, err := a.Store.ListBookings(c.Request.Context(), id, from, to, filtered)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// DELETE /api/bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	if err := a.Store.CancelBooking(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to required (ISO8601)")
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from")
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to")
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be before to")
	}
	return from.UTC(), to.UTC(), nil
}

func validateEventType(et *schedule.EventType) map[string]string {
	failures := map[string]string{}
	if et.Title == "" {
		failures["title"] = "title is required"
	}
	if et.DurationMins <= 0 {
		failures["duration"] = "duration must be a positive number of minutes"
	}
	switch et.Location {
	case schedule.LocationVideo, schedule.LocationPhone, schedule.LocationInPerson:
	default:
		failures["location"] = fmt.Sprintf("unknown location kind %q", et.Location)
	}
	for i, q := range et.Questions {
		if q.ID == "" {
			failures[fmt.Sprintf("questions.%d.id", i)] = "question id is required"
		}
		switch q.Type {
		case schedule.QuestionSelect, schedule.QuestionMultiselect, schedule.QuestionRadio, schedule.QuestionCheckbox:
			if len(q.Options) == 0 {
				failures[fmt.Sprintf("questions.%d.options", i)] = "options are required for this question type"
			}
		case schedule.QuestionText, schedule.QuestionEmail, schedule.QuestionPhone, schedule.QuestionTextarea:
		default:
			failures[fmt.Sprintf("questions.%d.type", i)] = fmt.Sprintf("unknown question type %q", q.Type)
		}
	}
	return failures
}
