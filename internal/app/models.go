package app

import (
	"time"

	"github.com/google/uuid"

	"scheduling-service/internal/calendar"
	"scheduling-service/internal/schedule"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Booking is a persisted reservation. Duration and questions are snapshots
// taken at booking time, so deleting the event type later leaves historical
// bookings intact.
type Booking struct {
	ID           uuid.UUID           `json:"id"`
	EventTypeID  uuid.UUID           `json:"event_type_id"`
	StartAtUTC   time.Time           `json:"start_time"`
	EndAtUTC     time.Time           `json:"end_time"`
	Status       string              `json:"status"`
	CalendarLink string              `json:"calendar_link,omitempty"`
	DurationMins int                 `json:"duration"`
	Questions    []schedule.Question `json:"questions,omitempty"`
	Answers      map[string]any      `json:"answers,omitempty"`
	CreatedAt    time.Time           `json:"created_at,omitempty"`
}

// CalendarConnection is one external calendar account linked to an event
// type. Credentials live here as explicit values and are handed to the
// provider per call.
type CalendarConnection struct {
	ID          uuid.UUID            `json:"id"`
	EventTypeID uuid.UUID            `json:"event_type_id"`
	Provider    string               `json:"provider"`
	Credentials calendar.Credentials `json:"-"`
	CalendarIDs []string             `json:"calendar_ids"`
}
