package schedule

import (
	"time"

	"github.com/google/uuid"
)

type LocationKind string

const (
	LocationVideo    LocationKind = "video"
	LocationPhone    LocationKind = "phone"
	LocationInPerson LocationKind = "in-person"
)

type QuestionType string

const (
	QuestionText        QuestionType = "text"
	QuestionEmail       QuestionType = "email"
	QuestionPhone       QuestionType = "phone"
	QuestionTextarea    QuestionType = "textarea"
	QuestionSelect      QuestionType = "select"
	QuestionMultiselect QuestionType = "multiselect"
	QuestionRadio       QuestionType = "radio"
	QuestionCheckbox    QuestionType = "checkbox"
)

// Question is one intake field attached to an event type. Options are only
// meaningful for the select-family types.
type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"question"`
	Type     QuestionType `json:"type"`
	Required bool         `json:"required"`
	Options  []string     `json:"options,omitempty"`
}

// SchedulingSettings controls when an event type may be booked. One value is
// owned by exactly one event type.
type SchedulingSettings struct {
	// MinimumNoticeHours is the earliest a booking may start, relative to now.
	MinimumNoticeHours int `json:"minimum_notice"`
	// DateRangeDays is how far into the future bookings are allowed.
	DateRangeDays int `json:"date_range"`
	// DailyLimit and WeeklyLimit cap confirmed bookings per calendar day and
	// per ISO week. Zero means unlimited.
	DailyLimit  int `json:"daily_limit"`
	WeeklyLimit int `json:"weekly_limit"`
	// BufferBeforeMins and BufferAfterMins are dead minutes adjacent to every
	// booking, unavailable to other bookings.
	BufferBeforeMins int          `json:"buffer_before"`
	BufferAfterMins  int          `json:"buffer_after"`
	TimeSlots        []TimeWindow `json:"time_slots"`
	// Timezone is the IANA zone all wall-clock rules are interpreted in.
	Timezone string `json:"timezone"`
}

// Location resolves the configured IANA timezone.
func (s SchedulingSettings) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

func (s SchedulingSettings) bufferBefore() time.Duration {
	return time.Duration(s.BufferBeforeMins) * time.Minute
}

func (s SchedulingSettings) bufferAfter() time.Duration {
	return time.Duration(s.BufferAfterMins) * time.Minute
}

func (s SchedulingSettings) minimumNotice() time.Duration {
	return time.Duration(s.MinimumNoticeHours) * time.Hour
}

// EventType is a bookable meeting template. Team members are weak
// references; bookings made against a deleted event type keep their own
// snapshot of duration and questions.
type EventType struct {
	ID            uuid.UUID          `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	DurationMins  int                `json:"duration"`
	Location      LocationKind       `json:"location"`
	Questions     []Question         `json:"questions"`
	Scheduling    SchedulingSettings `json:"scheduling_settings"`
	TeamMemberIDs []uuid.UUID        `json:"team_member_ids,omitempty"`
	CreatedAt     time.Time          `json:"created_at,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at,omitempty"`
}

// Duration returns the meeting length as a duration.
func (e EventType) Duration() time.Duration {
	return time.Duration(e.DurationMins) * time.Minute
}
