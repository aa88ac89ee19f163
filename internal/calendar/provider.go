package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"scheduling-service/internal/schedule"
)

// Provider failure modes. Unauthorized is user-actionable (reconnect),
// RateLimited is retryable, Unavailable degrades to an empty busy set.
var (
	ErrUnauthorized = errors.New("calendar credentials are expired or revoked")
	ErrRateLimited  = errors.New("calendar provider rate limited the request")
	ErrUnavailable  = errors.New("calendar provider is unavailable")
)

// Credentials are passed explicitly into every provider call; providers
// never read tokens from ambient storage. OAuth covers Google and Outlook;
// Username/AppPassword covers CalDAV.
type Credentials struct {
	OAuth       *oauth2.Token `json:"oauth,omitempty"`
	Username    string        `json:"username,omitempty"`
	AppPassword string        `json:"app_password,omitempty"`
}

// Event is the payload for creating an external calendar event.
type Event struct {
	Summary     string
	Description string
	Location    string
	StartUTC    time.Time
	EndUTC      time.Time
	Attendees   []string
}

// CreatedEvent identifies an event created on an external calendar. Link is
// opaque to this service and stored on the booking verbatim.
type CreatedEvent struct {
	ID   string
	Link string
}

// Provider is the capability interface one connected calendar backend
// implements. Implementations are selected by configuration, not by
// branching on a type tag at call sites.
type Provider interface {
	Name() string
	BusyIntervals(ctx context.Context, creds Credentials, calendarIDs []string, startUTC, endUTC time.Time) ([]schedule.BusyInterval, error)
	CreateEvent(ctx context.Context, creds Credentials, calendarID string, ev Event) (CreatedEvent, error)
}

// ForKind resolves a provider implementation by its configured kind.
func ForKind(kind string, googleOAuth *oauth2.Config) (Provider, error) {
	switch kind {
	case "google":
		return &GoogleProvider{OAuth: googleOAuth}, nil
	case "outlook":
		return &OutlookProvider{}, nil
	case "apple":
		return &AppleProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", kind)
	}
}
