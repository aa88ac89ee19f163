package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"scheduling-service/internal/calendar"
	"scheduling-service/internal/schedule"
)

// CalendarGateway is what handlers use to reach connected calendars.
type CalendarGateway interface {
	Busy(ctx context.Context, conns []CalendarConnection, startUTC, endUTC time.Time) ([]schedule.BusyInterval, map[string]error)
	CreateEvent(ctx context.Context, conn CalendarConnection, ev calendar.Event) (calendar.CreatedEvent, error)
}

// ProviderGateway dispatches to the configured provider implementations.
type ProviderGateway struct {
	GoogleOAuth  *oauth2.Config
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

func (g *ProviderGateway) timeout() time.Duration {
	if g.FetchTimeout > 0 {
		return g.FetchTimeout
	}
	return 10 * time.Second
}

func (g *ProviderGateway) Busy(ctx context.Context, conns []CalendarConnection, startUTC, endUTC time.Time) ([]schedule.BusyInterval, map[string]error) {
	failures := map[string]error{}
	var sources []calendar.Source
	// Failures key by connection id, not provider name, so two accounts on
	// the same provider never collapse into one entry.
	for _, conn := range conns {
		p, err := calendar.ForKind(conn.Provider, g.GoogleOAuth)
		if err != nil {
			failures[conn.ID.String()] = err
			continue
		}
		sources = append(sources, calendar.Source{
			ID:          conn.ID.String(),
			Provider:    p,
			Credentials: conn.Credentials,
			CalendarIDs: conn.CalendarIDs,
		})
	}

	busy, fetchFailures := calendar.FetchBusy(ctx, sources, startUTC, endUTC, g.timeout(), g.Logger)
	for name, err := range fetchFailures {
		failures[name] = err
	}
	return busy, failures
}

func (g *ProviderGateway) CreateEvent(ctx context.Context, conn CalendarConnection, ev calendar.Event) (calendar.CreatedEvent, error) {
	p, err := calendar.ForKind(conn.Provider, g.GoogleOAuth)
	if err != nil {
		return calendar.CreatedEvent{}, err
	}
	calendarID := "primary"
	if len(conn.CalendarIDs) > 0 {
		calendarID = conn.CalendarIDs[0]
	}
	return p.CreateEvent(ctx, conn.Credentials, calendarID, ev)
}
