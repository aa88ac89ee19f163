package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"scheduling-service/internal/schedule"
)

// GoogleProvider talks to the Google Calendar v3 API with a per-call OAuth
// token.
type GoogleProvider struct {
	OAuth *oauth2.Config
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) service(ctx context.Context, creds Credentials) (*gcal.Service, error) {
	if p.OAuth == nil || creds.OAuth == nil {
		return nil, ErrUnauthorized
	}
	client := p.OAuth.Client(ctx, creds.OAuth)
	srv, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return srv, nil
}

func (p *GoogleProvider) BusyIntervals(ctx context.Context, creds Credentials, calendarIDs []string, startUTC, endUTC time.Time) ([]schedule.BusyInterval, error) {
	srv, err := p.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	req := &gcal.FreeBusyRequest{
		TimeMin: startUTC.Format(time.RFC3339),
		TimeMax: endUTC.Format(time.RFC3339),
	}
	for _, id := range calendarIDs {
		req.Items = append(req.Items, &gcal.FreeBusyRequestItem{Id: id})
	}

	resp, err := srv.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	var out []schedule.BusyInterval
	for _, cal := range resp.Calendars {
		for _, period := range cal.Busy {
			start, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, period.End)
			if err != nil {
				continue
			}
			out = append(out, schedule.BusyInterval{StartUTC: start.UTC(), EndUTC: end.UTC()})
		}
	}
	return out, nil
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, creds Credentials, calendarID string, ev Event) (CreatedEvent, error) {
	srv, err := p.service(ctx, creds)
	if err != nil {
		return CreatedEvent{}, err
	}

	payload := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &gcal.EventDateTime{DateTime: ev.StartUTC.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: ev.EndUTC.Format(time.RFC3339), TimeZone: "UTC"},
	}
	for _, email := range ev.Attendees {
		payload.Attendees = append(payload.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := srv.Events.Insert(calendarID, payload).Context(ctx).Do()
	if err != nil {
		return CreatedEvent{}, classifyGoogleError(err)
	}
	return CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

func classifyGoogleError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
