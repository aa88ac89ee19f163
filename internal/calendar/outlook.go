package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"scheduling-service/internal/schedule"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// OutlookProvider talks to the Microsoft Graph calendar endpoints. BaseURL
// is overridable for tests.
type OutlookProvider struct {
	BaseURL string
}

func (p *OutlookProvider) Name() string { return "outlook" }

func (p *OutlookProvider) base() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return graphBaseURL
}

func (p *OutlookProvider) client(ctx context.Context, creds Credentials) (*http.Client, error) {
	if creds.OAuth == nil {
		return nil, ErrUnauthorized
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(creds.OAuth)), nil
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphScheduleRequest struct {
	Schedules    []string      `json:"schedules"`
	StartTime    graphDateTime `json:"startTime"`
	EndTime      graphDateTime `json:"endTime"`
	ViewInterval int           `json:"availabilityViewInterval"`
}

type graphScheduleResponse struct {
	Value []struct {
		ScheduleItems []struct {
			Status string        `json:"status"`
			Start  graphDateTime `json:"start"`
			End    graphDateTime `json:"end"`
		} `json:"scheduleItems"`
	} `json:"value"`
}

func (p *OutlookProvider) BusyIntervals(ctx context.Context, creds Credentials, calendarIDs []string, startUTC, endUTC time.Time) ([]schedule.BusyInterval, error) {
	client, err := p.client(ctx, creds)
	if err != nil {
		return nil, err
	}

	reqBody := graphScheduleRequest{
		Schedules:    calendarIDs,
		StartTime:    graphDateTime{DateTime: startUTC.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		EndTime:      graphDateTime{DateTime: endUTC.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		ViewInterval: 15,
	}
	var resp graphScheduleResponse
	if err := p.postJSON(ctx, client, "/me/calendar/getSchedule", reqBody, &resp); err != nil {
		return nil, err
	}

	var out []schedule.BusyInterval
	for _, sched := range resp.Value {
		for _, item := range sched.ScheduleItems {
			if item.Status != "busy" && item.Status != "oof" && item.Status != "tentative" {
				continue
			}
			start, err := parseGraphTime(item.Start.DateTime)
			if err != nil {
				continue
			}
			end, err := parseGraphTime(item.End.DateTime)
			if err != nil {
				continue
			}
			out = append(out, schedule.BusyInterval{StartUTC: start, EndUTC: end})
		}
	}
	return out, nil
}

type graphEventResponse struct {
	ID      string `json:"id"`
	WebLink string `json:"webLink"`
}

func (p *OutlookProvider) CreateEvent(ctx context.Context, creds Credentials, calendarID string, ev Event) (CreatedEvent, error) {
	client, err := p.client(ctx, creds)
	if err != nil {
		return CreatedEvent{}, err
	}

	type attendee struct {
		EmailAddress map[string]string `json:"emailAddress"`
		Type         string            `json:"type"`
	}
	payload := map[string]any{
		"subject": ev.Summary,
		"body":    map[string]string{"contentType": "text", "content": ev.Description},
		"start":   graphDateTime{DateTime: ev.StartUTC.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		"end":     graphDateTime{DateTime: ev.EndUTC.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
	}
	if ev.Location != "" {
		payload["location"] = map[string]string{"displayName": ev.Location}
	}
	var attendees []attendee
	for _, email := range ev.Attendees {
		attendees = append(attendees, attendee{
			EmailAddress: map[string]string{"address": email},
			Type:         "required",
		})
	}
	if attendees != nil {
		payload["attendees"] = attendees
	}

	var resp graphEventResponse
	path := fmt.Sprintf("/me/calendars/%s/events", calendarID)
	if err := p.postJSON(ctx, client, path, payload, &resp); err != nil {
		return CreatedEvent{}, err
	}
	return CreatedEvent{ID: resp.ID, Link: resp.WebLink}, nil
}

func (p *OutlookProvider) postJSON(ctx context.Context, client *http.Client, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base()+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: graph returned %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: graph returned %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: graph returned %d", ErrUnavailable, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseGraphTime reads Graph's zoneless UTC timestamps, which may carry a
// fractional-second tail like "2026-01-05T09:00:00.0000000".
func parseGraphTime(s string) (time.Time, error) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
