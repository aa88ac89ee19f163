package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"scheduling-service/internal/schedule"
)

const (
	caldavBaseURL    = "https://caldav.icloud.com"
	caldavTimeFormat = "20060102T150405Z"
)

// AppleProvider speaks just enough CalDAV for free-busy queries and event
// creation against iCloud calendars, authenticated with an app-specific
// password.
type AppleProvider struct {
	BaseURL string
	Client  *http.Client
}

func (p *AppleProvider) Name() string { return "apple" }

func (p *AppleProvider) base() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return caldavBaseURL
}

func (p *AppleProvider) httpClient() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *AppleProvider) BusyIntervals(ctx context.Context, creds Credentials, calendarIDs []string, startUTC, endUTC time.Time) ([]schedule.BusyInterval, error) {
	if creds.Username == "" || creds.AppPassword == "" {
		return nil, ErrUnauthorized
	}

	body := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<C:free-busy-query xmlns:C="urn:ietf:params:xml:ns:caldav">
  <C:time-range start=%q end=%q/>
</C:free-busy-query>`,
		startUTC.UTC().Format(caldavTimeFormat), endUTC.UTC().Format(caldavTimeFormat))

	var out []schedule.BusyInterval
	for _, calID := range calendarIDs {
		req, err := http.NewRequestWithContext(ctx, "REPORT", p.base()+"/"+strings.Trim(calID, "/")+"/", strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(creds.Username, creds.AppPassword)
		req.Header.Set("Content-Type", "application/xml; charset=utf-8")
		req.Header.Set("Depth", "1")

		resp, err := p.httpClient().Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err := classifyCaldavStatus(resp.StatusCode); err != nil {
			return nil, err
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, readErr)
		}
		out = append(out, parseFreeBusy(string(raw))...)
	}
	return out, nil
}

func (p *AppleProvider) CreateEvent(ctx context.Context, creds Credentials, calendarID string, ev Event) (CreatedEvent, error) {
	if creds.Username == "" || creds.AppPassword == "" {
		return CreatedEvent{}, ErrUnauthorized
	}

	id := uuid.NewString()
	ics := new(bytes.Buffer)
	fmt.Fprintf(ics, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//scheduling-service//EN\r\nBEGIN:VEVENT\r\n")
	fmt.Fprintf(ics, "UID:%s\r\n", id)
	fmt.Fprintf(ics, "DTSTAMP:%s\r\n", time.Now().UTC().Format(caldavTimeFormat))
	fmt.Fprintf(ics, "DTSTART:%s\r\n", ev.StartUTC.UTC().Format(caldavTimeFormat))
	fmt.Fprintf(ics, "DTEND:%s\r\n", ev.EndUTC.UTC().Format(caldavTimeFormat))
	fmt.Fprintf(ics, "SUMMARY:%s\r\n", icsEscape(ev.Summary))
	if ev.Description != "" {
		fmt.Fprintf(ics, "DESCRIPTION:%s\r\n", icsEscape(ev.Description))
	}
	if ev.Location != "" {
		fmt.Fprintf(ics, "LOCATION:%s\r\n", icsEscape(ev.Location))
	}
	for _, email := range ev.Attendees {
		fmt.Fprintf(ics, "ATTENDEE:mailto:%s\r\n", email)
	}
	fmt.Fprintf(ics, "END:VEVENT\r\nEND:VCALENDAR\r\n")

	url := p.base() + "/" + strings.Trim(calendarID, "/") + "/" + id + ".ics"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(ics.Bytes()))
	if err != nil {
		return CreatedEvent{}, err
	}
	req.SetBasicAuth(creds.Username, creds.AppPassword)
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err := classifyCaldavStatus(resp.StatusCode); err != nil {
		return CreatedEvent{}, err
	}
	return CreatedEvent{ID: id, Link: url}, nil
}

func classifyCaldavStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: caldav returned %d", ErrUnauthorized, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: caldav returned %d", ErrRateLimited, code)
	case code >= 400:
		return fmt.Errorf("%w: caldav returned %d", ErrUnavailable, code)
	}
	return nil
}

// parseFreeBusy pulls FREEBUSY period lines out of a VFREEBUSY response.
// Each line holds comma-separated "start/end" pairs in basic UTC format.
func parseFreeBusy(vcal string) []schedule.BusyInterval {
	var out []schedule.BusyInterval
	for _, line := range strings.Split(strings.ReplaceAll(vcal, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "FREEBUSY") {
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		for _, period := range strings.Split(value, ",") {
			startStr, endStr, ok := strings.Cut(strings.TrimSpace(period), "/")
			if !ok {
				continue
			}
			start, err := time.Parse(caldavTimeFormat, startStr)
			if err != nil {
				continue
			}
			end, err := time.Parse(caldavTimeFormat, endStr)
			if err != nil {
				continue
			}
			out = append(out, schedule.BusyInterval{StartUTC: start, EndUTC: end})
		}
	}
	return out
}

func icsEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}
