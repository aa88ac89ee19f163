package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduling-service/internal/schedule"
)

type stubProvider struct {
	name  string
	busy  []schedule.BusyInterval
	err   error
	delay time.Duration
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) BusyIntervals(ctx context.Context, _ Credentials, _ []string, _, _ time.Time) ([]schedule.BusyInterval, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	return p.busy, p.err
}

func (p *stubProvider) CreateEvent(context.Context, Credentials, string, Event) (CreatedEvent, error) {
	return CreatedEvent{}, p.err
}

func interval(h int) schedule.BusyInterval {
	return schedule.BusyInterval{
		StartUTC: time.Date(2026, 1, 5, h, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 1, 5, h+1, 0, 0, 0, time.UTC),
	}
}

func TestFetchBusy_MergesAllSources(t *testing.T) {
	sources := []Source{
		{Provider: &stubProvider{name: "google", busy: []schedule.BusyInterval{interval(9)}}},
		{Provider: &stubProvider{name: "outlook", busy: []schedule.BusyInterval{interval(13)}}},
	}

	busy, failures := FetchBusy(context.Background(), sources, time.Now(), time.Now().Add(time.Hour), time.Second, nil)
	assert.Empty(t, failures)
	assert.Len(t, busy, 2)
}

func TestFetchBusy_FailedProviderDegradesToEmpty(t *testing.T) {
	sources := []Source{
		{Provider: &stubProvider{name: "google", busy: []schedule.BusyInterval{interval(9)}}},
		{Provider: &stubProvider{name: "outlook", err: ErrUnavailable}},
	}

	busy, failures := FetchBusy(context.Background(), sources, time.Now(), time.Now().Add(time.Hour), time.Second, nil)
	require.Len(t, busy, 1, "the healthy provider still contributes")
	require.Contains(t, failures, "outlook")
	assert.ErrorIs(t, failures["outlook"], ErrUnavailable)
}

func TestFetchBusy_SlowProviderTimesOut(t *testing.T) {
	sources := []Source{
		{Provider: &stubProvider{name: "google", busy: []schedule.BusyInterval{interval(9)}}},
		{Provider: &stubProvider{name: "apple", delay: time.Second, busy: []schedule.BusyInterval{interval(13)}}},
	}

	busy, failures := FetchBusy(context.Background(), sources, time.Now(), time.Now().Add(time.Hour), 20*time.Millisecond, nil)
	assert.Len(t, busy, 1)
	assert.Contains(t, failures, "apple")
}

func TestFetchBusy_SameProviderConnectionsAreDistinct(t *testing.T) {
	sources := []Source{
		{ID: "conn-a", Provider: &stubProvider{name: "google", busy: []schedule.BusyInterval{interval(9)}}},
		{ID: "conn-b", Provider: &stubProvider{name: "google", err: ErrUnavailable}},
	}

	busy, failures := FetchBusy(context.Background(), sources, time.Now(), time.Now().Add(time.Hour), time.Second, nil)
	assert.Len(t, busy, 1)
	require.Len(t, failures, 1, "only the failed connection is reported")
	assert.ErrorIs(t, failures["conn-b"], ErrUnavailable)
}

func TestFetchBusy_UnauthorizedIsReported(t *testing.T) {
	sources := []Source{
		{Provider: &stubProvider{name: "google", err: ErrUnauthorized}},
	}

	busy, failures := FetchBusy(context.Background(), sources, time.Now(), time.Now().Add(time.Hour), time.Second, nil)
	assert.Empty(t, busy)
	assert.ErrorIs(t, failures["google"], ErrUnauthorized)
}
