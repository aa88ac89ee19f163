package calendar

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scheduling-service/internal/schedule"
)

// Source pairs a provider with the credentials and calendar ids of one
// connected account. ID distinguishes multiple connections to the same
// provider; when empty the provider name is used.
type Source struct {
	ID          string
	Provider    Provider
	Credentials Credentials
	CalendarIDs []string
}

func (s Source) key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Provider.Name()
}

const (
	fanoutConcurrency = 4
	retryAttempts     = 3
	retryBase         = 500 * time.Millisecond
	retryMax          = 5 * time.Second
)

// FetchBusy queries every source concurrently, bounding each fetch by
// timeout and retrying rate-limited calls with backoff. A source that still
// fails degrades to an empty busy set rather than blocking slot
// computation; its error is returned keyed by the source key so the caller
// can log it, or surface it when every source failed. Cancelling ctx stops
// in-flight fetches, which are read-only.
func FetchBusy(ctx context.Context, sources []Source, startUTC, endUTC time.Time, timeout time.Duration, logger *slog.Logger) ([]schedule.BusyInterval, map[string]error) {
	var (
		mu       sync.Mutex
		busy     []schedule.BusyInterval
		failures = map[string]error{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutConcurrency)
	for _, src := range sources {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			var intervals []schedule.BusyInterval
			err := WithRetry(fetchCtx, retryAttempts, retryBase, retryMax, func() error {
				var fetchErr error
				intervals, fetchErr = src.Provider.BusyIntervals(fetchCtx, src.Credentials, src.CalendarIDs, startUTC, endUTC)
				return fetchErr
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[src.key()] = err
				if logger != nil {
					logger.Warn("busy interval fetch degraded to empty",
						"provider", src.Provider.Name(), "connection", src.key(), "error", err)
				}
				return nil
			}
			busy = append(busy, intervals...)
			return nil
		})
	}
	g.Wait()
	return busy, failures
}
