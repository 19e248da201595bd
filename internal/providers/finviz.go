package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// FinvizClient scrapes Finviz's public screener/quote pages — Finviz has
// no JSON API, so every call is an HTML fetch-and-parse with goquery, the
// same library the pack's opense-ai-agents repo uses for its feed/page
// scraping. Finviz calls are the ones spec §5 bounds with a ≤3-concurrent
// semaphore at the report-builder level (internal/reports), since Finviz
// rate-limits scrapers aggressively.
type FinvizClient struct {
	core       *Core
	httpClient *http.Client
	baseURL    string
}

// NewFinvizClient wires a Finviz scraping client.
func NewFinvizClient(app string, ring *events.Ring, log zerolog.Logger) *FinvizClient {
	return &FinvizClient{
		core:       NewCore(app, "finviz", DefaultConfig(), ring, log),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://finviz.com",
	}
}

// Overview scrapes the per-symbol "snapshot table" (the 12x5 grid of
// fundamentals Finviz renders on its quote page) into a flat map.
func (f *FinvizClient) Overview(ctx context.Context, symbol string) (map[string]string, error) {
	reqID := uuid.NewString()
	result, err := f.core.Do(ctx, "/quote.ashx", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/quote.ashx?t="+symbol, nil)
			if err != nil {
				return nil, AttemptResult{Err: err}
			}
			resp, err := f.httpClient.Do(req)
			if err != nil {
				return nil, AttemptResult{Err: err, Retry: true}
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return nil, AttemptResult{Status: resp.StatusCode}
			}

			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return nil, AttemptResult{Err: err}
			}

			out := parseSnapshotTable(doc)
			return out, AttemptResult{Status: resp.StatusCode}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.(map[string]string), nil
}

// parseSnapshotTable walks Finviz's label/value table cells, pairing each
// odd cell (a label like "P/E") with the following even cell (its value).
func parseSnapshotTable(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	doc.Find("table.snapshot-table2 tr, table.snapshot-table td").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := strings.TrimSpace(cells.Eq(i).Text())
			value := strings.TrimSpace(cells.Eq(i + 1).Text())
			if label != "" {
				out[label] = value
			}
		}
	})
	return out
}

// Screener scrapes a Finviz screener view filtered to a sector/industry,
// used by the screener-type report builders (spec §4.11). Concurrent
// per-symbol detail scrapes built on top of this are bounded by the
// report harness's semaphore, not by this client.
func (f *FinvizClient) Screener(ctx context.Context, sector string, limit int) ([]string, error) {
	reqID := uuid.NewString()
	result, err := f.core.Do(ctx, "/screener.ashx", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/screener.ashx?v=111&f=sec_"+strings.ToLower(sector), nil)
			if err != nil {
				return nil, AttemptResult{Err: err}
			}
			resp, err := f.httpClient.Do(req)
			if err != nil {
				return nil, AttemptResult{Err: err, Retry: true}
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, AttemptResult{Status: resp.StatusCode}
			}

			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return nil, AttemptResult{Err: err}
			}

			symbols := make([]string, 0, limit)
			doc.Find("a.screener-link-primary").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				symbols = append(symbols, strings.TrimSpace(s.Text()))
				return len(symbols) < limit
			})
			return symbols, AttemptResult{Status: resp.StatusCode}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}
