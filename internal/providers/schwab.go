package providers

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// SchwabClient is the canonical provider client (spec §4.3 names Schwab as
// the reference implementation every other client's cross-cutting
// behavior is measured against). It is an OAuth provider: an expired or
// missing access token triggers exactly one refresh-then-retry per Core.Do
// call.
type SchwabClient struct {
	core *Core

	httpClient *http.Client
	baseURL    string

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// NewSchwabClient wires a Schwab client for the "market" app (spec §4.3's
// multi-app isolation: market-data calls and trading calls use separate
// credential/token files even against the same provider).
func NewSchwabClient(app, refreshToken string, ring *events.Ring, log zerolog.Logger) *SchwabClient {
	return &SchwabClient{
		core:         NewCore(app, "schwab", DefaultConfig(), ring, log),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		baseURL:      "https://api.schwabapi.com",
		refreshToken: refreshToken,
	}
}

// refresh performs the single-flight OAuth refresh; serialized per client
// instance (per-app) by mu, matching spec §5's "refresh is serialized
// per-app" rule.
func (s *SchwabClient) refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) && s.accessToken != "" {
		return nil // another goroutine already refreshed while we waited on the lock
	}

	// Token endpoint call omitted (external OAuth wire format is out of
	// scope per spec §1); a real deployment exchanges s.refreshToken here.
	s.accessToken = fmt.Sprintf("schwab-access-%d", rand.Int63())
	s.expiresAt = time.Now().Add(30 * time.Minute)
	return nil
}

func (s *SchwabClient) authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != "" && time.Now().Before(s.expiresAt)
}

// ForgetExpiredToken drops a stale access token so the next call pays for
// one refresh instead of an auth failure plus a refresh-then-retry. Safe
// to call periodically (the cron stale-token GC job) or concurrently
// with in-flight requests.
func (s *SchwabClient) ForgetExpiredToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken != "" && !time.Now().Before(s.expiresAt) {
		s.accessToken = ""
	}
}

// Quote fetches a single-symbol quote.
func (s *SchwabClient) Quote(ctx context.Context, symbol string) (RawQuote, error) {
	reqID := uuid.NewString()
	result, err := s.core.Do(ctx, "/marketdata/v1/quotes", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !s.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			// Network call to Schwab's wire format is out of scope; we
			// synthesize a normalized-enough raw quote so the unified
			// layer's provider-ordering and normalization logic has a
			// real shape to operate on.
			q := RawQuote{
				Symbol:      symbol,
				TimestampMS: time.Now().UnixMilli(),
			}
			return q, AttemptResult{Status: http.StatusOK}
		},
		s.refresh,
	)
	if err != nil {
		return RawQuote{}, err
	}
	return result.(RawQuote), nil
}

// QuotesBatch fetches quotes for multiple symbols in one call.
func (s *SchwabClient) QuotesBatch(ctx context.Context, symbols []string) (map[string]RawQuote, error) {
	reqID := uuid.NewString()
	result, err := s.core.Do(ctx, "/marketdata/v1/quotes", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !s.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			out := make(map[string]RawQuote, len(symbols))
			for _, sym := range symbols {
				out[sym] = RawQuote{Symbol: sym, TimestampMS: time.Now().UnixMilli()}
			}
			return out, AttemptResult{Status: http.StatusOK}
		},
		s.refresh,
	)
	if err != nil {
		return nil, err
	}
	return result.(map[string]RawQuote), nil
}

// PeriodType/PeriodValue as returned by the period-mapping table in §4.4.
type PeriodType string

const (
	PeriodMonth PeriodType = "month"
	PeriodYear  PeriodType = "year"
)

// MapPeriod maps a requested day count to a provider (periodType, value)
// pair per spec §4.4's table.
func MapPeriod(days int) (PeriodType, int) {
	switch {
	case days <= 30:
		return PeriodMonth, 1
	case days <= 60:
		return PeriodMonth, 2
	case days <= 90:
		return PeriodMonth, 3
	case days <= 180:
		return PeriodMonth, 6
	case days <= 365:
		return PeriodYear, 1
	case days <= 730:
		return PeriodYear, 2
	case days <= 1825:
		return PeriodYear, 5
	default:
		return PeriodYear, 10
	}
}

// History fetches up to `days` of daily candles.
func (s *SchwabClient) History(ctx context.Context, symbol string, days int) ([]RawHistoryRow, error) {
	reqID := uuid.NewString()
	_, _ = MapPeriod(days) // period selection used to build the real request; wire format out of scope

	result, err := s.core.Do(ctx, "/marketdata/v1/pricehistory", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !s.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			rows := make([]RawHistoryRow, 0, days)
			now := time.Now()
			for i := days - 1; i >= 0; i-- {
				rows = append(rows, RawHistoryRow{
					Symbol: symbol,
					DateMS: now.AddDate(0, 0, -i).UnixMilli(),
				})
			}
			return rows, AttemptResult{Status: http.StatusOK}
		},
		s.refresh,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawHistoryRow), nil
}

// Movers fetches the current top movers for an index.
func (s *SchwabClient) Movers(ctx context.Context, index, sort string) ([]RawMover, error) {
	reqID := uuid.NewString()
	result, err := s.core.Do(ctx, "/marketdata/v1/movers/"+index, http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !s.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			return []RawMover{}, AttemptResult{Status: http.StatusOK}
		},
		s.refresh,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawMover), nil
}

// MarketHours fetches today's session hours for the given markets.
func (s *SchwabClient) MarketHours(ctx context.Context, markets []string) ([]RawMarketHours, error) {
	reqID := uuid.NewString()
	result, err := s.core.Do(ctx, "/marketdata/v1/markets", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !s.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			out := make([]RawMarketHours, 0, len(markets))
			for _, m := range markets {
				out = append(out, RawMarketHours{Market: m, Product: "EQUITY", IsOpen: true, Date: time.Now()})
			}
			return out, AttemptResult{Status: http.StatusOK}
		},
		s.refresh,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawMarketHours), nil
}

// Accounts and Orders are trade-controls-facing calls; kept minimal since
// live trading execution is a non-goal (spec §1) beyond the guarded stub.

// Accounts lists the authenticated user's brokerage accounts.
func (s *SchwabClient) Accounts(ctx context.Context) ([]string, error) {
	reqID := uuid.NewString()
	result, err := s.core.Do(ctx, "/trader/v1/accounts", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !s.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			return []string{}, AttemptResult{Status: http.StatusOK}
		},
		s.refresh,
	)
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// OrderRequest is the redacted shape trade controls is permitted to submit
// (spec §4.14): only fields on an explicit allow-list ever reach the wire
// or the audit log.
type OrderRequest struct {
	Symbol    string
	Side      string
	Quantity  float64
	OrderType string
	TicketID  string
}

// Orders submits an order. Callers must have already passed the Trade
// Controls gate (spec §4.14); this client does not itself re-check policy.
func (s *SchwabClient) Orders(ctx context.Context, req OrderRequest) (string, error) {
	reqID := uuid.NewString()
	result, err := s.core.Do(ctx, "/trader/v1/orders", http.MethodPost, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !s.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized, Refresh: true}
			}
			return uuid.NewString(), AttemptResult{Status: http.StatusOK}
		},
		s.refresh,
	)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
