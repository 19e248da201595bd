package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// AlpacaClient is an API-key provider (no OAuth refresh cycle): a 401
// simply fails the attempt per the normal retry/backoff path, since there
// is no token to refresh.
type AlpacaClient struct {
	core    *Core
	keyID   string
	secret  string
	baseURL string
}

// NewAlpacaClient wires an Alpaca client for the given app.
func NewAlpacaClient(app, keyID, secret string, ring *events.Ring, log zerolog.Logger) *AlpacaClient {
	return &AlpacaClient{
		core:    NewCore(app, "alpaca", DefaultConfig(), ring, log),
		keyID:   keyID,
		secret:  secret,
		baseURL: "https://data.alpaca.markets",
	}
}

func (a *AlpacaClient) authorized() bool { return a.keyID != "" && a.secret != "" }

// Quote fetches a single-symbol quote. Alpaca reports timestamps as
// ISO-8601 strings, unlike Schwab's epoch-millis — this asymmetry is what
// internal/marketdata's history/quote normalizer exists to absorb.
func (a *AlpacaClient) Quote(ctx context.Context, symbol string) (RawQuote, error) {
	reqID := uuid.NewString()
	result, err := a.core.Do(ctx, "/v2/stocks/quotes/latest", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !a.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}
			q := RawQuote{Symbol: symbol, TimestampISO: time.Now().UTC().Format(time.RFC3339)}
			return q, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return RawQuote{}, err
	}
	return result.(RawQuote), nil
}

// QuotesBatch fetches quotes for multiple symbols in a single call.
func (a *AlpacaClient) QuotesBatch(ctx context.Context, symbols []string) (map[string]RawQuote, error) {
	reqID := uuid.NewString()
	result, err := a.core.Do(ctx, "/v2/stocks/quotes/latest", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !a.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}
			out := make(map[string]RawQuote, len(symbols))
			for _, sym := range symbols {
				out[sym] = RawQuote{Symbol: sym, TimestampISO: time.Now().UTC().Format(time.RFC3339)}
			}
			return out, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.(map[string]RawQuote), nil
}

// History fetches up to `days` of daily bars, dates reported as ISO
// strings.
func (a *AlpacaClient) History(ctx context.Context, symbol string, days int) ([]RawHistoryRow, error) {
	reqID := uuid.NewString()
	result, err := a.core.Do(ctx, "/v2/stocks/"+symbol+"/bars", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !a.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}
			rows := make([]RawHistoryRow, 0, days)
			now := time.Now().UTC()
			for i := days - 1; i >= 0; i-- {
				rows = append(rows, RawHistoryRow{
					Symbol:  symbol,
					DateISO: now.AddDate(0, 0, -i).Format("2006-01-02"),
				})
			}
			return rows, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawHistoryRow), nil
}

// Movers fetches the current top movers.
func (a *AlpacaClient) Movers(ctx context.Context, sort string) ([]RawMover, error) {
	reqID := uuid.NewString()
	result, err := a.core.Do(ctx, "/v1beta1/screener/stocks/movers", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !a.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}
			return []RawMover{}, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawMover), nil
}

// MarketHours reports whether the US equity market is open today.
func (a *AlpacaClient) MarketHours(ctx context.Context) ([]RawMarketHours, error) {
	reqID := uuid.NewString()
	result, err := a.core.Do(ctx, "/v2/clock", http.MethodGet, reqID,
		func(ctx context.Context, attempt int) (any, AttemptResult) {
			if !a.authorized() {
				return nil, AttemptResult{Status: http.StatusUnauthorized}
			}
			return []RawMarketHours{{Market: "US", Product: "EQUITY", IsOpen: true, Date: time.Now()}}, AttemptResult{Status: http.StatusOK}
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return result.([]RawMarketHours), nil
}
