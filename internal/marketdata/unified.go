package marketdata

import (
	"context"
	"time"

	"github.com/finresearch/orchestrator/internal/providers"
)

// Source is anything the unified layer can pull quotes/history/movers/news
// from. Schwab and Alpaca both satisfy it via thin adapters in this
// package (see adapters.go); additional sources can be added the same way.
type Source interface {
	Name() string
	Quote(ctx context.Context, symbol string) (providers.RawQuote, error)
	History(ctx context.Context, symbol string, days int) ([]providers.RawHistoryRow, error)
	Movers(ctx context.Context, index, sort string) ([]providers.RawMover, error)
	MarketHours(ctx context.Context) ([]providers.RawMarketHours, error)
}

// OrderMode selects the provider-ordering strategy (spec §4.4 step 1).
type OrderMode string

const (
	OrderAuto         OrderMode = "auto"
	OrderSchwabFirst  OrderMode = "schwab-first"
	OrderAlpacaFirst  OrderMode = "alpaca-first"
)

// Service hides provider heterogeneity behind one API (spec §4.4).
type Service struct {
	sources         []Source // in configured priority order
	freshnessWindow time.Duration
	now             func() time.Time
}

// NewService builds a unified market-data service. sources must already be
// ordered per the configured OrderMode; NewService itself does not reorder them,
// since the ordering policy (env var, preset) is a deployment concern
// resolved by the caller wiring sources together.
func NewService(sources []Source) *Service {
	return &Service{
		sources:         sources,
		freshnessWindow: FreshnessWindow,
		now:             time.Now,
	}
}

// Quote returns the first successful provider's normalized quote,
// trying providers in configured order until one succeeds.
func (s *Service) Quote(ctx context.Context, symbol string) (Quote, bool) {
	for _, src := range s.sources {
		raw, err := src.Quote(ctx, symbol)
		if err != nil {
			continue
		}
		return NormalizeQuote(raw, src.Name()), true
	}
	return Quote{}, false
}

// QuotesBatch calls Quote for each symbol; providers that support a native
// batch call should be wrapped by a Source adapter that does so
// internally (this method does not assume batching support).
func (s *Service) QuotesBatch(ctx context.Context, symbols []string) map[string]Quote {
	out := make(map[string]Quote, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.Quote(ctx, sym); ok {
			out[sym] = q
		}
	}
	return out
}

// History returns the first successful, non-stale provider's normalized
// history. A provider whose most recent candle is older than the
// freshness window is treated as having returned nothing (spec §4.4 step
// 2b), and the next provider is tried.
func (s *Service) History(ctx context.Context, symbol string, days int) []HistoryRow {
	for _, src := range s.sources {
		raw, err := src.History(ctx, symbol, days)
		if err != nil {
			continue
		}
		rows := NormalizeHistory(raw, days)
		if len(rows) == 0 {
			continue
		}
		if IsStale(rows, s.now(), s.freshnessWindow) {
			continue
		}
		return rows
	}
	return nil
}

// Movers returns the first successful provider's normalized movers list.
func (s *Service) Movers(ctx context.Context, index, sort string) (Movers, bool) {
	for _, src := range s.sources {
		raw, err := src.Movers(ctx, index, sort)
		if err != nil || len(raw) == 0 {
			continue
		}
		return NormalizeMovers(index, sort, raw), true
	}
	return Movers{}, false
}

// MarketHours returns the first successful provider's normalized session
// hours.
func (s *Service) MarketHours(ctx context.Context) []MarketHours {
	for _, src := range s.sources {
		raw, err := src.MarketHours(ctx)
		if err != nil || len(raw) == 0 {
			continue
		}
		return NormalizeMarketHours(raw)
	}
	return nil
}

// StockNews and CompanyProfile are served by dedicated provider clients
// (news feed / fundamentals provider) rather than the Quote/History
// Source interface, since not every quote provider also serves news or
// profile data. They're exposed here as thin normalization passthroughs so
// callers have one place to reach for every unified-market-data call.

// NormalizedStockNews normalizes a raw news batch already fetched by the
// caller's chosen news source.
func NormalizedStockNews(raw []providers.RawNewsItem) []NewsItem {
	return NormalizeNews(raw)
}

// NormalizedCompanyProfile normalizes a raw profile already fetched by the
// caller's chosen profile source.
func NormalizedCompanyProfile(raw providers.RawProfile) Profile {
	return NormalizeProfile(raw)
}
