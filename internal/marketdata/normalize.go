package marketdata

import (
	"strings"
	"time"

	"github.com/finresearch/orchestrator/internal/providers"
)

// NormalizeQuote maps a provider's raw quote into the shared shape,
// stamping which provider served it.
func NormalizeQuote(raw providers.RawQuote, provider string) Quote {
	return Quote{
		Symbol:        strings.ToUpper(raw.Symbol),
		Price:         raw.Price,
		Change:        raw.Change,
		PercentChange: raw.PercentChange,
		Volume:        raw.Volume,
		Bid:           raw.Bid,
		Ask:           raw.Ask,
		Open:          raw.Open,
		Close:         raw.Close,
		High:          raw.High,
		Low:           raw.Low,
		Week52High:    raw.Week52High,
		Week52Low:     raw.Week52Low,
		PERatio:       raw.PERatio,
		DividendYield: raw.DividendYield,
		Timestamp:     normalizeTimestamp(raw.TimestampMS, raw.TimestampISO),
		Provider:      provider,
	}
}

// normalizeTimestamp maps a provider-specific timestamp (ms epoch or
// ISO-8601 string — spec §4.4) to a time.Time. Exactly one of ms/iso is
// expected to be populated.
func normalizeTimestamp(ms int64, iso string) time.Time {
	if ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	if iso != "" {
		if t, err := time.Parse(time.RFC3339, iso); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// NormalizeHistoryRow maps one raw candle into the shared shape: symbol
// upper-cased, date formatted YYYY-MM-DD regardless of the provider's
// original time format.
func NormalizeHistoryRow(raw providers.RawHistoryRow) HistoryRow {
	var date string
	switch {
	case raw.DateMS > 0:
		date = time.UnixMilli(raw.DateMS).UTC().Format("2006-01-02")
	case raw.DateISO != "":
		if t, err := time.Parse("2006-01-02", raw.DateISO); err == nil {
			date = t.Format("2006-01-02")
		} else if t, err := time.Parse(time.RFC3339, raw.DateISO); err == nil {
			date = t.Format("2006-01-02")
		} else {
			date = raw.DateISO
		}
	}

	return HistoryRow{
		Symbol: strings.ToUpper(raw.Symbol),
		Date:   date,
		Open:   raw.Open,
		High:   raw.High,
		Low:    raw.Low,
		Close:  raw.Close,
		Volume: raw.Volume,
	}
}

// NormalizeHistory maps and truncates a raw candle slice to at most the
// last `days` rows, preserving order (oldest first, matching the
// providers' emission order).
func NormalizeHistory(raw []providers.RawHistoryRow, days int) []HistoryRow {
	rows := make([]HistoryRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, NormalizeHistoryRow(r))
	}
	if len(rows) > days {
		rows = rows[len(rows)-days:]
	}
	return rows
}

// IsStale reports whether history's most recent candle falls outside the
// freshness window, as of now. An empty history is never "stale" by this
// check alone — callers treat empty history as already-empty upstream.
func IsStale(rows []HistoryRow, now time.Time, window time.Duration) bool {
	if len(rows) == 0 {
		return false
	}
	last := rows[len(rows)-1]
	t, err := time.Parse("2006-01-02", last.Date)
	if err != nil {
		return true
	}
	age := now.Sub(t)
	// Boundary (spec §8): exactly window old is NOT stale; one day older is.
	return age > window
}

// NormalizeMovers maps raw movers into the shared shape, deriving
// Direction from the sign of Change.
func NormalizeMovers(index, sort string, raw []providers.RawMover) Movers {
	out := Movers{Index: index, Sort: sort, Movers: make([]Mover, 0, len(raw))}
	for _, m := range raw {
		direction := "up"
		if m.Change < 0 {
			direction = "down"
		}
		out.Movers = append(out.Movers, Mover{
			Symbol:    strings.ToUpper(m.Symbol),
			LastPrice: m.LastPrice,
			Change:    m.Change,
			Direction: direction,
			Volume:    m.Volume,
		})
	}
	return out
}

// NormalizeMarketHours maps raw market-hours entries into the shared shape.
func NormalizeMarketHours(raw []providers.RawMarketHours) []MarketHours {
	out := make([]MarketHours, 0, len(raw))
	for _, h := range raw {
		out = append(out, MarketHours{
			Market:       h.Market,
			Product:      h.Product,
			IsOpen:       h.IsOpen,
			Date:         h.Date.Format("2006-01-02"),
			SessionHours: h.SessionHours,
		})
	}
	return out
}

// NormalizeNews maps raw news entries into the shared shape.
func NormalizeNews(raw []providers.RawNewsItem) []NewsItem {
	out := make([]NewsItem, 0, len(raw))
	for _, n := range raw {
		out = append(out, NewsItem{
			Headline:    n.Headline,
			Summary:     n.Summary,
			Source:      n.Source,
			URL:         n.URL,
			PublishedAt: n.PublishedAt,
		})
	}
	return out
}

// NormalizeProfile maps a raw profile into the shared shape.
func NormalizeProfile(raw providers.RawProfile) Profile {
	return Profile{
		Symbol:      strings.ToUpper(raw.Symbol),
		Name:        raw.Name,
		Sector:      raw.Sector,
		Industry:    raw.Industry,
		Description: raw.Description,
		Employees:   raw.Employees,
		Website:     raw.Website,
	}
}
