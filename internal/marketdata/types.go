// Package marketdata implements the Unified Market Data layer of spec
// §4.4: provider ordering, per-call fallback, staleness checking, and
// normalization into the shared shapes of spec §6, hiding Schwab/Alpaca
// heterogeneity behind one API.
package marketdata

import "time"

// Quote is the normalized shape of spec §6.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	Volume        int64     `json:"volume"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Open          float64   `json:"open"`
	Close         float64   `json:"close"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Week52High    float64   `json:"week_52_high"`
	Week52Low     float64   `json:"week_52_low"`
	PERatio       float64   `json:"pe_ratio"`
	DividendYield float64   `json:"dividend_yield"`
	Timestamp     time.Time `json:"timestamp"`
	Provider      string    `json:"provider"`
}

// HistoryRow is the normalized shape of spec §6: symbol upper-cased, date
// as YYYY-MM-DD.
type HistoryRow struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Mover is one entry in a Movers response.
type Mover struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Change    float64 `json:"change"`
	Direction string  `json:"direction"` // "up" | "down"
	Volume    int64   `json:"volume"`
}

// Movers is the normalized shape of spec §6.
type Movers struct {
	Index  string  `json:"index"`
	Sort   string  `json:"sort"`
	Movers []Mover `json:"movers"`
}

// MarketHours is one entry of the normalized shape of spec §6.
type MarketHours struct {
	Market       string `json:"market"`
	Product      string `json:"product"`
	IsOpen       bool   `json:"is_open"`
	Date         string `json:"date"`
	SessionHours string `json:"session_hours"`
}

// NewsItem is a normalized news entry.
type NewsItem struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Profile is a normalized company-profile entry.
type Profile struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
	Employees   int    `json:"employees"`
	Website     string `json:"website"`
}

// FreshnessWindow is the default staleness threshold (spec §4.4): history
// whose last candle is older than this is treated as empty.
const FreshnessWindow = 7 * 24 * time.Hour
