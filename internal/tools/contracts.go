// Package tools implements the Tool Contracts layer (spec §4.1): every tool
// a specialist can call is declared once — its source, endpoint, input
// schema, and the output fields downstream agents are allowed to read.
// Every cross-agent read of a tool result MUST go through the projected
// Output, never Raw; this package is the only place that projection
// happens.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Name identifies a tool by the contract it satisfies.
type Name string

const (
	Quote           Name = "quote"
	HistoricalPrices Name = "historical_prices"
	CompanyProfile  Name = "company_profile"
	MarketMovers    Name = "market_movers"
	StockNews       Name = "stock_news"
	MarketHours     Name = "market_hours"
	CompanyOverview Name = "company_overview"
	AnalystRatings  Name = "analyst_ratings"
	InsiderTrades   Name = "insider_trades"
	CompanyNews     Name = "company_news"
)

// Contract declares one tool's source, endpoint, input schema, and the
// stable output-field subset downstream agents may read.
type Contract struct {
	Name         Name
	Source       string // e.g. "schwab", "alphavantage", "finviz"
	Endpoint     string
	InputSchema  json.RawMessage // compiled once, up front, by NewValidator (tools/schema.go)
	OutputFields []string
	// ListLimit truncates list-shaped tool outputs to this many rows; 0
	// means the tool is not list-shaped.
	ListLimit int
}

// Registry is the fixed set of contracts declared by spec §4.1.
var Registry = map[Name]Contract{
	Quote: {
		Name:     Quote,
		Source:   "unified_market_data",
		Endpoint: "/quote",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol"],
			"properties":{"symbol":{"type":"string","minLength":1,"maxLength":10}}
		}`),
		OutputFields: []string{
			"symbol", "price", "change", "percent_change", "volume", "bid", "ask",
			"open", "close", "high", "low", "week_52_high", "week_52_low",
			"pe_ratio", "dividend_yield", "timestamp", "provider",
		},
	},
	HistoricalPrices: {
		Name:     HistoricalPrices,
		Source:   "unified_market_data",
		Endpoint: "/history",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol","days"],
			"properties":{
				"symbol":{"type":"string","minLength":1,"maxLength":10},
				"days":{"type":"integer","minimum":1,"maximum":3650}
			}
		}`),
		OutputFields: []string{"symbol", "date", "open", "high", "low", "close", "volume"},
		ListLimit:    120,
	},
	CompanyProfile: {
		Name:     CompanyProfile,
		Source:   "unified_market_data",
		Endpoint: "/profile",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol"],
			"properties":{"symbol":{"type":"string","minLength":1,"maxLength":10}}
		}`),
		OutputFields: []string{"symbol", "name", "sector", "industry", "description", "employees", "website"},
	},
	MarketMovers: {
		Name:     MarketMovers,
		Source:   "unified_market_data",
		Endpoint: "/movers",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["index"],
			"properties":{
				"index":{"type":"string"},
				"sort":{"type":"string","enum":["up","down","volume"]}
			}
		}`),
		OutputFields: []string{"index", "sort", "movers"},
		ListLimit:    50,
	},
	StockNews: {
		Name:     StockNews,
		Source:   "unified_market_data",
		Endpoint: "/news",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol"],
			"properties":{"symbol":{"type":"string","minLength":1,"maxLength":10}}
		}`),
		OutputFields: []string{"headline", "summary", "source", "url", "published_at"},
		ListLimit:    20,
	},
	MarketHours: {
		Name:     MarketHours,
		Source:   "unified_market_data",
		Endpoint: "/hours",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		OutputFields: []string{"market", "product", "is_open", "date", "session_hours"},
		ListLimit:    10,
	},
	CompanyOverview: {
		Name:     CompanyOverview,
		Source:   "fred_or_fundamentals_provider",
		Endpoint: "/overview",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol"],
			"properties":{"symbol":{"type":"string","minLength":1,"maxLength":10}}
		}`),
		OutputFields: []string{
			"symbol", "market_cap", "pe_ratio", "peg_ratio", "eps", "revenue_ttm",
			"profit_margin", "roe", "debt_to_equity", "dividend_yield",
		},
	},
	AnalystRatings: {
		Name:     AnalystRatings,
		Source:   "fundamentals_provider",
		Endpoint: "/ratings",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol"],
			"properties":{"symbol":{"type":"string","minLength":1,"maxLength":10}}
		}`),
		OutputFields: []string{"symbol", "firm", "rating", "price_target", "date"},
		ListLimit:    20,
	},
	InsiderTrades: {
		Name:     InsiderTrades,
		Source:   "fundamentals_provider",
		Endpoint: "/insider-trades",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol"],
			"properties":{"symbol":{"type":"string","minLength":1,"maxLength":10}}
		}`),
		OutputFields: []string{"symbol", "insider", "relation", "transaction_type", "shares", "price", "date"},
		ListLimit:    30,
	},
	CompanyNews: {
		Name:     CompanyNews,
		Source:   "news_provider",
		Endpoint: "/company-news",
		InputSchema: json.RawMessage(`{
			"type":"object","required":["symbol"],
			"properties":{"symbol":{"type":"string","minLength":1,"maxLength":10}}
		}`),
		OutputFields: []string{"headline", "summary", "source", "url", "published_at", "sentiment"},
		ListLimit:    20,
	},
}

// Sorted returns all contracts ordered by name. The /tools/contracts
// handler serves Registry itself, keyed by name, rather than this slice.
func Sorted() []Contract {
	out := make([]Contract, 0, len(Registry))
	for _, c := range Registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Project returns an object containing only a contract's declared
// OutputFields, truncating list-shaped results to ListLimit rows. raw must
// already be a map (single object) or a slice of maps (list tool); any
// other shape is returned as an error, since the projection can't be
// defined against it.
func Project(name Name, raw any) (any, error) {
	c, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("tools: unknown contract %q", name)
	}

	switch v := raw.(type) {
	case map[string]any:
		return projectObject(c, v), nil
	case []map[string]any:
		rows := v
		if c.ListLimit > 0 && len(rows) > c.ListLimit {
			rows = rows[:c.ListLimit]
		}
		projected := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			projected = append(projected, projectObject(c, row))
		}
		return projected, nil
	default:
		return nil, fmt.Errorf("tools: cannot project raw payload of type %T for %q", raw, name)
	}
}

func projectObject(c Contract, row map[string]any) map[string]any {
	out := make(map[string]any, len(c.OutputFields))
	for _, f := range c.OutputFields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Render returns a short text summary of a projected payload, suitable for
// LLM consumption. It is intentionally terse: the contract's output fields
// as key=value pairs, one line per row; it does not truncate, so list
// length is whatever Project's ListLimit left.
func Render(name Name, projected any) string {
	c, ok := Registry[name]
	if !ok {
		return ""
	}

	switch v := projected.(type) {
	case map[string]any:
		return renderRow(c, v)
	case []map[string]any:
		var b strings.Builder
		for i, row := range v {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(renderRow(c, row))
		}
		return b.String()
	default:
		return ""
	}
}

func renderRow(c Contract, row map[string]any) string {
	parts := make([]string, 0, len(c.OutputFields))
	for _, f := range c.OutputFields {
		if v, ok := row[f]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", f, v))
		}
	}
	return strings.Join(parts, " ")
}
