package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
)

// GoldmanScreener runs a sector screener: Finviz surfaces the candidate
// universe, one batch quote call prices it, then ranks by percent change.
type GoldmanScreener struct {
	MD     *marketdata.Service
	Finviz *providers.FinvizClient
}

func NewGoldmanScreener(md *marketdata.Service, finviz *providers.FinvizClient) *GoldmanScreener {
	return &GoldmanScreener{MD: md, Finviz: finviz}
}

func (p *GoldmanScreener) ReportType() string { return "goldman_screener" }

func (p *GoldmanScreener) Title(payload reports.Payload) string {
	return fmt.Sprintf("Goldman Screener: %s", payload.Sector)
}

func (p *GoldmanScreener) Validate(payload reports.Payload) error {
	if payload.Sector == "" {
		return fmt.Errorf("goldman_screener: sector is required")
	}
	return nil
}

func (p *GoldmanScreener) limit(payload reports.Payload) int {
	if payload.Limit <= 0 {
		return 20
	}
	return payload.Limit
}

func (p *GoldmanScreener) Collectors(payload reports.Payload) []reports.Collector {
	limit := p.limit(payload)
	return []reports.Collector{
		{Name: "universe", Fn: func(ctx context.Context) (any, error) {
			return p.Finviz.Screener(ctx, payload.Sector, limit)
		}},
	}
}

type goldmanRow struct {
	Symbol        string
	Price         float64
	PercentChange float64
}

func (p *GoldmanScreener) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	universeResult, ok := collected["universe"]
	if !ok || universeResult.Err != nil {
		return nil, fmt.Errorf("goldman_screener: no universe for sector %q", payload.Sector)
	}
	universe, _ := universeResult.Data.([]string)

	quotes := p.MD.QuotesBatch(context.Background(), universe)
	rows := make([]goldmanRow, 0, len(quotes))
	for symbol, quote := range quotes {
		rows = append(rows, goldmanRow{Symbol: symbol, Price: quote.Price, PercentChange: quote.PercentChange})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PercentChange > rows[j].PercentChange })

	limit := p.limit(payload)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (p *GoldmanScreener) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	rows, _ := raw.([]goldmanRow)

	var b strings.Builder
	fmt.Fprintf(&b, "## Goldman Screener: %s\n\n", payload.Sector)
	fmt.Fprintf(&b, "| Symbol | Price | %% Change |\n|---|---|---|\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f%% |\n", row.Symbol, row.Price, row.PercentChange)
	}

	sourcesUsed := []string{"finviz", "unified_market_data"}
	toolPlan := []string{"screener", "quotes_batch"}
	var limitations []string
	if len(rows) == 0 {
		limitations = append(limitations, "Finviz returned no candidates for this sector.")
	}
	assumptions := []string{fmt.Sprintf("Ranking is by intraday percent change across up to %d candidates.", p.limit(payload))}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*GoldmanScreener)(nil)
