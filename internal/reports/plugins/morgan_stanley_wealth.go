package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
)

// MorganStanleyWealth is a single-ticker wealth-management overview:
// quote plus the Finviz snapshot table (valuation, margins, ownership)
// rendered as a client-facing summary.
type MorganStanleyWealth struct {
	MD     *marketdata.Service
	Finviz *providers.FinvizClient
}

func NewMorganStanleyWealth(md *marketdata.Service, finviz *providers.FinvizClient) *MorganStanleyWealth {
	return &MorganStanleyWealth{MD: md, Finviz: finviz}
}

func (p *MorganStanleyWealth) ReportType() string { return "morgan_stanley_wealth" }

func (p *MorganStanleyWealth) Title(payload reports.Payload) string {
	return fmt.Sprintf("Morgan Stanley Wealth Overview: %s", strings.ToUpper(payload.Ticker))
}

func (p *MorganStanleyWealth) Validate(payload reports.Payload) error {
	if payload.Ticker == "" {
		return fmt.Errorf("morgan_stanley_wealth: ticker is required")
	}
	return nil
}

func (p *MorganStanleyWealth) Collectors(payload reports.Payload) []reports.Collector {
	symbol := strings.ToUpper(payload.Ticker)
	return []reports.Collector{
		{Name: "quote", Fn: func(ctx context.Context) (any, error) {
			quote, ok := p.MD.Quote(ctx, symbol)
			if !ok {
				return nil, fmt.Errorf("no quote for %s", symbol)
			}
			return quote, nil
		}},
		{Name: "snapshot", Fn: func(ctx context.Context) (any, error) {
			return p.Finviz.Overview(ctx, symbol)
		}},
	}
}

type wealthData struct {
	Symbol   string
	Quote    marketdata.Quote
	Snapshot map[string]string
}

func (p *MorganStanleyWealth) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	symbol := strings.ToUpper(payload.Ticker)
	data := wealthData{Symbol: symbol}
	if q, ok := collected["quote"]; ok && q.Err == nil {
		data.Quote, _ = q.Data.(marketdata.Quote)
	}
	if s, ok := collected["snapshot"]; ok && s.Err == nil {
		data.Snapshot, _ = s.Data.(map[string]string)
	}
	return data, nil
}

func (p *MorganStanleyWealth) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	data, _ := raw.(wealthData)

	var b strings.Builder
	fmt.Fprintf(&b, "## Morgan Stanley Wealth Overview: %s\n\n", data.Symbol)
	if data.Quote.Price != 0 {
		fmt.Fprintf(&b, "Price **%.2f**, dividend yield **%.2f%%**, P/E **%.2f**.\n\n",
			data.Quote.Price, data.Quote.DividendYield, data.Quote.PERatio)
	}

	var limitations []string
	if len(data.Snapshot) == 0 {
		limitations = append(limitations, "Finviz valuation snapshot was unavailable.")
	} else {
		for _, key := range []string{"Market Cap", "P/E", "Dividend %", "Insider Own", "Profit Margin"} {
			if value, ok := data.Snapshot[key]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", key, value)
			}
		}
		b.WriteString("\n")
	}

	sourcesUsed := []string{"unified_market_data", "finviz"}
	toolPlan := []string{"quote", "finviz_overview"}
	assumptions := []string{"This overview is informational and not a personalized investment recommendation."}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*MorganStanleyWealth)(nil)
