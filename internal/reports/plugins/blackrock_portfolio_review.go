package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/reports"
)

// BlackrockPortfolioReview values a holdings list via one batch quote
// call and reports each position's weight and day change.
type BlackrockPortfolioReview struct {
	MD *marketdata.Service
}

func NewBlackrockPortfolioReview(md *marketdata.Service) *BlackrockPortfolioReview {
	return &BlackrockPortfolioReview{MD: md}
}

func (p *BlackrockPortfolioReview) ReportType() string { return "blackrock_portfolio_review" }

func (p *BlackrockPortfolioReview) Title(reports.Payload) string {
	return "BlackRock Portfolio Review"
}

func (p *BlackrockPortfolioReview) Validate(payload reports.Payload) error {
	if len(payload.Holdings) == 0 {
		return fmt.Errorf("blackrock_portfolio_review: at least one holding is required")
	}
	return nil
}

func (p *BlackrockPortfolioReview) Collectors(payload reports.Payload) []reports.Collector {
	return []reports.Collector{
		{Name: "quotes", Fn: func(ctx context.Context) (any, error) {
			return p.MD.QuotesBatch(ctx, payload.Holdings), nil
		}},
	}
}

type portfolioLine struct {
	Symbol        string
	Price         float64
	PercentChange float64
	WeightPercent float64
}

func (p *BlackrockPortfolioReview) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	quotesResult := collected["quotes"]
	quotes, _ := quotesResult.Data.(map[string]marketdata.Quote)

	var total float64
	for _, symbol := range payload.Holdings {
		total += quotes[symbol].Price
	}

	lines := make([]portfolioLine, 0, len(payload.Holdings))
	for _, symbol := range payload.Holdings {
		quote := quotes[symbol]
		weight := 0.0
		if total > 0 {
			weight = quote.Price / total * 100
		}
		lines = append(lines, portfolioLine{Symbol: symbol, Price: quote.Price, PercentChange: quote.PercentChange, WeightPercent: weight})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].WeightPercent > lines[j].WeightPercent })
	return lines, nil
}

func (p *BlackrockPortfolioReview) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	lines, _ := raw.([]portfolioLine)

	var b strings.Builder
	b.WriteString("## BlackRock Portfolio Review\n\n")
	b.WriteString("| Symbol | Price | % Change | Weight (1 share each) |\n|---|---|---|---|\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f%% | %.1f%% |\n", line.Symbol, line.Price, line.PercentChange, line.WeightPercent)
	}

	sourcesUsed := []string{"unified_market_data"}
	toolPlan := []string{"quotes_batch"}
	assumptions := []string{"Weights assume one share held per holding; actual position sizes are not modeled."}
	return b.String(), assumptions, nil, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*BlackrockPortfolioReview)(nil)
