package plugins

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
)

// VanguardDividendSafety scores a dividend's sustainability from yield,
// payout ratio, and profit margin (spec §4.11 step 3: "dividend safety
// score").
type VanguardDividendSafety struct {
	MD     *marketdata.Service
	Finviz *providers.FinvizClient
}

func NewVanguardDividendSafety(md *marketdata.Service, finviz *providers.FinvizClient) *VanguardDividendSafety {
	return &VanguardDividendSafety{MD: md, Finviz: finviz}
}

func (p *VanguardDividendSafety) ReportType() string { return "vanguard_dividend_safety" }

func (p *VanguardDividendSafety) Title(payload reports.Payload) string {
	return fmt.Sprintf("Vanguard Dividend Safety: %s", strings.ToUpper(payload.Ticker))
}

func (p *VanguardDividendSafety) Validate(payload reports.Payload) error {
	if payload.Ticker == "" {
		return fmt.Errorf("vanguard_dividend_safety: ticker is required")
	}
	return nil
}

func (p *VanguardDividendSafety) Collectors(payload reports.Payload) []reports.Collector {
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

type dividendSafetyData struct {
	Symbol        string
	DividendYield float64
	PayoutRatio   float64
	ProfitMargin  float64
	Score         float64
	Rating        string
}

// parsePercent strips a trailing "%" and parses what's left; missing or
// unparseable values return 0.
func parsePercent(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
	if err != nil {
		return 0
	}
	return value
}

func (p *VanguardDividendSafety) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	symbol := strings.ToUpper(payload.Ticker)
	data := dividendSafetyData{Symbol: symbol}

	if q, ok := collected["quote"]; ok && q.Err == nil {
		quote, _ := q.Data.(marketdata.Quote)
		data.DividendYield = quote.DividendYield
	}
	if s, ok := collected["snapshot"]; ok && s.Err == nil {
		snapshot, _ := s.Data.(map[string]string)
		data.PayoutRatio = parsePercent(snapshot["Payout"])
		data.ProfitMargin = parsePercent(snapshot["Profit Margin"])
	}

	// Score rewards a positive, moderate yield and a healthy profit
	// margin; it penalizes a payout ratio above 80%.
	score := 50.0
	if data.DividendYield > 0 && data.DividendYield < 6 {
		score += 20
	}
	if data.ProfitMargin > 10 {
		score += 20
	}
	if data.PayoutRatio > 80 {
		score -= 30
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	data.Score = score

	switch {
	case score >= 70:
		data.Rating = "Safe"
	case score >= 40:
		data.Rating = "Borderline"
	default:
		data.Rating = "At Risk"
	}
	return data, nil
}

func (p *VanguardDividendSafety) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	data, _ := raw.(dividendSafetyData)

	var b strings.Builder
	fmt.Fprintf(&b, "## Vanguard Dividend Safety: %s\n\n", data.Symbol)
	fmt.Fprintf(&b, "Dividend yield **%.2f%%**, payout ratio **%.1f%%**, profit margin **%.1f%%**.\n\n",
		data.DividendYield, data.PayoutRatio, data.ProfitMargin)
	fmt.Fprintf(&b, "Safety score: **%.0f/100** (%s).\n\n", data.Score, data.Rating)

	sourcesUsed := []string{"unified_market_data", "finviz"}
	toolPlan := []string{"quote", "finviz_overview"}
	assumptions := []string{"The safety score is a heuristic blend of yield, payout ratio, and profit margin, not a formal credit model."}
	var limitations []string
	if data.PayoutRatio == 0 {
		limitations = append(limitations, "Payout ratio was unavailable and defaulted to zero in the score.")
	}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*VanguardDividendSafety)(nil)
