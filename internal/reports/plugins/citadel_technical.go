// Package plugins implements the ten concrete Report Builder types
// (spec §4.11a) against internal/reports' shared harness.
package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/ta"
)

// CitadelTechnical is a single-ticker technical-analysis report: moving
// averages, RSI, MACD, support/resistance, and trend, over 200+ days of
// history.
type CitadelTechnical struct {
	MD *marketdata.Service
}

func NewCitadelTechnical(md *marketdata.Service) *CitadelTechnical {
	return &CitadelTechnical{MD: md}
}

func (p *CitadelTechnical) ReportType() string { return "citadel_technical" }

func (p *CitadelTechnical) Title(payload reports.Payload) string {
	return fmt.Sprintf("Citadel Technical Report: %s", strings.ToUpper(payload.Ticker))
}

func (p *CitadelTechnical) Validate(payload reports.Payload) error {
	if payload.Ticker == "" {
		return fmt.Errorf("citadel_technical: ticker is required")
	}
	return nil
}

func (p *CitadelTechnical) Collectors(payload reports.Payload) []reports.Collector {
	symbol := strings.ToUpper(payload.Ticker)
	return []reports.Collector{
		{Name: "quote", Fn: func(ctx context.Context) (any, error) {
			quote, ok := p.MD.Quote(ctx, symbol)
			if !ok {
				return nil, fmt.Errorf("no quote for %s", symbol)
			}
			return quote, nil
		}},
		{Name: "history", Fn: func(ctx context.Context) (any, error) {
			rows := p.MD.History(ctx, symbol, 250)
			if len(rows) == 0 {
				return nil, fmt.Errorf("no history for %s", symbol)
			}
			return rows, nil
		}},
	}
}

type citadelData struct {
	Symbol string
	Quote  marketdata.Quote
	Snap   ta.Snapshot
}

func (p *CitadelTechnical) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	symbol := strings.ToUpper(payload.Ticker)
	data := citadelData{Symbol: symbol}

	if q, ok := collected["quote"]; ok && q.Err == nil {
		data.Quote, _ = q.Data.(marketdata.Quote)
	}

	historyResult, ok := collected["history"]
	if !ok || historyResult.Err != nil {
		return data, nil
	}
	rows, _ := historyResult.Data.([]marketdata.HistoryRow)
	closes := make([]float64, len(rows))
	for i, row := range rows {
		closes[i] = row.Close
	}
	if snap, err := ta.ComputeSnapshot(closes); err == nil {
		data.Snap = snap
	}
	return data, nil
}

func (p *CitadelTechnical) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	data, _ := raw.(citadelData)

	var b strings.Builder
	fmt.Fprintf(&b, "## Citadel Technical Report: %s\n\n", data.Symbol)
	if data.Quote.Price != 0 {
		fmt.Fprintf(&b, "Last price **%.2f** (%.2f%%).\n\n", data.Quote.Price, data.Quote.PercentChange)
	}
	sourcesUsed := []string{"unified_market_data"}
	toolPlan := []string{"quote", "history"}
	var limitations []string

	if data.Snap.Trend != "" {
		fmt.Fprintf(&b, "SMA20 **%.2f**, SMA50 **%.2f**, RSI(14) **%.2f**, trend **%s**.\n\n",
			data.Snap.SMA20, data.Snap.SMA50, data.Snap.RSI14, data.Snap.Trend)
		fmt.Fprintf(&b, "Support/resistance band: **%.2f / %.2f**.\n\n", data.Snap.Support, data.Snap.Resistance)
	} else {
		limitations = append(limitations, "Fewer than 200 daily closes were available; the full indicator snapshot was skipped.")
	}

	assumptions := []string{"Indicators are computed from daily close prices only."}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*CitadelTechnical)(nil)
