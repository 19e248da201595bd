package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/ta"
)

// RenaissanceQuantSignals ranks a holdings universe by a composite of
// RSI, MACD histogram, and trend, one signal per symbol.
type RenaissanceQuantSignals struct {
	MD *marketdata.Service
}

func NewRenaissanceQuantSignals(md *marketdata.Service) *RenaissanceQuantSignals {
	return &RenaissanceQuantSignals{MD: md}
}

func (p *RenaissanceQuantSignals) ReportType() string { return "renaissance_quant_signals" }

func (p *RenaissanceQuantSignals) Title(reports.Payload) string {
	return "Renaissance Quant Signals"
}

func (p *RenaissanceQuantSignals) Validate(payload reports.Payload) error {
	if len(payload.Holdings) == 0 {
		return fmt.Errorf("renaissance_quant_signals: at least one symbol is required")
	}
	return nil
}

func (p *RenaissanceQuantSignals) Collectors(payload reports.Payload) []reports.Collector {
	collectors := make([]reports.Collector, 0, len(payload.Holdings))
	for _, symbol := range payload.Holdings {
		symbol := symbol
		collectors = append(collectors, reports.Collector{
			Name: symbol,
			Fn: func(ctx context.Context) (any, error) {
				rows := p.MD.History(ctx, symbol, 250)
				if len(rows) == 0 {
					return nil, fmt.Errorf("no history for %s", symbol)
				}
				return rows, nil
			},
		})
	}
	return collectors
}

type quantSignal struct {
	Symbol        string
	RSI           float64
	MACDHistogram float64
	Trend         string
	Score         float64
}

func (p *RenaissanceQuantSignals) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	signals := make([]quantSignal, 0, len(payload.Holdings))
	for _, symbol := range payload.Holdings {
		result, ok := collected[symbol]
		if !ok || result.Err != nil {
			continue
		}
		rows, _ := result.Data.([]marketdata.HistoryRow)
		closes := make([]float64, len(rows))
		for i, row := range rows {
			closes[i] = row.Close
		}
		snap, err := ta.ComputeSnapshot(closes)
		if err != nil {
			continue
		}
		var histogram float64
		if n := len(snap.MACD.Histogram); n > 0 {
			histogram = snap.MACD.Histogram[n-1]
		}
		score := (snap.RSI14 - 50) + histogram*10
		signals = append(signals, quantSignal{
			Symbol: symbol, RSI: snap.RSI14, MACDHistogram: histogram, Trend: snap.Trend, Score: score,
		})
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].Score > signals[j].Score })
	return signals, nil
}

func (p *RenaissanceQuantSignals) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	signals, _ := raw.([]quantSignal)

	var b strings.Builder
	b.WriteString("## Renaissance Quant Signals\n\n")
	b.WriteString("| Symbol | RSI(14) | MACD Hist | Trend | Score |\n|---|---|---|---|---|\n")
	for _, signal := range signals {
		fmt.Fprintf(&b, "| %s | %.1f | %.3f | %s | %.2f |\n", signal.Symbol, signal.RSI, signal.MACDHistogram, signal.Trend, signal.Score)
	}

	sourcesUsed := []string{"unified_market_data"}
	toolPlan := []string{"history"}
	assumptions := []string{"Score is an unweighted blend of RSI deviation from 50 and MACD histogram, not a validated factor model."}
	var limitations []string
	if len(signals) < len(payload.Holdings) {
		limitations = append(limitations, "One or more symbols lacked enough history for a full indicator snapshot and were omitted.")
	}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*RenaissanceQuantSignals)(nil)
