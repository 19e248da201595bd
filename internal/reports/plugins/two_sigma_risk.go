package plugins

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/reports"
)

// TwoSigmaRisk builds a pairwise daily-return correlation matrix across a
// holdings list (spec §4.11 step 3: "risk correlation matrix").
type TwoSigmaRisk struct {
	MD *marketdata.Service
}

func NewTwoSigmaRisk(md *marketdata.Service) *TwoSigmaRisk {
	return &TwoSigmaRisk{MD: md}
}

func (p *TwoSigmaRisk) ReportType() string { return "two_sigma_risk" }

func (p *TwoSigmaRisk) Title(reports.Payload) string { return "Two Sigma Risk Report" }

func (p *TwoSigmaRisk) Validate(payload reports.Payload) error {
	if len(payload.Holdings) < 2 {
		return fmt.Errorf("two_sigma_risk: at least two holdings are required for a correlation matrix")
	}
	return nil
}

func (p *TwoSigmaRisk) Collectors(payload reports.Payload) []reports.Collector {
	collectors := make([]reports.Collector, 0, len(payload.Holdings))
	for _, symbol := range payload.Holdings {
		symbol := symbol
		collectors = append(collectors, reports.Collector{
			Name: symbol,
			Fn: func(ctx context.Context) (any, error) {
				rows := p.MD.History(ctx, symbol, 120)
				if len(rows) < 2 {
					return nil, fmt.Errorf("insufficient history for %s", symbol)
				}
				return rows, nil
			},
		})
	}
	return collectors
}

type riskMatrix struct {
	Symbols []string
	Matrix  [][]float64
	Missing []string
}

func dailyReturns(rows []marketdata.HistoryRow) []float64 {
	if len(rows) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (rows[i].Close-prev)/prev)
	}
	return returns
}

func (p *TwoSigmaRisk) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	returnsBySymbol := make(map[string][]float64)
	var symbols []string
	var missing []string

	for _, symbol := range payload.Holdings {
		result, ok := collected[symbol]
		if !ok || result.Err != nil {
			missing = append(missing, symbol)
			continue
		}
		rows, _ := result.Data.([]marketdata.HistoryRow)
		returns := dailyReturns(rows)
		if len(returns) == 0 {
			missing = append(missing, symbol)
			continue
		}
		returnsBySymbol[symbol] = returns
		symbols = append(symbols, symbol)
	}

	matrix := make([][]float64, len(symbols))
	for i, a := range symbols {
		matrix[i] = make([]float64, len(symbols))
		for j, b := range symbols {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			matrix[i][j] = correlate(returnsBySymbol[a], returnsBySymbol[b])
		}
	}

	return riskMatrix{Symbols: symbols, Matrix: matrix, Missing: missing}, nil
}

// correlate aligns two return series to their common shortest length
// before handing off to gonum's Pearson correlation.
func correlate(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	return stat.Correlation(a[:n], b[:n], nil)
}

func (p *TwoSigmaRisk) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	data, _ := raw.(riskMatrix)

	var b strings.Builder
	b.WriteString("## Two Sigma Risk Report\n\n")
	if len(data.Symbols) >= 2 {
		b.WriteString("| |")
		for _, symbol := range data.Symbols {
			fmt.Fprintf(&b, " %s |", symbol)
		}
		b.WriteString("\n|---|")
		for range data.Symbols {
			b.WriteString("---|")
		}
		b.WriteString("\n")
		for i, symbol := range data.Symbols {
			fmt.Fprintf(&b, "| %s |", symbol)
			for j := range data.Symbols {
				fmt.Fprintf(&b, " %.2f |", data.Matrix[i][j])
			}
			b.WriteString("\n")
		}
	}

	sourcesUsed := []string{"unified_market_data"}
	toolPlan := []string{"history"}
	assumptions := []string{"Correlations are computed from 120 trading days of daily returns."}
	var limitations []string
	if len(data.Missing) > 0 {
		limitations = append(limitations, fmt.Sprintf("Excluded from the matrix for insufficient history: %s.", strings.Join(data.Missing, ", ")))
	}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*TwoSigmaRisk)(nil)
