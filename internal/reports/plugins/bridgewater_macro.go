package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
)

// macroSeries are the FRED series IDs a macro backdrop report pulls:
// real GDP, unemployment rate, CPI, and the effective federal funds rate.
var macroSeries = []string{"GDPC1", "UNRATE", "CPIAUCSL", "FEDFUNDS"}

// BridgewaterMacro is a macro-regime report built entirely from FRED
// series (spec §4.11 step 2's optional macro collector, promoted here to
// the whole report's subject).
type BridgewaterMacro struct {
	FRED *providers.FREDClient
}

func NewBridgewaterMacro(fred *providers.FREDClient) *BridgewaterMacro {
	return &BridgewaterMacro{FRED: fred}
}

func (p *BridgewaterMacro) ReportType() string { return "bridgewater_macro" }

func (p *BridgewaterMacro) Title(reports.Payload) string { return "Bridgewater Macro Backdrop" }

func (p *BridgewaterMacro) Validate(reports.Payload) error { return nil }

func (p *BridgewaterMacro) Collectors(reports.Payload) []reports.Collector {
	collectors := make([]reports.Collector, 0, len(macroSeries))
	for _, seriesID := range macroSeries {
		seriesID := seriesID
		collectors = append(collectors, reports.Collector{
			Name: seriesID,
			Fn: func(ctx context.Context) (any, error) {
				return p.FRED.Series(ctx, seriesID)
			},
		})
	}
	return collectors
}

func (p *BridgewaterMacro) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	return collected, nil
}

func (p *BridgewaterMacro) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	collected, _ := raw.(map[string]reports.CollectorResult)

	var b strings.Builder
	b.WriteString("## Bridgewater Macro Backdrop\n\n")

	var limitations []string
	for _, seriesID := range macroSeries {
		result, ok := collected[seriesID]
		if !ok || result.Err != nil {
			limitations = append(limitations, fmt.Sprintf("Series %s was unavailable.", seriesID))
			continue
		}
		series, ok := result.Data.(providers.RawSeries)
		if !ok || len(series.Observations) == 0 {
			limitations = append(limitations, fmt.Sprintf("Series %s returned no observations.", seriesID))
			continue
		}
		latest := series.Observations[len(series.Observations)-1]
		fmt.Fprintf(&b, "- **%s** (%s): %.2f as of %s\n", series.Title, seriesID, latest.Value, latest.Date.Format("2006-01-02"))
	}
	b.WriteString("\n")

	sourcesUsed := []string{"fred"}
	toolPlan := []string{"fred_series"}
	assumptions := []string{"Regime characterization is descriptive, based on the latest published observation per series."}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*BridgewaterMacro)(nil)
