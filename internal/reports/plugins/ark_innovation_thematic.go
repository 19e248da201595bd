package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
)

// ArkInnovationThematic blends a thematic web search with a seasonality
// breakdown by month and weekday over a ticker's trading history (spec
// §4.11 step 3: "seasonality by month/weekday").
type ArkInnovationThematic struct {
	MD     *marketdata.Service
	Tavily *providers.TavilyClient
}

func NewArkInnovationThematic(md *marketdata.Service, tavily *providers.TavilyClient) *ArkInnovationThematic {
	return &ArkInnovationThematic{MD: md, Tavily: tavily}
}

func (p *ArkInnovationThematic) ReportType() string { return "ark_innovation_thematic" }

func (p *ArkInnovationThematic) Title(payload reports.Payload) string {
	if payload.Ticker != "" {
		return fmt.Sprintf("ARK Innovation Thematic: %s", strings.ToUpper(payload.Ticker))
	}
	return fmt.Sprintf("ARK Innovation Thematic: %s", payload.Sector)
}

func (p *ArkInnovationThematic) Validate(payload reports.Payload) error {
	if payload.Ticker == "" && payload.Sector == "" {
		return fmt.Errorf("ark_innovation_thematic: ticker or sector is required")
	}
	return nil
}

func (p *ArkInnovationThematic) Collectors(payload reports.Payload) []reports.Collector {
	theme := payload.Ticker
	if theme == "" {
		theme = payload.Sector
	}
	collectors := []reports.Collector{
		{Name: "web", Fn: func(ctx context.Context) (any, error) {
			return p.Tavily.Search(ctx, theme+" disruptive innovation thesis", 5)
		}},
	}
	if payload.Ticker != "" {
		symbol := strings.ToUpper(payload.Ticker)
		collectors = append(collectors, reports.Collector{
			Name: "history",
			Fn: func(ctx context.Context) (any, error) {
				rows := p.MD.History(ctx, symbol, 500)
				if len(rows) == 0 {
					return nil, fmt.Errorf("no history for %s", symbol)
				}
				return rows, nil
			},
		})
	}
	return collectors
}

type seasonalityBucket struct {
	Label          string
	AvgDailyReturn float64
	SampleSize     int
}

type thematicData struct {
	Theme     string
	WebHits   []providers.RawSearchResult
	ByMonth   []seasonalityBucket
	ByWeekday []seasonalityBucket
}

func (p *ArkInnovationThematic) Compute(payload reports.Payload, collected map[string]reports.CollectorResult) (any, error) {
	theme := payload.Ticker
	if theme == "" {
		theme = payload.Sector
	}
	data := thematicData{Theme: theme}

	if w, ok := collected["web"]; ok && w.Err == nil {
		data.WebHits, _ = w.Data.([]providers.RawSearchResult)
	}

	historyResult, ok := collected["history"]
	if !ok || historyResult.Err != nil {
		return data, nil
	}
	rows, _ := historyResult.Data.([]marketdata.HistoryRow)
	data.ByMonth = seasonalityByKey(rows, func(t time.Time) string { return t.Month().String() })
	data.ByWeekday = seasonalityByKey(rows, func(t time.Time) string { return t.Weekday().String() })
	return data, nil
}

// seasonalityByKey groups day-over-day returns by a date-derived key
// (month name or weekday name) and averages them per bucket.
func seasonalityByKey(rows []marketdata.HistoryRow, key func(time.Time) string) []seasonalityBucket {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Close
		if prev == 0 {
			continue
		}
		ret := (rows[i].Close - prev) / prev
		date, err := time.Parse("2006-01-02", rows[i].Date)
		if err != nil {
			continue
		}
		bucket := key(date)
		sums[bucket] += ret
		counts[bucket]++
	}

	buckets := make([]seasonalityBucket, 0, len(sums))
	for label, sum := range sums {
		buckets = append(buckets, seasonalityBucket{Label: label, AvgDailyReturn: sum / float64(counts[label]), SampleSize: counts[label]})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].AvgDailyReturn > buckets[j].AvgDailyReturn })
	return buckets
}

func (p *ArkInnovationThematic) Render(payload reports.Payload, raw any) (string, []string, []string, []string, []string) {
	data, _ := raw.(thematicData)

	var b strings.Builder
	fmt.Fprintf(&b, "## ARK Innovation Thematic: %s\n\n", data.Theme)

	if len(data.WebHits) > 0 {
		b.WriteString("Thesis sources:\n\n")
		for _, hit := range data.WebHits {
			fmt.Fprintf(&b, "- [%s](%s)\n", hit.Title, hit.URL)
		}
		b.WriteString("\n")
	}

	var limitations []string
	if len(data.ByMonth) > 0 {
		b.WriteString("Strongest months by average daily return: ")
		top := data.ByMonth
		if len(top) > 3 {
			top = top[:3]
		}
		labels := make([]string, len(top))
		for i, bucket := range top {
			labels[i] = fmt.Sprintf("%s (%.3f%%)", bucket.Label, bucket.AvgDailyReturn*100)
		}
		b.WriteString(strings.Join(labels, ", "))
		b.WriteString(".\n\n")
	} else {
		limitations = append(limitations, "No seasonality breakdown was computed (sector-only themes have no single history series).")
	}

	sourcesUsed := []string{"tavily"}
	if len(data.ByMonth) > 0 {
		sourcesUsed = append(sourcesUsed, "unified_market_data")
	}
	toolPlan := []string{"web_search"}
	assumptions := []string{"Seasonality is descriptive historical averaging, not a forecast."}
	return b.String(), assumptions, limitations, sourcesUsed, toolPlan
}

var _ reports.Plugin = (*ArkInnovationThematic)(nil)
