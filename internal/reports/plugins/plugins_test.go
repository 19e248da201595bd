package plugins

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
)

// fakeSource is a deterministic marketdata.Source: a steadily rising
// price history (so technical indicators have a defined SMA/RSI/MACD) plus a fixed
// quote, enough for every plugin under test to compute against.
type fakeSource struct{}

func (fakeSource) Name() string { return "fake" }

func (fakeSource) Quote(ctx context.Context, symbol string) (providers.RawQuote, error) {
	return providers.RawQuote{
		Symbol: symbol, Price: 150, Change: 1.5, PercentChange: 1.0,
		PERatio: 15, DividendYield: 2.0, TimestampISO: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (fakeSource) History(ctx context.Context, symbol string, days int) ([]providers.RawHistoryRow, error) {
	rows := make([]providers.RawHistoryRow, 0, days)
	start := time.Now().UTC().AddDate(0, 0, -days)
	price := 100.0
	for i := 0; i < days; i++ {
		price += 0.1
		date := start.AddDate(0, 0, i)
		rows = append(rows, providers.RawHistoryRow{
			Symbol: symbol, DateISO: date.Format("2006-01-02"),
			Open: price - 0.1, High: price + 0.2, Low: price - 0.2, Close: price, Volume: 1000,
		})
	}
	return rows, nil
}

func (fakeSource) Movers(ctx context.Context, index, sort string) ([]providers.RawMover, error) {
	return nil, nil
}

func (fakeSource) MarketHours(ctx context.Context) ([]providers.RawMarketHours, error) {
	return nil, nil
}

func newTestMD() *marketdata.Service {
	return marketdata.NewService([]marketdata.Source{fakeSource{}})
}

func TestCitadelTechnical_BuildProducesMarkdownWithTrendAndLevels(t *testing.T) {
	plugin := NewCitadelTechnical(newTestMD())
	report, err := reports.New(plugin).Build(context.Background(), reports.Payload{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.Contains(t, report.Markdown, "AAPL")
	assert.Contains(t, report.Markdown, "trend")
}

func TestCitadelTechnical_RejectsEmptyTicker(t *testing.T) {
	plugin := NewCitadelTechnical(newTestMD())
	err := plugin.Validate(reports.Payload{})
	require.Error(t, err)
}

func TestBlackrockPortfolioReview_WeightsSumToOneHundred(t *testing.T) {
	plugin := NewBlackrockPortfolioReview(newTestMD())
	report, err := reports.New(plugin).Build(context.Background(), reports.Payload{Holdings: []string{"AAPL", "MSFT", "GOOG"}})
	require.NoError(t, err)

	data, ok := report.Data.([]portfolioLine)
	require.True(t, ok)
	var total float64
	for _, line := range data {
		total += line.WeightPercent
	}
	assert.InDelta(t, 100.0, total, 0.5)
}

func TestBlackrockPortfolioReview_RejectsEmptyHoldings(t *testing.T) {
	plugin := NewBlackrockPortfolioReview(newTestMD())
	err := plugin.Validate(reports.Payload{})
	require.Error(t, err)
}

func TestRenaissanceQuantSignals_RanksBySignalScoreDescending(t *testing.T) {
	plugin := NewRenaissanceQuantSignals(newTestMD())
	report, err := reports.New(plugin).Build(context.Background(), reports.Payload{Holdings: []string{"AAPL", "MSFT"}})
	require.NoError(t, err)

	signals, ok := report.Data.([]quantSignal)
	require.True(t, ok)
	require.Len(t, signals, 2)
	assert.GreaterOrEqual(t, signals[0].Score, signals[1].Score)
}

func TestTwoSigmaRisk_DiagonalIsOne(t *testing.T) {
	plugin := NewTwoSigmaRisk(newTestMD())
	report, err := reports.New(plugin).Build(context.Background(), reports.Payload{Holdings: []string{"AAPL", "MSFT"}})
	require.NoError(t, err)

	matrix, ok := report.Data.(riskMatrix)
	require.True(t, ok)
	require.Len(t, matrix.Symbols, 2)
	assert.InDelta(t, 1.0, matrix.Matrix[0][0], 0.0001)
	assert.InDelta(t, 1.0, matrix.Matrix[1][1], 0.0001)
}

func TestTwoSigmaRisk_RejectsFewerThanTwoHoldings(t *testing.T) {
	plugin := NewTwoSigmaRisk(newTestMD())
	err := plugin.Validate(reports.Payload{Holdings: []string{"AAPL"}})
	require.Error(t, err)
}

func TestDiscountedEPSFairValue_HigherGrowthRaisesFairValue(t *testing.T) {
	low := discountedEPSFairValue(10, 0.05, 0.10)
	high := discountedEPSFairValue(10, 0.15, 0.10)
	assert.Greater(t, high, low)
}

func TestParsePercent_HandlesTrailingPercentSign(t *testing.T) {
	assert.InDelta(t, 42.5, parsePercent("42.5%"), 0.001)
	assert.Equal(t, 0.0, parsePercent(""))
	assert.Equal(t, 0.0, parsePercent("n/a"))
}

func TestSeasonalityByKey_GroupsAndAveragesPerBucket(t *testing.T) {
	rows := []marketdata.HistoryRow{
		{Symbol: "AAPL", Date: "2025-01-01", Close: 100},
		{Symbol: "AAPL", Date: "2025-01-02", Close: 101},
		{Symbol: "AAPL", Date: "2025-02-01", Close: 102},
		{Symbol: "AAPL", Date: "2025-02-02", Close: 100},
	}
	buckets := seasonalityByKey(rows, func(date time.Time) string { return date.Month().String() })
	require.NotEmpty(t, buckets)
	for _, bucket := range buckets {
		assert.Greater(t, bucket.SampleSize, 0)
	}
}

func TestNewRegistry_RegistersAllTenReportTypes(t *testing.T) {
	registry := NewRegistry(reports.Deps{MD: newTestMD()})
	expected := []string{
		"citadel_technical", "goldman_screener", "blackrock_portfolio_review",
		"morgan_stanley_wealth", "jpmorgan_earnings_preview", "bridgewater_macro",
		"renaissance_quant_signals", "two_sigma_risk", "vanguard_dividend_safety",
		"ark_innovation_thematic",
	}
	for _, reportType := range expected {
		_, ok := registry[reportType]
		assert.True(t, ok, fmt.Sprintf("missing report type %s", reportType))
	}
	assert.Len(t, registry, len(expected))
}
