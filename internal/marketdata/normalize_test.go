package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/providers"
)

func TestNormalizeHistory_RoundTripRegardlessOfProviderTimeFormat(t *testing.T) {
	msRows := []providers.RawHistoryRow{
		{Symbol: "aapl", DateMS: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli(), Close: 100},
		{Symbol: "aapl", DateMS: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC).UnixMilli(), Close: 101},
	}
	isoRows := []providers.RawHistoryRow{
		{Symbol: "aapl", DateISO: "2026-01-02", Close: 100},
		{Symbol: "aapl", DateISO: "2026-01-03", Close: 101},
	}

	fromMS := NormalizeHistory(msRows, 10)
	fromISO := NormalizeHistory(isoRows, 10)

	require.Len(t, fromMS, 2)
	require.Len(t, fromISO, 2)
	for i := range fromMS {
		assert.Equal(t, fromISO[i].Date, fromMS[i].Date)
		assert.Equal(t, "AAPL", fromMS[i].Symbol)
		assert.Equal(t, fromISO[i].Close, fromMS[i].Close)
	}
}

func TestIsStale_BoundaryExactlyMaxAgeIsNotStale(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour

	exactlyAtWindow := []HistoryRow{{Date: "2026-01-03"}} // exactly 7 days old
	oneDayOlder := []HistoryRow{{Date: "2026-01-02"}}     // 8 days old

	assert.False(t, IsStale(exactlyAtWindow, now, window), "exactly max_age_days old must not be stale")
	assert.True(t, IsStale(oneDayOlder, now, window), "one day older than max_age_days must be stale")
}

func TestIsStale_EmptyHistoryIsNotStale(t *testing.T) {
	assert.False(t, IsStale(nil, time.Now(), FreshnessWindow))
}

func TestNormalizeMovers_DirectionFromChangeSign(t *testing.T) {
	raw := []providers.RawMover{
		{Symbol: "tsla", Change: 3.2},
		{Symbol: "nvda", Change: -1.1},
	}
	out := NormalizeMovers("sp500", "volume", raw)
	require.Len(t, out.Movers, 2)
	assert.Equal(t, "up", out.Movers[0].Direction)
	assert.Equal(t, "down", out.Movers[1].Direction)
	assert.Equal(t, "TSLA", out.Movers[0].Symbol)
}
