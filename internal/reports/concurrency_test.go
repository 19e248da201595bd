package reports

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedFinvizFetch_NeverExceedsThreeConcurrent(t *testing.T) {
	var inFlight int32
	var maxSeen int32

	fetch := func(ctx context.Context, symbol string) (any, error) {
		current := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			seen := atomic.LoadInt32(&maxSeen)
			if current <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return symbol, nil
	}

	universe := []string{"AAPL", "MSFT", "GOOG", "AMZN", "NVDA", "META", "TSLA", "AMD"}
	results := BoundedFinvizFetch(context.Background(), universe, fetch)

	require.Len(t, results, len(universe))
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), finvizSemaphoreWeight)
}

func TestBoundedFinvizFetch_PropagatesPerSymbolErrors(t *testing.T) {
	fetch := func(ctx context.Context, symbol string) (any, error) {
		if symbol == "BADCO" {
			return nil, errors.New("scrape failed")
		}
		return symbol, nil
	}
	results := BoundedFinvizFetch(context.Background(), []string{"AAPL", "BADCO"}, fetch)
	assert.NoError(t, results["AAPL"].Err)
	assert.Error(t, results["BADCO"].Err)
}

func TestBoundedFinvizFetch_EmptyUniverseReturnsEmptyMap(t *testing.T) {
	results := BoundedFinvizFetch(context.Background(), nil, func(context.Context, string) (any, error) { return nil, nil })
	assert.Empty(t, results)
}
