package reports

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// finvizSemaphoreWeight is the ≤3-concurrent bound spec §5 places on
// Finviz scrapes: Finviz has no JSON API, every call is an HTML
// fetch-and-parse (internal/providers.FinvizClient), and it rate-limits
// scrapers aggressively.
const finvizSemaphoreWeight = 3

// BoundedFinvizFetch runs fetch once per symbol in universe, holding at
// most finvizSemaphoreWeight calls in flight at a time. A quote batch for
// the whole universe should go through one unified_market_data call
// instead of per-symbol fetches; this helper is for the per-symbol
// Finviz scrapes a screener-type report still needs (snapshot overview,
// insider activity) once the universe is known.
func BoundedFinvizFetch(ctx context.Context, universe []string, fetch func(ctx context.Context, symbol string) (any, error)) map[string]CollectorResult {
	out := make(map[string]CollectorResult, len(universe))
	if len(universe) == 0 {
		return out
	}

	sem := semaphore.NewWeighted(finvizSemaphoreWeight)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, symbol := range universe {
		symbol := symbol
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			out[symbol] = CollectorResult{Name: symbol, Err: err}
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			data, err := fetch(ctx, symbol)
			mu.Lock()
			out[symbol] = CollectorResult{Name: symbol, Data: data, Err: err}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
