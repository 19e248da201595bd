package reports

import (
	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/providers"
)

// Deps bundles every provider client a Plugin might need. cmd/server's DI
// wiring constructs one Deps and hands it to every plugin constructor, the
// way the teacher's specialists each take the handful of clients they use
// directly rather than one god-object.
type Deps struct {
	MD     *marketdata.Service
	Finviz *providers.FinvizClient
	FRED   *providers.FREDClient
	Tavily *providers.TavilyClient
	Reddit *providers.RedditClient
	News   *providers.NewsFeedClient
}
