// Package di wires every package in this module into one running
// process: persistence, provider clients, the agent graph, the report
// orchestrator, the streaming runner, and the HTTP server, grounded on
// the teacher's internal/di Container/Wire convention (construct
// everything once at process start, hand the container to the things
// that need it, tear it down in reverse order on shutdown).
package di

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/archive"
	"github.com/finresearch/orchestrator/internal/cache"
	"github.com/finresearch/orchestrator/internal/config"
	"github.com/finresearch/orchestrator/internal/events"
	"github.com/finresearch/orchestrator/internal/llm"
	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/memory"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/server"
	"github.com/finresearch/orchestrator/internal/store"
	"github.com/finresearch/orchestrator/internal/stream"
	"github.com/finresearch/orchestrator/internal/tools"
	"github.com/finresearch/orchestrator/internal/tradecontrols"
)

// Container holds every process-wide singleton (spec §5: "cache, memory
// manager ... process-global singletons initialized once").
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	Store   store.Store
	pgPool  pgxPoolCloser // non-nil only when Config.DBDriver == "pgx"; closed after Store on Shutdown
	Cache   cache.Cache
	Ring    *events.Ring
	Archive *archive.Client // nil when archival is not configured

	Schwab *providers.SchwabClient
	Alpaca *providers.AlpacaClient
	FRED   *providers.FREDClient
	Finviz *providers.FinvizClient
	Reddit *providers.RedditClient
	News   *providers.NewsFeedClient
	Tavily *providers.TavilyClient

	MarketData *marketdata.Service
	LLM        llm.Client
	Memory     *memory.Manager
	ToolsValidator *tools.Validator

	TradeGate *tradecontrols.Gate
	Reports   *reports.Orchestrator
	Plugins   reports.Registry
	Runner    *stream.Runner

	Server *server.Server
	Cron   *CronScheduler

	startedAt time.Time
}

// Shutdown tears down the container's collaborators in reverse
// construction order: HTTP server and cron first (so nothing is still
// producing work), then the stores that back them.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Cron != nil {
		c.Cron.Stop()
	}
	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			return err
		}
	}
	if c.pgPool != nil {
		c.pgPool.Close()
	}
	return nil
}

// pgxPoolCloser is the one method of *pgxpool.Pool this package needs,
// named locally so types.go doesn't have to import pgxpool just for a
// field type.
type pgxPoolCloser interface {
	Close()
}
