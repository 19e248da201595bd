package di

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/aggregator"
	"github.com/finresearch/orchestrator/internal/agents"
	"github.com/finresearch/orchestrator/internal/archive"
	"github.com/finresearch/orchestrator/internal/cache"
	"github.com/finresearch/orchestrator/internal/config"
	"github.com/finresearch/orchestrator/internal/events"
	"github.com/finresearch/orchestrator/internal/llm"
	"github.com/finresearch/orchestrator/internal/marketdata"
	"github.com/finresearch/orchestrator/internal/memory"
	"github.com/finresearch/orchestrator/internal/planner"
	"github.com/finresearch/orchestrator/internal/providers"
	"github.com/finresearch/orchestrator/internal/reports"
	"github.com/finresearch/orchestrator/internal/reports/plugins"
	"github.com/finresearch/orchestrator/internal/scheduler"
	"github.com/finresearch/orchestrator/internal/server"
	"github.com/finresearch/orchestrator/internal/stream"
	"github.com/finresearch/orchestrator/internal/tools"
	"github.com/finresearch/orchestrator/internal/tradecontrols"
)

// Wire constructs every collaborator the process needs and returns a
// ready-to-serve Container, following the teacher's Wire() step order:
// persistence, then provider clients, then the agent/report graph, then
// the HTTP surface and background jobs. Any failure tears down whatever
// was already opened before returning.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	st, pool, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Store = st
	c.pgPool = pool

	archiveClient, err := archive.New(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey, log)
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("di: constructing archive client: %w", err)
	}
	c.Archive = archiveClient

	var sink events.AuditSink
	if c.Archive != nil {
		sink = c.Archive
	}
	c.Ring = events.NewRing(1000, sink)

	if cfg.CacheBackend == "redis" {
		c.Cache = cache.NewRedisCache(cfg.RedisAddr)
	} else {
		c.Cache = cache.NewMemoryCache()
	}

	c.Schwab = providers.NewSchwabClient("market", cfg.SchwabRefreshToken, c.Ring, log)
	c.Alpaca = providers.NewAlpacaClient("market", cfg.AlpacaKeyID, cfg.AlpacaSecret, c.Ring, log)
	c.FRED = providers.NewFREDClient("market", cfg.FREDAPIKey, c.Ring, log)
	c.Finviz = providers.NewFinvizClient("market", c.Ring, log)
	c.Reddit = providers.NewRedditClient("market", cfg.RedditClientID, cfg.RedditClientSecret, c.Ring, log)
	c.News = providers.NewNewsFeedClient("market", c.Ring, log)
	c.Tavily = providers.NewTavilyClient("market", cfg.TavilyAPIKey, c.Ring, log)

	c.MarketData = marketdata.NewService(orderedSources(cfg, c.Schwab, c.Alpaca))

	llmClient, err := llm.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, 4096)
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("di: constructing LLM client: %w", err)
	}
	c.LLM = llmClient

	vectorDB, err := sql.Open("sqlite", "file:data/memory_vectors.db?_pragma=busy_timeout(5000)")
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("di: opening memory vector database: %w", err)
	}
	vectorStore, err := memory.NewSQLiteVectorStore(vectorDB)
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("di: migrating memory vector database: %w", err)
	}
	c.Memory = memory.NewManager(memory.NewHashedEmbedder(), vectorStore)

	validator, err := tools.NewValidator()
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("di: compiling tool contracts: %w", err)
	}
	c.ToolsValidator = validator

	specialists := []agents.Specialist{
		agents.NewMarketDataAgent(c.MarketData, c.LLM),
		agents.NewFundamentalsAgent(c.Finviz, c.LLM),
		agents.NewMacroAgent(c.FRED, c.LLM),
		agents.NewSentimentAgent(c.Reddit, c.News, c.Finviz, cfg.NewsFeedURL),
		agents.NewTechnicalAnalysisAgent(c.MarketData),
		agents.NewAdvisorAgent(c.MarketData, c.LLM),
	}

	plannerComponent := planner.New(c.LLM, c.Memory)
	schedulerComponent := scheduler.New(specialists, cfg.RecursionLimit)
	aggregatorComponent := aggregator.New(c.Memory, log)

	c.Plugins = plugins.NewRegistry(reports.Deps{
		MD:     c.MarketData,
		Finviz: c.Finviz,
		FRED:   c.FRED,
		Tavily: c.Tavily,
		Reddit: c.Reddit,
		News:   c.News,
	})
	c.Reports = reports.NewOrchestrator(c.Plugins, c.Store, c.Store, c.Store)

	c.TradeGate = tradecontrols.New(c.Store, cfg.EnableLiveTrading, cfg.TradeHITLSharedSecret)

	c.Runner = &stream.Runner{
		Planner:    plannerComponent,
		Scheduler:  schedulerComponent,
		Aggregator: aggregatorComponent,
		Reports:    c.Reports,
	}

	c.Server = server.New(server.Config{
		Log:                log,
		Port:               mustAtoi(cfg.HTTPPort),
		DevMode:            cfg.DevMode,
		AllowedCORSOrigins: cfg.AllowedCORSOrigins,
		Runner:             c.Runner,
		Reports:            c.Reports,
		Plugins:            c.Plugins,
		Overrides:          c.Store,
		TradeGate:          c.TradeGate,
	})

	c.Cron = newCronScheduler(log)
	registerJobs(c.Cron, c)
	c.Cron.Start()

	log.Info().Msg("dependency wiring complete")
	return c, nil
}

// orderedSources applies cfg.MarketDataProvider's ordering policy (spec
// §4.4 step 1) to the two concrete Source adapters.
func orderedSources(cfg *config.Config, schwab *providers.SchwabClient, alpaca *providers.AlpacaClient) []marketdata.Source {
	schwabSrc := marketdata.SchwabSource{Client: schwab}
	alpacaSrc := marketdata.AlpacaSource{Client: alpaca}

	switch cfg.MarketDataProvider {
	case "schwab":
		return []marketdata.Source{schwabSrc}
	case "alpaca":
		return []marketdata.Source{alpacaSrc}
	default:
		return []marketdata.Source{schwabSrc, alpacaSrc}
	}
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n == 0 {
		return 8080
	}
	return n
}
