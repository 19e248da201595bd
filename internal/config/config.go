// Package config loads process configuration from the environment.
//
// Load order mirrors the teacher's convention: a .env file (if present) is
// loaded first, then process environment variables fill in defaults. There
// is no settings-database override tier in this system — all configuration
// is environment-driven.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every knob the orchestrator needs at process start.
type Config struct {
	HTTPPort string
	LogLevel string
	DevMode  bool

	// Provider credentials (§4.3). OAuth providers (Schwab) also carry a
	// refresh token path; API-key providers (FRED, Finviz is keyless,
	// Tavily, Alpaca, Reddit) just need a key/secret pair.
	SchwabClientID     string
	SchwabClientSecret string
	SchwabRefreshToken string
	AlpacaKeyID        string
	AlpacaSecret       string
	FREDAPIKey         string
	RedditClientID     string
	RedditClientSecret string
	TavilyAPIKey       string
	NewsFeedURL        string

	MarketDataProvider string // auto | schwab | alpaca

	// LLM client (§22).
	AnthropicAPIKey string
	AnthropicModel  string

	// Persistence.
	DBDriver string // sqlite | pgx
	DBDSN    string

	// Cache backend (§27).
	CacheBackend string // memory | redis
	RedisAddr    string

	// Vector store (§4.6a).
	VectorStoreHost string
	VectorStorePort int

	// Object archive (§19).
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	AllowedCORSOrigins []string

	EnableLiveTrading      bool
	TradeHITLSharedSecret  string
	ReportFanoutTimeoutSec int
	RecursionLimit         int
}

// Load reads configuration from a .env file (if present) and the process
// environment, applying sensible defaults for everything optional.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DevMode:                getBool("DEV_MODE", false),
		SchwabClientID:         getEnv("SCHWAB_CLIENT_ID", ""),
		SchwabClientSecret:     getEnv("SCHWAB_CLIENT_SECRET", ""),
		SchwabRefreshToken:     getEnv("SCHWAB_REFRESH_TOKEN", ""),
		AlpacaKeyID:            getEnv("ALPACA_KEY_ID", ""),
		AlpacaSecret:           getEnv("ALPACA_SECRET", ""),
		FREDAPIKey:             getEnv("FRED_API_KEY", ""),
		RedditClientID:         getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret:     getEnv("REDDIT_CLIENT_SECRET", ""),
		TavilyAPIKey:           getEnv("TAVILY_API_KEY", ""),
		NewsFeedURL:            getEnv("NEWS_FEED_URL", "https://news.google.com/rss/search?q=stock+market&hl=en-US&gl=US&ceid=US:en"),
		MarketDataProvider:     getEnv("MARKET_DATA_PROVIDER", "auto"),
		AnthropicAPIKey:        getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:         getEnv("ANTHROPIC_MODEL", "claude-opus-4-20250514"),
		DBDriver:                getEnv("DB_DRIVER", "sqlite"),
		DBDSN:                   getEnv("DB_DSN", "file:data/orchestrator.db?_pragma=busy_timeout(5000)"),
		CacheBackend:            getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		VectorStoreHost:         getEnv("VECTOR_STORE_HOST", "localhost"),
		VectorStorePort:         getInt("VECTOR_STORE_PORT", 6333),
		S3Bucket:                getEnv("S3_BUCKET", ""),
		S3Region:                getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:           getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:       getEnv("S3_SECRET_ACCESS_KEY", ""),
		AllowedCORSOrigins:      getList("ALLOWED_CORS_ORIGINS", []string{"*"}),
		EnableLiveTrading:       getBool("ENABLE_LIVE_TRADING", false),
		TradeHITLSharedSecret:   getEnv("TRADE_HITL_SHARED_SECRET", ""),
		ReportFanoutTimeoutSec:  getInt("REPORT_FANOUT_TIMEOUT_SEC", 25),
		RecursionLimit:          getInt("SCHEDULER_RECURSION_LIMIT", 25),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.MarketDataProvider {
	case "auto", "schwab", "alpaca":
	default:
		return fmt.Errorf("invalid MARKET_DATA_PROVIDER %q", c.MarketDataProvider)
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "pgx" {
		return fmt.Errorf("invalid DB_DRIVER %q", c.DBDriver)
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		return fmt.Errorf("invalid CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDR")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
