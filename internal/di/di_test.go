package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/config"
)

// testConfig builds a minimal config pointed at scratch sqlite files under
// t.TempDir, with every network-backed collaborator left disabled
// (no S3 bucket, memory cache) so Wire can run offline.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		HTTPPort:               "0",
		LogLevel:               "error",
		MarketDataProvider:     "auto",
		AnthropicAPIKey:        "test-key",
		AnthropicModel:         "claude-opus-4-20250514",
		DBDriver:               "sqlite",
		DBDSN:                  "file:" + filepath.Join(dir, "orchestrator.db"),
		CacheBackend:           "memory",
		ReportFanoutTimeoutSec: 25,
		RecursionLimit:         10,
	}
}

func TestWireAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	log := zerolog.Nop()

	c, err := Wire(context.Background(), cfg, log)
	require.NoError(t, err)
	require.NotNil(t, c.Store)
	require.NotNil(t, c.Cache)
	require.NotNil(t, c.Ring)
	require.Nil(t, c.Archive) // no S3 bucket configured
	require.NotNil(t, c.Reports)
	require.NotNil(t, c.TradeGate)
	require.NotNil(t, c.Server)
	require.NotNil(t, c.Cron)

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestWireRejectsMalformedPostgresDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBDriver = "pgx"
	cfg.DBDSN = "://not-a-valid-dsn"

	_, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}
