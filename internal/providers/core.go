// Package providers implements the typed adapters over Schwab, Alpaca,
// FRED, Finviz, Reddit, and Tavily named in spec §4.3, sharing one
// retry/backoff/observability core so the cross-cutting behavior isn't
// reimplemented six times. The request-queue/rate-limit shape is modeled
// on the teacher's Tradernet SDK client
// (_examples/aristath-sentinel/internal/clients/tradernet/sdk), generalized
// from one provider to the shared core every client embeds.
package providers

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
)

// RetryableStatus reports whether an HTTP status code is retriable per
// spec §4.3: 429, 502, 503, 504.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Config tunes the shared retry/timeout behavior for one provider client.
type Config struct {
	MaxRetries     int
	BaseDelay      time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig mirrors the teacher's conservative defaults: few retries,
// short base delay, generous per-attempt timeout.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      250 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
	}
}

// backoff computes the exponential-with-jitter delay for spec §4.3:
// delay = b * 2^(attempt-1) + rand[0, 0.1).
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := 1 << uint(attempt-1)
	jitter := time.Duration(rand.Float64() * 0.1 * float64(time.Second))
	return base*time.Duration(factor) + jitter
}

// AttemptResult is what a single attempt reports back to Core.Do so it can
// decide whether to retry and what to record in the observability ring.
type AttemptResult struct {
	Status  int // HTTP-equivalent status; 0 if not applicable
	Err     error
	Retry   bool // true if this specific error/status should be retried regardless of Status
	Refresh bool // true if this was an auth failure that warrants a token refresh+retry
}

// AttemptFunc performs one provider call. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) (result any, ar AttemptResult)

// RefreshFunc refreshes an OAuth token. Called at most once per Do call.
type RefreshFunc func(ctx context.Context) error

// Core is the shared cross-cutting behavior embedded by every typed
// provider client: retries, backoff, per-attempt timeout, single
// refresh-then-retry on auth failure, and observability.
type Core struct {
	App      string // "market" or "trader" — multi-app isolation tag
	Provider string
	Cfg      Config
	Ring     *events.Ring
	Log      zerolog.Logger
}

// NewCore builds a Core for one provider/app pair.
func NewCore(app, provider string, cfg Config, ring *events.Ring, log zerolog.Logger) *Core {
	return &Core{
		App:      app,
		Provider: provider,
		Cfg:      cfg,
		Ring:     ring,
		Log:      log.With().Str("provider", provider).Str("app", app).Logger(),
	}
}

// ErrUnavailable is returned when retries are exhausted or the refresh
// path fails — spec §7's ProviderUnavailable condition.
var ErrUnavailable = errors.New("providers: unavailable after retries")

// Do runs fn with retry/backoff, emitting one BrokerEvent per attempt.
// refresh (optional) is invoked once if an attempt reports Refresh=true,
// then the same attempt is retried once more before falling through to the
// normal retry loop.
func (c *Core) Do(ctx context.Context, endpoint, method string, requestID string, fn AttemptFunc, refresh RefreshFunc) (any, error) {
	refreshed := false

	for attempt := 1; attempt <= c.Cfg.MaxRetries+1; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.Cfg.RequestTimeout)
		start := time.Now()
		result, ar := fn(attemptCtx, attempt)
		cancel()
		latency := time.Since(start)

		success := ar.Err == nil && (ar.Status == 0 || ar.Status < 400)
		c.emit(endpoint, method, requestID, attempt, ar.Status, latency, success, ar.Err)

		if success {
			return result, nil
		}

		if ar.Refresh && !refreshed && refresh != nil {
			refreshed = true
			if err := refresh(ctx); err != nil {
				c.Log.Warn().Err(err).Msg("token refresh failed")
				return nil, ErrUnavailable
			}
			attempt--
			continue // retry the same attempt slot immediately after refresh
		}

		retriable := ar.Retry || RetryableStatus(ar.Status) || isTransport(ar.Err)
		if !retriable || attempt == c.Cfg.MaxRetries+1 {
			if ar.Err != nil {
				return nil, ar.Err
			}
			return nil, ErrUnavailable
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff(c.Cfg.BaseDelay, attempt)):
		}
	}

	return nil, ErrUnavailable
}

func (c *Core) emit(endpoint, method, requestID string, attempt, status int, latency time.Duration, success bool, err error) {
	if c.Ring == nil {
		return
	}
	ev := events.BrokerEvent{
		Timestamp: time.Now(),
		App:       c.App,
		Provider:  c.Provider,
		Endpoint:  endpoint,
		Method:    method,
		Status:    status,
		Attempt:   attempt,
		LatencyMS: latency.Milliseconds(),
		Success:   success,
		RequestID: requestID,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.Ring.Append(ev)
}

func isTransport(err error) bool {
	if err == nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
