package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the Cache contract with a shared Redis instance, for
// deployments running more than one orchestrator process. Values are
// JSON-encoded; get_or_fetch in-flight dedup is still local to the process
// (Redis itself is not used as a distributed lock here — a single
// orchestrator's workers are the only concurrent callers that matter for
// the idempotency property in spec §8, since two different processes
// racing the same fetch is an acceptable double-computation, not a
// correctness violation).
type RedisCache struct {
	client *redis.Client

	mu      sync.Mutex
	pending map[string]*inflight
}

// NewRedisCache dials addr (host:port) with no auth beyond what's baked
// into the connection options; callers needing auth should construct their
// own *redis.Client and use NewRedisCacheFromClient instead.
func NewRedisCache(addr string) *RedisCache {
	return NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: addr}))
}

// NewRedisCacheFromClient wraps an already-configured client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		pending: make(map[string]*inflight),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (any, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return nil, false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}

func (c *RedisCache) GetOrFetch(ctx context.Context, key string, category Category, fetch FetchFunc) (any, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	c.mu.Lock()
	if p, ok := c.pending[key]; ok {
		c.mu.Unlock()
		<-p.done
		return p.value, p.err
	}
	p := &inflight{done: make(chan struct{})}
	c.pending[key] = p
	c.mu.Unlock()

	value, err := fetch(ctx)

	if err == nil && value != nil {
		c.Set(ctx, key, value, TTLFor(category))
	}

	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()

	p.value, p.err = value, err
	close(p.done)

	return value, err
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
