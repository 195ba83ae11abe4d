package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// BarCache keeps recently fetched bar ranges warm in Redis so repeated
// backtests over the same window skip the provider entirely. Keys carry the
// symbol and the requested range; entries expire after the configured TTL.
type BarCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   int64
	misses int64
}

// NewBarCache builds a cache over an existing Redis client.
func NewBarCache(client *redis.Client, prefix string, ttl time.Duration) *BarCache {
	if prefix == "" {
		prefix = "meanrev:bars"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BarCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *BarCache) key(symbol string, from, to time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%d", c.prefix, symbol, from.UnixMilli(), to.UnixMilli())
}

// Get returns the cached bars for the range, or ok=false on a miss. Cache
// failures degrade to misses; the caller falls through to the provider.
func (c *BarCache) Get(ctx context.Context, symbol string, from, to time.Time) ([]Bar, bool) {
	payload, err := c.client.Get(ctx, c.key(symbol, from, to)).Bytes()
	if err != nil {
		c.misses++
		return nil, false
	}

	var bars []Bar
	if err := json.Unmarshal(payload, &bars); err != nil {
		c.misses++
		return nil, false
	}
	c.hits++
	return bars, true
}

// Put stores bars for the range with the cache TTL.
func (c *BarCache) Put(ctx context.Context, symbol string, from, to time.Time, bars []Bar) error {
	payload, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}
	if err := c.client.Set(ctx, c.key(symbol, from, to), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache bars: %w", err)
	}
	return nil
}

// HitRate returns the observed cache hit ratio.
func (c *BarCache) HitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
