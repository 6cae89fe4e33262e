package aml

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"custos/pkg/domain"
)

var cacheGetDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "custos_aml_blacklist_cache_get_duration_ms",
	Help:    "Latency of blacklist cache reads in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const blacklistKeyPrefix = "aml:blacklist:"

// RedisBlacklistCache caches screening answers in Redis so transfer checks
// across instances share one view. Both listed and clear answers are
// cached; mutations write through, and the TTL bounds how long a stale
// answer can survive an out-of-band database change.
type RedisBlacklistCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBlacklistCache constructs the cache. The client lifecycle is
// managed externally.
func NewRedisBlacklistCache(client *redis.Client, ttl time.Duration) *RedisBlacklistCache {
	return &RedisBlacklistCache{client: client, ttl: ttl}
}

func (c *RedisBlacklistCache) Get(ctx context.Context, userID domain.UserID) (bool, bool, error) {
	start := time.Now()
	defer func() {
		cacheGetDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	value, err := c.client.Get(ctx, blacklistKeyPrefix+userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return value == "1", true, nil
}

func (c *RedisBlacklistCache) Set(ctx context.Context, userID domain.UserID, listed bool) error {
	value := "0"
	if listed {
		value = "1"
	}
	return c.client.Set(ctx, blacklistKeyPrefix+userID.String(), value, c.ttl).Err()
}
