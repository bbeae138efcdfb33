package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textindex/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "textindex:search:"

// Store is the subset of the Redis client the cache uses. A miss must be
// reported with an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache stores search results under a key derived from the normalized
// plan, the limit and the index generation, so a mutation makes every older
// entry unreachable without an explicit purge.
type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.ObserveCache(true)
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.ObserveCache(false)
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves the plan from the cache or runs computeFn once per key
// even under concurrent identical requests. The computed result is stored
// under the generation it actually observed.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.QueryPlan,
	limit int,
	generation uint64,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := Key(plan, limit, generation)
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, Key(plan, limit, result.Generation), result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key hashes the normalized plan with the limit and the index generation.
func Key(plan *parser.QueryPlan, limit int, generation uint64) string {
	raw := fmt.Sprintf("%s:limit=%d:gen=%d", parser.Normalize(plan), limit, generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
