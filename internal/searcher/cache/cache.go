// Package cache memoizes search results in Redis. Keys embed the index
// generation, so a commit naturally retires every older entry; concurrent
// identical misses are collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the byte-level backend of the cache.
type Store interface {
	// Get reports ok=false for a missing key.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// RedisStore adapts a Redis client to Store.
type RedisStore struct {
	client *pkgredis.Client
}

func NewRedisStore(client *pkgredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.GetBytes(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, data, ttl)
}

func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	return s.client.FlushByPattern(ctx, pattern)
}

// GuardedStore puts a circuit breaker in front of a Store. While the
// breaker is open every call fails fast with resilience.ErrCircuitOpen,
// which QueryCache treats like any other backend failure.
type GuardedStore struct {
	store   Store
	breaker *resilience.CircuitBreaker
}

func NewGuardedStore(store Store, breaker *resilience.CircuitBreaker) *GuardedStore {
	return &GuardedStore{store: store, breaker: breaker}
}

func (s *GuardedStore) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	err = s.breaker.Execute(func() error {
		var getErr error
		data, ok, getErr = s.store.Get(ctx, key)
		return getErr
	})
	return data, ok, err
}

func (s *GuardedStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.breaker.Execute(func() error {
		return s.store.Set(ctx, key, data, ttl)
	})
}

func (s *GuardedStore) DeletePattern(ctx context.Context, pattern string) (n int64, err error) {
	err = s.breaker.Execute(func() error {
		var delErr error
		n, delErr = s.store.DeletePattern(ctx, pattern)
		return delErr
	})
	return n, err
}

// Key identifies one search: the same query against the same generation
// with the same k and sort always yields the same result. Query is the
// query's String form, which renders distinct queries distinctly.
type Key struct {
	Generation uint64
	Query      string
	K          int
	Sort       string
}

func (k Key) String() string {
	raw := fmt.Sprintf("%d:%s|k=%d|%d:%s", len(k.Query), k.Query, k.K, len(k.Sort), k.Sort)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sg%d:%x", keyPrefix, k.Generation, hash[:16])
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *QueryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		logger:  logger.With("component", "query-cache"),
		metrics: m,
	}
}

// Get returns the cached result for key. Backend failures count as misses.
func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.TopDocs, bool) {
	k := key.String()
	data, ok, err := c.store.Get(ctx, k)
	if err != nil {
		c.logger.Error("cache get failed", "key", k, "error", err)
	}
	if !ok {
		c.miss()
		return nil, false
	}
	var result executor.TopDocs
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Debug("cache hit", "query", key.Query, "generation", key.Generation)
	return &result, true
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.TopDocs) {
	k := key.String()
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.store.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once for all
// concurrent callers with the same key. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	compute func(ctx context.Context) (*executor.TopDocs, error),
) (*executor.TopDocs, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.TopDocs), false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.DeletePattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
