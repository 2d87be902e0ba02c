// Package cache memoises search results in Redis. Keys are derived from the
// index generation and the canonical form of the parsed query, so a commit
// that changes the index never serves stale results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/resilience"
)

const keyPrefix = "cacm:search:"

// Store is the key-value backend of the cache. *pkgredis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ErrMiss is returned by a Store when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Key identifies one cached result.
type Key struct {
	Index      string
	Generation int64
	Query      string
	Limit      int
	Similarity string
}

func (k Key) String() string {
	raw := k.Index + "\x00" + strconv.FormatInt(k.Generation, 10) + "\x00" +
		k.Query + "\x00" + strconv.Itoa(k.Limit) + "\x00" + k.Similarity
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, k.Index, sum[:16])
}

// QueryCache caches values of type T.
type QueryCache[T any] struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. m may be nil.
func New[T any](store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache[T] {
	return &QueryCache[T]{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("result-cache", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached value of key. Backend errors count as misses.
func (c *QueryCache[T]) Get(ctx context.Context, key Key) (T, bool) {
	var zero T
	k := key.String()
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, k)
		if isMiss(err) {
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		if err != nil {
			c.logger.Warn("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return zero, false
	}
	c.hit()
	return v, true
}

// Set stores v under key. Failures are logged and otherwise ignored.
func (c *QueryCache[T]) Set(ctx context.Context, key Key, v T) {
	k := key.String()
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error { return c.store.Set(ctx, k, data, c.ttl) }); err != nil {
		c.logger.Warn("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached value of key or computes, stores and
// returns it. Concurrent callers with the same key share one computation.
// The boolean reports a cache hit.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, key Key, compute func() (T, error)) (T, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops the cached results of index, or of every index when
// index is empty.
func (c *QueryCache[T]) Invalidate(ctx context.Context, index string) (int64, error) {
	pattern := keyPrefix + "*"
	if index != "" {
		pattern = keyPrefix + index + ":*"
	}
	deleted, err := c.store.FlushByPattern(ctx, pattern)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "pattern", pattern, "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counts since start-up.
func (c *QueryCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Breaker reports the state and counters of the backend circuit breaker.
func (c *QueryCache[T]) Breaker() resilience.Counts {
	return c.breaker.Counts()
}

func (c *QueryCache[T]) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func isMiss(err error) bool {
	return errors.Is(err, ErrMiss) || pkgredis.IsNilError(err)
}
