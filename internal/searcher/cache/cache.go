// Package cache stores search results in Redis keyed by the parsed query, the
// result limit and the corpus generation. Concurrent misses on one key are
// collapsed into a single computation. An optional circuit breaker stops
// the cache from calling an unhealthy store on every query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the key-value backend; *pkgredis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	breaker *resilience.Breaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// WithMetrics mirrors hit and miss counts into m.
func (c *QueryCache) WithMetrics(m *metrics.Metrics) *QueryCache {
	c.metrics = m
	return c
}

// WithBreaker routes every store call through b. A missing key does not
// count as a failure.
func (c *QueryCache) WithBreaker(b *resilience.Breaker) *QueryCache {
	c.breaker = b
	return c
}

// Key identifies a query result. Clause order is kept because evaluation
// folds strictly left to right. The generation changes whenever documents
// are added, so stale results are never served.
func Key(plan *parser.QueryPlan, limit int, generation int) string {
	var b strings.Builder
	for _, cl := range plan.Clauses {
		kind := "w"
		if cl.Kind == parser.KindPhrase {
			kind = "p"
		}
		fmt.Fprintf(&b, "%s:%s:%s;", cl.Op, kind, strings.Join(cl.Terms, " "))
	}
	fmt.Fprintf(&b, "|%s|limit=%d|gen=%d", strings.Join(plan.ScoringTerms, " "), limit, generation)
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	result, ok := c.lookup(ctx, key)
	if ok {
		c.hit()
		c.logger.Debug("cache hit", "key", key)
	} else {
		c.miss()
	}
	return result, ok
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.guard(func() error { return c.store.Set(ctx, key, data, c.ttl) })
	if err != nil {
		c.logFailure("cache set failed", key, err)
	}
}

// GetOrCompute returns the cached result for key, or runs computeFn once
// for all concurrent callers and stores its result. The boolean reports a
// cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	type outcome struct {
		result *executor.SearchResult
		hit    bool
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		// A previous flight may have stored the result since Get missed.
		if result, ok := c.lookup(ctx, key); ok {
			return outcome{result: result, hit: true}, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return outcome{result: result}, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := val.(outcome)
	return out.result, out.hit, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.guard(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.guard(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logFailure("cache get failed", key, err)
		}
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Do(fn, pkgredis.IsNilError)
}

// logFailure keeps an open breaker from flooding the log.
func (c *QueryCache) logFailure(msg, key string, err error) {
	if errors.Is(err, resilience.ErrOpen) {
		c.logger.Debug(msg, "key", key, "error", err)
		return
	}
	c.logger.Error(msg, "key", key, "error", err)
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
