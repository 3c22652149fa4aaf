package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErrs int
	gets    int
	// missFirst answers that many Gets with redis.Nil, like an entry
	// written by another caller between two reads.
	missFirst int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.gets <= s.missFirst {
		return nil, redis.Nil
	}
	v, ok := s.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:     "cat",
		TotalHits: 2,
		Results: []ranker.ScoredDoc{
			{DocID: 1, Name: "b.txt", Score: 0.2027},
			{DocID: 0, Name: "a.txt", Score: 0.1352},
		},
		Terms: []string{"cat"},
	}
}

func TestKeyDependsOnPlanLimitAndGeneration(t *testing.T) {
	base := Key(parser.Parse("cat AND dog"), 10, 3)
	assert.Equal(t, base, Key(parser.Parse("Cat   and DOG!"), 10, 3), "normalised forms share a key")
	assert.NotEqual(t, base, Key(parser.Parse("dog AND cat"), 10, 3))
	assert.NotEqual(t, base, Key(parser.Parse("cat OR dog"), 10, 3))
	assert.NotEqual(t, base, Key(parser.Parse(`"cat dog"`), 10, 3))
	assert.NotEqual(t, base, Key(parser.Parse("cat AND dog"), 5, 3))
	assert.NotEqual(t, base, Key(parser.Parse("cat AND dog"), 10, 4))
	assert.Contains(t, base, keyPrefix)
}

func TestGetMissThenHit(t *testing.T) {
	store := newMemoryStore()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	c := New(store, time.Minute).WithMetrics(m)
	ctx := context.Background()

	_, ok := c.Get(ctx, "search:k")
	assert.False(t, ok)

	c.Set(ctx, "search:k", sampleResult())
	got, ok := c.Get(ctx, "search:k")
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)
	assert.Equal(t, time.Minute, store.ttls["search:k"])

	hits, misses := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestStoreErrorIsMiss(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	c := New(store, 0)
	_, ok := c.Get(context.Background(), "search:k")
	assert.False(t, ok)
}

func TestBreakerSkipsFailingStore(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	c := New(store, 0).WithBreaker(breaker)
	ctx := context.Background()

	for range 5 {
		_, ok := c.Get(ctx, "search:k")
		assert.False(t, ok)
	}
	assert.Equal(t, 2, store.gets)
	assert.Equal(t, resilience.StateOpen, breaker.State())
	assert.ErrorIs(t, c.Invalidate(ctx), resilience.ErrOpen)
}

func TestBreakerIgnoresMisses(t *testing.T) {
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 1})
	c := New(newMemoryStore(), 0).WithBreaker(breaker)
	for range 3 {
		_, ok := c.Get(context.Background(), "search:absent")
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateClosed, breaker.State())
}

func TestCorruptEntryIsMiss(t *testing.T) {
	store := newMemoryStore()
	store.data["search:k"] = []byte("{not json")
	c := New(store, 0)
	_, ok := c.Get(context.Background(), "search:k")
	assert.False(t, ok)
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemoryStore(), time.Minute)
	ctx := context.Background()
	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return sampleResult(), nil
	}

	res, hit, err := c.GetOrCompute(ctx, "search:k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, res.TotalHits)

	res, hit, err = c.GetOrCompute(ctx, "search:k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeReportsLateHit(t *testing.T) {
	store := newMemoryStore()
	c := New(store, time.Minute)
	ctx := context.Background()
	c.Set(ctx, "search:k", sampleResult())
	store.missFirst = 1

	res, hit, err := c.GetOrCompute(ctx, "search:k", func() (*executor.SearchResult, error) {
		t.Fatal("computed a stored result")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, 2, store.gets)
}

func TestGetOrComputeError(t *testing.T) {
	store := newMemoryStore()
	c := New(store, time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "search:k", func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemoryStore(), time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return sampleResult(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), "search:k", compute)
			assert.NoError(t, err)
			assert.Equal(t, 2, res.TotalHits)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestInvalidate(t *testing.T) {
	store := newMemoryStore()
	store.data["other:k"] = []byte("x")
	c := New(store, 0)
	ctx := context.Background()
	c.Set(ctx, "search:a", sampleResult())
	c.Set(ctx, "search:b", sampleResult())

	require.NoError(t, c.Invalidate(ctx))
	assert.Len(t, store.data, 1)
	_, ok := store.data["other:k"]
	assert.True(t, ok)
}
