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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/resilience"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMapStore() *mapStore { return &mapStore{data: make(map[string][]byte)} }

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, false, s.fail
	}
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *mapStore) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *mapStore) DeletePattern(_ context.Context, pattern string) (int64, error) {
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

func result(titles ...string) *executor.TopDocs {
	top := &executor.TopDocs{TotalHits: len(titles), Hits: []executor.Hit{}}
	for i, title := range titles {
		top.Hits = append(top.Hits, executor.Hit{DocID: i, Score: 1, Fields: document.New("title", title)})
	}
	return top
}

func TestKeyDependsOnEveryComponent(t *testing.T) {
	base := Key{Generation: 3, Query: "river", K: 10, Sort: "title:string"}
	variants := []Key{
		{Generation: 4, Query: "river", K: 10, Sort: "title:string"},
		{Generation: 3, Query: "rivers", K: 10, Sort: "title:string"},
		{Generation: 3, Query: "river", K: 5, Sort: "title:string"},
		{Generation: 3, Query: "river", K: 10, Sort: ""},
	}
	assert.Equal(t, base.String(), base.String())
	assert.Contains(t, base.String(), "search:g3:")
	for _, v := range variants {
		assert.NotEqual(t, base.String(), v.String(), v)
	}
}

func TestKeysOfDistinctQueriesDiffer(t *testing.T) {
	p := parser.New("body", analysis.Standard())
	parse := func(s string) query.Query {
		q, err := p.Parse(s)
		require.NoError(t, err)
		return q
	}
	key := func(q query.Query, k int, sort *query.Sort) Key {
		return Key{Generation: 1, Query: q.String(), K: k, Sort: sort.String()}
	}
	byTitle := query.NewSort(query.SortField{Field: "title"})
	byTitleDesc := query.NewSort(query.SortField{Field: "title", Reverse: true})

	tests := []struct {
		name string
		a, b Key
	}{
		{"phrase with stop word gap",
			key(parse(`"river india"`), 10, nil), key(parse(`"river in india"`), 10, nil)},
		{"phrase gap width",
			key(&query.Phrase{Field: "body", Terms: []string{"a", "b"}, Positions: []int{0, 2}}, 10, nil),
			key(&query.Phrase{Field: "body", Terms: []string{"a", "b"}, Positions: []int{0, 3}}, 10, nil)},
		{"phrase term vs gap",
			key(&query.Phrase{Field: "body", Terms: []string{"a", "?", "b"}}, 10, nil),
			key(&query.Phrase{Field: "body", Terms: []string{"a", "b"}, Positions: []int{0, 2}}, 10, nil)},
		{"phrase with repeated position",
			key(&query.Phrase{Field: "body", Terms: []string{"a", "b"}, Positions: []int{0, 0}}, 10, nil),
			key(query.NewPhrase("body", "a", "b"), 10, nil)},
		{"literal star term vs prefix",
			key(query.NewTerm("title", "ab*"), 10, nil), key(query.NewPrefix("title", "ab"), 10, nil)},
		{"literal question mark term vs wildcard",
			key(query.NewTerm("title", "a?c"), 10, nil), key(query.NewWildcard("title", "a?c"), 10, nil)},
		{"term with space vs two terms",
			key(query.NewTerm("title", "rio grande"), 10, nil),
			key(&query.Boolean{Should: []query.Query{query.NewTerm("title", "rio"), query.NewTerm("title", "grande")}}, 10, nil)},
		{"boost", key(parse("river^2"), 10, nil), key(parse("river^3"), 10, nil)},
		{"boost vs no boost", key(parse("river^2"), 10, nil), key(parse("river"), 10, nil)},
		{"sort order", key(parse("river"), 10, byTitle), key(parse("river"), 10, byTitleDesc)},
		{"sort vs relevance", key(parse("river"), 10, byTitle), key(parse("river"), 10, nil)},
		{"k", key(parse("river"), 10, nil), key(parse("river"), 11, nil)},
		{"query text cannot spill into k",
			Key{Generation: 1, Query: "river|k=1", K: 0}, Key{Generation: 1, Query: "river", K: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a.String(), tt.b.String(), "%q vs %q", tt.a.Query, tt.b.Query)
		})
	}

	assert.Equal(t, key(parse(`"river in india"`), 10, byTitle).String(),
		key(parse(`"river in india"`), 10, byTitle).String())
}

func TestGetOrComputeCachesResults(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(newMapStore(), time.Minute, logger.Discard(), m)
	key := Key{Generation: 1, Query: "river", K: 10}

	calls := 0
	compute := func(context.Context) (*executor.TopDocs, error) {
		calls++
		return result("Amazon", "Nile"), nil
	}

	got, hit, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, got.TotalHits)

	got, hit, err = c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Nile", got.Hits[1].Fields.Get("title"))
	assert.Equal(t, 1, calls)

	// a new generation misses
	_, hit, err = c.GetOrCompute(ctx, Key{Generation: 2, Query: "river", K: 10}, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := New(newMapStore(), time.Minute, logger.Discard(), nil)
	key := Key{Generation: 1, Query: "river", K: 10}
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(ctx, key, func(context.Context) (*executor.TopDocs, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	got, hit, err := c.GetOrCompute(ctx, key, func(context.Context) (*executor.TopDocs, error) { return result("Nile"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, got.TotalHits)
}

func TestStoreFailureIsAMiss(t *testing.T) {
	store := newMapStore()
	store.fail = errors.New("connection refused")
	c := New(store, time.Minute, logger.Discard(), nil)

	got, hit, err := c.GetOrCompute(context.Background(), Key{Query: "river", K: 1},
		func(context.Context) (*executor.TopDocs, error) { return result("Nile"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, got.TotalHits)
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMapStore(), time.Minute, logger.Discard(), nil)
	key := Key{Generation: 1, Query: "river", K: 10}

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*executor.TopDocs, error) {
		calls.Add(1)
		<-release
		return result("Nile"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the other callers time to join the in-flight computation
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	c := New(store, time.Minute, logger.Discard(), nil)
	key := Key{Generation: 1, Query: "river", K: 10}
	c.Set(ctx, key, result("Nile"))
	store.data["unrelated"] = []byte("x")

	require.NoError(t, c.Invalidate(ctx))
	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
	assert.Contains(t, store.data, "unrelated")
}

func TestGuardedStoreFailsFastWhenOpen(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.fail = errors.New("connection refused")
	breaker := resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		Logger:           logger.Discard(),
	})
	guarded := NewGuardedStore(store, breaker)

	for range 2 {
		_, _, err := guarded.Get(ctx, "k")
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, breaker.State())

	store.fail = nil
	_, _, err := guarded.Get(ctx, "k")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.ErrorIs(t, guarded.Set(ctx, "k", []byte("v"), time.Minute), resilience.ErrCircuitOpen)
	assert.Empty(t, store.data)

	// the cache keeps serving by computing
	c := New(guarded, time.Minute, logger.Discard(), nil)
	got, hit, err := c.GetOrCompute(ctx, Key{Query: "river", K: 1},
		func(context.Context) (*executor.TopDocs, error) { return result("Nile"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, got.TotalHits)
}
