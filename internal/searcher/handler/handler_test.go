package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
)

type memoryCacheStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memoryCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *memoryCacheStore) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *memoryCacheStore) DeletePattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	clear(s.data)
	return n, nil
}

type fixture struct {
	mux     *http.ServeMux
	idx     *indexer.Index
	writer  *indexer.Writer
	readers *indexer.ReaderManager
}

func setup(t *testing.T, withCache bool) *fixture {
	t.Helper()
	ctx := context.Background()
	schema := document.MustSchema(
		document.StringField("title"),
		document.FieldSpec{Name: "body", Stored: true, Indexed: true, Tokenized: true, StoreTermVectors: true},
		document.StoredField("length"),
	)
	idx, err := indexer.Open(ctx, nil, indexer.Options{Schema: schema, Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	w, err := idx.OpenWriter(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close(context.Background()) })
	for _, d := range []document.Document{
		document.New("title", "Amazon", "body", "Rain forest river", "length", "6400"),
		document.New("title", "Nile", "body", "The longest river", "length", "6650"),
		document.New("title", "Ganges", "body", "River in India", "length", "2525"),
		document.New("title", "Rhine", "body", "Belongs to Europe", "length", "1230"),
	} {
		_, err := w.AddDocument(d)
		require.NoError(t, err)
	}
	require.NoError(t, w.Commit(ctx))

	readers, err := indexer.NewReaderManager(idx)
	require.NoError(t, err)
	t.Cleanup(func() { readers.Close() })

	p := parser.New("body", idx.Analyzer())
	p.Schema = schema
	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&memoryCacheStore{data: map[string][]byte{}}, time.Minute, logger.Discard(), nil)
	}
	h := New(readers, p, qc, Options{DefaultLimit: 10, MaxResults: 3, Logger: logger.Discard()})
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, idx: idx, writer: w, readers: readers}
}

func (f *fixture) get(t *testing.T, target string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func searchTitles(t *testing.T, f *fixture, target string) ([]string, SearchResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	titles := make([]string, len(resp.Hits))
	for i, h := range resp.Hits {
		titles[i] = h.Fields.Get("title")
	}
	return titles, resp
}

func TestSearchEndpoint(t *testing.T) {
	f := setup(t, false)

	titles, resp := searchTitles(t, f, "/api/v1/search?q=river&sort=title")
	assert.Equal(t, []string{"Amazon", "Ganges", "Nile"}, titles)
	assert.Equal(t, 3, resp.TotalHits)
	assert.Equal(t, "body:river", resp.Parsed)
	assert.Equal(t, uint64(1), resp.Generation)

	titles, _ = searchTitles(t, f, "/api/v1/search?q=*:*&sort=-length:numeric&limit=2")
	assert.Equal(t, []string{"Nile", "Amazon"}, titles)

	// limit is capped at MaxResults
	titles, resp = searchTitles(t, f, "/api/v1/search?q=*:*&limit=50")
	assert.Len(t, titles, 3)
	assert.Equal(t, 4, resp.TotalHits)
}

func TestSearchErrors(t *testing.T) {
	f := setup(t, false)
	tests := []struct {
		target string
		status int
	}{
		{"/api/v1/search", http.StatusBadRequest},
		{"/api/v1/search?q=river&limit=0", http.StatusBadRequest},
		{"/api/v1/search?q=river&limit=abc", http.StatusBadRequest},
		{"/api/v1/search?q=river&sort=title:bogus", http.StatusBadRequest},
		{"/api/v1/search?q=%22river", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			code, body := f.get(t, tt.target)
			assert.Equal(t, tt.status, code)
			assert.NotEmpty(t, body["error"])
		})
	}

	_, body := f.get(t, "/api/v1/search?q=%22river")
	assert.Equal(t, 0.0, body["position"])
}

func TestSearchUsesCacheUntilNextGeneration(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)

	_, first := searchTitles(t, f, "/api/v1/search?q=river")
	assert.False(t, first.CacheHit)
	_, second := searchTitles(t, f, "/api/v1/search?q=RIVER")
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TotalHits, second.TotalHits)

	_, err := f.writer.AddDocument(document.New("title", "Danube", "body", "River through Vienna"))
	require.NoError(t, err)
	require.NoError(t, f.writer.Commit(ctx))
	changed, err := f.readers.MaybeRefresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	_, third := searchTitles(t, f, "/api/v1/search?q=river")
	assert.False(t, third.CacheHit)
	assert.Equal(t, 4, third.TotalHits)
	assert.Equal(t, uint64(2), third.Generation)

	code, body := f.get(t, "/api/v1/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5.0, body["num_docs"])
	assert.Contains(t, body, "cache")

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, fourth := searchTitles(t, f, "/api/v1/search?q=river")
	assert.False(t, fourth.CacheHit)
}

func TestDocumentEndpoints(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	code, body := f.get(t, "/api/v1/docs/1")
	assert.Equal(t, http.StatusOK, code)
	fields := body["fields"].([]any)
	assert.Equal(t, map[string]any{"name": "title", "value": "Nile"}, fields[0])

	code, body = f.get(t, "/api/v1/docs/2/termvector/body")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["terms"], 2)

	code, _ = f.get(t, "/api/v1/docs/2/termvector/title")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = f.get(t, "/api/v1/docs/2/termvector/country")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.get(t, "/api/v1/docs/99")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.get(t, "/api/v1/docs/abc")
	assert.Equal(t, http.StatusBadRequest, code)

	_, err := f.writer.DeleteTerm(ctx, "title", "Nile")
	require.NoError(t, err)
	require.NoError(t, f.writer.Commit(ctx))
	_, err = f.readers.MaybeRefresh(ctx)
	require.NoError(t, err)
	code, _ = f.get(t, "/api/v1/docs/1")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCacheInvalidateWithoutCache(t *testing.T) {
	f := setup(t, false)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClosedReaderManagerIsUnavailable(t *testing.T) {
	f := setup(t, false)
	require.NoError(t, f.readers.Close())
	code, _ := f.get(t, "/api/v1/stats")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
