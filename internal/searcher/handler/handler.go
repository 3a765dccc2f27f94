package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
)

type Options struct {
	DefaultLimit int
	MaxResults   int
	// Timeout bounds one search execution. Zero means no limit.
	Timeout      time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

type Handler struct {
	readers      *indexer.ReaderManager
	parser       *parser.Parser
	cache        *cache.QueryCache
	defaultLimit int
	maxResults   int
	timeout      time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query      string         `json:"query"`
	Parsed     string         `json:"parsed"`
	Generation uint64         `json:"generation"`
	TotalHits  int            `json:"total_hits"`
	Hits       []executor.Hit `json:"hits"`
	CacheHit   bool           `json:"cache_hit"`
	TookMs     int64          `json:"took_ms"`
}

// New builds a handler. queryCache may be nil.
func New(readers *indexer.ReaderManager, p *parser.Parser, queryCache *cache.QueryCache, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = max(opts.DefaultLimit, 100)
	}
	return &Handler{
		readers:      readers,
		parser:       p,
		cache:        queryCache,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		timeout:      opts.Timeout,
		logger:       logger.WithComponent(opts.Logger, "search-handler"),
		metrics:      opts.Metrics,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/docs/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/docs/{id}/termvector/{field}", h.TermVector)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	raw := r.URL.Query().Get("q")
	if raw == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, h.maxResults)
	}

	sort, err := query.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	q, err := h.parser.Parse(raw)
	if err != nil {
		h.writeError(w, err)
		return
	}

	reader, release, err := h.readers.Acquire()
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()

	search := func(ctx context.Context) (*executor.TopDocs, error) {
		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}
		return executor.New(reader, h.logger, h.metrics).Search(ctx, q, limit, sort)
	}
	var top *executor.TopDocs
	cacheHit := false
	if h.cache != nil {
		key := cache.Key{Generation: reader.Generation(), Query: q.String(), K: limit, Sort: sort.String()}
		top, cacheHit, err = h.cache.GetOrCompute(ctx, key, search)
	} else {
		top, err = search(ctx)
	}
	if err != nil {
		log.Error("search execution failed", "query", raw, "error", err)
		h.writeError(w, err)
		return
	}
	if cacheHit {
		resultType := "hit"
		if top.TotalHits == 0 {
			resultType = "zero_result"
		}
		h.metrics.Search(resultType, "hit", len(top.Hits), time.Since(start))
	}

	resp := SearchResponse{
		Query:      raw,
		Parsed:     q.String(),
		Generation: reader.Generation(),
		TotalHits:  top.TotalHits,
		Hits:       top.Hits,
		CacheHit:   cacheHit,
		TookMs:     time.Since(start).Milliseconds(),
	}
	log.Info("search completed",
		"query", raw,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Hits),
		"cache_hit", cacheHit,
		"latency_ms", resp.TookMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) docID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid document id %q", r.PathValue("id"))
	}
	return id, nil
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := h.docID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	reader, release, err := h.readers.Acquire()
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()

	doc, err := reader.StoredFields(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":     id,
		"generation": reader.Generation(),
		"fields":     doc.Fields,
	})
}

func (h *Handler) TermVector(w http.ResponseWriter, r *http.Request) {
	id, err := h.docID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	field := r.PathValue("field")
	reader, release, err := h.readers.Acquire()
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()

	tv, err := reader.TermVector(id, field)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"doc_id": id,
		"field":  field,
		"terms":  tv,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	reader, release, err := h.readers.Acquire()
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()

	stats := map[string]any{
		"generation": reader.Generation(),
		"num_docs":   reader.NumDocs(),
		"max_doc":    reader.MaxDoc(),
		"segments":   len(reader.Leaves()),
	}
	if h.cache != nil {
		hits, misses := h.cache.Stats()
		var hitRate float64
		if total := hits + misses; total > 0 {
			hitRate = float64(hits) / float64(total) * 100
		}
		stats["cache"] = map[string]any{
			"hits":     hits,
			"misses":   misses,
			"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		}
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnsupportedOperation, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	body := map[string]any{"error": err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
	}
	var parseErr *apperrors.QueryParseError
	if errors.As(err, &parseErr) {
		body["position"] = parseErr.Pos
	}
	h.writeJSON(w, status, body)
}
