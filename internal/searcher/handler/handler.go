package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/tracing"
)

// Options carries the optional collaborators of a Handler. Any of them may
// be nil.
type Options struct {
	Cache      *cache.QueryCache
	Collector  *analytics.Collector
	Aggregator *analytics.Aggregator
	Metrics    *metrics.Metrics
}

type Handler struct {
	engine       *indexer.Engine
	executor     *executor.Executor
	opts         Options
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(engine *indexer.Engine, exec *executor.Executor, cfg config.SearchConfig, opts Options) *Handler {
	return &Handler{
		engine:       engine,
		executor:     exec,
		opts:         opts,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents", h.Documents)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if h.opts.Aggregator != nil {
		mux.Handle("GET /api/v1/analytics", h.opts.Aggregator)
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log, slog.LevelDebug)
	}()

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}

	_, parseSpan := tracing.Start(ctx, "parse")
	plan := h.executor.Parse(query)
	parseSpan.Set("clauses", len(plan.Clauses))
	parseSpan.End()
	if plan.Empty() {
		h.observe("zero_result", "skipped", 0, start)
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   query,
			Results: []ranker.ScoredDoc{},
			Terms:   plan.ScoringTerms,
		})
		return
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false
	cacheStatus := "disabled"

	if h.opts.Cache != nil {
		key := cache.Key(plan, limit, h.engine.DocCount())
		result, cacheHit, err = h.opts.Cache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
			h.engine.RecordHits(resultIDs(result)...)
		}
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}
	span.Set("cache", cacheStatus)

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.observe("error", cacheStatus, 0, start)
		status := apperrors.HTTPStatusCode(err)
		h.writeError(w, status, http.StatusText(status))
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	resultType := cacheStatus
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.observe(resultType, cacheStatus, len(result.Results), start)

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.track(r, result, cacheHit, latencyMs)

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	docs := h.engine.Documents()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(docs),
		"documents": docs,
	})
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		err = fmt.Errorf("document id %q: %w", r.PathValue("id"), apperrors.ErrInvalidInput)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	doc, ok := h.engine.Document(id)
	if !ok {
		err = fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	size := h.engine.Size()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":        h.engine.DocCount(),
		"terms":            h.engine.Terms(),
		"index_size_bytes": size,
		"index_size":       humanize.Bytes(uint64(size)),
		"full":             h.engine.Full(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.opts.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.opts.Cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observe(resultType, cacheStatus string, returned int, start time.Time) {
	m := h.opts.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if resultType != "error" {
		m.SearchResultsCount.Observe(float64(returned))
	}
}

func (h *Handler) track(r *http.Request, result *executor.SearchResult, cacheHit bool, latencyMs int64) {
	if h.opts.Collector == nil && h.opts.Aggregator == nil {
		return
	}
	eventType := analytics.EventSearch
	switch {
	case result.TotalHits == 0:
		eventType = analytics.EventZeroResult
	case cacheHit:
		eventType = analytics.EventCacheHit
	}
	event := analytics.SearchEvent{
		Type:      eventType,
		QueryID:   uuid.NewString(),
		Query:     result.Query,
		Terms:     result.Terms,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		DocIDs:    resultIDs(result),
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(r.Context()),
	}
	if h.opts.Aggregator != nil {
		h.opts.Aggregator.RecordSearch(event)
	}
	if h.opts.Collector != nil {
		h.opts.Collector.Track(event.QueryID, event)
	}
}

func resultIDs(result *executor.SearchResult) []int {
	ids := make([]int, len(result.Results))
	for i, doc := range result.Results {
		ids[i] = doc.DocID
	}
	return ids
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
