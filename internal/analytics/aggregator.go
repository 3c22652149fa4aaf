package analytics

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalDocIndexed   int64        `json:"total_docs_indexed"`
	TotalDocSkipped   int64        `json:"total_docs_skipped"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopDocuments      []DocCount   `json:"top_documents"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type DocCount struct {
	DocID int   `json:"doc_id"`
	Count int64 `json:"count"`
}

// Aggregator folds search and index events into running statistics. It is
// fed directly by the search handler or by a Kafka consumer via Subscribe.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	totalDocIndexed   int64
	totalDocSkipped   int64
	cacheHits         int64
	zeroResults       int64
	latencies         []int64
	nextLatency       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	docHits           map[int]int64
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		docHits:           make(map[int]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	}
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
	for _, id := range event.DocIDs {
		a.docHits[id]++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = event.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
	}
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Type == EventSkipDoc {
		a.totalDocSkipped++
		return
	}
	a.totalDocIndexed++
}

// Track records event if it is a SearchEvent or an IndexEvent.
func (a *Aggregator) Track(_ string, event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.RecordSearch(e)
	case IndexEvent:
		a.RecordIndex(e)
	}
}

// Subscribe routes the search and index events consumed from Kafka into
// agg.
func Subscribe(router *kafka.Router, agg *Aggregator) {
	kafka.HandleJSON(router, func(_ context.Context, _ string, event SearchEvent) error {
		agg.RecordSearch(event)
		return nil
	}, string(EventSearch), string(EventCacheHit), string(EventZeroResult))
	kafka.HandleJSON(router, func(_ context.Context, _ string, event IndexEvent) error {
		agg.RecordIndex(event)
		return nil
	}, string(EventIndexDoc), string(EventSkipDoc))
}

// Stats summarises everything recorded so far, listing the ten most
// frequent queries and documents.
func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(10)
}

// StatsTop is Stats with the top lists cut at n entries.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		TotalDocIndexed: a.totalDocIndexed,
		TotalDocSkipped: a.totalDocSkipped,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.totalSearches - a.cacheHits,
		ZeroResultCount: a.zeroResults,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, n)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, n)
	stats.TopDocuments = topDocs(a.docHits, n)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func topDocs(counts map[int]int64, n int) []DocCount {
	result := make([]DocCount, 0, len(counts))
	for id, count := range counts {
		result = append(result, DocCount{DocID: id, Count: count})
	}
	slices.SortFunc(result, func(a, b DocCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// ServeHTTP writes the current stats as JSON. The optional top parameter
// sets the length of the top lists.
func (a *Aggregator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("top"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "top must be a positive integer"})
			return
		}
		n = parsed
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(a.StatsTop(n)); err != nil {
		a.logger.Error("failed to write analytics response", "error", err)
	}
}
