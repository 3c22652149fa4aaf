package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventZeroResult EventType = "zero_result"
	EventIndexDoc   EventType = "index_document"
	EventSkipDoc    EventType = "skip_document"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	QueryID   string    `json:"query_id"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	DocIDs    []int     `json:"doc_ids"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type IndexEvent struct {
	Type       EventType `json:"type"`
	DocumentID int       `json:"document_id"`
	Name       string    `json:"name"`
	TermCount  int       `json:"term_count"`
	SizeBytes  int64     `json:"size_bytes"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
