package indexer

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/docset"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Document describes one indexed document. Everything but the search
// counter is fixed once the document is indexed.
type Document struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	IndexedTermCount int    `json:"indexed_term_count"`
	SearchCount      int64  `json:"search_count"`
}

type document struct {
	id          int
	name        string
	termCount   int
	searchCount atomic.Int64
}

func (d *document) snapshot() Document {
	return Document{
		ID:               d.id,
		Name:             d.name,
		IndexedTermCount: d.termCount,
		SearchCount:      d.searchCount.Load(),
	}
}

// Engine owns the inverted index and the document collection of one corpus.
type Engine struct {
	memIndex   *index.MemoryIndex
	normalizer tokenizer.Normalizer
	cfg        config.CorpusConfig
	logger     *slog.Logger

	mu   sync.RWMutex
	docs []*document
}

// NewEngine starts an empty corpus. A capacity of 0 accepts any number of
// documents.
func NewEngine(cfg config.CorpusConfig) *Engine {
	return &Engine{
		memIndex:   index.NewMemoryIndex(),
		normalizer: tokenizer.New(cfg.MaxTermLength),
		cfg:        cfg,
		logger:     slog.Default().With("component", "indexer"),
		docs:       make([]*document, 0, 16),
	}
}

// IndexDocument reads r to the end and indexes its text under the next
// sequential id.
func (e *Engine) IndexDocument(r io.Reader, name string) (int, error) {
	if e.Full() {
		return -1, e.capacityError(name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return -1, fmt.Errorf("reading %s: %w: %w", name, apperrors.ErrDocumentUnreadable, err)
	}
	return e.IndexText(string(data), name)
}

// IndexText indexes text under the next sequential id.
func (e *Engine) IndexText(text string, name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.Capacity > 0 && len(e.docs) >= e.cfg.Capacity {
		return -1, e.capacityError(name)
	}

	docID := len(e.docs)
	termCount := e.memIndex.BuildDocument(docID, e.normalizer.Tokens(text))
	e.docs = append(e.docs, &document{
		id:        docID,
		name:      name,
		termCount: termCount,
	})
	e.logger.Debug("document indexed",
		"doc_id", docID,
		"name", name,
		"term_count", termCount,
		"mem_size", e.memIndex.Size(),
	)
	return docID, nil
}

func (e *Engine) capacityError(name string) error {
	return fmt.Errorf("indexing %s: %w (capacity %d)", name, apperrors.ErrCapacityExceeded, e.cfg.Capacity)
}

// Full reports whether the corpus has reached its configured capacity.
func (e *Engine) Full() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Capacity > 0 && len(e.docs) >= e.cfg.Capacity
}

// DocCount returns the number of indexed documents.
func (e *Engine) DocCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// DocumentName returns the display name of id, or "" when id is unknown.
func (e *Engine) DocumentName(id int) string {
	doc, ok := e.Document(id)
	if !ok {
		return ""
	}
	return doc.Name
}

// Document returns a snapshot of the document with the given id.
func (e *Engine) Document(id int) (Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if id < 0 || id >= len(e.docs) {
		return Document{}, false
	}
	return e.docs[id].snapshot(), true
}

// Documents returns snapshots of every document in id order.
func (e *Engine) Documents() []Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Document, len(e.docs))
	for i, d := range e.docs {
		out[i] = d.snapshot()
	}
	return out
}

// IndexedTermCount returns the length used to normalise term frequencies
// for id.
func (e *Engine) IndexedTermCount(id int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if id < 0 || id >= len(e.docs) {
		return 0
	}
	return e.docs[id].termCount
}

// RecordHits bumps the search counter of every id.
func (e *Engine) RecordHits(ids ...int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, id := range ids {
		if id >= 0 && id < len(e.docs) {
			e.docs[id].searchCount.Add(1)
		}
	}
}

// Universe returns the set of every indexed document id.
func (e *Engine) Universe() *docset.Set {
	return docset.Universe(e.DocCount())
}

// Normalizer returns the normaliser used for documents, so that queries are
// normalised the same way.
func (e *Engine) Normalizer() tokenizer.Normalizer {
	return e.normalizer
}

// Vocabulary lists the indexed terms with their document frequencies.
func (e *Engine) Vocabulary() []index.TermStat {
	return e.memIndex.Vocabulary()
}

// Terms returns the number of distinct indexed terms.
func (e *Engine) Terms() int {
	return e.memIndex.Terms()
}

// Size returns the estimated index memory in bytes.
func (e *Engine) Size() int64 {
	return e.memIndex.Size()
}
