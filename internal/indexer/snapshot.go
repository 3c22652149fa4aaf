package indexer

import (
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/docset"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

// Snapshot is a read-only view of the corpus that is only valid inside
// Engine.View. Index entries it returns are live and must not escape fn.
type Snapshot struct {
	e *Engine
}

// View runs fn with the engine read lock held, so no document can be
// indexed while fn reads postings.
func (e *Engine) View(fn func(Snapshot) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(Snapshot{e: e})
}

// Lookup returns the index entry for an already normalised term.
func (s Snapshot) Lookup(term string) (*index.TermEntry, bool) {
	return s.e.memIndex.Lookup(term)
}

// Posting returns the posting of an already normalised term in docID.
func (s Snapshot) Posting(term string, docID int) (*index.Posting, bool) {
	return s.e.memIndex.Posting(term, docID)
}

func (s Snapshot) DocCount() int {
	return len(s.e.docs)
}

func (s Snapshot) Universe() *docset.Set {
	return docset.Universe(len(s.e.docs))
}

func (s Snapshot) IndexedTermCount(id int) int {
	if id < 0 || id >= len(s.e.docs) {
		return 0
	}
	return s.e.docs[id].termCount
}

func (s Snapshot) DocumentName(id int) string {
	if id < 0 || id >= len(s.e.docs) {
		return ""
	}
	return s.e.docs[id].name
}
