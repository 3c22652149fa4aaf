package index

import (
	"sort"
	"sync"
)

// MemoryIndex maps normalised terms to their TermEntry. Entries and
// postings are append-only for the lifetime of the index.
type MemoryIndex struct {
	mu    sync.RWMutex
	terms map[string]*TermEntry
	size  int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		terms: make(map[string]*TermEntry),
	}
}

// IndexToken records one occurrence of term at position in docID. Tokens of
// a document must be fed in increasing position order.
func (m *MemoryIndex) IndexToken(term string, docID int, position int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexToken(term, docID, position)
}

func (m *MemoryIndex) indexToken(term string, docID int, position int) {
	entry, exists := m.terms[term]
	if !exists {
		entry = newTermEntry(term)
		m.terms[term] = entry
		m.size += int64(len(term) + 64)
	}
	p, exists := entry.postings[docID]
	if !exists {
		p = &Posting{
			DocID:     docID,
			Positions: make([]int, 0, 4),
		}
		entry.postings[docID] = p
		entry.docs.Add(docID)
		entry.DocFrequency++
		m.size += 48
	}
	p.Positions = append(p.Positions, position)
	p.Frequency++
	m.size += 8
}

// Lookup returns the entry for term. Absence means document frequency 0.
func (m *MemoryIndex) Lookup(term string) (*TermEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.terms[term]
	return entry, ok
}

// Posting returns the posting of term in docID.
func (m *MemoryIndex) Posting(term string, docID int) (*Posting, bool) {
	entry, ok := m.Lookup(term)
	if !ok {
		return nil, false
	}
	return entry.Posting(docID)
}

// DocFrequency returns the number of documents containing term.
func (m *MemoryIndex) DocFrequency(term string) int {
	entry, ok := m.Lookup(term)
	if !ok {
		return 0
	}
	return entry.DocFrequency
}

// Search returns the postings of term ordered by document id.
func (m *MemoryIndex) Search(term string) PostingList {
	entry, ok := m.Lookup(term)
	if !ok {
		return nil
	}
	return entry.Postings()
}

// Vocabulary lists every indexed term with its document frequency, sorted
// by term.
func (m *MemoryIndex) Vocabulary() []TermStat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make([]TermStat, 0, len(m.terms))
	for term, entry := range m.terms {
		stats = append(stats, TermStat{Term: term, DocFrequency: entry.DocFrequency})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Term < stats[j].Term
	})
	return stats
}

// TermStat pairs a term with its document frequency.
type TermStat struct {
	Term         string `json:"term"`
	DocFrequency int    `json:"doc_frequency"`
}

// Terms returns the number of distinct terms.
func (m *MemoryIndex) Terms() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms)
}

// Size returns an estimate of the memory held by the index in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}
