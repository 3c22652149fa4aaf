// Package phrase matches ordered term lists against the positional postings
// of the inverted index.
package phrase

import (
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/docset"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

// Source resolves normalised terms to their index entries. Entries are
// read without locking, so the index must stay unchanged during a match.
type Source interface {
	Lookup(term string) (*index.TermEntry, bool)
}

// Matches reports whether terms occur at consecutive raw positions in
// docID. An empty phrase never matches.
func Matches(src Source, terms []string, docID int) bool {
	entries, ok := resolve(src, terms)
	if !ok {
		return false
	}
	return matchesEntries(entries, docID)
}

// Match returns the documents of universe that contain the phrase. Only
// documents holding the first term are examined.
func Match(src Source, terms []string, universe *docset.Set) *docset.Set {
	result := docset.New()
	entries, ok := resolve(src, terms)
	if !ok {
		return result
	}
	candidates := docset.Intersect(entries[0].Docs(), universe)
	candidates.Each(func(docID int) bool {
		if matchesEntries(entries, docID) {
			result.Add(docID)
		}
		return true
	})
	return result
}

func resolve(src Source, terms []string) ([]*index.TermEntry, bool) {
	if len(terms) == 0 {
		return nil, false
	}
	entries := make([]*index.TermEntry, len(terms))
	for i, term := range terms {
		entry, ok := src.Lookup(term)
		if !ok {
			return nil, false
		}
		entries[i] = entry
	}
	return entries, true
}

func matchesEntries(entries []*index.TermEntry, docID int) bool {
	first, ok := entries[0].Posting(docID)
	if !ok {
		return false
	}
	rest := make([]*index.Posting, len(entries)-1)
	for k, entry := range entries[1:] {
		p, ok := entry.Posting(docID)
		if !ok {
			return false
		}
		rest[k] = p
	}
	for _, base := range first.Positions {
		if adjacent(rest, base) {
			return true
		}
	}
	return false
}

func adjacent(rest []*index.Posting, base int) bool {
	for k, p := range rest {
		if !p.HasPosition(base + k + 1) {
			return false
		}
	}
	return true
}
