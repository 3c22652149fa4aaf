package index

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/docset"
)

// Posting records every occurrence of a term in one document.
type Posting struct {
	DocID     int   `json:"doc_id"`
	Frequency int   `json:"frequency"`
	Positions []int `json:"positions"`
}

// HasPosition reports whether the term occurs at raw offset pos.
func (p *Posting) HasPosition(pos int) bool {
	_, found := slices.BinarySearch(p.Positions, pos)
	return found
}

type PostingList []Posting

// TermEntry owns the postings of one term. DocFrequency is maintained
// incrementally as postings are created.
type TermEntry struct {
	Term         string
	DocFrequency int
	postings     map[int]*Posting
	docs         *docset.Set
}

func newTermEntry(term string) *TermEntry {
	return &TermEntry{
		Term:     term,
		postings: make(map[int]*Posting),
		docs:     docset.New(),
	}
}

// Posting returns the posting for docID, if any.
func (e *TermEntry) Posting(docID int) (*Posting, bool) {
	p, ok := e.postings[docID]
	return p, ok
}

// Docs returns a copy of the set of documents containing the term.
func (e *TermEntry) Docs() *docset.Set {
	return e.docs.Clone()
}

// Postings returns the postings ordered by document id.
func (e *TermEntry) Postings() PostingList {
	list := make(PostingList, 0, len(e.postings))
	for _, p := range e.postings {
		list = append(list, *p)
	}
	slices.SortFunc(list, func(a, b Posting) int {
		return a.DocID - b.DocID
	})
	return list
}
