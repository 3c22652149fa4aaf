package ranker

import (
	"cmp"
	"slices"
)

// TopK orders docs by descending score, breaking ties by ascending document
// id, and keeps the first limit. docs is sorted in place. A non-positive
// limit falls back to DefaultLimit.
func TopK(docs []ScoredDoc, limit int) []ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	slices.SortFunc(docs, func(a, b ScoredDoc) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return slices.Clip(docs)
}
