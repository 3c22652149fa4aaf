package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/docset"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

// DefaultLimit is the number of results returned when no limit is given.
const DefaultLimit = 10

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Corpus exposes the statistics TF-IDF needs. It must not change while
// Rank runs; indexer.Snapshot satisfies it under the engine read lock.
type Corpus interface {
	Lookup(term string) (*index.TermEntry, bool)
	IndexedTermCount(docID int) int
	DocCount() int
}

// Rank scores every candidate against terms and returns the best limit
// documents, highest score first and ties by ascending document id.
func Rank(corpus Corpus, terms []string, candidates *docset.Set, limit int) []ScoredDoc {
	return TopK(Score(corpus, terms, candidates), limit)
}

// Score computes the TF-IDF score of every candidate. Each occurrence of a
// term in terms contributes, so repeated query words weigh more. Terms
// missing from the index contribute nothing.
func Score(corpus Corpus, terms []string, candidates *docset.Set) []ScoredDoc {
	ids := candidates.IDs()
	scores := make([]ScoredDoc, len(ids))
	for i, id := range ids {
		scores[i] = ScoredDoc{DocID: id}
	}
	totalDocs := corpus.DocCount()
	for _, term := range terms {
		entry, ok := corpus.Lookup(term)
		if !ok || entry.DocFrequency == 0 {
			continue
		}
		idf := computeIDF(totalDocs, entry.DocFrequency)
		for i := range scores {
			posting, ok := entry.Posting(scores[i].DocID)
			if !ok {
				continue
			}
			tf := computeTF(posting.Frequency, corpus.IndexedTermCount(scores[i].DocID))
			scores[i].Score += tf * idf
		}
	}
	return scores
}

func computeIDF(totalDocs int, docFreq int) float64 {
	return math.Log(float64(totalDocs) / float64(docFreq))
}

func computeTF(termFreq int, docLength int) float64 {
	return float64(termFreq) / float64(max(1, docLength))
}
