package index

import (
	"iter"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
)

// BuildDocument feeds every surviving token of tokens into the index under
// docID and returns the number of tokens indexed. Stop-words are skipped
// but their positions stay reserved, since positions come from the raw
// stream.
func (m *MemoryIndex) BuildDocument(docID int, tokens iter.Seq[tokenizer.Token]) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	indexed := 0
	for tok := range tokens {
		if tok.Stop || tok.Term == "" {
			continue
		}
		m.indexToken(tok.Term, docID, tok.Position)
		indexed++
	}
	return indexed
}
