// Package tokenizer provides text normalisation for the search engine.
// It lower-cases input, strips every character that is neither a letter,
// a digit, nor whitespace, splits on whitespace runs, and flags stop-words.
// Positions count every token so that phrase adjacency follows the
// author's original token stream.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
)

// DefaultMaxTermLength is the longest term, in runes, kept by Default.
const DefaultMaxTermLength = 100

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {},
	"of": {}, "as": {}, "by": {}, "that": {}, "this": {}, "it": {}, "from": {},
	"be": {}, "are": {}, "was": {}, "were": {}, "been": {}, "have": {}, "has": {},
}

// Token represents a single normalised word and its position in the
// unfiltered token stream.
type Token struct {
	Term     string
	Position int
	Stop     bool
}

// Normalizer turns raw text into tokens. The zero value truncates nothing.
type Normalizer struct {
	MaxTermLength int
}

// Default returns a Normalizer using DefaultMaxTermLength.
func Default() Normalizer {
	return Normalizer{MaxTermLength: DefaultMaxTermLength}
}

// New returns a Normalizer that truncates terms to maxTermLength runes.
// A non-positive length falls back to DefaultMaxTermLength.
func New(maxTermLength int) Normalizer {
	if maxTermLength <= 0 {
		maxTermLength = DefaultMaxTermLength
	}
	return Normalizer{MaxTermLength: maxTermLength}
}

// Tokens yields every non-empty token of text in order, stop-words
// included. Words that normalise to nothing are dropped and do not
// consume a position.
func (n Normalizer) Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		pos := 0
		for field := range strings.FieldsSeq(text) {
			term := n.Normalize(field)
			if term == "" {
				continue
			}
			tok := Token{Term: term, Position: pos, Stop: IsStopWord(term)}
			pos++
			if !yield(tok) {
				return
			}
		}
	}
}

// Terms yields the tokens of text that survive stop-word filtering,
// keeping their raw positions.
func (n Normalizer) Terms(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for tok := range n.Tokens(text) {
			if tok.Stop {
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// TermList collects the surviving terms of text into a slice.
func (n Normalizer) TermList(text string) []string {
	terms := make([]string, 0, 8)
	for tok := range n.Terms(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

// Normalize lower-cases word, drops every rune that is not a letter or a
// digit, and truncates the result to MaxTermLength runes.
func (n Normalizer) Normalize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	count := 0
	for _, r := range word {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if n.MaxTermLength > 0 && count >= n.MaxTermLength {
			break
		}
		b.WriteRune(unicode.ToLower(r))
		count++
	}
	return b.String()
}

// IsStopWord reports whether term is empty or in the stop-word list.
func IsStopWord(term string) bool {
	if term == "" {
		return true
	}
	_, ok := stopWords[term]
	return ok
}

// StopWords returns a copy of the stop-word list.
func StopWords() []string {
	words := make([]string, 0, len(stopWords))
	for w := range stopWords {
		words = append(words, w)
	}
	return words
}

// Tokenize returns all tokens of text using the default Normalizer.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	for tok := range Default().Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}
