// Package parser turns a raw query string into a left-to-right list of
// clauses. A clause is a bare word or a quoted phrase, optionally introduced
// by one of the keywords AND, OR or NOT. There is no precedence and there
// are no parentheses: clauses fold into the result strictly in order.
package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
)

type Operator int

const (
	OpNone Operator = iota
	OpAnd
	OpOr
	OpNot
)

func (o Operator) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpNot:
		return "NOT"
	default:
		return ""
	}
}

type Kind int

const (
	KindWord Kind = iota
	KindPhrase
)

// Clause is one atom of the query together with the operator that
// introduced it. Word clauses carry exactly one term; phrase clauses carry
// the phrase's surviving terms, possibly none.
type Clause struct {
	Op    Operator
	Kind  Kind
	Terms []string
}

type QueryPlan struct {
	Clauses      []Clause
	ScoringTerms []string
	RawQuery     string
}

// Empty reports whether the query produced no clause at all.
func (p *QueryPlan) Empty() bool {
	return len(p.Clauses) == 0
}

// Parse builds a QueryPlan using the default normaliser.
func Parse(query string) *QueryPlan {
	return New(tokenizer.Default()).Parse(query)
}

type Parser struct {
	normalizer tokenizer.Normalizer
}

func New(normalizer tokenizer.Normalizer) *Parser {
	return &Parser{normalizer: normalizer}
}

// Parse splits query into clauses. Keywords are recognised on the raw token
// regardless of case. A word that normalises to nothing or to a stop-word
// is skipped, and so is the keyword waiting for it. The scoring terms are
// every surviving word of the whole query, keywords included.
func (p *Parser) Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Clauses:      make([]Clause, 0),
		ScoringTerms: p.normalizer.TermList(query),
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	s := &scanner{input: query}
	for {
		s.skipSpace()
		if s.done() {
			break
		}
		if s.peek() == '"' {
			plan.Clauses = append(plan.Clauses, p.phraseClause(OpNone, s.phrase()))
			continue
		}
		word := s.word()
		op := keyword(word)
		if op == OpNone {
			if clause, ok := p.wordClause(OpNone, word); ok {
				plan.Clauses = append(plan.Clauses, clause)
			}
			continue
		}
		s.skipSpace()
		if s.done() {
			break
		}
		if s.peek() == '"' {
			plan.Clauses = append(plan.Clauses, p.phraseClause(op, s.phrase()))
			continue
		}
		if clause, ok := p.wordClause(op, s.word()); ok {
			plan.Clauses = append(plan.Clauses, clause)
		}
	}
	return plan
}

func (p *Parser) wordClause(op Operator, raw string) (Clause, bool) {
	term := p.normalizer.Normalize(raw)
	if tokenizer.IsStopWord(term) {
		return Clause{}, false
	}
	return Clause{Op: op, Kind: KindWord, Terms: []string{term}}, true
}

func (p *Parser) phraseClause(op Operator, raw string) Clause {
	return Clause{Op: op, Kind: KindPhrase, Terms: p.normalizer.TermList(raw)}
}

func keyword(word string) Operator {
	switch strings.ToUpper(word) {
	case "AND":
		return OpAnd
	case "OR":
		return OpOr
	case "NOT":
		return OpNot
	default:
		return OpNone
	}
}

type scanner struct {
	input string
	pos   int
}

func (s *scanner) done() bool {
	return s.pos >= len(s.input)
}

func (s *scanner) peek() byte {
	return s.input[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.done() {
		r, size := utf8.DecodeRuneInString(s.input[s.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		s.pos += size
	}
}

// word consumes a raw token up to the next whitespace.
func (s *scanner) word() string {
	start := s.pos
	for !s.done() {
		r, size := utf8.DecodeRuneInString(s.input[s.pos:])
		if unicode.IsSpace(r) {
			break
		}
		s.pos += size
	}
	return s.input[start:s.pos]
}

// phrase consumes an opening quote and returns the text up to the closing
// quote, or to the end of input when the quote is never closed.
func (s *scanner) phrase() string {
	s.pos++
	rest := s.input[s.pos:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		s.pos = len(s.input)
		return rest
	}
	s.pos += end + 1
	return rest[:end]
}
