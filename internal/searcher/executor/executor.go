package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/docset"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/phrase"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/tracing"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	Terms     []string           `json:"terms"`
	TookMs    int64              `json:"took_ms"`
}

type Executor struct {
	engine *indexer.Engine
	parser *parser.Parser
	limit  int
	logger *slog.Logger
}

// New returns an Executor over engine. A non-positive defaultLimit falls
// back to ranker.DefaultLimit.
func New(engine *indexer.Engine, defaultLimit int) *Executor {
	if defaultLimit <= 0 {
		defaultLimit = ranker.DefaultLimit
	}
	return &Executor{
		engine: engine,
		parser: parser.New(engine.Normalizer()),
		limit:  defaultLimit,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) DefaultLimit() int {
	return e.limit
}

// Parse builds the plan for raw using the engine's normaliser.
func (e *Executor) Parse(raw string) *parser.QueryPlan {
	return e.parser.Parse(raw)
}

// Search parses raw and executes it.
func (e *Executor) Search(ctx context.Context, raw string, limit int) (*SearchResult, error) {
	return e.Execute(ctx, e.Parse(raw), limit)
}

// Execute evaluates plan, ranks the candidates and records a hit on every
// returned document. Evaluation and ranking share one engine read lock, so
// a concurrent ingest lands either wholly before or wholly after the query.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	start := time.Now()
	if limit <= 0 {
		limit = e.limit
	}
	var (
		candidates *docset.Set
		ranked     []ranker.ScoredDoc
	)
	err := e.engine.View(func(snap indexer.Snapshot) error {
		_, evalSpan := tracing.Child(ctx, "evaluate")
		var err error
		candidates, err = e.candidates(ctx, snap, plan)
		evalSpan.End()
		if err != nil {
			return err
		}
		evalSpan.Set("clauses", len(plan.Clauses))
		evalSpan.Set("candidates", candidates.Len())

		_, rankSpan := tracing.Child(ctx, "rank")
		ranked = ranker.Rank(snap, plan.ScoringTerms, candidates, limit)
		rankSpan.Set("results", len(ranked))
		rankSpan.End()
		for i := range ranked {
			ranked[i].Name = snap.DocumentName(ranked[i].DocID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(ranked))
	for i := range ranked {
		ids[i] = ranked[i].DocID
	}
	e.engine.RecordHits(ids...)

	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"clauses", len(plan.Clauses),
		"terms", plan.ScoringTerms,
		"candidates", candidates.Len(),
		"results", len(ranked),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: candidates.Len(),
		Results:   ranked,
		Terms:     plan.ScoringTerms,
		TookMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Candidates folds the plan's clauses left to right into a single document
// set. Bare atoms and AND intersect, OR unions, NOT subtracts from the
// running set or from every indexed document when nothing came before.
func (e *Executor) Candidates(ctx context.Context, plan *parser.QueryPlan) (*docset.Set, error) {
	var out *docset.Set
	err := e.engine.View(func(snap indexer.Snapshot) error {
		var err error
		out, err = e.candidates(ctx, snap, plan)
		return err
	})
	return out, err
}

func (e *Executor) candidates(ctx context.Context, snap indexer.Snapshot, plan *parser.QueryPlan) (*docset.Set, error) {
	var current *docset.Set
	for i, clause := range plan.Clauses {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluating clause %d of %q: %w", i, plan.RawQuery, err)
		}
		set := atom(snap, clause, current)
		switch clause.Op {
		case parser.OpOr:
			if current == nil {
				current = set
			} else {
				current = docset.Union(current, set)
			}
		case parser.OpNot:
			base := current
			if base == nil {
				base = snap.Universe()
			}
			current = docset.Difference(base, set)
		default:
			if current == nil {
				current = set
			} else {
				current = docset.Intersect(current, set)
			}
		}
	}
	if current == nil {
		return docset.New(), nil
	}
	return current, nil
}

func atom(snap indexer.Snapshot, clause parser.Clause, current *docset.Set) *docset.Set {
	if clause.Kind == parser.KindPhrase {
		// Intersections only need to look at the running set.
		universe := snap.Universe()
		if current != nil && (clause.Op == parser.OpAnd || clause.Op == parser.OpNone) {
			universe = current
		}
		return phrase.Match(snap, clause.Terms, universe)
	}
	entry, ok := snap.Lookup(clause.Terms[0])
	if !ok {
		return docset.New()
	}
	return entry.Docs()
}
