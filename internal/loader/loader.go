// Package loader indexes the documents of a directory. Files are read
// concurrently but handed to the engine one by one in name order, so
// document ids follow the sorted file names.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

const (
	reasonUnreadable = "unreadable"
	reasonCapacity   = "capacity"
)

type Loaded struct {
	ID        int
	Name      string
	TermCount int
	SizeBytes int64
}

type Skipped struct {
	Name   string
	Reason string
	Err    error
}

type Report struct {
	Loaded  []Loaded
	Skipped []Skipped
	Bytes   int64
	// CapacityReached is set when files were left out because the corpus
	// was full.
	CapacityReached bool
	Duration        time.Duration
}

type Loader struct {
	engine  *indexer.Engine
	cfg     config.CorpusConfig
	tracker analytics.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(engine *indexer.Engine, cfg config.CorpusConfig) *Loader {
	return &Loader{
		engine: engine,
		cfg:    cfg,
		logger: slog.Default().With("component", "loader"),
	}
}

// WithTracker publishes an event for every indexed or skipped file.
func (l *Loader) WithTracker(t analytics.Tracker) *Loader {
	l.tracker = t
	return l
}

func (l *Loader) WithMetrics(m *metrics.Metrics) *Loader {
	l.metrics = m
	return l
}

// LoadDir indexes every regular file of dir whose extension is configured.
// Each document is named dir/filename. Files that cannot be read are
// skipped; once the corpus is full the remaining files are skipped too.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	prefix := strings.TrimRight(dir, "/") + "/"
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !l.accepts(entry.Name()) {
			continue
		}
		paths = append(paths, prefix+entry.Name())
	}
	slices.Sort(paths)
	return l.LoadFiles(ctx, paths)
}

// LoadFiles indexes paths in the given order. Only as many files as the
// corpus can still take are read at a time; files past a full corpus are
// skipped without being opened.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{}
	for next := 0; next < len(paths); {
		window := len(paths) - next
		if l.cfg.Capacity > 0 {
			window = min(window, l.cfg.Capacity-l.engine.DocCount())
		}
		if window <= 0 {
			l.fill(report, paths[next:])
			break
		}
		batch := paths[next : next+window]
		contents, readErrs, err := l.readAll(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, path := range batch {
			if readErrs[i] != nil {
				err := fmt.Errorf("reading %s: %w: %w", path, apperrors.ErrDocumentUnreadable, readErrs[i])
				l.skip(report, path, reasonUnreadable, err)
				continue
			}
			id, err := l.engine.IndexDocument(bytes.NewReader(contents[i]), path)
			if errors.Is(err, apperrors.ErrCapacityExceeded) {
				// Another writer filled the corpus while this batch was read.
				l.fill(report, paths[next+i:])
				next = len(paths)
				break
			}
			if err != nil {
				l.skip(report, path, reasonUnreadable, err)
				continue
			}
			l.loaded(report, Loaded{
				ID:        id,
				Name:      path,
				TermCount: l.engine.IndexedTermCount(id),
				SizeBytes: int64(len(contents[i])),
			})
		}
		if next < len(paths) {
			next += window
		}
	}
	report.Duration = time.Since(start)

	l.logger.Info("corpus loaded",
		"documents", len(report.Loaded),
		"skipped", len(report.Skipped),
		"bytes", humanize.Bytes(uint64(report.Bytes)),
		"terms", l.engine.Terms(),
		"duration", report.Duration,
	)
	if l.metrics != nil {
		l.metrics.ObserveCorpus(l.engine.DocCount(), l.engine.Terms(), l.engine.Size())
	}
	return report, nil
}

// fill skips every one of rest because the corpus is full.
func (l *Loader) fill(report *Report, rest []string) {
	report.CapacityReached = true
	l.logger.Warn("corpus capacity reached", "capacity", l.cfg.Capacity, "remaining", len(rest))
	for _, path := range rest {
		err := fmt.Errorf("indexing %s: %w (capacity %d)", path, apperrors.ErrCapacityExceeded, l.cfg.Capacity)
		l.skip(report, path, reasonCapacity, err)
	}
}

// readAll reads every path with bounded concurrency. A failed read is
// reported per file; only cancellation fails the whole load.
func (l *Loader) readAll(ctx context.Context, paths []string) ([][]byte, []error, error) {
	contents := make([][]byte, len(paths))
	readErrs := make([]error, len(paths))
	limit := l.cfg.ReadConcurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			contents[i], readErrs[i] = os.ReadFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("loading corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("loading corpus: %w", err)
	}
	return contents, readErrs, nil
}

func (l *Loader) accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range l.cfg.Extensions {
		if strings.ToLower(want) == ext {
			return true
		}
	}
	return false
}

func (l *Loader) loaded(report *Report, doc Loaded) {
	report.Loaded = append(report.Loaded, doc)
	report.Bytes += doc.SizeBytes
	l.logger.Debug("document loaded",
		"doc_id", doc.ID,
		"name", doc.Name,
		"terms", doc.TermCount,
		"size", humanize.Bytes(uint64(doc.SizeBytes)),
	)
	if l.metrics != nil {
		l.metrics.DocsIndexedTotal.Inc()
	}
	if l.tracker != nil {
		l.tracker.Track(doc.Name, analytics.IndexEvent{
			Type:       analytics.EventIndexDoc,
			DocumentID: doc.ID,
			Name:       doc.Name,
			TermCount:  doc.TermCount,
			SizeBytes:  doc.SizeBytes,
			Timestamp:  time.Now().UTC(),
		})
	}
}

func (l *Loader) skip(report *Report, name, reason string, err error) {
	report.Skipped = append(report.Skipped, Skipped{Name: name, Reason: reason, Err: err})
	if reason == reasonUnreadable {
		l.logger.Warn("skipping unreadable document", "name", name, "error", err)
	}
	if l.metrics != nil {
		l.metrics.DocsSkippedTotal.WithLabelValues(reason).Inc()
	}
	if l.tracker != nil {
		l.tracker.Track(name, analytics.IndexEvent{
			Type:       analytics.EventSkipDoc,
			DocumentID: -1,
			Name:       name,
			Reason:     reason,
			Timestamp:  time.Now().UTC(),
		})
	}
}
