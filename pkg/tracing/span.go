// Package tracing times the stages of a request as a tree of spans carried
// through the context. A finished tree is logged with one record per span.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
)

type contextKey struct{}

// Span is one timed stage. All methods are safe on a nil Span, so callers
// that may run without a trace need no checks.
type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	attrs    []any
	children []*Span
}

// Start opens a span under the one in ctx, or a new root when ctx carries
// none. A root takes the request id as its trace id when there is one.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	span := &Span{name: name, start: time.Now()}
	if parent != nil {
		span.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else {
		span.traceID = logger.RequestID(ctx)
		if span.traceID == "" {
			span.traceID = uuid.NewString()
		}
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// Child opens a span only when ctx is already traced.
func Child(ctx context.Context, name string) (context.Context, *Span) {
	if FromContext(ctx) == nil {
		return ctx, nil
	}
	return Start(ctx, name)
}

func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.duration = time.Since(s.start)
	s.mu.Unlock()
}

// Set attaches a key-value pair to the span's log record.
func (s *Span) Set(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

func (s *Span) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *Span) TraceID() string {
	if s == nil {
		return ""
	}
	return s.traceID
}

func (s *Span) Duration() time.Duration {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) Children() []*Span {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants, depth first, at level.
func (s *Span) Log(ctx context.Context, l *slog.Logger, level slog.Level) {
	if s == nil || !l.Enabled(ctx, level) {
		return
	}
	s.log(ctx, l, level, 0)
}

func (s *Span) log(ctx context.Context, l *slog.Logger, level slog.Level, depth int) {
	s.mu.Lock()
	args := append([]any{
		"trace_id", s.traceID,
		"span", s.name,
		"depth", depth,
		"duration_us", s.duration.Microseconds(),
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	l.Log(ctx, level, "span", args...)
	for _, child := range children {
		child.log(ctx, l, level, depth+1)
	}
}
