package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "search")
	_, parse := Start(ctx, "parse")
	parse.End()
	evalCtx, eval := Start(ctx, "evaluate")
	_, leaf := Child(evalCtx, "phrase")
	leaf.End()
	eval.End()
	root.End()

	assert.Equal(t, "req-1", root.TraceID())
	assert.Equal(t, "req-1", leaf.TraceID())
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "parse", children[0].Name())
	assert.Equal(t, "evaluate", children[1].Name())
	require.Len(t, children[1].Children(), 1)
	assert.GreaterOrEqual(t, root.Duration(), eval.Duration())
}

func TestRootWithoutRequestIDGetsTraceID(t *testing.T) {
	_, span := Start(context.Background(), "root")
	assert.Len(t, span.TraceID(), 36)
}

func TestChildWithoutTraceIsNil(t *testing.T) {
	ctx := context.Background()
	got, span := Child(ctx, "rank")
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)

	// A nil span is inert.
	span.Set("k", 1)
	span.End()
	span.Log(ctx, slog.Default(), slog.LevelInfo)
	assert.Empty(t, span.Name())
	assert.Zero(t, span.Duration())
	assert.Nil(t, span.Children())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "search")
	_, child := Start(ctx, "rank")
	child.Set("results", 3)
	child.End()
	root.End()
	root.Log(ctx, l, slog.LevelDebug)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "rank", rec["span"])
	assert.EqualValues(t, 1, rec["depth"])
	assert.EqualValues(t, 3, rec["results"])
	assert.Equal(t, root.TraceID(), rec["trace_id"])
}

func TestLogSkippedWhenLevelDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, root := Start(context.Background(), "search")
	root.End()
	root.Log(ctx, l, slog.LevelDebug)
	assert.Empty(t, buf.String())
}
