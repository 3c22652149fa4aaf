package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

func newServer(t *testing.T, capacity int) (*httptest.Server, *indexer.Engine, *analytics.Aggregator, *metrics.Metrics) {
	t.Helper()
	engine := indexer.NewEngine(config.CorpusConfig{Capacity: capacity, MaxTermLength: 100})
	agg := analytics.NewAggregator()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	mux := http.NewServeMux()
	New(engine, agg, m).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, engine, agg, m
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/documents", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestIngest(t *testing.T) {
	srv, engine, agg, m := newServer(t, 0)

	resp, out := post(t, srv, `{"name":"a.txt","body":"the cat sat on the mat"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 0, out["document_id"])
	assert.EqualValues(t, 3, out["term_count"])
	assert.Equal(t, "indexed", out["status"])

	assert.Equal(t, 1, engine.DocCount())
	assert.Equal(t, "a.txt", engine.DocumentName(0))
	assert.EqualValues(t, 1, agg.Stats().TotalDocIndexed)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DocsIndexedTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CorpusDocuments), 0)
}

func TestIngestRejectsBadRequests(t *testing.T) {
	srv, engine, _, _ := newServer(t, 0)

	resp, out := post(t, srv, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid JSON body", out["error"])

	resp, out = post(t, srv, `{"name":"","body":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation failed", out["error"])
	assert.Len(t, out["fields"], 2)

	assert.Zero(t, engine.DocCount())
}

func TestIngestBodyTooLarge(t *testing.T) {
	srv, _, _, _ := newServer(t, 0)
	req := ingestion.IngestRequest{Name: "big.txt", Body: strings.Repeat("a", maxRequestBytes)}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/v1/documents", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Greater(t, len(req.Body), validator.MaxBodyLength)
}

func TestIngestCapacity(t *testing.T) {
	srv, engine, _, m := newServer(t, 1)

	resp, _ := post(t, srv, `{"name":"a.txt","body":"cat"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, out := post(t, srv, `{"name":"b.txt","body":"dog"}`)
	assert.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
	assert.Contains(t, out["error"], "capacity")
	assert.Equal(t, 1, engine.DocCount())
	assert.InDelta(t, 1, testutil.ToFloat64(m.DocsSkippedTotal.WithLabelValues("capacity")), 0)
}
