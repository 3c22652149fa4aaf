package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestObserveCorpus(t *testing.T) {
	m := newTestMetrics()
	m.ObserveCorpus(3, 7, 2048)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CorpusDocuments))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.VocabularySize))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.IndexSizeBytes))
}

func TestCounters(t *testing.T) {
	m := newTestMetrics()
	m.DocsIndexedTotal.Add(2)
	m.DocsSkippedTotal.WithLabelValues("unreadable").Inc()
	m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	m.SearchQueriesTotal.WithLabelValues("zero_result").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsSkippedTotal.WithLabelValues("unreadable")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SearchQueriesTotal))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := newTestMetrics()
	m.CacheHitsTotal.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cache_hits_total 1")
	assert.Contains(t, string(body), "corpus_documents 0")
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg, reg)
	assert.Panics(t, func() { NewWithRegistry(reg, reg) })
}
