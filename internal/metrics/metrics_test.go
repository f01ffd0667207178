package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.StoreOp("sqlite", "GetNote", "ok", 0.01)
	m.StoreOp("sqlite", "GetNote", "ok", 0.02)
	m.CacheLookup("hit")
	m.QueryFetch("superseded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeOps.WithLabelValues("sqlite", "GetNote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryFetches.WithLabelValues("superseded")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StoreOp("docstore", "GetNote", "ok", 0)
		m.CacheLookup("miss")
		m.CachePurge()
		m.QueryFetch("committed")
		m.QueryRetry()
		m.AuthEvent("signed_out")
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CachePurge()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stickynotes_cache_user_purges_total 1")
}
