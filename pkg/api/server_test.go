package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/pathmatrix/pkg/graph/graphtest"
	"github.com/azybler/pathmatrix/pkg/matrix"
	"github.com/azybler/pathmatrix/pkg/store"
)

func testConfig() ServerConfig {
	cfg := DefaultConfig(":0")
	logger, _ := test.NewNullLogger()
	cfg.Logger = logger
	return cfg
}

func TestServerServesArtifact(t *testing.T) {
	g := graphtest.FiveVertex()
	out := filepath.Join(t.TempDir(), "matrix.bin")
	require.NoError(t, matrix.ComputeMatrix(context.Background(), g, out, matrix.DefaultHopBound, 2))

	r, err := store.Open(out)
	require.NoError(t, err)
	defer r.Close()

	cfg := testConfig()
	cfg.CORSOrigin = "https://example.com"
	reg := prometheus.NewRegistry()
	srv := NewServer(cfg, NewHandlers(r, Labels(g), nil), reg)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/path?from=0&to=2")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	var path PathResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&path))
	assert.Equal(t, []uint32{0, 3, 2}, path.Vertices)
	assert.Equal(t, []string{"1", "4", "3"}, path.Labels)
	assert.InDelta(t, 1.4771213, path.Weight, 1e-6)

	count, err := testutil.GatherAndCount(reg, "pathmatrix_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	metrics, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pathmatrix_http_request_duration_seconds_count{code="200",route="GET /api/v1/path"} 1`)
}

func TestServerRejectsWrongMethod(t *testing.T) {
	srv := NewServer(testConfig(), NewHandlers(&mockPaths{}, nil, nil), nil)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/path?from=0&to=1", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMiddlewareConcurrencyLimit(t *testing.T) {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	m := newServerMetrics(prometheus.NewRegistry())

	called := false
	h := withMiddleware("GET /x", func(http.ResponseWriter, *http.Request) { called = true }, sem, testConfig(), m)
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestMiddlewareRecoversPanic(t *testing.T) {
	sem := make(chan struct{}, 1)
	m := newServerMetrics(prometheus.NewRegistry())
	cfg := testConfig()
	logger, hook := test.NewNullLogger()
	cfg.Logger = logger

	h := withMiddleware("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") }, sem, cfg, m)
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, sem, "semaphore slot released")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Handler panicked", hook.LastEntry().Message)
	assert.Equal(t, 1, testutil.CollectAndCount(m.requests))
}

func TestMiddlewareSetsDeadline(t *testing.T) {
	sem := make(chan struct{}, 1)
	m := newServerMetrics(prometheus.NewRegistry())

	var hasDeadline bool
	h := withMiddleware("GET /x", func(_ http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}, sem, testConfig(), m)
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.True(t, hasDeadline)
}
