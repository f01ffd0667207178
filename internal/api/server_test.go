package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickynotes/stickynotes-server/internal/auth"
	"github.com/stickynotes/stickynotes-server/internal/authstate"
	"github.com/stickynotes/stickynotes-server/internal/cache"
	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
	"github.com/stickynotes/stickynotes-server/internal/query"
	"github.com/stickynotes/stickynotes-server/internal/ratelimit"
	"github.com/stickynotes/stickynotes-server/internal/service"
	"github.com/stickynotes/stickynotes-server/internal/store"
	"github.com/stickynotes/stickynotes-server/internal/store/sqlite"
	"github.com/stickynotes/stickynotes-server/internal/validation"
)

// testServer wraps the API server for handler tests.
type testServer struct {
	*Server
	api     humatest.TestAPI
	tokens  *auth.TokenService
	cache   *cache.Cache
	metrics *metrics.Metrics
}

type serverOption func(*Services)

func withLimiter(l *ratelimit.KeyedRateLimiter) serverOption {
	return func(s *Services) { s.Limiter = l }
}

// setupTestServer creates a server over a sqlite store in a temp dir.
func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	db, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	key, err := auth.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	c := cache.New(cache.NewMemoryKV(), logger, cache.WithMetrics(m))
	queries := query.NewClient(c, logger,
		query.WithMetrics(m),
		query.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	storage := service.NewStorage(store.Instrument(db, m), queries, RequestIdentity, validation.New(), logger)

	bus := authstate.NewBus(logger, m)
	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)
	sub, err := bus.Subscribe()
	require.NoError(t, err)
	go authstate.ClearCacheOnSignOut(ctx, sub, c, logger)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = bus.Shutdown(shutdownCtx)
		cancel()
	})

	services := &Services{
		Storage: storage,
		Tokens:  tokens,
		Bus:     bus,
		Cache:   c,
		Metrics: m,
	}
	for _, opt := range opts {
		opt(services)
	}

	s := NewServer(services, nil, logger)
	return &testServer{
		Server:  s,
		api:     humatest.Wrap(t, s.API()),
		tokens:  tokens,
		cache:   c,
		metrics: m,
	}
}

// bearer returns an Authorization header arg for uid.
func (ts *testServer) bearer(t *testing.T, uid string) string {
	t.Helper()
	token, err := ts.tokens.Issue(&domain.User{ID: uid, Email: uid + "@example.com"})
	require.NoError(t, err)
	return "Authorization: Bearer " + token
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Errors  []domainerrors.FieldError `json:"errors"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["store"].Status)
	assert.Equal(t, "sqlite", health.Components["store"].Message)
	assert.Equal(t, "healthy", health.Components["cache"].Status)
}

func TestHealthCheck_DegradedWithoutCache(t *testing.T) {
	ts := setupTestServer(t, func(s *Services) { s.Cache = nil })

	health := decode[HealthResponse](t, ts.api.Get("/health"))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "cache disabled", health.Components["cache"].Message)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	ts := setupTestServer(t)

	routes := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/buckets", nil},
		{http.MethodPost, "/api/buckets", map[string]any{"name": "Work"}},
		{http.MethodGet, "/api/buckets/bkt-x", nil},
		{http.MethodPut, "/api/buckets/bkt-x", map[string]any{"name": "Home"}},
		{http.MethodDelete, "/api/buckets/bkt-x", nil},
		{http.MethodGet, "/api/buckets/bkt-x/notes", nil},
		{http.MethodGet, "/api/notes", nil},
		{http.MethodPost, "/api/notes", map[string]any{"title": "t", "content": "c", "bucketIds": []string{"bkt-x"}}},
		{http.MethodGet, "/api/notes/note-x", nil},
		{http.MethodPut, "/api/notes/note-x", map[string]any{"title": "t"}},
		{http.MethodDelete, "/api/notes/note-x", nil},
		{http.MethodGet, "/api/search?q=x", nil},
		{http.MethodGet, "/api/tags", nil},
		{http.MethodPost, "/api/session", map[string]any{}},
		{http.MethodDelete, "/api/session", nil},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			var args []any
			if rt.body != nil {
				args = append(args, rt.body)
			}
			resp := ts.api.Do(rt.method, rt.path, args...)
			assert.Equal(t, http.StatusUnauthorized, resp.Code, resp.Body.String())
			assert.Equal(t, "UNAUTHENTICATED", decode[errorBody](t, resp).Code)
		})
	}
}

func TestProtectedRoutes_RejectBadToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/buckets", "Authorization: Bearer v4.local.garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	other, err := auth.NewTokenService(make([]byte, 32), time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue(&domain.User{ID: "u1"})
	require.NoError(t, err)
	resp = ts.api.Get("/api/buckets", "Authorization: Bearer "+foreign)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, resp).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.api.Get("/api/buckets", ts.bearer(t, "u1")).Code)

	resp := ts.api.Get("/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "stickynotes_store_operations_total")
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.PerInterval(2, time.Minute, 2)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, withLimiter(limiter))

	assert.Equal(t, http.StatusOK, ts.api.Get("/health").Code)
	assert.Equal(t, http.StatusOK, ts.api.Get("/health").Code)

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decode[errorBody](t, resp).Code)
}

func TestOpenAPIDocument(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/openapi.json")
	require.Equal(t, http.StatusOK, resp.Code)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &doc))
	for _, p := range []string{"/api/buckets", "/api/buckets/{id}", "/api/buckets/{id}/notes",
		"/api/notes", "/api/notes/{id}", "/api/search", "/api/tags", "/api/session", "/health"} {
		assert.Contains(t, doc.Paths, p)
	}
}
