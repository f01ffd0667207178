package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// createBucket creates a bucket through the API and returns it.
func (ts *testServer) createBucket(t *testing.T, hdr, name string) domain.Bucket {
	t.Helper()
	resp := ts.api.Post("/api/buckets", hdr, map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[domain.Bucket](t, resp)
}

func TestBuckets_CRUD(t *testing.T) {
	ts := setupTestServer(t)
	hdr := ts.bearer(t, "u1")

	resp := ts.api.Get("/api/buckets", hdr)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[ListBucketsResponse](t, resp).Buckets)

	work := ts.createBucket(t, hdr, "Work")
	assert.NotEmpty(t, work.ID)
	assert.Equal(t, "u1", work.OwnerID)
	assert.Equal(t, domain.DefaultBucketColor, work.Color)
	assert.Equal(t, domain.DefaultBucketIcon, work.Icon)

	resp = ts.api.Get("/api/buckets/"+work.ID, hdr)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Work", decode[domain.Bucket](t, resp).Name)

	resp = ts.api.Put("/api/buckets/"+work.ID, hdr, map[string]any{"name": "Office", "color": "blue"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decode[domain.Bucket](t, resp)
	assert.Equal(t, "Office", updated.Name)
	assert.Equal(t, "blue", updated.Color)
	assert.Equal(t, domain.DefaultBucketIcon, updated.Icon)

	resp = ts.api.Get("/api/buckets", hdr)
	buckets := decode[ListBucketsResponse](t, resp).Buckets
	require.Len(t, buckets, 1)
	assert.Equal(t, "Office", buckets[0].Name)
	assert.Zero(t, buckets[0].NoteCount)

	resp = ts.api.Delete("/api/buckets/"+work.ID, hdr)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, resp.Body.String())

	resp = ts.api.Get("/api/buckets/"+work.ID, hdr)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, resp).Code)
}

func TestBuckets_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	hdr := ts.bearer(t, "u1")

	tests := []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodPut, map[string]any{"name": "x"}},
		{http.MethodDelete, nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			args := []any{hdr}
			if tt.body != nil {
				args = append(args, tt.body)
			}
			resp := ts.api.Do(tt.method, "/api/buckets/bkt-missing", args...)
			assert.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())
		})
	}
}

func TestBuckets_Validation(t *testing.T) {
	ts := setupTestServer(t)
	hdr := ts.bearer(t, "u1")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"blank name", map[string]any{"name": "   "}, "name"},
		{"long name", map[string]any{"name": strings.Repeat("a", 256)}, "name"},
		{"unknown color", map[string]any{"name": "Work", "color": "orange"}, "color"},
		{"unknown icon", map[string]any{"name": "Work", "icon": "rocket"}, "icon"},
		{"missing name", map[string]any{"description": "no name"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/buckets", hdr, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			body := decode[errorBody](t, resp)
			assert.Equal(t, "VALIDATION", body.Code)
			assert.NotEmpty(t, body.Message)
			require.NotEmpty(t, body.Errors)
			if tt.field != "" {
				assert.Equal(t, tt.field, body.Errors[0].Field)
			} else {
				assert.Contains(t, body.Errors[0].Message, "name")
			}
		})
	}
}

func TestBuckets_IsolatedPerUser(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.bearer(t, "alice")
	bob := ts.bearer(t, "bob")

	work := ts.createBucket(t, alice, "Work")

	assert.Empty(t, decode[ListBucketsResponse](t, ts.api.Get("/api/buckets", bob)).Buckets)
	assert.Equal(t, http.StatusNotFound, ts.api.Get("/api/buckets/"+work.ID, bob).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Put("/api/buckets/"+work.ID, bob, map[string]any{"name": "Mine"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Delete("/api/buckets/"+work.ID, bob).Code)

	resp := ts.api.Get("/api/buckets/"+work.ID, alice)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Work", decode[domain.Bucket](t, resp).Name)
}
