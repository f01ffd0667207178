package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, kv KV) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(kv, logger, WithClock(clock.Now)), clock
}

func kvs(t *testing.T) map[string]KV {
	t.Helper()
	badgerKV, err := OpenBadgerKV("")
	require.NoError(t, err)
	t.Cleanup(func() { badgerKV.Close() })
	return map[string]KV{
		"memory": NewMemoryKV(),
		"badger": badgerKV,
	}
}

func sampleBuckets() []domain.BucketWithCount {
	return []domain.BucketWithCount{
		{Bucket: domain.Bucket{ID: "bkt-1", OwnerID: "u1", Name: "Work", Color: "primary", Icon: "briefcase"}, NoteCount: 2},
	}
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvs(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestCache(t, kv)

			c.SetBuckets(ctx, "u1", sampleBuckets())
			got, ok := c.GetBuckets(ctx, "u1")
			require.True(t, ok)
			assert.Equal(t, sampleBuckets(), got)

			notes := []domain.NoteWithBuckets{{
				Note: domain.Note{
					ID: "note-1", OwnerID: "u1", Title: "t", Content: "c",
					Tags: []string{"todo"}, PrimaryBucketID: "bkt-1", SharedBucketIDs: []string{},
				},
				SharedBuckets: []domain.Bucket{},
			}}
			c.SetNotes(ctx, "u1", "bkt-1", notes)
			gotNotes, ok := c.GetNotes(ctx, "u1", "bkt-1")
			require.True(t, ok)
			assert.Equal(t, notes, gotNotes)

			_, ok = c.GetNotes(ctx, "u1", "bkt-2")
			assert.False(t, ok, "other buckets have their own key")

			c.SetAllNotes(ctx, "u1", notes)
			all, ok := c.GetAllNotes(ctx, "u1")
			require.True(t, ok)
			assert.Len(t, all, 1)
		})
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	c, clock := newTestCache(t, kv)

	c.SetBuckets(ctx, "u1", sampleBuckets())

	clock.Advance(Expiry)
	_, ok := c.GetBuckets(ctx, "u1")
	assert.True(t, ok, "an entry exactly Expiry old is still served")

	clock.Advance(time.Millisecond)
	_, ok = c.GetBuckets(ctx, "u1")
	assert.False(t, ok)

	_, exists, err := kv.Get(BucketsKey("u1"))
	require.NoError(t, err)
	assert.False(t, exists, "expired entries are removed on read")
}

func TestCache_ForeignEntryPurgesRequester(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvs(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestCache(t, kv)

			c.SetBuckets(ctx, "u1", sampleBuckets())
			c.SetNotes(ctx, "u1", "bkt-1", nil)
			c.SetBuckets(ctx, "u10", sampleBuckets())
			c.RememberUser(ctx, "u1")

			// An entry under u1's key that was written for someone else.
			c.Set(ctx, AllNotesKey("u1"), []string{}, "intruder")

			var out []string
			assert.False(t, c.Get(ctx, AllNotesKey("u1"), "u1", &out))

			_, ok := c.GetBuckets(ctx, "u1")
			assert.False(t, ok, "the requesting user's entries are purged")
			_, ok = c.GetNotes(ctx, "u1", "bkt-1")
			assert.False(t, ok)
			_, ok = c.RememberedUser(ctx)
			assert.False(t, ok, "top-level keys are purged")

			_, ok = c.GetBuckets(ctx, "u10")
			assert.True(t, ok, "users whose id merely contains the purged id are kept")
		})
	}
}

func TestCache_Freshness(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t, NewMemoryKV())

	assert.False(t, c.IsFresh(ctx, "u1"), "never synced")

	c.SetBuckets(ctx, "u1", sampleBuckets())
	assert.True(t, c.IsFresh(ctx, "u1"))

	last, ok := c.LastSync(ctx, "u1")
	require.True(t, ok)
	assert.True(t, last.Equal(clock.Now()))

	clock.Advance(FreshWindow - time.Millisecond)
	assert.True(t, c.IsFresh(ctx, "u1"))

	clock.Advance(time.Millisecond)
	assert.False(t, c.IsFresh(ctx, "u1"))

	c.UpdateLastSync(ctx, "u1")
	assert.True(t, c.IsFresh(ctx, "u1"))
	assert.False(t, c.IsFresh(ctx, "u2"))
}

func TestCache_ClearAllAndSize(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvs(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestCache(t, kv)
			assert.Zero(t, c.Size(ctx))

			c.SetBuckets(ctx, "u1", sampleBuckets())
			c.SetBuckets(ctx, "u2", sampleBuckets())
			require.NoError(t, kv.Set("unrelated", []byte("keep me")))

			size := c.Size(ctx)
			raw, ok, err := kv.Get(BucketsKey("u1"))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Greater(t, size, 2*len(raw), "size covers bucket and sync entries of both users")

			c.ClearAll(ctx)
			assert.Zero(t, c.Size(ctx))
			_, ok = c.GetBuckets(ctx, "u2")
			assert.False(t, ok)

			_, ok, err = kv.Get("unrelated")
			require.NoError(t, err)
			assert.True(t, ok, "keys outside the namespace are left alone")
		})
	}
}

type brokenKV struct{ MemoryKV }

var errBroken = errors.New("quota exceeded")

func (brokenKV) Get(string) ([]byte, bool, error)              { return nil, false, errBroken }
func (brokenKV) Set(string, []byte) error                      { return errBroken }
func (brokenKV) Scan(string, func(string, []byte) error) error { return errBroken }

func TestCache_RemovePrefix(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvs(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestCache(t, kv)
			c.SetNotes(ctx, "u1", "bkt-1", nil)
			c.SetAllNotes(ctx, "u1", nil)
			c.SetNotes(ctx, "u10", "bkt-1", nil)
			c.SetBuckets(ctx, "u1", sampleBuckets())

			c.RemovePrefix(ctx, NotesPrefix("u1"))

			_, ok := c.GetNotes(ctx, "u1", "bkt-1")
			assert.False(t, ok)
			_, ok = c.GetAllNotes(ctx, "u1")
			assert.False(t, ok)
			_, ok = c.GetNotes(ctx, "u10", "bkt-1")
			assert.True(t, ok)
			_, ok = c.GetBuckets(ctx, "u1")
			assert.True(t, ok)
		})
	}
}

func TestCache_FailuresAreMisses(t *testing.T) {
	ctx := context.Background()

	unavailable, _ := newTestCache(t, nil)
	unavailable.SetBuckets(ctx, "u1", sampleBuckets())
	_, ok := unavailable.GetBuckets(ctx, "u1")
	assert.False(t, ok)
	assert.False(t, unavailable.IsFresh(ctx, "u1"))
	assert.Zero(t, unavailable.Size(ctx))
	unavailable.ClearUserCache(ctx, "u1")

	broken, _ := newTestCache(t, &brokenKV{MemoryKV: *NewMemoryKV()})
	broken.SetBuckets(ctx, "u1", sampleBuckets())
	_, ok = broken.GetBuckets(ctx, "u1")
	assert.False(t, ok)
	assert.Zero(t, broken.Size(ctx))

	kv := NewMemoryKV()
	require.NoError(t, kv.Set(BucketsKey("u1"), []byte("{not json")))
	c, _ := newTestCache(t, kv)
	_, ok = c.GetBuckets(ctx, "u1")
	assert.False(t, ok)
}

func TestCache_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	clock := &fakeClock{now: time.Now()}
	c := New(NewMemoryKV(), slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(clock.Now), WithMetrics(m))

	c.GetBuckets(ctx, "u1")
	c.SetBuckets(ctx, "u1", sampleBuckets())
	c.GetBuckets(ctx, "u1")
	c.ClearUserCache(ctx, "u1")

	purges, err := testutil.GatherAndCount(m.Registry(), "stickynotes_cache_user_purges_total")
	require.NoError(t, err)
	assert.Equal(t, 1, purges)

	lookups, err := testutil.GatherAndCount(m.Registry(), "stickynotes_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 2, lookups, "hit and miss series")
}

func TestOwnedBy(t *testing.T) {
	tests := []struct {
		key, user string
		want      bool
	}{
		{BucketsKey("u1"), "u1", true},
		{NotesKey("u1", "bkt-1"), "u1", true},
		{AllNotesKey("u1"), "u1", true},
		{LastSyncKey("u1"), "u1", true},
		{BucketsKey("u10"), "u1", false},
		{NotesKey("u10", "bkt-1"), "u1", false},
		{BucketsKey("u1"), "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ownedBy(tt.key, tt.user), "ownedBy(%q, %q)", tt.key, tt.user)
	}
}
