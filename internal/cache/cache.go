// Package cache is the per-user local cache that sits in front of the
// storage backends. Entries carry the owner they were written for and the
// time they were written; reads that fail either check are misses.
//
// The cache is advisory. Every failure is logged and reported as a miss, so
// callers always fall through to the authoritative store.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
)

const (
	// Namespace prefixes every key the cache writes.
	Namespace = "sticky_notes"

	// Expiry is the age after which an entry reads as a miss and is removed.
	Expiry = 5 * time.Minute

	// FreshWindow is how recently the last sync must have happened for the
	// cache to count as fresh.
	FreshWindow = 60 * time.Second
)

// Well-known keys.
const (
	bucketsKey  = Namespace + "_buckets"
	notesKey    = Namespace + "_notes"
	lastSyncKey = Namespace + "_last_sync"

	// UserIDKey records the last signed-in user. It is not scoped by user.
	UserIDKey = Namespace + "_user_id"
)

// BucketsKey is the key of a user's bucket list.
func BucketsKey(userID string) string {
	return bucketsKey + "_" + userID
}

// NotesKey is the key of the note list of one bucket.
func NotesKey(userID, bucketID string) string {
	return notesKey + "_" + userID + "_" + bucketID
}

// AllNotesKey is the key of a user's complete note list.
func AllNotesKey(userID string) string {
	return notesKey + "_" + userID + "_all"
}

// NotesPrefix is shared by every note list key of userID, including
// AllNotesKey.
func NotesPrefix(userID string) string {
	return notesKey + "_" + userID + "_"
}

// LastSyncKey is the key of a user's sync metadata.
func LastSyncKey(userID string) string {
	return lastSyncKey + "_" + userID
}

// entry is the stored envelope.
type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix millis
	UserID    string          `json:"userId"`
}

// SyncMetadata is stored under LastSyncKey.
type SyncMetadata struct {
	LastSync int64  `json:"lastSync"` // unix millis
	UserID   string `json:"userId"`
}

// Cache reads and writes user-scoped entries through a KV.
type Cache struct {
	kv      KV
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics records lookups and purges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a cache over kv. A nil kv yields a cache that is always
// unavailable: every read misses and every write is dropped.
func New(kv KV, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{kv: kv, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether the cache has a backing store.
func (c *Cache) Available() bool {
	return c != nil && c.kv != nil
}

func (c *Cache) warn(ctx context.Context, msg, key string, err error) {
	c.logger.LogAttrs(ctx, slog.LevelWarn, msg,
		slog.String("key", key),
		slog.Any("error", err),
	)
}

// Set stores data under key, stamped with the current time and userID.
func (c *Cache) Set(ctx context.Context, key string, data any, userID string) {
	if !c.Available() {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		c.warn(ctx, "failed to encode cache entry", key, err)
		return
	}
	raw, err := json.Marshal(entry{
		Data:      payload,
		Timestamp: c.now().UnixMilli(),
		UserID:    userID,
	})
	if err != nil {
		c.warn(ctx, "failed to encode cache entry", key, err)
		return
	}
	if err := c.kv.Set(key, raw); err != nil {
		c.warn(ctx, "failed to save cache entry", key, err)
	}
}

// Get decodes the entry under key into out. It reports a miss when the cache
// is unavailable, the entry is absent or undecodable, the entry is older than
// Expiry (the entry is removed), or the entry belongs to another user (all of
// userID's entries are purged).
func (c *Cache) Get(ctx context.Context, key, userID string, out any) bool {
	if !c.Available() {
		c.metrics.CacheLookup("unavailable")
		return false
	}

	raw, ok, err := c.kv.Get(key)
	if err != nil {
		c.warn(ctx, "failed to read cache entry", key, err)
		c.metrics.CacheLookup("error")
		return false
	}
	if !ok {
		c.metrics.CacheLookup("miss")
		return false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.warn(ctx, "failed to decode cache entry", key, err)
		c.metrics.CacheLookup("error")
		return false
	}

	if e.UserID != userID {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "cache entry owned by another user",
			slog.String("key", key),
			slog.String("user_id", userID),
		)
		c.metrics.CacheLookup("foreign")
		c.ClearUserCache(ctx, userID)
		return false
	}

	if c.now().Sub(time.UnixMilli(e.Timestamp)) > Expiry {
		c.metrics.CacheLookup("expired")
		c.Remove(ctx, key)
		return false
	}

	if err := json.Unmarshal(e.Data, out); err != nil {
		c.warn(ctx, "failed to decode cache entry", key, err)
		c.metrics.CacheLookup("error")
		return false
	}
	c.metrics.CacheLookup("hit")
	return true
}

// Remove deletes the given keys.
func (c *Cache) Remove(ctx context.Context, keys ...string) {
	if !c.Available() || len(keys) == 0 {
		return
	}
	if err := c.kv.Delete(keys...); err != nil {
		c.warn(ctx, "failed to remove cache entry", strings.Join(keys, ","), err)
	}
}

// RemovePrefix deletes every entry whose key starts with prefix.
func (c *Cache) RemovePrefix(ctx context.Context, prefix string) {
	if !c.Available() || prefix == "" {
		return
	}
	var keys []string
	err := c.kv.Scan(prefix, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		c.warn(ctx, "failed to list cache entries", prefix, err)
	}
	c.Remove(ctx, keys...)
}

// SetBuckets caches a user's bucket list and records a sync.
func (c *Cache) SetBuckets(ctx context.Context, userID string, buckets []domain.BucketWithCount) {
	c.Set(ctx, BucketsKey(userID), buckets, userID)
	c.UpdateLastSync(ctx, userID)
}

// GetBuckets returns the cached bucket list of userID.
func (c *Cache) GetBuckets(ctx context.Context, userID string) ([]domain.BucketWithCount, bool) {
	var buckets []domain.BucketWithCount
	if !c.Get(ctx, BucketsKey(userID), userID, &buckets) {
		return nil, false
	}
	return buckets, true
}

// SetNotes caches the note list of one bucket.
func (c *Cache) SetNotes(ctx context.Context, userID, bucketID string, notes []domain.NoteWithBuckets) {
	c.Set(ctx, NotesKey(userID, bucketID), notes, userID)
}

// GetNotes returns the cached note list of one bucket.
func (c *Cache) GetNotes(ctx context.Context, userID, bucketID string) ([]domain.NoteWithBuckets, bool) {
	var notes []domain.NoteWithBuckets
	if !c.Get(ctx, NotesKey(userID, bucketID), userID, &notes) {
		return nil, false
	}
	return notes, true
}

// SetAllNotes caches every note of a user.
func (c *Cache) SetAllNotes(ctx context.Context, userID string, notes []domain.NoteWithBuckets) {
	c.Set(ctx, AllNotesKey(userID), notes, userID)
}

// GetAllNotes returns the cached complete note list of userID.
func (c *Cache) GetAllNotes(ctx context.Context, userID string) ([]domain.NoteWithBuckets, bool) {
	var notes []domain.NoteWithBuckets
	if !c.Get(ctx, AllNotesKey(userID), userID, &notes) {
		return nil, false
	}
	return notes, true
}

// UpdateLastSync records that userID's data was just fetched.
func (c *Cache) UpdateLastSync(ctx context.Context, userID string) {
	c.Set(ctx, LastSyncKey(userID), SyncMetadata{
		LastSync: c.now().UnixMilli(),
		UserID:   userID,
	}, userID)
}

// LastSync returns when userID's data was last fetched.
func (c *Cache) LastSync(ctx context.Context, userID string) (time.Time, bool) {
	var meta SyncMetadata
	if !c.Get(ctx, LastSyncKey(userID), userID, &meta) || meta.LastSync == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(meta.LastSync), true
}

// IsFresh reports whether userID synced within FreshWindow.
func (c *Cache) IsFresh(ctx context.Context, userID string) bool {
	last, ok := c.LastSync(ctx, userID)
	if !ok {
		return false
	}
	return c.now().Sub(last) < FreshWindow
}

// RememberUser records userID as the last signed-in user.
func (c *Cache) RememberUser(ctx context.Context, userID string) {
	if !c.Available() {
		return
	}
	if err := c.kv.Set(UserIDKey, []byte(userID)); err != nil {
		c.warn(ctx, "failed to save cache entry", UserIDKey, err)
	}
}

// RememberedUser returns the last signed-in user, if any.
func (c *Cache) RememberedUser(ctx context.Context) (string, bool) {
	if !c.Available() {
		return "", false
	}
	raw, ok, err := c.kv.Get(UserIDKey)
	if err != nil {
		c.warn(ctx, "failed to read cache entry", UserIDKey, err)
		return "", false
	}
	return string(raw), ok && len(raw) > 0
}

// ownedBy reports whether key is scoped to userID. Keys are matched on whole
// "_"-separated segments so that clearing "u1" leaves "u10" alone.
func ownedBy(key, userID string) bool {
	if userID == "" {
		return false
	}
	return strings.HasSuffix(key, "_"+userID) || strings.Contains(key, "_"+userID+"_")
}

// ClearUserCache removes every entry scoped to userID plus the top-level
// keys.
func (c *Cache) ClearUserCache(ctx context.Context, userID string) {
	if !c.Available() {
		return
	}
	keys := []string{UserIDKey, bucketsKey, notesKey, lastSyncKey}
	err := c.kv.Scan(Namespace, func(key string, _ []byte) error {
		if ownedBy(key, userID) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		c.warn(ctx, "failed to list cache entries", Namespace, err)
	}
	c.Remove(ctx, keys...)
	c.metrics.CachePurge()
	c.logger.LogAttrs(ctx, slog.LevelDebug, "user cache cleared",
		slog.String("user_id", userID),
		slog.Int("keys", len(keys)),
	)
}

// ClearAll removes every entry in the cache namespace.
func (c *Cache) ClearAll(ctx context.Context) {
	if !c.Available() {
		return
	}
	var keys []string
	err := c.kv.Scan(Namespace, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		c.warn(ctx, "failed to list cache entries", Namespace, err)
	}
	c.Remove(ctx, keys...)
	c.metrics.CachePurge()
}

// Size returns the total size in bytes of every value in the cache namespace.
func (c *Cache) Size(ctx context.Context) int {
	if !c.Available() {
		return 0
	}
	total := 0
	err := c.kv.Scan(Namespace, func(_ string, value []byte) error {
		total += len(value)
		return nil
	})
	if err != nil {
		c.warn(ctx, "failed to list cache entries", Namespace, err)
		return 0
	}
	return total
}
