package query

import (
	"context"

	"github.com/stickynotes/stickynotes-server/internal/cache"
	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/store"
)

// BucketsQuery reads a user's buckets with note counts. A successful fetch
// also records the user's last sync.
func BucketsQuery(b store.Backend, userID string) Query[[]domain.BucketWithCount] {
	return Query[[]domain.BucketWithCount]{
		Key:    cache.BucketsKey(userID),
		UserID: userID,
		Fetch: func(ctx context.Context) ([]domain.BucketWithCount, error) {
			return b.GetUserBuckets(ctx, userID)
		},
		Save: func(ctx context.Context, c *cache.Cache, buckets []domain.BucketWithCount) {
			c.SetBuckets(ctx, userID, buckets)
		},
	}
}

// BucketNotesQuery reads the notes of one bucket.
func BucketNotesQuery(b store.Backend, userID, bucketID string) Query[[]domain.NoteWithBuckets] {
	return Query[[]domain.NoteWithBuckets]{
		Key:    cache.NotesKey(userID, bucketID),
		UserID: userID,
		Fetch: func(ctx context.Context) ([]domain.NoteWithBuckets, error) {
			return b.GetBucketNotes(ctx, userID, bucketID)
		},
	}
}

// AllNotesQuery reads every note of a user.
func AllNotesQuery(b store.Backend, userID string) Query[[]domain.NoteWithBuckets] {
	return Query[[]domain.NoteWithBuckets]{
		Key:    cache.AllNotesKey(userID),
		UserID: userID,
		Fetch: func(ctx context.Context) ([]domain.NoteWithBuckets, error) {
			return b.GetAllUserNotes(ctx, userID)
		},
	}
}
