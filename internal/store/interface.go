// Package store defines the storage contract implemented by the relational
// backend (package sqlite) and the document backend (package docstore).
//
// Every method is scoped to one owner. Lookups, updates and deletes by id
// report absence as a nil result (or false) with a nil error; records owned
// by someone else are indistinguishable from absent ones. Errors are always
// *errors.Error values from internal/errors; backend-native error types never
// cross this interface.
package store

import (
	"context"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// Backend is the capability contract every storage backend satisfies.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Close() error

	// Buckets
	GetUserBuckets(ctx context.Context, ownerID string) ([]domain.BucketWithCount, error)
	CreateBucket(ctx context.Context, ownerID string, in domain.BucketInput) (*domain.Bucket, error)
	UpdateBucket(ctx context.Context, ownerID, id string, patch domain.BucketPatch) (*domain.Bucket, error)
	DeleteBucket(ctx context.Context, ownerID, id string) (bool, error)
	GetBucket(ctx context.Context, ownerID, id string) (*domain.Bucket, error)
	GetBucketNotes(ctx context.Context, ownerID, bucketID string) ([]domain.NoteWithBuckets, error)

	// Notes
	CreateNote(ctx context.Context, ownerID string, in domain.NoteInput, bucketIDs []string) (*domain.Note, error)
	UpdateNote(ctx context.Context, ownerID, id string, patch domain.NotePatch, bucketIDs []string) (*domain.Note, error)
	DeleteNote(ctx context.Context, ownerID, id string) (bool, error)
	GetNote(ctx context.Context, ownerID, id string) (*domain.NoteWithBuckets, error)
	SearchNotes(ctx context.Context, ownerID, query, bucketID string) ([]domain.NoteWithBuckets, error)
	GetAllUserNotes(ctx context.Context, ownerID string) ([]domain.NoteWithBuckets, error)
}

// Membership resolves the bucket ids of a create request. The explicit list
// wins; when it is empty the input's PrimaryBucketID is the whole membership.
func Membership(in domain.NoteInput, bucketIDs []string) (primary string, shared []string, err error) {
	if len(bucketIDs) == 0 && in.PrimaryBucketID != "" {
		bucketIDs = []string{in.PrimaryBucketID}
	}
	primary, shared = domain.SplitMembership(bucketIDs)
	if primary == "" {
		return "", nil, ErrMembershipRequired
	}
	return primary, shared, nil
}

// ReplaceMembership resolves the bucket ids of an update request. A nil list
// means "leave membership alone" and reports ok=false.
func ReplaceMembership(bucketIDs []string) (primary string, shared []string, ok bool, err error) {
	if bucketIDs == nil {
		return "", nil, false, nil
	}
	primary, shared = domain.SplitMembership(bucketIDs)
	if primary == "" {
		return "", nil, false, ErrMembershipRequired
	}
	return primary, shared, true, nil
}
