// Package service exposes the storage facade used by the REST layer and by
// in-process callers. The facade resolves the current user, validates input,
// reads through the query client and invalidates cached reads after writes.
package service

import (
	"context"
	"log/slog"

	"github.com/stickynotes/stickynotes-server/internal/cache"
	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
	"github.com/stickynotes/stickynotes-server/internal/query"
	"github.com/stickynotes/stickynotes-server/internal/store"
	"github.com/stickynotes/stickynotes-server/internal/validation"
)

// Identity supplies the signed-in user. A nil user means nobody is signed in.
type Identity interface {
	CurrentUser(ctx context.Context) *domain.User
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func(ctx context.Context) *domain.User

// CurrentUser implements Identity.
func (f IdentityFunc) CurrentUser(ctx context.Context) *domain.User { return f(ctx) }

// Storage is the caller-scoped facade over a store.Backend.
type Storage struct {
	backend   store.Backend
	queries   *query.Client
	identity  Identity
	validator *validation.Validator
	logger    *slog.Logger
}

// NewStorage creates the facade.
func NewStorage(backend store.Backend, queries *query.Client, identity Identity, v *validation.Validator, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		backend:   backend,
		queries:   queries,
		identity:  identity,
		validator: v,
		logger:    logger,
	}
}

// Backend returns the configured backend.
func (s *Storage) Backend() store.Backend {
	return s.backend
}

func (s *Storage) userID(ctx context.Context) (string, error) {
	if s.identity == nil {
		return "", domainerrors.ErrUnauthenticated
	}
	u := s.identity.CurrentUser(ctx)
	if u == nil || u.ID == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	return u.ID, nil
}

// read runs q and falls back to the last cached value when the fetch fails.
func read[T any](ctx context.Context, s *Storage, q query.Query[T]) (T, error) {
	res := query.Fetch(ctx, s.queries, q)
	if res.Err != nil {
		if res.FromCache {
			s.logger.Warn("serving cached result after failed fetch",
				slog.String("key", q.Key),
				slog.Any("error", res.Err))
			return res.Data, nil
		}
		var zero T
		return zero, res.Err
	}
	return res.Data, nil
}

// invalidate drops the bucket list and every note list of userID.
// Note lists embed shared bucket records and bucket lists embed note counts,
// so any write can change both.
func (s *Storage) invalidate(ctx context.Context, userID string) {
	s.queries.Invalidate(ctx, cache.BucketsKey(userID))
	s.queries.InvalidatePrefix(ctx, cache.NotesPrefix(userID))
}

// GetUserBuckets returns the current user's buckets with note counts.
func (s *Storage) GetUserBuckets(ctx context.Context) ([]domain.BucketWithCount, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return read(ctx, s, query.BucketsQuery(s.backend, uid))
}

// GetBucket returns one bucket, or nil.
func (s *Storage) GetBucket(ctx context.Context, id string) (*domain.Bucket, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return s.backend.GetBucket(ctx, uid, id)
}

// CreateBucket creates a bucket for the current user.
func (s *Storage) CreateBucket(ctx context.Context, in domain.BucketInput) (*domain.Bucket, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	b, err := s.backend.CreateBucket(ctx, uid, in)
	if err != nil {
		return nil, err
	}
	s.queries.Invalidate(ctx, cache.BucketsKey(uid))
	return b, nil
}

// UpdateBucket applies patch to a bucket. Returns nil if it does not exist.
func (s *Storage) UpdateBucket(ctx context.Context, id string, patch domain.BucketPatch) (*domain.Bucket, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}
	b, err := s.backend.UpdateBucket(ctx, uid, id, patch)
	if err != nil {
		return nil, err
	}
	if b != nil {
		s.invalidate(ctx, uid)
	}
	return b, nil
}

// DeleteBucket deletes a bucket and cascades to its notes.
func (s *Storage) DeleteBucket(ctx context.Context, id string) (bool, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return false, err
	}
	ok, err := s.backend.DeleteBucket(ctx, uid, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.invalidate(ctx, uid)
	}
	return ok, nil
}

// GetBucketNotes returns every note whose membership includes bucketID.
func (s *Storage) GetBucketNotes(ctx context.Context, bucketID string) ([]domain.NoteWithBuckets, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return read(ctx, s, query.BucketNotesQuery(s.backend, uid, bucketID))
}

// CreateNote creates a note. The first of bucketIDs becomes the primary
// bucket; when bucketIDs is empty in.PrimaryBucketID is used.
func (s *Storage) CreateNote(ctx context.Context, in domain.NoteInput, bucketIDs []string) (*domain.Note, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	n, err := s.backend.CreateNote(ctx, uid, in, bucketIDs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, uid)
	return n, nil
}

// UpdateNote applies patch and, when bucketIDs is non-nil, replaces the
// note's membership. Returns nil if the note does not exist.
func (s *Storage) UpdateNote(ctx context.Context, id string, patch domain.NotePatch, bucketIDs []string) (*domain.Note, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}
	n, err := s.backend.UpdateNote(ctx, uid, id, patch, bucketIDs)
	if err != nil {
		return nil, err
	}
	if n != nil {
		s.invalidate(ctx, uid)
	}
	return n, nil
}

// DeleteNote deletes a note.
func (s *Storage) DeleteNote(ctx context.Context, id string) (bool, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return false, err
	}
	ok, err := s.backend.DeleteNote(ctx, uid, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.invalidate(ctx, uid)
	}
	return ok, nil
}

// GetNote returns one note with its shared buckets, or nil.
func (s *Storage) GetNote(ctx context.Context, id string) (*domain.NoteWithBuckets, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return s.backend.GetNote(ctx, uid, id)
}

// SearchNotes returns notes whose title or content contains q, optionally
// restricted to one bucket. Search results are never cached.
func (s *Storage) SearchNotes(ctx context.Context, q, bucketID string) ([]domain.NoteWithBuckets, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return s.backend.SearchNotes(ctx, uid, q, bucketID)
}

// GetAllUserNotes returns every note of the current user.
func (s *Storage) GetAllUserNotes(ctx context.Context) ([]domain.NoteWithBuckets, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	return read(ctx, s, query.AllNotesQuery(s.backend, uid))
}
