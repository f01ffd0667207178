package docstore

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/id"
	"github.com/stickynotes/stickynotes-server/internal/store"
	"github.com/stickynotes/stickynotes-server/internal/store/docshape"
)

// GetUserBuckets returns the owner's buckets in creation order. Counts come
// from the membership indexes.
func (s *Store) GetUserBuckets(ctx context.Context, ownerID string) ([]domain.BucketWithCount, error) {
	buckets := []domain.BucketWithCount{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		docs, err := scanDocs(ctx, txn, bucketsPrefix(ownerID), docshape.DecodeBucket)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			count := countKeys(txn, primaryIdxPrefix(ownerID, doc.ID))
			if s.countMode == domain.CountMembership {
				count += countKeys(txn, sharedIdxPrefix(ownerID, doc.ID))
			}
			buckets = append(buckets, docshape.BucketWithCountFromDoc(doc, count))
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "get_user_buckets", err)
	}

	slices.SortStableFunc(buckets, func(a, b domain.BucketWithCount) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return buckets, nil
}

// GetBucket returns the bucket, or nil when it does not exist for this owner.
func (s *Store) GetBucket(ctx context.Context, ownerID, bucketID string) (*domain.Bucket, error) {
	var doc *docshape.BucketDoc
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		doc, err = getBucketDoc(txn, ownerID, bucketID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "get_bucket", err)
	}
	if doc == nil {
		return nil, nil
	}
	b := docshape.BucketFromDoc(*doc)
	return &b, nil
}

// CreateBucket writes a new bucket document.
func (s *Store) CreateBucket(ctx context.Context, ownerID string, in domain.BucketInput) (*domain.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, store.ErrEmptyName
	}
	in = in.WithDefaults()

	bucketID, err := id.Generate(id.BucketPrefix)
	if err != nil {
		return nil, s.fail(ctx, "create_bucket", err)
	}

	b := domain.Bucket{
		ID:          bucketID,
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Icon:        in.Icon,
	}
	b.InitTimestamps(s.clock())

	err = s.update(ctx, func(txn *badger.Txn) error {
		return putBucket(txn, docshape.BucketToDoc(b))
	})
	if err != nil {
		return nil, s.fail(ctx, "create_bucket", err)
	}
	return &b, nil
}

// UpdateBucket applies a partial update. Returns nil when the bucket does not
// exist for this owner.
func (s *Store) UpdateBucket(ctx context.Context, ownerID, bucketID string, patch domain.BucketPatch) (*domain.Bucket, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, store.ErrEmptyName
	}

	var updated *domain.Bucket
	err := s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getBucketDoc(txn, ownerID, bucketID)
		if err != nil || doc == nil {
			return err
		}
		b := docshape.BucketFromDoc(*doc)
		patch.Apply(&b)
		b.Touch(s.clock())
		if err := putBucket(txn, docshape.BucketToDoc(b)); err != nil {
			return err
		}
		updated = &b
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "update_bucket", err)
	}
	return updated, nil
}

// DeleteBucket removes the bucket in a single transaction: notes whose
// primary bucket it was are deleted, notes sharing it have it stripped from
// sharedBucketIds and updatedAt refreshed, then the bucket document goes.
func (s *Store) DeleteBucket(ctx context.Context, ownerID, bucketID string) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getBucketDoc(txn, ownerID, bucketID)
		if err != nil || doc == nil {
			return err
		}

		primaryIDs, err := scanIDs(ctx, txn, primaryIdxPrefix(ownerID, bucketID))
		if err != nil {
			return err
		}
		sharedIDs, err := scanIDs(ctx, txn, sharedIdxPrefix(ownerID, bucketID))
		if err != nil {
			return err
		}

		if err := s.step("delete_primary_notes"); err != nil {
			return err
		}
		for _, noteID := range primaryIDs {
			note, err := getNoteDoc(txn, ownerID, noteID)
			if err != nil {
				return err
			}
			if note == nil {
				// Dangling index entry.
				if err := txn.Delete(primaryIdxKey(ownerID, bucketID, noteID)); err != nil {
					return err
				}
				continue
			}
			if err := dropNote(txn, *note); err != nil {
				return err
			}
		}

		if err := s.step("strip_shares"); err != nil {
			return err
		}
		now := docshape.TimestampFromTime(s.clock())
		for _, noteID := range sharedIDs {
			if err := txn.Delete(sharedIdxKey(ownerID, bucketID, noteID)); err != nil {
				return err
			}
			note, err := getNoteDoc(txn, ownerID, noteID)
			if err != nil {
				return err
			}
			if note == nil {
				continue
			}
			note.SharedBucketIDs = slices.DeleteFunc(note.SharedBucketIDs, func(id string) bool {
				return id == bucketID
			})
			note.UpdatedAt = now
			if err := putNote(txn, *note); err != nil {
				return err
			}
		}

		if err := s.step("delete_bucket"); err != nil {
			return err
		}
		if err := txn.Delete(bucketKey(ownerID, bucketID)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, s.fail(ctx, "delete_bucket", err)
	}
	return deleted, nil
}

func putBucket(txn *badger.Txn, doc docshape.BucketDoc) error {
	data, err := docshape.EncodeBucket(doc)
	if err != nil {
		return err
	}
	return txn.Set(bucketKey(doc.UserID, doc.ID), data)
}
