package docstore

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/id"
	"github.com/stickynotes/stickynotes-server/internal/store"
	"github.com/stickynotes/stickynotes-server/internal/store/docshape"
	"github.com/stickynotes/stickynotes-server/internal/textmatch"
)

// CreateNote writes a note document and its membership index entries.
func (s *Store) CreateNote(ctx context.Context, ownerID string, in domain.NoteInput, bucketIDs []string) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.CheckNoteInput(in); err != nil {
		return nil, err
	}
	primary, shared, err := store.Membership(in, bucketIDs)
	if err != nil {
		return nil, err
	}
	in = in.WithDefaults()

	noteID, err := id.Generate(id.NotePrefix)
	if err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}

	n := domain.Note{
		ID:              noteID,
		OwnerID:         ownerID,
		Title:           in.Title,
		Content:         in.Content,
		Color:           in.Color,
		FontFamily:      in.FontFamily,
		Pinned:          in.Pinned,
		Tags:            in.Tags,
		PrimaryBucketID: primary,
		SharedBucketIDs: shared,
	}
	n.InitTimestamps(s.clock())

	err = s.update(ctx, func(txn *badger.Txn) error {
		ok, err := ownedBuckets(txn, ownerID, n.Membership())
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrUnknownBucket
		}
		return putNote(txn, docshape.NoteToDoc(n))
	})
	if err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}
	return &n, nil
}

// UpdateNote applies a partial update. A non-nil bucketIDs replaces the
// membership wholesale. Returns nil when the note does not exist for this
// owner.
func (s *Store) UpdateNote(ctx context.Context, ownerID, noteID string, patch domain.NotePatch, bucketIDs []string) (*domain.Note, error) {
	if err := store.CheckNotePatch(patch); err != nil {
		return nil, err
	}
	primary, shared, replace, err := store.ReplaceMembership(bucketIDs)
	if err != nil {
		return nil, err
	}

	var updated *domain.Note
	err = s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getNoteDoc(txn, ownerID, noteID)
		if err != nil || doc == nil {
			return err
		}

		n := docshape.NoteFromDoc(*doc)
		patch.Apply(&n)
		if replace {
			n.PrimaryBucketID, n.SharedBucketIDs = primary, shared
			ok, err := ownedBuckets(txn, ownerID, n.Membership())
			if err != nil {
				return err
			}
			if !ok {
				return store.ErrUnknownBucket
			}
		}
		n.Touch(s.clock())

		if err := dropNoteIndexes(txn, *doc); err != nil {
			return err
		}
		if err := putNote(txn, docshape.NoteToDoc(n)); err != nil {
			return err
		}
		updated = &n
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "update_note", err)
	}
	return updated, nil
}

// DeleteNote removes the note document and its index entries.
func (s *Store) DeleteNote(ctx context.Context, ownerID, noteID string) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		doc, err := getNoteDoc(txn, ownerID, noteID)
		if err != nil || doc == nil {
			return err
		}
		if err := dropNote(txn, *doc); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, s.fail(ctx, "delete_note", err)
	}
	return deleted, nil
}

// GetNote returns the note with its shared buckets, or nil when it does not
// exist for this owner.
func (s *Store) GetNote(ctx context.Context, ownerID, noteID string) (*domain.NoteWithBuckets, error) {
	var result *domain.NoteWithBuckets
	err := s.view(ctx, func(txn *badger.Txn) error {
		doc, err := getNoteDoc(txn, ownerID, noteID)
		if err != nil || doc == nil {
			return err
		}
		notes, err := hydrate(ctx, txn, []docshape.NoteDoc{*doc})
		if err != nil {
			return err
		}
		result = &notes[0]
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "get_note", err)
	}
	return result, nil
}

// GetBucketNotes runs the primary and shared membership scans, merges them by
// note id and hydrates the result.
func (s *Store) GetBucketNotes(ctx context.Context, ownerID, bucketID string) ([]domain.NoteWithBuckets, error) {
	var notes []domain.NoteWithBuckets
	err := s.view(ctx, func(txn *badger.Txn) error {
		primaryIDs, err := scanIDs(ctx, txn, primaryIdxPrefix(ownerID, bucketID))
		if err != nil {
			return err
		}
		sharedIDs, err := scanIDs(ctx, txn, sharedIdxPrefix(ownerID, bucketID))
		if err != nil {
			return err
		}

		merged := make(map[string]docshape.NoteDoc, len(primaryIDs)+len(sharedIDs))
		for _, noteID := range append(primaryIDs, sharedIDs...) {
			if _, seen := merged[noteID]; seen {
				continue
			}
			doc, err := getNoteDoc(txn, ownerID, noteID)
			if err != nil {
				return err
			}
			if doc != nil {
				merged[noteID] = *doc
			}
		}

		docs := make([]docshape.NoteDoc, 0, len(merged))
		for _, doc := range merged {
			docs = append(docs, doc)
		}
		notes, err = hydrate(ctx, txn, docs)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "get_bucket_notes", err)
	}
	domain.SortNotes(notes)
	return notes, nil
}

// SearchNotes loads every note of the owner and filters in process with
// Unicode case folding. A non-empty bucketID restricts results to that
// bucket's members.
func (s *Store) SearchNotes(ctx context.Context, ownerID, query, bucketID string) ([]domain.NoteWithBuckets, error) {
	matcher := textmatch.NewMatcher(query)

	var notes []domain.NoteWithBuckets
	err := s.view(ctx, func(txn *badger.Txn) error {
		docs, err := scanDocs(ctx, txn, notesPrefix(ownerID), docshape.DecodeNote)
		if err != nil {
			return err
		}

		matched := docs[:0]
		for _, doc := range docs {
			if !matcher.Match(doc.Title, doc.Content) {
				continue
			}
			if bucketID != "" {
				n := docshape.NoteFromDoc(doc)
				if !n.InBucket(bucketID) {
					continue
				}
			}
			matched = append(matched, doc)
		}

		notes, err = hydrate(ctx, txn, matched)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "search_notes", err)
	}
	domain.SortNotesByUpdated(notes)
	return notes, nil
}

// GetAllUserNotes returns every note of the owner, most recently updated first.
func (s *Store) GetAllUserNotes(ctx context.Context, ownerID string) ([]domain.NoteWithBuckets, error) {
	var notes []domain.NoteWithBuckets
	err := s.view(ctx, func(txn *badger.Txn) error {
		docs, err := scanDocs(ctx, txn, notesPrefix(ownerID), docshape.DecodeNote)
		if err != nil {
			return err
		}
		notes, err = hydrate(ctx, txn, docs)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "get_all_user_notes", err)
	}
	domain.SortNotesByUpdated(notes)
	return notes, nil
}
