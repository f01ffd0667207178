// Package docstore implements store.Backend on Badger, laid out the way a
// hosted document database would hold it: one document per bucket and note
// under a per-user hierarchy, with shared memberships embedded in the note as
// an id array. There are no joins; reads resolve shared buckets one document
// at a time.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/store"
	"github.com/stickynotes/stickynotes-server/internal/store/docshape"
)

const backendName = "docstore"

// Store wraps a Badger database instance.
type Store struct {
	db        *badger.DB
	logger    *slog.Logger
	countMode domain.CountMode
	now       func() time.Time
	inMemory  bool

	// failpoint is consulted between the mutations of a cascading delete,
	// before the transaction commits.
	failpoint func(step string) error
}

var _ store.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCountMode selects how bucket note counts are derived. The default
// counts primary and shared memberships.
func WithCountMode(mode domain.CountMode) Option {
	return func(s *Store) {
		if mode != "" {
			s.countMode = mode
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithInMemory keeps all data in memory. The path is ignored.
func WithInMemory() Option {
	return func(s *Store) { s.inMemory = true }
}

// Open opens (or creates) the Badger database at path.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		logger:    logger,
		countMode: domain.CountMembership,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	bopts := badger.DefaultOptions(path)
	if s.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil // Disable Badger's internal logging
	bopts.SyncWrites = !s.inMemory
	bopts.CompactL0OnClose = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	s.db = db

	logger.Info("document store opened", "path", path, "in_memory", s.inMemory, "count_mode", s.countMode)
	return s, nil
}

// Name implements store.Backend.
func (s *Store) Name() string { return backendName }

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing document store")
	return s.db.Close()
}

// CountMode reports how this store derives bucket note counts.
func (s *Store) CountMode() domain.CountMode { return s.countMode }

func (s *Store) fail(ctx context.Context, op string, err error) error {
	return store.Unavailable(ctx, s.logger, backendName, op, err)
}

func (s *Store) step(name string) error {
	if s.failpoint == nil {
		return nil
	}
	return s.failpoint(name)
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// view runs fn in a read-only transaction after checking ctx.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// update runs fn in a read-write transaction after checking ctx. Everything
// fn writes commits together or not at all.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

// getBucketDoc loads a bucket document, or nil when absent.
func getBucketDoc(txn *badger.Txn, uid, bucketID string) (*docshape.BucketDoc, error) {
	item, err := txn.Get(bucketKey(uid, bucketID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc docshape.BucketDoc
	err = item.Value(func(val []byte) error {
		doc, err = docshape.DecodeBucket(bucketID, val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// getNoteDoc loads a note document, or nil when absent.
func getNoteDoc(txn *badger.Txn, uid, noteID string) (*docshape.NoteDoc, error) {
	item, err := txn.Get(noteKey(uid, noteID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc docshape.NoteDoc
	err = item.Value(func(val []byte) error {
		doc, err = docshape.DecodeNote(noteID, val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// scanIDs returns the key suffixes under prefix without loading values.
func scanIDs(ctx context.Context, txn *badger.Txn, prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids = append(ids, string(it.Item().Key()[len(prefix):]))
	}
	return ids, nil
}

// countKeys counts the keys under prefix.
func countKeys(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

// scanDocs decodes every document directly under prefix.
func scanDocs[T any](ctx context.Context, txn *badger.Txn, prefix []byte, decode func(id string, data []byte) (T, error)) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	var docs []T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := it.Item()
		docID := string(item.Key()[len(prefix):])
		var doc T
		err := item.Value(func(val []byte) error {
			var err error
			doc, err = decode(docID, val)
			return err
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// putNote writes the note document and its membership index keys.
func putNote(txn *badger.Txn, doc docshape.NoteDoc) error {
	data, err := docshape.EncodeNote(doc)
	if err != nil {
		return err
	}
	if err := txn.Set(noteKey(doc.UserID, doc.ID), data); err != nil {
		return err
	}
	if err := txn.Set(primaryIdxKey(doc.UserID, doc.PrimaryBucketID, doc.ID), nil); err != nil {
		return err
	}
	for _, bucketID := range doc.SharedBucketIDs {
		if err := txn.Set(sharedIdxKey(doc.UserID, bucketID, doc.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

// dropNote removes the note document and its membership index keys.
func dropNote(txn *badger.Txn, doc docshape.NoteDoc) error {
	if err := dropNoteIndexes(txn, doc); err != nil {
		return err
	}
	return txn.Delete(noteKey(doc.UserID, doc.ID))
}

func dropNoteIndexes(txn *badger.Txn, doc docshape.NoteDoc) error {
	if err := txn.Delete(primaryIdxKey(doc.UserID, doc.PrimaryBucketID, doc.ID)); err != nil {
		return err
	}
	for _, bucketID := range doc.SharedBucketIDs {
		if err := txn.Delete(sharedIdxKey(doc.UserID, bucketID, doc.ID)); err != nil {
			return err
		}
	}
	return nil
}

// ownedBuckets reports whether every id names a bucket document of uid.
func ownedBuckets(txn *badger.Txn, uid string, bucketIDs []string) (bool, error) {
	for _, bucketID := range slices.Compact(slices.Sorted(slices.Values(bucketIDs))) {
		doc, err := getBucketDoc(txn, uid, bucketID)
		if err != nil {
			return false, err
		}
		if doc == nil {
			return false, nil
		}
	}
	return true, nil
}
