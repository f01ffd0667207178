package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/store/docshape"
	"github.com/stickynotes/stickynotes-server/internal/store/storetest"
)

var errInjected = errors.New("injected fault")

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open("", logger, append([]Option{WithInMemory()}, opts...)...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

// failOnce arms the store to fail the first time a write reaches step.
func (s *Store) failOnce(step string) {
	s.failpoint = func(got string) error {
		if got != step {
			return nil
		}
		s.failpoint = nil
		return errInjected
	}
}

func harness(mode domain.CountMode) storetest.Factory {
	return func(t *testing.T, clock *storetest.Clock) storetest.Harness {
		s := newTestStore(t, WithClock(clock.Now), WithCountMode(mode))
		return storetest.Harness{
			Backend:      s,
			CountMode:    s.CountMode(),
			CascadeSteps: []string{"delete_primary_notes", "strip_shares", "delete_bucket"},
			FailAt:       s.failOnce,
		}
	}
}

func TestConformance(t *testing.T) {
	storetest.Run(t, harness(""))
}

func TestConformance_PrimaryCount(t *testing.T) {
	storetest.Run(t, harness(domain.CountPrimary))
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(dir, logger)
	require.NoError(t, err)
	b, err := s.CreateBucket(context.Background(), "u1", domain.BucketInput{Name: "Keep"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	got, err := s.GetBucket(context.Background(), "u1", b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Keep", got.Name)
	assert.Equal(t, domain.CountMembership, s.CountMode())
	assert.Equal(t, "docstore", s.Name())
}

func rawKeys(t *testing.T, s *Store, prefix string) []string {
	t.Helper()
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := scanIDs(context.Background(), txn, []byte(prefix))
		keys = ids
		return err
	})
	require.NoError(t, err)
	return keys
}

func TestIndexesFollowMembership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t.Cleanup(func() { s.Close() })

	a, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "A"})
	require.NoError(t, err)
	b, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "B"})
	require.NoError(t, err)

	note, err := s.CreateNote(ctx, "u1", domain.NoteInput{Title: "t", Content: "c"}, []string{a.ID, b.ID})
	require.NoError(t, err)

	assert.Equal(t, []string{note.ID}, rawKeys(t, s, string(primaryIdxPrefix("u1", a.ID))))
	assert.Equal(t, []string{note.ID}, rawKeys(t, s, string(sharedIdxPrefix("u1", b.ID))))

	_, err = s.UpdateNote(ctx, "u1", note.ID, domain.NotePatch{}, []string{b.ID})
	require.NoError(t, err)

	assert.Empty(t, rawKeys(t, s, string(primaryIdxPrefix("u1", a.ID))))
	assert.Empty(t, rawKeys(t, s, string(sharedIdxPrefix("u1", b.ID))))
	assert.Equal(t, []string{note.ID}, rawKeys(t, s, string(primaryIdxPrefix("u1", b.ID))))

	ok, err := s.DeleteNote(ctx, "u1", note.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, rawKeys(t, s, userPrefix("u1")+"idx/"))
}

func TestStoredShape(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t.Cleanup(func() { s.Close() })

	a, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "A"})
	require.NoError(t, err)
	note, err := s.CreateNote(ctx, "u1", domain.NoteInput{Title: "t", Content: "c"}, []string{a.ID})
	require.NoError(t, err)

	var raw map[string]any
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(noteKey("u1", note.ID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &raw)
		})
	})
	require.NoError(t, err)

	assert.NotContains(t, raw, "tags", "empty optional fields are not written")
	assert.NotContains(t, raw, "pinned")
	assert.Equal(t, []any{}, raw["sharedBucketIds"])
	assert.Equal(t, a.ID, raw["primaryBucketId"])
	created, ok := raw["createdAt"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, created, "seconds")
	assert.Contains(t, created, "nanoseconds")
}

func TestHydrate_SkipsMissingBuckets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t.Cleanup(func() { s.Close() })

	a, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "A"})
	require.NoError(t, err)

	// A document written by another client that references a bucket which
	// no longer exists.
	doc := docshape.NoteDoc{
		ID:              "note-foreign",
		Title:           "t",
		Content:         "c",
		UserID:          "u1",
		PrimaryBucketID: a.ID,
		SharedBucketIDs: []string{"bkt-gone", a.ID},
	}
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return putNote(txn, doc)
	}))

	got, err := s.GetNote(ctx, "u1", "note-foreign")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"bkt-gone"}, got.SharedBucketIDs, "the primary is filtered out of shared")
	assert.Empty(t, got.SharedBuckets)
	assert.Equal(t, domain.DefaultNoteColor, got.Color)
}
