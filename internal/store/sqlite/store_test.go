package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
	"github.com/stickynotes/stickynotes-server/internal/store/storetest"
)

var errInjected = errors.New("injected fault")

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(dbPath, logger, opts...)
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
			CascadeSteps: []string{"touch_shared", "delete_shares", "delete_primary_notes", "delete_bucket"},
			FailAt:       s.failOnce,
		}
	}
}

func TestConformance(t *testing.T) {
	storetest.Run(t, harness(""))
}

func TestConformance_MembershipCount(t *testing.T) {
	storetest.Run(t, harness(domain.CountMembership))
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)
	t.Cleanup(func() { s.Close() })

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Every pooled connection must enforce foreign keys.
	conns := make([]*sql.Conn, 0, 3)
	for range 3 {
		conn, err := s.db.Conn(context.Background())
		if err != nil {
			t.Fatalf("conn: %v", err)
		}
		conns = append(conns, conn)
	}
	for i, conn := range conns {
		var fk int
		if err := conn.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("query foreign_keys: %v", err)
		}
		if fk != 1 {
			t.Errorf("conn %d: expected foreign_keys=1, got %d", i, fk)
		}
		conn.Close()
	}

	// Verify tables exist.
	for _, table := range []string{"buckets", "notes", "note_buckets", "note_tags"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(dbPath, logger)
	require.NoError(t, err)
	b, err := s.CreateBucket(context.Background(), "u1", domain.BucketInput{Name: "Keep"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dbPath, logger)
	require.NoError(t, err, "schema must apply cleanly to an existing database")
	t.Cleanup(func() { s.Close() })

	got, err := s.GetBucket(context.Background(), "u1", b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Keep", got.Name)
}

func TestDefaultCountMode(t *testing.T) {
	s := newTestStore(t)
	t.Cleanup(func() { s.Close() })
	assert.Equal(t, domain.CountPrimary, s.CountMode())
	assert.Equal(t, "sqlite", s.Name())
}

func TestUpdateNote_MembershipReplacementIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t.Cleanup(func() { s.Close() })

	a, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "A"})
	require.NoError(t, err)
	b, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "B"})
	require.NoError(t, err)
	c, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "C"})
	require.NoError(t, err)

	note, err := s.CreateNote(ctx, "u1", domain.NoteInput{Title: "t", Content: "c"}, []string{a.ID, b.ID})
	require.NoError(t, err)

	s.failOnce("replace_shares")
	_, err = s.UpdateNote(ctx, "u1", note.ID, domain.NotePatch{}, []string{a.ID, c.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrBackendUnavailable)

	got, err := s.GetNote(ctx, "u1", note.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.SharedBucketIDs, "old shares survive a failed replacement")
}

func TestDeleteNote_CascadesJunctionRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t.Cleanup(func() { s.Close() })

	a, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "A"})
	require.NoError(t, err)
	b, err := s.CreateBucket(ctx, "u1", domain.BucketInput{Name: "B"})
	require.NoError(t, err)
	note, err := s.CreateNote(ctx, "u1", domain.NoteInput{Title: "t", Content: "c", Tags: []string{"todo"}}, []string{a.ID, b.ID})
	require.NoError(t, err)

	ok, err := s.DeleteNote(ctx, "u1", note.ID)
	require.NoError(t, err)
	require.True(t, ok)

	for _, table := range []string{"note_buckets", "note_tags"} {
		var n int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, "%s rows must go with the note", table)
	}
}

func TestTimeLayoutSortsChronologically(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	times := []time.Time{
		base.Add(time.Nanosecond),
		base,
		base.Add(999 * time.Millisecond),
		base.Add(time.Second),
		base.Add(-time.Hour),
	}

	formatted := make([]string, len(times))
	for i, ts := range times {
		formatted[i] = formatTime(ts)
	}
	sort.Strings(formatted)

	for i := 1; i < len(formatted); i++ {
		prev, err := parseTime(formatted[i-1])
		require.NoError(t, err)
		cur, err := parseTime(formatted[i])
		require.NoError(t, err)
		assert.True(t, prev.Before(cur), "%s should sort before %s", formatted[i-1], formatted[i])
	}

	roundTrip, err := parseTime(formatTime(base.Add(123456789)))
	require.NoError(t, err)
	assert.True(t, roundTrip.Equal(base.Add(123456789)))
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in))
	}
}
