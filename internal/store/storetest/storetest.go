// Package storetest is a conformance suite for store.Backend
// implementations. Both backends run the same suite so their effective
// semantics cannot drift apart.
package storetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
	"github.com/stickynotes/stickynotes-server/internal/store"
)

// Harness is one freshly opened backend plus the hooks the suite needs.
type Harness struct {
	Backend store.Backend

	// CountMode is the mode the backend was opened with.
	CountMode domain.CountMode

	// CascadeSteps names the points inside DeleteBucket at which FailAt
	// can abort the cascade.
	CascadeSteps []string

	// FailAt makes the next write that reaches step fail there.
	FailAt func(step string)
}

// Factory opens a new empty backend that reads time from clock.
type Factory func(t *testing.T, clock *Clock) Harness

// Clock is a deterministic time source. Every call advances it by one
// millisecond so consecutive writes get distinct timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

// TB is the subset of testing.TB the helpers need. Both *testing.T and
// *rapid.T satisfy it.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

const (
	alice = "user-alice"
	bob   = "user-bob"
)

// Run executes the conformance suite against backends produced by factory.
func Run(t *testing.T, factory Factory) {
	open := func(t *testing.T) Harness {
		t.Helper()
		h := factory(t, NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
		t.Cleanup(func() { h.Backend.Close() })
		return h
	}

	t.Run("BucketLifecycle", func(t *testing.T) { testBucketLifecycle(t, open(t)) })
	t.Run("UserBuckets", func(t *testing.T) { testUserBuckets(t, open(t)) })
	t.Run("CreateNote", func(t *testing.T) { testCreateNote(t, open(t)) })
	t.Run("UpdateNote", func(t *testing.T) { testUpdateNote(t, open(t)) })
	t.Run("BucketNotes", func(t *testing.T) { testBucketNotes(t, open(t)) })
	t.Run("DeleteNote", func(t *testing.T) { testDeleteNote(t, open(t)) })
	t.Run("DeleteBucketCascade", func(t *testing.T) { testDeleteBucketCascade(t, open(t)) })
	t.Run("DeleteBucketAtomic", func(t *testing.T) { testDeleteBucketAtomic(t, open) })
	t.Run("Search", func(t *testing.T) { testSearch(t, open(t)) })
	t.Run("AllUserNotes", func(t *testing.T) { testAllUserNotes(t, open(t)) })
	t.Run("WorkPersonalScenario", func(t *testing.T) { testWorkPersonalScenario(t, open(t)) })
	t.Run("CanceledContext", func(t *testing.T) { testCanceledContext(t, open(t)) })
	t.Run("MembershipProperties", func(t *testing.T) { testMembershipProperties(t, open(t)) })
}

func mustBucket(t TB, b store.Backend, owner, name string) *domain.Bucket {
	t.Helper()
	bucket, err := b.CreateBucket(context.Background(), owner, domain.BucketInput{Name: name})
	require.NoError(t, err)
	require.NotNil(t, bucket)
	return bucket
}

func mustNote(t TB, b store.Backend, owner string, in domain.NoteInput, bucketIDs ...string) *domain.Note {
	t.Helper()
	if in.Title == "" {
		in.Title = "title"
	}
	if in.Content == "" {
		in.Content = "content"
	}
	note, err := b.CreateNote(context.Background(), owner, in, bucketIDs)
	require.NoError(t, err)
	require.NotNil(t, note)
	return note
}

func noteIDs(notes []domain.NoteWithBuckets) []string {
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}

func bucketIDsOf(buckets []domain.Bucket) []string {
	ids := make([]string, len(buckets))
	for i, b := range buckets {
		ids[i] = b.ID
	}
	return ids
}

func assertPrimaryNotShared(t TB, n domain.Note) {
	t.Helper()
	assert.NotEmpty(t, n.PrimaryBucketID, "note %s has no primary bucket", n.ID)
	assert.NotContains(t, n.SharedBucketIDs, n.PrimaryBucketID, "note %s shares its primary bucket", n.ID)
}

func testBucketLifecycle(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	work, err := b.CreateBucket(ctx, alice, domain.BucketInput{
		Name:        "Work",
		Description: "day job",
		Color:       "blue",
		Icon:        "briefcase",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, work.ID)
	assert.Equal(t, alice, work.OwnerID)
	assert.Equal(t, "blue", work.Color)
	assert.Equal(t, "briefcase", work.Icon)
	assert.False(t, work.CreatedAt.IsZero())
	assert.True(t, work.CreatedAt.Equal(work.UpdatedAt))

	plain := mustBucket(t, b, alice, "Plain")
	assert.Equal(t, domain.DefaultBucketColor, plain.Color)
	assert.Equal(t, domain.DefaultBucketIcon, plain.Icon)

	_, err = b.CreateBucket(ctx, alice, domain.BucketInput{Name: "   "})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	got, err := b.GetBucket(ctx, alice, work.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Work", got.Name)
	assert.Equal(t, "day job", got.Description)
	assert.True(t, got.CreatedAt.Equal(work.CreatedAt))

	got, err = b.GetBucket(ctx, bob, work.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "buckets of other owners must look absent")

	got, err = b.GetBucket(ctx, alice, "bkt-missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	name := "Office"
	updated, err := b.UpdateBucket(ctx, alice, work.ID, domain.BucketPatch{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Office", updated.Name)
	assert.Equal(t, "day job", updated.Description)
	assert.Equal(t, "blue", updated.Color)
	assert.True(t, updated.CreatedAt.Equal(work.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(work.UpdatedAt))

	// An empty patch still refreshes updatedAt.
	touched, err := b.UpdateBucket(ctx, alice, work.ID, domain.BucketPatch{})
	require.NoError(t, err)
	require.NotNil(t, touched)
	assert.True(t, touched.UpdatedAt.After(updated.UpdatedAt))

	blank := " "
	_, err = b.UpdateBucket(ctx, alice, work.ID, domain.BucketPatch{Name: &blank})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	missing, err := b.UpdateBucket(ctx, alice, "bkt-missing", domain.BucketPatch{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = b.UpdateBucket(ctx, bob, work.ID, domain.BucketPatch{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := b.DeleteBucket(ctx, bob, work.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.DeleteBucket(ctx, alice, work.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = b.GetBucket(ctx, alice, work.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = b.DeleteBucket(ctx, alice, work.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testUserBuckets(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	empty, err := b.GetUserBuckets(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, empty)

	first := mustBucket(t, b, alice, "First")
	second := mustBucket(t, b, alice, "Second")
	third := mustBucket(t, b, alice, "Third")
	mustBucket(t, b, bob, "Bob's")

	mustNote(t, b, alice, domain.NoteInput{}, first.ID)
	mustNote(t, b, alice, domain.NoteInput{}, first.ID, second.ID)
	mustNote(t, b, alice, domain.NoteInput{}, third.ID, second.ID)

	buckets, err := b.GetUserBuckets(ctx, alice)
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	names := make([]string, len(buckets))
	counts := make(map[string]int, len(buckets))
	for i, bc := range buckets {
		names[i] = bc.Name
		counts[bc.ID] = bc.NoteCount
		assert.Equal(t, alice, bc.OwnerID)
	}
	assert.Equal(t, []string{"First", "Second", "Third"}, names, "buckets are listed in creation order")

	assert.Equal(t, 2, counts[first.ID])
	assert.Equal(t, 1, counts[third.ID])
	switch h.CountMode {
	case domain.CountMembership:
		assert.Equal(t, 2, counts[second.ID], "membership mode counts shared notes")
	default:
		assert.Equal(t, 0, counts[second.ID], "primary mode ignores shared notes")
	}

	bobs, err := b.GetUserBuckets(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, 0, bobs[0].NoteCount)
}

func testCreateNote(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	a := mustBucket(t, b, alice, "A")
	bb := mustBucket(t, b, alice, "B")
	c := mustBucket(t, b, alice, "C")
	foreign := mustBucket(t, b, bob, "Bob's")

	note, err := b.CreateNote(ctx, alice, domain.NoteInput{
		Title:   "Groceries",
		Content: "milk, eggs",
		Tags:    []string{"Shopping", "todo", "shopping"},
	}, []string{a.ID, bb.ID, a.ID, c.ID, bb.ID})
	require.NoError(t, err)
	assert.Equal(t, alice, note.OwnerID)
	assert.Equal(t, a.ID, note.PrimaryBucketID)
	assert.Equal(t, []string{bb.ID, c.ID}, note.SharedBucketIDs)
	assert.Equal(t, []string{"shopping", "todo"}, note.Tags)
	assert.Equal(t, domain.DefaultNoteColor, note.Color)
	assert.Equal(t, domain.DefaultFontFamily, note.FontFamily)
	assertPrimaryNotShared(t, *note)

	got, err := b.GetNote(ctx, alice, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, "milk, eggs", got.Content)
	assert.Equal(t, []string{"shopping", "todo"}, got.Tags)
	assert.Equal(t, a.ID, got.PrimaryBucketID)
	assert.Equal(t, []string{bb.ID, c.ID}, got.SharedBucketIDs)
	assert.Equal(t, []string{bb.ID, c.ID}, bucketIDsOf(got.SharedBuckets))
	assert.Equal(t, "B", got.SharedBuckets[0].Name)
	assert.True(t, got.CreatedAt.Equal(note.CreatedAt))

	fallback, err := b.CreateNote(ctx, alice, domain.NoteInput{
		Title:           "Fallback",
		Content:         "uses primaryBucketId",
		Color:           "pink",
		Pinned:          true,
		PrimaryBucketID: c.ID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, c.ID, fallback.PrimaryBucketID)
	assert.Empty(t, fallback.SharedBucketIDs)
	assert.Equal(t, "pink", fallback.Color)
	assert.True(t, fallback.Pinned)

	got, err = b.GetNote(ctx, alice, fallback.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.SharedBuckets)
	assert.Empty(t, got.SharedBuckets)
	assert.NotNil(t, got.Tags)

	invalid := []struct {
		name      string
		in        domain.NoteInput
		bucketIDs []string
	}{
		{"no buckets", domain.NoteInput{Title: "t", Content: "c"}, nil},
		{"unknown bucket", domain.NoteInput{Title: "t", Content: "c"}, []string{a.ID, "bkt-missing"}},
		{"foreign bucket", domain.NoteInput{Title: "t", Content: "c"}, []string{foreign.ID}},
		{"blank title", domain.NoteInput{Title: " ", Content: "c"}, []string{a.ID}},
		{"blank content", domain.NoteInput{Title: "t"}, []string{a.ID}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateNote(ctx, alice, tt.in, tt.bucketIDs)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}

	all, err := b.GetAllUserNotes(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, all, 2, "rejected creates must not persist anything")

	got, err = b.GetNote(ctx, bob, note.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testUpdateNote(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	a := mustBucket(t, b, alice, "A")
	bb := mustBucket(t, b, alice, "B")
	c := mustBucket(t, b, alice, "C")

	note := mustNote(t, b, alice, domain.NoteInput{
		Title:   "Draft",
		Content: "first",
		Tags:    []string{"idea"},
	}, a.ID, bb.ID)

	title := "Final"
	updated, err := b.UpdateNote(ctx, alice, note.ID, domain.NotePatch{Title: &title}, nil)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "first", updated.Content)
	assert.Equal(t, []string{"idea"}, updated.Tags)
	assert.Equal(t, a.ID, updated.PrimaryBucketID, "nil bucket list leaves membership alone")
	assert.Equal(t, []string{bb.ID}, updated.SharedBucketIDs)
	assert.True(t, updated.CreatedAt.Equal(note.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(note.UpdatedAt))

	updated, err = b.UpdateNote(ctx, alice, note.ID, domain.NotePatch{}, []string{c.ID, a.ID, c.ID})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, c.ID, updated.PrimaryBucketID)
	assert.Equal(t, []string{a.ID}, updated.SharedBucketIDs)
	assertPrimaryNotShared(t, *updated)

	got, err := b.GetNote(ctx, alice, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.PrimaryBucketID)
	assert.Equal(t, []string{a.ID}, bucketIDsOf(got.SharedBuckets))

	_, err = b.UpdateNote(ctx, alice, note.ID, domain.NotePatch{}, []string{a.ID, "bkt-missing"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = b.UpdateNote(ctx, alice, note.ID, domain.NotePatch{}, []string{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation, "an explicit empty membership is rejected")

	blank := ""
	_, err = b.UpdateNote(ctx, alice, note.ID, domain.NotePatch{Title: &blank}, nil)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	got, err = b.GetNote(ctx, alice, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title, "rejected updates must not persist anything")
	assert.Equal(t, c.ID, got.PrimaryBucketID)

	pinned := true
	updated, err = b.UpdateNote(ctx, alice, note.ID, domain.NotePatch{Pinned: &pinned, Tags: []string{}}, nil)
	require.NoError(t, err)
	assert.True(t, updated.Pinned)
	assert.Empty(t, updated.Tags)

	got, err = b.GetNote(ctx, alice, note.ID)
	require.NoError(t, err)
	assert.True(t, got.Pinned)
	assert.Empty(t, got.Tags)

	missing, err := b.UpdateNote(ctx, alice, "note-missing", domain.NotePatch{Title: &title}, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = b.UpdateNote(ctx, bob, note.ID, domain.NotePatch{Title: &title}, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testBucketNotes(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	a := mustBucket(t, b, alice, "A")
	bb := mustBucket(t, b, alice, "B")

	n1 := mustNote(t, b, alice, domain.NoteInput{Title: "n1"}, a.ID)
	n2 := mustNote(t, b, alice, domain.NoteInput{Title: "n2"}, bb.ID, a.ID)
	n3 := mustNote(t, b, alice, domain.NoteInput{Title: "n3"}, bb.ID)
	n4 := mustNote(t, b, alice, domain.NoteInput{Title: "n4", Pinned: true}, a.ID)

	notes, err := b.GetBucketNotes(ctx, alice, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{n4.ID, n2.ID, n1.ID}, noteIDs(notes), "pinned first, then most recently updated")

	for _, n := range notes {
		assertPrimaryNotShared(t, n.Note)
		assert.Equal(t, n.SharedBucketIDs, bucketIDsOf(n.SharedBuckets))
	}

	notes, err = b.GetBucketNotes(ctx, alice, bb.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{n2.ID, n3.ID}, noteIDs(notes))

	// Touching n1 moves it ahead of n2.
	content := "edited"
	_, err = b.UpdateNote(ctx, alice, n1.ID, domain.NotePatch{Content: &content}, nil)
	require.NoError(t, err)
	notes, err = b.GetBucketNotes(ctx, alice, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{n4.ID, n1.ID, n2.ID}, noteIDs(notes))

	notes, err = b.GetBucketNotes(ctx, bob, a.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	notes, err = b.GetBucketNotes(ctx, alice, "bkt-missing")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func testDeleteNote(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	a := mustBucket(t, b, alice, "A")
	bb := mustBucket(t, b, alice, "B")
	note := mustNote(t, b, alice, domain.NoteInput{}, a.ID, bb.ID)
	keep := mustNote(t, b, alice, domain.NoteInput{}, bb.ID)

	ok, err := b.DeleteNote(ctx, bob, note.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.DeleteNote(ctx, alice, note.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := b.GetNote(ctx, alice, note.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	notes, err := b.GetBucketNotes(ctx, alice, bb.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, noteIDs(notes), "shared listings go with the note")

	ok, err = b.DeleteNote(ctx, alice, note.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

// cascadeFixture builds three buckets and three notes:
//
//	n1: primary A
//	n2: primary B, shared A and C
//	n3: primary C, shared B
type cascadeFixture struct {
	a, b, c    *domain.Bucket
	n1, n2, n3 *domain.Note
}

func newCascadeFixture(t *testing.T, b store.Backend) cascadeFixture {
	var f cascadeFixture
	f.a = mustBucket(t, b, alice, "A")
	f.b = mustBucket(t, b, alice, "B")
	f.c = mustBucket(t, b, alice, "C")
	f.n1 = mustNote(t, b, alice, domain.NoteInput{Title: "one", Tags: []string{"todo"}}, f.a.ID)
	f.n2 = mustNote(t, b, alice, domain.NoteInput{Title: "two", Tags: []string{"work"}}, f.b.ID, f.a.ID, f.c.ID)
	f.n3 = mustNote(t, b, alice, domain.NoteInput{Title: "three"}, f.c.ID, f.b.ID)
	return f
}

func testDeleteBucketCascade(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend
	f := newCascadeFixture(t, b)

	before3, err := b.GetNote(ctx, alice, f.n3.ID)
	require.NoError(t, err)

	ok, err := b.DeleteBucket(ctx, alice, f.a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	gone, err := b.GetBucket(ctx, alice, f.a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	n1, err := b.GetNote(ctx, alice, f.n1.ID)
	require.NoError(t, err)
	assert.Nil(t, n1, "notes whose primary bucket is deleted are deleted")

	n2, err := b.GetNote(ctx, alice, f.n2.ID)
	require.NoError(t, err)
	require.NotNil(t, n2)
	assert.Equal(t, f.b.ID, n2.PrimaryBucketID)
	assert.Equal(t, []string{f.c.ID}, n2.SharedBucketIDs)
	assert.Equal(t, []string{f.c.ID}, bucketIDsOf(n2.SharedBuckets))
	assert.Equal(t, "two", n2.Title)
	assert.Equal(t, "content", n2.Content)
	assert.Equal(t, []string{"work"}, n2.Tags)
	assert.True(t, n2.UpdatedAt.After(f.n2.UpdatedAt), "losing a share refreshes updatedAt")

	n3, err := b.GetNote(ctx, alice, f.n3.ID)
	require.NoError(t, err)
	require.NotNil(t, n3)
	assert.Equal(t, before3.SharedBucketIDs, n3.SharedBucketIDs)
	assert.True(t, before3.UpdatedAt.Equal(n3.UpdatedAt), "unrelated notes are untouched")

	buckets, err := b.GetUserBuckets(ctx, alice)
	require.NoError(t, err)
	names := make([]string, len(buckets))
	for i, bc := range buckets {
		names[i] = bc.Name
	}
	assert.Equal(t, []string{"B", "C"}, names)

	all, err := b.GetAllUserNotes(ctx, alice)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.n2.ID, f.n3.ID}, noteIDs(all))
}

// snapshot captures everything a cascade may change.
func snapshot(t *testing.T, b store.Backend) (buckets []string, notes []domain.NoteWithBuckets) {
	t.Helper()
	ctx := context.Background()
	bs, err := b.GetUserBuckets(ctx, alice)
	require.NoError(t, err)
	for _, bc := range bs {
		buckets = append(buckets, bc.ID)
	}
	notes, err = b.GetAllUserNotes(ctx, alice)
	require.NoError(t, err)
	return buckets, notes
}

func testDeleteBucketAtomic(t *testing.T, open func(t *testing.T) Harness) {
	probe := open(t)
	if probe.FailAt == nil || len(probe.CascadeSteps) == 0 {
		t.Skip("backend exposes no cascade fault points")
	}

	for _, step := range probe.CascadeSteps {
		t.Run(step, func(t *testing.T) {
			h := open(t)
			f := newCascadeFixture(t, h.Backend)
			wantBuckets, wantNotes := snapshot(t, h.Backend)

			h.FailAt(step)
			ok, err := h.Backend.DeleteBucket(context.Background(), alice, f.a.ID)
			require.Error(t, err)
			assert.False(t, ok)
			assert.ErrorIs(t, err, domainerrors.ErrBackendUnavailable)

			gotBuckets, gotNotes := snapshot(t, h.Backend)
			assert.Equal(t, wantBuckets, gotBuckets, "no bucket may change after a failed cascade")
			require.Equal(t, noteIDs(wantNotes), noteIDs(gotNotes), "no note may disappear after a failed cascade")
			for i := range wantNotes {
				assert.Equal(t, wantNotes[i].SharedBucketIDs, gotNotes[i].SharedBucketIDs)
				assert.True(t, wantNotes[i].UpdatedAt.Equal(gotNotes[i].UpdatedAt))
			}

			ok, err = h.Backend.DeleteBucket(context.Background(), alice, f.a.ID)
			require.NoError(t, err, "the cascade succeeds once the fault is gone")
			assert.True(t, ok)
		})
	}
}

func testSearch(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	a := mustBucket(t, b, alice, "A")
	bb := mustBucket(t, b, alice, "B")

	foobar := mustNote(t, b, alice, domain.NoteInput{Title: "Foobar", Content: "title hit"}, a.ID)
	body := mustNote(t, b, alice, domain.NoteInput{Title: "Body", Content: "we need to discuss FOO soon"}, bb.ID, a.ID)
	mustNote(t, b, alice, domain.NoteInput{Title: "Neither", Content: "nothing here"}, a.ID)
	mustNote(t, b, bob, domain.NoteInput{Title: "foo", Content: "foo"}, mustBucket(t, b, bob, "X").ID)
	percent := mustNote(t, b, alice, domain.NoteInput{Title: "Progress 100%", Content: "done_ish"}, bb.ID)
	mustNote(t, b, alice, domain.NoteInput{Title: "Apples", Content: "buy 10 apples before exit"}, a.ID)

	results, err := b.SearchNotes(ctx, alice, "foo", "")
	require.NoError(t, err)
	assert.Equal(t, []string{body.ID, foobar.ID}, noteIDs(results), "most recently updated first")
	for _, n := range results {
		assert.Equal(t, n.SharedBucketIDs, bucketIDsOf(n.SharedBuckets))
	}

	results, err = b.SearchNotes(ctx, alice, "FoO", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{foobar.ID, body.ID}, noteIDs(results))

	results, err = b.SearchNotes(ctx, alice, "foo", bb.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{body.ID}, noteIDs(results), "shared membership satisfies the bucket filter")

	results, err = b.SearchNotes(ctx, alice, "0%", "")
	require.NoError(t, err)
	assert.Equal(t, []string{percent.ID}, noteIDs(results), "wildcards match literally")

	results, err = b.SearchNotes(ctx, alice, "e_i", "")
	require.NoError(t, err)
	assert.Equal(t, []string{percent.ID}, noteIDs(results))

	results, err = b.SearchNotes(ctx, alice, "absent", "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func testAllUserNotes(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	a := mustBucket(t, b, alice, "A")
	bb := mustBucket(t, b, alice, "B")
	n1 := mustNote(t, b, alice, domain.NoteInput{}, a.ID)
	n2 := mustNote(t, b, alice, domain.NoteInput{}, bb.ID, a.ID)
	mustNote(t, b, bob, domain.NoteInput{}, mustBucket(t, b, bob, "X").ID)

	all, err := b.GetAllUserNotes(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{n2.ID, n1.ID}, noteIDs(all))
	assert.Equal(t, []string{a.ID}, bucketIDsOf(all[0].SharedBuckets))

	none, err := b.GetAllUserNotes(ctx, "user-nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testWorkPersonalScenario(t *testing.T, h Harness) {
	ctx := context.Background()
	b := h.Backend

	work, err := b.CreateBucket(ctx, alice, domain.BucketInput{Name: "Work", Color: "primary", Icon: "briefcase"})
	require.NoError(t, err)

	note, err := b.CreateNote(ctx, alice, domain.NoteInput{
		Title:           "Standup",
		Content:         "discuss foo",
		PrimaryBucketID: work.ID,
	}, []string{work.ID})
	require.NoError(t, err)

	notes, err := b.GetBucketNotes(ctx, alice, work.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
	assert.NotNil(t, notes[0].SharedBuckets)
	assert.Empty(t, notes[0].SharedBuckets)

	personal, err := b.CreateBucket(ctx, alice, domain.BucketInput{Name: "Personal"})
	require.NoError(t, err)

	_, err = b.UpdateNote(ctx, alice, note.ID, domain.NotePatch{}, []string{work.ID, personal.ID})
	require.NoError(t, err)

	got, err := b.GetNote(ctx, alice, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.SharedBuckets, 1)
	assert.Equal(t, personal.ID, got.SharedBuckets[0].ID)
	assert.Equal(t, "Personal", got.SharedBuckets[0].Name)

	ok, err := b.DeleteBucket(ctx, alice, work.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = b.GetNote(ctx, alice, note.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	notes, err = b.GetBucketNotes(ctx, alice, personal.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func testCanceledContext(t *testing.T, h Harness) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Backend.CreateBucket(ctx, alice, domain.BucketInput{Name: "late"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = h.Backend.GetUserBuckets(ctx, alice)
	assert.ErrorIs(t, err, context.Canceled)

	buckets, err := h.Backend.GetUserBuckets(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

var ownerSeq struct {
	sync.Mutex
	n int
}

func nextOwner() string {
	ownerSeq.Lock()
	defer ownerSeq.Unlock()
	ownerSeq.n++
	return fmt.Sprintf("user-prop-%d", ownerSeq.n)
}

// testMembershipProperties checks that the primary bucket never appears in
// the shared set and that bucket listings are exact, over random membership
// lists and replacements.
func testMembershipProperties(t *testing.T, h Harness) {
	b := h.Backend
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		idx := rapid.IntRange(0, 3)
		lists := rapid.SliceOfN(rapid.SliceOfN(idx, 1, 6), 1, 5).Draw(rt, "lists")
		var replace []int
		if rapid.Bool().Draw(rt, "replace") {
			replace = rapid.SliceOfN(idx, 1, 6).Draw(rt, "replacement")
		}

		owner := nextOwner()
		buckets := make([]*domain.Bucket, 4)
		for i := range buckets {
			buckets[i] = mustBucket(rt, b, owner, fmt.Sprintf("b%d", i))
		}
		ids := func(idx []int) []string {
			out := make([]string, len(idx))
			for i, j := range idx {
				out[i] = buckets[j].ID
			}
			return out
		}

		model := make(map[string]domain.Note)
		var last string
		for _, list := range lists {
			n := mustNote(rt, b, owner, domain.NoteInput{}, ids(list)...)
			assertPrimaryNotShared(rt, *n)
			model[n.ID] = *n
			last = n.ID
		}
		if replace != nil && last != "" {
			n, err := b.UpdateNote(ctx, owner, last, domain.NotePatch{}, ids(replace))
			require.NoError(rt, err)
			require.NotNil(rt, n)
			assertPrimaryNotShared(rt, *n)
			model[n.ID] = *n
		}

		for _, bucket := range buckets {
			notes, err := b.GetBucketNotes(ctx, owner, bucket.ID)
			require.NoError(rt, err)

			var want []string
			for id, n := range model {
				if n.InBucket(bucket.ID) {
					want = append(want, id)
				}
			}
			got := noteIDs(notes)
			assert.ElementsMatch(rt, want, got)
			assert.Len(rt, slices.Compact(slices.Sorted(slices.Values(got))), len(got), "no duplicates")

			sorted := slices.Clone(notes)
			domain.SortNotes(sorted)
			assert.Equal(rt, noteIDs(sorted), got)
			for _, n := range notes {
				assertPrimaryNotShared(rt, n.Note)
			}
		}
	})
}
