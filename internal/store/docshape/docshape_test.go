package docshape

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

func TestTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 535897000, time.UTC)

	ts := TimestampFromTime(now)
	require.NotNil(t, ts)
	assert.True(t, now.Equal(ts.Time()))
	assert.Equal(t, now.UnixMilli(), ts.Millis())

	assert.Nil(t, TimestampFromTime(time.Time{}))

	var missing *Timestamp
	assert.True(t, missing.Time().IsZero())
	assert.Zero(t, missing.Millis())
}

func TestBucketFromDoc_AppliesDefaults(t *testing.T) {
	b := BucketFromDoc(BucketDoc{ID: "bkt-1", Name: "Work", UserID: "u1"})

	assert.Equal(t, "bkt-1", b.ID)
	assert.Equal(t, "u1", b.OwnerID)
	assert.Equal(t, domain.DefaultBucketColor, b.Color)
	assert.Equal(t, domain.DefaultBucketIcon, b.Icon)
	assert.True(t, b.CreatedAt.IsZero())
}

func TestBucketToDoc_StripsEmptyOptionals(t *testing.T) {
	doc := BucketToDoc(domain.Bucket{ID: "bkt-1", OwnerID: "u1", Name: "Work", Color: "blue", Icon: "home"})

	data, err := EncodeBucket(doc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "description")
	assert.NotContains(t, raw, "createdAt")
	assert.NotContains(t, raw, "id", "the id lives in the key")
	assert.Equal(t, "Work", raw["name"])
}

func TestNoteFromDoc_RestoresInvariantAndDefaults(t *testing.T) {
	n := NoteFromDoc(NoteDoc{
		ID:              "note-1",
		Title:           "Standup",
		Content:         "discuss foo",
		UserID:          "u1",
		PrimaryBucketID: "work",
		SharedBucketIDs: []string{"work", "home", "home"},
	})

	assert.Equal(t, "work", n.PrimaryBucketID)
	assert.Equal(t, []string{"home"}, n.SharedBucketIDs)
	assert.Equal(t, domain.DefaultNoteColor, n.Color)
	assert.Equal(t, domain.DefaultFontFamily, n.FontFamily)
	assert.NotNil(t, n.Tags)
	assert.Empty(t, n.Tags)
}

func TestNoteToDoc_AlwaysWritesSharedIDs(t *testing.T) {
	doc := NoteToDoc(domain.Note{ID: "note-1", Title: "t", Content: "c", PrimaryBucketID: "work"})

	data, err := EncodeNote(doc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["sharedBucketIds"])
	assert.NotContains(t, raw, "tags")
	assert.NotContains(t, raw, "pinned")
}

func TestNoteRoundTrip_PreservesDomainValue(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC)
	note := domain.Note{
		ID:              "note-1",
		OwnerID:         "u1",
		Title:           "Standup",
		Content:         "discuss foo",
		Color:           "yellow",
		FontFamily:      "Mono",
		Pinned:          true,
		Tags:            []string{"work", "meeting"},
		PrimaryBucketID: "work",
		SharedBucketIDs: []string{"home"},
	}
	note.InitTimestamps(created)

	data, err := EncodeNote(NoteToDoc(note))
	require.NoError(t, err)
	doc, err := DecodeNote("note-1", data)
	require.NoError(t, err)

	got := NoteWithBucketsFromDoc(doc, []BucketDoc{{ID: "home", Name: "Home", UserID: "u1"}})
	assert.Equal(t, note, got.Note)
	require.Len(t, got.SharedBuckets, 1)
	assert.Equal(t, "Home", got.SharedBuckets[0].Name)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := DecodeBucket("bkt-1", []byte("{"))
	assert.ErrorContains(t, err, "bkt-1")

	_, err = DecodeNote("note-1", []byte("nope"))
	assert.ErrorContains(t, err, "note-1")
}
