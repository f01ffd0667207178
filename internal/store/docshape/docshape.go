// Package docshape maps between the document store's native record shape and
// the domain model.
//
// Documents keep timestamps as {seconds, nanoseconds} pairs, leave optional
// fields out entirely instead of writing empty values, and reference shared
// buckets by id only. The domain model uses time.Time, always-present fields
// with defaults applied, and hydrated shared bucket records. Every function
// here is pure and total: each domain field has a defined mapping in both
// directions and defaults are applied in this package only.
package docshape

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// Timestamp is the document store's native time value.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanoseconds"`
}

// TimestampFromTime converts t. The zero time maps to nil so that it is
// omitted from the stored document.
func TimestampFromTime(t time.Time) *Timestamp {
	if t.IsZero() {
		return nil
	}
	return &Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts ts to UTC. A nil timestamp maps to the zero time.
func (ts *Timestamp) Time() time.Time {
	if ts == nil {
		return time.Time{}
	}
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// Millis returns the timestamp as unix milliseconds, used for ordering keys.
func (ts *Timestamp) Millis() int64 {
	if ts == nil {
		return 0
	}
	return ts.Seconds*1000 + int64(ts.Nanos)/int64(time.Millisecond)
}

// BucketDoc is a bucket as stored under users/{uid}/buckets/{id}.
type BucketDoc struct {
	ID          string     `json:"-"` // document key, not a stored field
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	UserID      string     `json:"userId"`
	CreatedAt   *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

// NoteDoc is a note as stored under users/{uid}/notes/{id}.
// SharedBucketIDs is always written, even when empty, so membership scans
// can rely on it.
type NoteDoc struct {
	ID              string     `json:"-"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Color           string     `json:"color,omitempty"`
	FontFamily      string     `json:"fontFamily,omitempty"`
	Pinned          bool       `json:"pinned,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	UserID          string     `json:"userId"`
	PrimaryBucketID string     `json:"primaryBucketId"`
	SharedBucketIDs []string   `json:"sharedBucketIds"`
	CreatedAt       *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt       *Timestamp `json:"updatedAt,omitempty"`
}

// BucketFromDoc converts a stored bucket to the domain model.
func BucketFromDoc(d BucketDoc) domain.Bucket {
	b := domain.Bucket{
		ID:          d.ID,
		OwnerID:     d.UserID,
		Name:        d.Name,
		Description: d.Description,
		Color:       orDefault(d.Color, domain.DefaultBucketColor),
		Icon:        orDefault(d.Icon, domain.DefaultBucketIcon),
	}
	b.CreatedAt = d.CreatedAt.Time()
	b.UpdatedAt = d.UpdatedAt.Time()
	return b
}

// BucketToDoc converts a domain bucket to its stored shape.
func BucketToDoc(b domain.Bucket) BucketDoc {
	return BucketDoc{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Color:       b.Color,
		Icon:        b.Icon,
		UserID:      b.OwnerID,
		CreatedAt:   TimestampFromTime(b.CreatedAt),
		UpdatedAt:   TimestampFromTime(b.UpdatedAt),
	}
}

// BucketWithCountFromDoc converts a stored bucket and its computed count.
func BucketWithCountFromDoc(d BucketDoc, count int) domain.BucketWithCount {
	return domain.BucketWithCount{Bucket: BucketFromDoc(d), NoteCount: count}
}

// NoteFromDoc converts a stored note to the domain model. The primary bucket
// is filtered out of the shared set on the way in, so a document written by
// an older client cannot break the membership invariant.
func NoteFromDoc(d NoteDoc) domain.Note {
	n := domain.Note{
		ID:         d.ID,
		OwnerID:    d.UserID,
		Title:      d.Title,
		Content:    d.Content,
		Color:      orDefault(d.Color, domain.DefaultNoteColor),
		FontFamily: orDefault(d.FontFamily, domain.DefaultFontFamily),
		Pinned:     d.Pinned,
		Tags:       domain.NormalizeTags(d.Tags),
	}
	n.SetMembership(append([]string{d.PrimaryBucketID}, d.SharedBucketIDs...))
	n.CreatedAt = d.CreatedAt.Time()
	n.UpdatedAt = d.UpdatedAt.Time()
	return n
}

// NoteToDoc converts a domain note to its stored shape.
func NoteToDoc(n domain.Note) NoteDoc {
	shared := n.SharedBucketIDs
	if shared == nil {
		shared = []string{}
	}
	var tags []string
	if len(n.Tags) > 0 {
		tags = n.Tags
	}
	return NoteDoc{
		ID:              n.ID,
		Title:           n.Title,
		Content:         n.Content,
		Color:           n.Color,
		FontFamily:      n.FontFamily,
		Pinned:          n.Pinned,
		Tags:            tags,
		UserID:          n.OwnerID,
		PrimaryBucketID: n.PrimaryBucketID,
		SharedBucketIDs: shared,
		CreatedAt:       TimestampFromTime(n.CreatedAt),
		UpdatedAt:       TimestampFromTime(n.UpdatedAt),
	}
}

// NoteWithBucketsFromDoc converts a stored note plus the shared bucket
// documents resolved for it.
func NoteWithBucketsFromDoc(d NoteDoc, shared []BucketDoc) domain.NoteWithBuckets {
	buckets := make([]domain.Bucket, 0, len(shared))
	for _, b := range shared {
		buckets = append(buckets, BucketFromDoc(b))
	}
	return domain.NoteWithBuckets{Note: NoteFromDoc(d), SharedBuckets: buckets}
}

// EncodeBucket serializes a bucket document.
func EncodeBucket(d BucketDoc) ([]byte, error) {
	return json.Marshal(d)
}

// DecodeBucket deserializes a bucket document stored under id.
func DecodeBucket(id string, data []byte) (BucketDoc, error) {
	var d BucketDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return BucketDoc{}, fmt.Errorf("decode bucket %s: %w", id, err)
	}
	d.ID = id
	return d, nil
}

// EncodeNote serializes a note document.
func EncodeNote(d NoteDoc) ([]byte, error) {
	return json.Marshal(d)
}

// DecodeNote deserializes a note document stored under id.
func DecodeNote(id string, data []byte) (NoteDoc, error) {
	var d NoteDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return NoteDoc{}, fmt.Errorf("decode note %s: %w", id, err)
	}
	d.ID = id
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
