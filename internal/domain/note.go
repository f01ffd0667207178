package domain

import (
	"cmp"
	"slices"
)

// Note is a single sticky note. It belongs to exactly one primary bucket and
// may be cross-listed under any number of shared buckets.
//
// PrimaryBucketID never appears in SharedBucketIDs.
type Note struct {
	Timestamps
	ID              string   `json:"id"`
	OwnerID         string   `json:"userId"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Color           string   `json:"color"`
	FontFamily      string   `json:"fontFamily"`
	Pinned          bool     `json:"pinned"`
	Tags            []string `json:"tags"`
	PrimaryBucketID string   `json:"primaryBucketId"`
	SharedBucketIDs []string `json:"sharedBucketIds"`
}

// Membership returns every bucket the note appears under, primary first.
func (n *Note) Membership() []string {
	out := make([]string, 0, 1+len(n.SharedBucketIDs))
	out = append(out, n.PrimaryBucketID)
	return append(out, n.SharedBucketIDs...)
}

// InBucket reports whether bucketID is part of the note's membership.
func (n *Note) InBucket(bucketID string) bool {
	return n.PrimaryBucketID == bucketID || slices.Contains(n.SharedBucketIDs, bucketID)
}

// SetMembership replaces primary and shared buckets using SplitMembership.
func (n *Note) SetMembership(bucketIDs []string) {
	n.PrimaryBucketID, n.SharedBucketIDs = SplitMembership(bucketIDs)
}

// RemoveShared strips bucketID from the shared set. Returns false when the
// bucket was not shared.
func (n *Note) RemoveShared(bucketID string) bool {
	i := slices.Index(n.SharedBucketIDs, bucketID)
	if i < 0 {
		return false
	}
	n.SharedBucketIDs = slices.Delete(n.SharedBucketIDs, i, i+1)
	return true
}

// NoteWithBuckets is a note plus its resolved shared bucket records.
// Never persisted.
type NoteWithBuckets struct {
	Note
	SharedBuckets []Bucket `json:"sharedBuckets"`
}

// NoteInput carries the fields accepted when creating a note.
type NoteInput struct {
	Title           string   `json:"title" validate:"required,notblank,max=255"`
	Content         string   `json:"content" validate:"required,notblank"`
	Color           string   `json:"color,omitempty" validate:"omitempty,notecolor"`
	FontFamily      string   `json:"fontFamily,omitempty" validate:"max=100"`
	Pinned          bool     `json:"pinned"`
	Tags            []string `json:"tags,omitempty" validate:"dive,tag"`
	PrimaryBucketID string   `json:"primaryBucketId,omitempty"`
}

// WithDefaults fills color and font defaults and normalizes tags.
func (in NoteInput) WithDefaults() NoteInput {
	if in.Color == "" {
		in.Color = DefaultNoteColor
	}
	if in.FontFamily == "" {
		in.FontFamily = DefaultFontFamily
	}
	in.Tags = NormalizeTags(in.Tags)
	return in
}

// NotePatch is a partial update. Nil fields are left untouched; a non-nil
// empty Tags clears the tag set.
type NotePatch struct {
	Title      *string  `json:"title,omitempty" validate:"omitnil,notblank,max=255"`
	Content    *string  `json:"content,omitempty" validate:"omitnil,notblank"`
	Color      *string  `json:"color,omitempty" validate:"omitnil,notecolor"`
	FontFamily *string  `json:"fontFamily,omitempty" validate:"omitnil,min=1,max=100"`
	Pinned     *bool    `json:"pinned,omitempty"`
	Tags       []string `json:"tags,omitempty" validate:"omitnil,dive,tag"`
}

// Apply copies the supplied fields onto n. It does not touch timestamps or
// membership.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
	if p.FontFamily != nil {
		n.FontFamily = *p.FontFamily
	}
	if p.Pinned != nil {
		n.Pinned = *p.Pinned
	}
	if p.Tags != nil {
		n.Tags = NormalizeTags(p.Tags)
	}
}

// SplitMembership turns an ordered bucket id list into a primary bucket and a
// shared set. The first id is primary; later ids become shared in order, with
// blanks, duplicates and repeats of the primary dropped.
func SplitMembership(bucketIDs []string) (primary string, shared []string) {
	shared = []string{}
	for _, id := range bucketIDs {
		if id == "" {
			continue
		}
		if primary == "" {
			primary = id
			continue
		}
		if id == primary || slices.Contains(shared, id) {
			continue
		}
		shared = append(shared, id)
	}
	return primary, shared
}

// SortNotes orders notes pinned first, then by UpdatedAt descending. Ties fall
// back to id so results are stable across backends.
func SortNotes(notes []NoteWithBuckets) {
	slices.SortStableFunc(notes, func(a, b NoteWithBuckets) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortNotesByUpdated orders notes by UpdatedAt descending, ties by id.
func SortNotesByUpdated(notes []NoteWithBuckets) {
	slices.SortStableFunc(notes, func(a, b NoteWithBuckets) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
