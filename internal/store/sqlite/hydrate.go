package sqlite

import (
	"context"
	"fmt"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// hydrateChunk bounds the number of ids bound into one IN list.
const hydrateChunk = 500

// hydrate loads tags and shared bucket records for notes. It is the single
// read-time join every note read path goes through.
func (s *Store) hydrate(ctx context.Context, q queryer, notes []*domain.Note) ([]domain.NoteWithBuckets, error) {
	out := make([]domain.NoteWithBuckets, 0, len(notes))
	if len(notes) == 0 {
		return out, nil
	}

	byID := make(map[string]int, len(notes))
	for i, n := range notes {
		byID[n.ID] = i
		out = append(out, domain.NoteWithBuckets{Note: *n, SharedBuckets: []domain.Bucket{}})
	}

	for start := 0; start < len(notes); start += hydrateChunk {
		end := min(start+hydrateChunk, len(notes))
		ids := make([]string, 0, end-start)
		for _, n := range notes[start:end] {
			ids = append(ids, n.ID)
		}

		tags, err := loadTags(ctx, q, ids)
		if err != nil {
			return nil, err
		}
		for noteID, noteTags := range tags {
			out[byID[noteID]].Tags = noteTags
		}

		if err := loadShares(ctx, q, ids, func(noteID string, b domain.Bucket) {
			nb := &out[byID[noteID]]
			nb.SharedBucketIDs = append(nb.SharedBucketIDs, b.ID)
			nb.SharedBuckets = append(nb.SharedBuckets, b)
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fillNote loads tags and shared bucket ids for a single note.
func (s *Store) fillNote(ctx context.Context, q queryer, n *domain.Note) error {
	tags, err := loadTags(ctx, q, []string{n.ID})
	if err != nil {
		return err
	}
	if t, ok := tags[n.ID]; ok {
		n.Tags = t
	}
	return loadShares(ctx, q, []string{n.ID}, func(_ string, b domain.Bucket) {
		n.SharedBucketIDs = append(n.SharedBucketIDs, b.ID)
	})
}

func loadTags(ctx context.Context, q queryer, noteIDs []string) (map[string][]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT note_id, tag FROM note_tags
		WHERE note_id IN (`+placeholders(len(noteIDs))+`)
		ORDER BY note_id, position`,
		args(nil, noteIDs)...)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string][]string)
	for rows.Next() {
		var noteID, tag string
		if err := rows.Scan(&noteID, &tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags[noteID] = append(tags[noteID], tag)
	}
	return tags, rows.Err()
}

// loadShares streams shared bucket records in membership order.
func loadShares(ctx context.Context, q queryer, noteIDs []string, fn func(noteID string, b domain.Bucket)) error {
	rows, err := q.QueryContext(ctx, `
		SELECT `+bucketColumns+`, nb.note_id
		FROM note_buckets nb
		JOIN buckets b ON b.id = nb.bucket_id
		WHERE nb.note_id IN (`+placeholders(len(noteIDs))+`)
		ORDER BY nb.note_id, nb.position`,
		args(nil, noteIDs)...)
	if err != nil {
		return fmt.Errorf("load shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID string
		b, err := scanBucket(rows, &noteID)
		if err != nil {
			return fmt.Errorf("scan share: %w", err)
		}
		fn(noteID, *b)
	}
	return rows.Err()
}
