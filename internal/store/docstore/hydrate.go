package docstore

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/store/docshape"
)

// hydrate resolves the shared bucket documents of each note, one lookup per
// shared id. Every note read path goes through here. Shared ids whose bucket
// no longer exists are skipped.
func hydrate(ctx context.Context, txn *badger.Txn, docs []docshape.NoteDoc) ([]domain.NoteWithBuckets, error) {
	notes := make([]domain.NoteWithBuckets, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		note := docshape.NoteFromDoc(doc)
		shared := make([]docshape.BucketDoc, 0, len(note.SharedBucketIDs))
		for _, bucketID := range note.SharedBucketIDs {
			b, err := getBucketDoc(txn, doc.UserID, bucketID)
			if err != nil {
				return nil, err
			}
			if b != nil {
				shared = append(shared, *b)
			}
		}
		notes = append(notes, docshape.NoteWithBucketsFromDoc(doc, shared))
	}
	return notes, nil
}
