package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/id"
	"github.com/stickynotes/stickynotes-server/internal/store"
)

const noteColumns = `n.id, n.owner_id, n.title, n.content, n.color, n.font_family, n.pinned,
	n.primary_bucket_id, n.created_at, n.updated_at`

// scanNote scans a note row selected with noteColumns. Tags and shared
// buckets are filled in by hydrate.
func scanNote(scanner interface{ Scan(dest ...any) error }) (*domain.Note, error) {
	var (
		n         domain.Note
		pinned    int
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&n.ID,
		&n.OwnerID,
		&n.Title,
		&n.Content,
		&n.Color,
		&n.FontFamily,
		&pinned,
		&n.PrimaryBucketID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Pinned = pinned != 0
	n.Tags = []string{}
	n.SharedBucketIDs = []string{}

	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateNote inserts a note with its tags and shared memberships.
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

	n := &domain.Note{
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
	n.InitTimestamps(s.now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}
	defer tx.Rollback()

	ok, err := ownedBuckets(ctx, tx, ownerID, n.Membership())
	if err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}
	if !ok {
		return nil, store.ErrUnknownBucket
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, owner_id, title, content, color, font_family, pinned,
			primary_bucket_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.OwnerID,
		n.Title,
		n.Content,
		n.Color,
		n.FontFamily,
		boolInt(n.Pinned),
		n.PrimaryBucketID,
		formatTime(n.CreatedAt),
		formatTime(n.UpdatedAt),
	)
	if err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}

	if err := insertTags(ctx, tx, n.ID, n.Tags); err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}
	if err := s.step("insert_shares"); err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}
	if err := insertShares(ctx, tx, n.ID, n.SharedBucketIDs, n.CreatedAt); err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.fail(ctx, "create_note", err)
	}
	return n, nil
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail(ctx, "update_note", err)
	}
	defer tx.Rollback()

	n, err := getNote(ctx, tx, ownerID, noteID)
	if err != nil {
		return nil, s.fail(ctx, "update_note", err)
	}
	if n == nil {
		return nil, nil
	}
	if err := s.fillNote(ctx, tx, n); err != nil {
		return nil, s.fail(ctx, "update_note", err)
	}

	patch.Apply(n)
	if replace {
		n.PrimaryBucketID, n.SharedBucketIDs = primary, shared
		ok, err := ownedBuckets(ctx, tx, ownerID, n.Membership())
		if err != nil {
			return nil, s.fail(ctx, "update_note", err)
		}
		if !ok {
			return nil, store.ErrUnknownBucket
		}
	}
	n.Touch(s.now().UTC())

	_, err = tx.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, color = ?, font_family = ?, pinned = ?,
			primary_bucket_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		n.Title,
		n.Content,
		n.Color,
		n.FontFamily,
		boolInt(n.Pinned),
		n.PrimaryBucketID,
		formatTime(n.UpdatedAt),
		n.ID,
		ownerID,
	)
	if err != nil {
		return nil, s.fail(ctx, "update_note", err)
	}

	if patch.Tags != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
			return nil, s.fail(ctx, "update_note", err)
		}
		if err := insertTags(ctx, tx, n.ID, n.Tags); err != nil {
			return nil, s.fail(ctx, "update_note", err)
		}
	}

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_buckets WHERE note_id = ?`, n.ID); err != nil {
			return nil, s.fail(ctx, "update_note", err)
		}
		if err := s.step("replace_shares"); err != nil {
			return nil, s.fail(ctx, "update_note", err)
		}
		if err := insertShares(ctx, tx, n.ID, n.SharedBucketIDs, n.UpdatedAt); err != nil {
			return nil, s.fail(ctx, "update_note", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, s.fail(ctx, "update_note", err)
	}
	return n, nil
}

// DeleteNote removes a note. Tags and shares go with it via ON DELETE CASCADE.
func (s *Store) DeleteNote(ctx context.Context, ownerID, noteID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND owner_id = ?`, noteID, ownerID)
	if err != nil {
		return false, s.fail(ctx, "delete_note", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, s.fail(ctx, "delete_note", err)
	}
	return n > 0, nil
}

// GetNote returns the note with its shared buckets, or nil when it does not
// exist for this owner.
func (s *Store) GetNote(ctx context.Context, ownerID, noteID string) (*domain.NoteWithBuckets, error) {
	n, err := getNote(ctx, s.db, ownerID, noteID)
	if err != nil {
		return nil, s.fail(ctx, "get_note", err)
	}
	if n == nil {
		return nil, nil
	}
	notes, err := s.hydrate(ctx, s.db, []*domain.Note{n})
	if err != nil {
		return nil, s.fail(ctx, "get_note", err)
	}
	return &notes[0], nil
}

func getNote(ctx context.Context, q queryer, ownerID, noteID string) (*domain.Note, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.id = ? AND n.owner_id = ?`,
		noteID, ownerID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

// GetBucketNotes returns every note whose primary or shared membership
// includes the bucket, pinned first then most recently updated.
func (s *Store) GetBucketNotes(ctx context.Context, ownerID, bucketID string) ([]domain.NoteWithBuckets, error) {
	notes, err := s.listNotes(ctx, `
		WHERE n.owner_id = ? AND (
			n.primary_bucket_id = ?
			OR n.id IN (SELECT note_id FROM note_buckets WHERE bucket_id = ?)
		)`,
		ownerID, bucketID, bucketID)
	if err != nil {
		return nil, s.fail(ctx, "get_bucket_notes", err)
	}
	domain.SortNotes(notes)
	return notes, nil
}

// SearchNotes matches the query against title or content. LIKE folds ASCII
// case only. A non-empty bucketID restricts results to that bucket's members.
func (s *Store) SearchNotes(ctx context.Context, ownerID, query, bucketID string) ([]domain.NoteWithBuckets, error) {
	pattern := "%" + escapeLike(query) + "%"
	where := `
		WHERE n.owner_id = ?
		AND (n.title LIKE ? ESCAPE '\' OR n.content LIKE ? ESCAPE '\')`
	queryArgs := []any{ownerID, pattern, pattern}

	if bucketID != "" {
		where += `
		AND (
			n.primary_bucket_id = ?
			OR n.id IN (SELECT note_id FROM note_buckets WHERE bucket_id = ?)
		)`
		queryArgs = append(queryArgs, bucketID, bucketID)
	}

	notes, err := s.listNotes(ctx, where, queryArgs...)
	if err != nil {
		return nil, s.fail(ctx, "search_notes", err)
	}
	domain.SortNotesByUpdated(notes)
	return notes, nil
}

// GetAllUserNotes returns every note of the owner, most recently updated first.
func (s *Store) GetAllUserNotes(ctx context.Context, ownerID string) ([]domain.NoteWithBuckets, error) {
	notes, err := s.listNotes(ctx, `WHERE n.owner_id = ?`, ownerID)
	if err != nil {
		return nil, s.fail(ctx, "get_all_user_notes", err)
	}
	domain.SortNotesByUpdated(notes)
	return notes, nil
}

// listNotes selects notes matching where and hydrates them.
func (s *Store) listNotes(ctx context.Context, where string, queryArgs ...any) ([]domain.NoteWithBuckets, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes n `+where, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	return s.hydrate(ctx, s.db, notes)
}

func insertTags(ctx context.Context, q queryer, noteID string, tags []string) error {
	for i, tag := range tags {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO note_tags (note_id, tag, position) VALUES (?, ?, ?)`,
			noteID, tag, i,
		); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

func insertShares(ctx context.Context, q queryer, noteID string, bucketIDs []string, at time.Time) error {
	for i, bucketID := range bucketIDs {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO note_buckets (id, note_id, bucket_id, position, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), noteID, bucketID, i, formatTime(at),
		); err != nil {
			return fmt.Errorf("insert share %q: %w", bucketID, err)
		}
	}
	return nil
}
