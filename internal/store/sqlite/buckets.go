package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/id"
	"github.com/stickynotes/stickynotes-server/internal/store"
)

const bucketColumns = `b.id, b.owner_id, b.name, b.description, b.color, b.icon, b.created_at, b.updated_at`

// scanBucket scans a bucket row selected with bucketColumns.
func scanBucket(scanner interface{ Scan(dest ...any) error }, extra ...any) (*domain.Bucket, error) {
	var (
		b           domain.Bucket
		description sql.NullString
		createdAt   string
		updatedAt   string
	)

	dest := append([]any{
		&b.ID,
		&b.OwnerID,
		&b.Name,
		&description,
		&b.Color,
		&b.Icon,
		&createdAt,
		&updatedAt,
	}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	b.Description = description.String

	var err error
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &b, nil
}

// countExpr is the per-bucket note count for the configured mode.
func (s *Store) countExpr() string {
	primary := `(SELECT COUNT(*) FROM notes n WHERE n.primary_bucket_id = b.id)`
	if s.countMode == domain.CountMembership {
		return primary + ` + (SELECT COUNT(*) FROM note_buckets nb WHERE nb.bucket_id = b.id)`
	}
	return primary
}

// GetUserBuckets returns the owner's buckets in creation order with note counts.
func (s *Store) GetUserBuckets(ctx context.Context, ownerID string) ([]domain.BucketWithCount, error) {
	query := `SELECT ` + bucketColumns + `, ` + s.countExpr() + ` AS note_count
		FROM buckets b
		WHERE b.owner_id = ?
		ORDER BY b.created_at ASC, b.id ASC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, s.fail(ctx, "get_user_buckets", err)
	}
	defer rows.Close()

	buckets := []domain.BucketWithCount{}
	for rows.Next() {
		var count int
		b, err := scanBucket(rows, &count)
		if err != nil {
			return nil, s.fail(ctx, "get_user_buckets", err)
		}
		buckets = append(buckets, domain.BucketWithCount{Bucket: *b, NoteCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(ctx, "get_user_buckets", err)
	}
	return buckets, nil
}

// GetBucket returns the bucket, or nil when it does not exist for this owner.
func (s *Store) GetBucket(ctx context.Context, ownerID, bucketID string) (*domain.Bucket, error) {
	b, err := getBucket(ctx, s.db, ownerID, bucketID)
	if err != nil {
		return nil, s.fail(ctx, "get_bucket", err)
	}
	return b, nil
}

func getBucket(ctx context.Context, q queryer, ownerID, bucketID string) (*domain.Bucket, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+bucketColumns+` FROM buckets b WHERE b.id = ? AND b.owner_id = ?`,
		bucketID, ownerID)
	b, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// CreateBucket inserts a bucket for the owner.
func (s *Store) CreateBucket(ctx context.Context, ownerID string, in domain.BucketInput) (*domain.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, store.ErrEmptyName
	}
	in = in.WithDefaults()

	bucketID, err := id.Generate(id.BucketPrefix)
	if err != nil {
		return nil, s.fail(ctx, "create_bucket", err)
	}

	b := &domain.Bucket{
		ID:          bucketID,
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Icon:        in.Icon,
	}
	b.InitTimestamps(s.now().UTC())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO buckets (id, owner_id, name, description, color, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.OwnerID,
		b.Name,
		nullString(b.Description),
		b.Color,
		b.Icon,
		formatTime(b.CreatedAt),
		formatTime(b.UpdatedAt),
	)
	if err != nil {
		return nil, s.fail(ctx, "create_bucket", err)
	}
	return b, nil
}

// UpdateBucket applies a partial update. Returns nil when the bucket does not
// exist for this owner.
func (s *Store) UpdateBucket(ctx context.Context, ownerID, bucketID string, patch domain.BucketPatch) (*domain.Bucket, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, store.ErrEmptyName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail(ctx, "update_bucket", err)
	}
	defer tx.Rollback()

	b, err := getBucket(ctx, tx, ownerID, bucketID)
	if err != nil {
		return nil, s.fail(ctx, "update_bucket", err)
	}
	if b == nil {
		return nil, nil
	}

	patch.Apply(b)
	b.Touch(s.now().UTC())

	_, err = tx.ExecContext(ctx, `
		UPDATE buckets SET name = ?, description = ?, color = ?, icon = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		b.Name,
		nullString(b.Description),
		b.Color,
		b.Icon,
		formatTime(b.UpdatedAt),
		b.ID,
		ownerID,
	)
	if err != nil {
		return nil, s.fail(ctx, "update_bucket", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail(ctx, "update_bucket", err)
	}
	return b, nil
}

// DeleteBucket removes the bucket and cascades to its notes in one
// transaction. Notes whose primary bucket it was are deleted; notes that
// shared it lose the share and have updated_at refreshed.
func (s *Store) DeleteBucket(ctx context.Context, ownerID, bucketID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, s.fail(ctx, "delete_bucket", err)
	}
	defer tx.Rollback()

	b, err := getBucket(ctx, tx, ownerID, bucketID)
	if err != nil {
		return false, s.fail(ctx, "delete_bucket", err)
	}
	if b == nil {
		return false, nil
	}

	now := formatTime(s.now().UTC())
	steps := []struct {
		name  string
		query string
		args  []any
	}{
		{
			name: "touch_shared",
			query: `UPDATE notes SET updated_at = ?
				WHERE owner_id = ? AND id IN (SELECT note_id FROM note_buckets WHERE bucket_id = ?)`,
			args: []any{now, ownerID, bucketID},
		},
		{
			name:  "delete_shares",
			query: `DELETE FROM note_buckets WHERE bucket_id = ?`,
			args:  []any{bucketID},
		},
		{
			name:  "delete_primary_notes",
			query: `DELETE FROM notes WHERE owner_id = ? AND primary_bucket_id = ?`,
			args:  []any{ownerID, bucketID},
		},
		{
			name:  "delete_bucket",
			query: `DELETE FROM buckets WHERE id = ? AND owner_id = ?`,
			args:  []any{bucketID, ownerID},
		},
	}
	for _, st := range steps {
		if err := s.step(st.name); err != nil {
			return false, s.fail(ctx, "delete_bucket", err)
		}
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return false, s.fail(ctx, "delete_bucket", fmt.Errorf("%s: %w", st.name, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return false, s.fail(ctx, "delete_bucket", err)
	}
	return true, nil
}

// ownedBuckets reports whether every id names a bucket of ownerID.
func ownedBuckets(ctx context.Context, q queryer, ownerID string, bucketIDs []string) (bool, error) {
	if len(bucketIDs) == 0 {
		return true, nil
	}
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM buckets WHERE owner_id = ? AND id IN (`+placeholders(len(bucketIDs))+`)`,
		args([]any{ownerID}, bucketIDs)...,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == len(bucketIDs), nil
}
