// Package sqlite implements store.Backend on SQLite. Shared bucket
// memberships live in a junction table and multi-row changes run inside a
// single transaction.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const backendName = "sqlite"

// Store provides SQLite-backed note storage.
type Store struct {
	db        *sql.DB
	logger    *slog.Logger
	countMode domain.CountMode
	now       func() time.Time

	// failpoint is consulted between the statements of multi-step writes.
	// Tests set it to simulate a crash part way through a transaction.
	failpoint func(step string) error
}

var _ store.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCountMode selects how bucket note counts are derived. The default
// counts primary memberships only.
func WithCountMode(mode domain.CountMode) Option {
	return func(s *Store) {
		if mode != "" {
			s.countMode = mode
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// pragmas are applied to every pooled connection through the DSN so that
// foreign keys (and with them ON DELETE CASCADE) hold on all of them.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// dsn builds the connection string for path with pragmas attached.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open creates a new SQLite store at the given path.
// It configures WAL mode, sets pragmas, and applies the schema.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	s := &Store{
		db:        db,
		logger:    logger,
		countMode: domain.CountPrimary,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements store.Backend.
func (s *Store) Name() string { return backendName }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CountMode reports how this store derives bucket note counts.
func (s *Store) CountMode() domain.CountMode { return s.countMode }

func (s *Store) fail(ctx context.Context, op string, err error) error {
	return store.Unavailable(ctx, s.logger, backendName, op, err)
}

func (s *Store) step(name string) error {
	if s.failpoint == nil {
		return nil
	}
	return s.failpoint(name)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// timeLayout is fixed width so that text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// nullString returns a sql.NullString, NULL for the empty string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// args converts ids to a []any for variadic query arguments.
func args[T any](prefix []any, ids []T) []any {
	out := make([]any, 0, len(prefix)+len(ids))
	out = append(out, prefix...)
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

// escapeLike escapes LIKE wildcards so the query is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
