package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/stickynotes/stickynotes-server/internal/domain"

	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
)

// Validation failures shared by both backends.
var (
	ErrMembershipRequired = domainerrors.InvalidField("bucketIds", "at least one bucket is required")
	ErrUnknownBucket      = domainerrors.InvalidField("bucketIds", "must reference existing buckets owned by the caller")
	ErrEmptyName          = domainerrors.InvalidField("name", "is required")
	ErrEmptyTitle         = domainerrors.InvalidField("title", "is required")
	ErrEmptyContent       = domainerrors.InvalidField("content", "is required")
)

// CheckNoteInput rejects inputs a backend cannot persist.
func CheckNoteInput(in domain.NoteInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(in.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// CheckNotePatch rejects patches that would blank a required field.
func CheckNotePatch(p domain.NotePatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Unavailable logs a backend fault and translates it into the
// BACKEND_UNAVAILABLE taxonomy member. Context cancellation is passed through
// unchanged so callers can tell it apart from a store failure.
func Unavailable(ctx context.Context, logger *slog.Logger, backend, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	logger.LogAttrs(ctx, slog.LevelError, "storage operation failed",
		slog.String("backend", backend),
		slog.String("op", op),
		slog.Any("error", err),
	)
	return domainerrors.BackendUnavailablef(err, "%s: %s failed", backend, op)
}
