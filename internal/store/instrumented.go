package store

import (
	"context"
	"time"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
)

// Instrumented decorates a Backend with per-operation metrics.
type Instrumented struct {
	next    Backend
	metrics *metrics.Metrics
}

// Instrument wraps b. A nil metrics value returns b unchanged.
func Instrument(b Backend, m *metrics.Metrics) Backend {
	if m == nil {
		return b
	}
	return &Instrumented{next: b, metrics: m}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domainerrors.CodeOf(err))
	}
	i.metrics.StoreOp(i.next.Name(), op, outcome, time.Since(start).Seconds())
}

// Name implements Backend.
func (i *Instrumented) Name() string { return i.next.Name() }

// Close implements Backend.
func (i *Instrumented) Close() error { return i.next.Close() }

// GetUserBuckets implements Backend.
func (i *Instrumented) GetUserBuckets(ctx context.Context, ownerID string) (out []domain.BucketWithCount, err error) {
	defer func(start time.Time) { i.observe("GetUserBuckets", start, err) }(time.Now())
	return i.next.GetUserBuckets(ctx, ownerID)
}

// CreateBucket implements Backend.
func (i *Instrumented) CreateBucket(ctx context.Context, ownerID string, in domain.BucketInput) (out *domain.Bucket, err error) {
	defer func(start time.Time) { i.observe("CreateBucket", start, err) }(time.Now())
	return i.next.CreateBucket(ctx, ownerID, in)
}

// UpdateBucket implements Backend.
func (i *Instrumented) UpdateBucket(ctx context.Context, ownerID, id string, patch domain.BucketPatch) (out *domain.Bucket, err error) {
	defer func(start time.Time) { i.observe("UpdateBucket", start, err) }(time.Now())
	return i.next.UpdateBucket(ctx, ownerID, id, patch)
}

// DeleteBucket implements Backend.
func (i *Instrumented) DeleteBucket(ctx context.Context, ownerID, id string) (ok bool, err error) {
	defer func(start time.Time) { i.observe("DeleteBucket", start, err) }(time.Now())
	return i.next.DeleteBucket(ctx, ownerID, id)
}

// GetBucket implements Backend.
func (i *Instrumented) GetBucket(ctx context.Context, ownerID, id string) (out *domain.Bucket, err error) {
	defer func(start time.Time) { i.observe("GetBucket", start, err) }(time.Now())
	return i.next.GetBucket(ctx, ownerID, id)
}

// GetBucketNotes implements Backend.
func (i *Instrumented) GetBucketNotes(ctx context.Context, ownerID, bucketID string) (out []domain.NoteWithBuckets, err error) {
	defer func(start time.Time) { i.observe("GetBucketNotes", start, err) }(time.Now())
	return i.next.GetBucketNotes(ctx, ownerID, bucketID)
}

// CreateNote implements Backend.
func (i *Instrumented) CreateNote(ctx context.Context, ownerID string, in domain.NoteInput, bucketIDs []string) (out *domain.Note, err error) {
	defer func(start time.Time) { i.observe("CreateNote", start, err) }(time.Now())
	return i.next.CreateNote(ctx, ownerID, in, bucketIDs)
}

// UpdateNote implements Backend.
func (i *Instrumented) UpdateNote(ctx context.Context, ownerID, id string, patch domain.NotePatch, bucketIDs []string) (out *domain.Note, err error) {
	defer func(start time.Time) { i.observe("UpdateNote", start, err) }(time.Now())
	return i.next.UpdateNote(ctx, ownerID, id, patch, bucketIDs)
}

// DeleteNote implements Backend.
func (i *Instrumented) DeleteNote(ctx context.Context, ownerID, id string) (ok bool, err error) {
	defer func(start time.Time) { i.observe("DeleteNote", start, err) }(time.Now())
	return i.next.DeleteNote(ctx, ownerID, id)
}

// GetNote implements Backend.
func (i *Instrumented) GetNote(ctx context.Context, ownerID, id string) (out *domain.NoteWithBuckets, err error) {
	defer func(start time.Time) { i.observe("GetNote", start, err) }(time.Now())
	return i.next.GetNote(ctx, ownerID, id)
}

// SearchNotes implements Backend.
func (i *Instrumented) SearchNotes(ctx context.Context, ownerID, query, bucketID string) (out []domain.NoteWithBuckets, err error) {
	defer func(start time.Time) { i.observe("SearchNotes", start, err) }(time.Now())
	return i.next.SearchNotes(ctx, ownerID, query, bucketID)
}

// GetAllUserNotes implements Backend.
func (i *Instrumented) GetAllUserNotes(ctx context.Context, ownerID string) (out []domain.NoteWithBuckets, err error) {
	defer func(start time.Time) { i.observe("GetAllUserNotes", start, err) }(time.Now())
	return i.next.GetAllUserNotes(ctx, ownerID)
}
