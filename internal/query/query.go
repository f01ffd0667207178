package query

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/stickynotes/stickynotes-server/internal/cache"
)

// Query describes one cache-backed read.
type Query[T any] struct {
	// Key is the cache key the result is stored under.
	Key string
	// UserID owns the cached entry.
	UserID string
	// Fetch reads the authoritative value.
	Fetch func(ctx context.Context) (T, error)
	// Save writes a fetched value to the cache. Defaults to a plain Set.
	Save func(ctx context.Context, c *cache.Cache, value T)
}

// Result is the outcome of a fetch.
type Result[T any] struct {
	// Data is the freshest value known when the fetch ended. On failure it
	// is the initial cached value, if there was one.
	Data T
	// FromCache is set when Data did not come from this fetch.
	FromCache bool
	// Superseded is set when a later fetch for the same key committed first.
	Superseded bool
	// Err is the final error after retries.
	Err error
}

// Initial returns the value a query can show before its fetch completes:
// the in-memory result if one is retained, otherwise the persisted cache
// entry.
func Initial[T any](ctx context.Context, c *Client, q Query[T]) (T, bool) {
	if v, ok := c.results.Get(q.Key); ok {
		if snap, ok := v.(snapshot); ok {
			if value, ok := snap.value.(T); ok {
				return value, true
			}
		}
	}

	var value T
	if c.cache.Get(ctx, q.Key, q.UserID, &value) {
		return value, true
	}
	var zero T
	return zero, false
}

// Fetch reads the initial value, fetches from the store with retries, and
// commits a successful result to the cache unless a later fetch for the same
// key committed first.
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) Result[T] {
	seq := c.begin(q.Key)
	initial, haveInitial := Initial(ctx, c, q)

	var (
		value    T
		attempts int
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), MaxRetries), ctx)
	err := backoff.Retry(func() error {
		attempts++
		if attempts > 1 {
			c.metrics.QueryRetry()
		}
		v, err := q.Fetch(ctx)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		value = v
		return nil
	}, policy)

	if err != nil {
		c.metrics.QueryFetch("failed")
		c.logger.LogAttrs(ctx, slog.LevelWarn, "query fetch failed",
			slog.String("key", q.Key),
			slog.Int("attempts", attempts),
			slog.Any("error", err),
		)
		return Result[T]{Data: initial, FromCache: haveInitial, Err: err}
	}

	committed := c.commit(q.Key, seq, func() {
		c.results.SetDefault(q.Key, snapshot{value: value, fetchedAt: c.now()})
		if q.Save != nil {
			q.Save(ctx, c.cache, value)
		} else {
			c.cache.Set(ctx, q.Key, value, q.UserID)
		}
	})
	if !committed {
		c.metrics.QueryFetch("superseded")
		c.logger.LogAttrs(ctx, slog.LevelDebug, "query result superseded",
			slog.String("key", q.Key),
			slog.Uint64("seq", seq),
		)
		if current, ok := Initial(ctx, c, q); ok {
			return Result[T]{Data: current, FromCache: true, Superseded: true}
		}
		return Result[T]{Data: value, Superseded: true}
	}

	c.metrics.QueryFetch("committed")
	return Result[T]{Data: value}
}

// Watch returns the initial value immediately and delivers the fetch result
// on the returned channel, which is closed afterwards.
func Watch[T any](ctx context.Context, c *Client, q Query[T]) (T, bool, <-chan Result[T]) {
	initial, ok := Initial(ctx, c, q)
	updates := make(chan Result[T], 1)
	go func() {
		defer close(updates)
		updates <- Fetch(ctx, c, q)
	}()
	return initial, ok, updates
}
