// Package query orchestrates cache-first reads. A query first serves
// whatever the local cache holds, then always fetches from the store, retries
// transient failures, and writes successful results back to the cache.
//
// Fetches for the same key may overlap. Each one draws a sequence number when
// it starts, and a completed fetch is written to the cache only if no fetch
// issued after it has been written already. Out-of-order completions can
// therefore never replace fresher data with older data.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/stickynotes/stickynotes-server/internal/cache"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
)

const (
	// StaleTime is how long a fetched result is considered current.
	StaleTime = 30 * time.Second

	// GCTime is how long a fetched result is retained in memory.
	GCTime = 5 * time.Minute

	// MaxRetries is the number of attempts after the first failed one.
	MaxRetries = 2
)

// Client runs queries against a cache.
type Client struct {
	cache      *cache.Cache
	results    *gocache.Cache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	newBackOff func() backoff.BackOff

	mu        sync.Mutex
	issued    map[string]uint64
	committed map[string]uint64
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the time source used for staleness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithMetrics records fetch outcomes and retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBackOff overrides the delay policy between retries.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = newBackOff }
}

// defaultBackOff doubles from one second up to thirty.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// NewClient creates a query client over c.
func NewClient(c *cache.Cache, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	client := &Client{
		cache:      c,
		results:    gocache.New(GCTime, GCTime),
		logger:     logger,
		now:        time.Now,
		newBackOff: defaultBackOff,
		issued:     make(map[string]uint64),
		committed:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Cache returns the cache the client writes through to.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// snapshot is a committed result held in memory.
type snapshot struct {
	value     any
	fetchedAt time.Time
}

// begin issues the next sequence number for key.
func (c *Client) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued[key]++
	return c.issued[key]
}

// commit runs write and records seq as committed for key, unless a later
// fetch already committed. Writes for one client are serialized so a commit
// cannot interleave with another commit or an invalidation.
func (c *Client) commit(key string, seq uint64, write func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.committed[key] {
		return false
	}
	c.committed[key] = seq
	write()
	return true
}

// Invalidate drops cached results for keys. Fetches already in flight for
// those keys are treated as superseded and will not write their results.
func (c *Client) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.committed[key] = c.issued[key]
		c.results.Delete(key)
	}
	c.cache.Remove(ctx, keys...)
}

// InvalidatePrefix is Invalidate for every key starting with prefix.
func (c *Client) InvalidatePrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.issued {
		if strings.HasPrefix(key, prefix) {
			c.committed[key] = c.issued[key]
		}
	}
	for key := range c.results.Items() {
		if strings.HasPrefix(key, prefix) {
			c.results.Delete(key)
		}
	}
	c.cache.RemovePrefix(ctx, prefix)
}

// IsStale reports whether key has no result fetched within StaleTime.
func (c *Client) IsStale(key string) bool {
	v, ok := c.results.Get(key)
	if !ok {
		return true
	}
	snap, _ := v.(snapshot)
	return c.now().Sub(snap.fetchedAt) >= StaleTime
}

// RefetchOnFocus reports whether a returning user should trigger a refetch.
// Only a recent sync suppresses it.
func (c *Client) RefetchOnFocus(ctx context.Context, userID string) bool {
	return !c.cache.IsFresh(ctx, userID)
}

// retryable reports whether a failed fetch is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domainerrors.CodeOf(err).Retryable()
}
