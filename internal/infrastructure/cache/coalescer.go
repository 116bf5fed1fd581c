package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a loaded value is served without reloading
const DefaultTTL = 30 * time.Second

// Loader produces the value for a key on a cache miss
type Loader[V any] func(ctx context.Context) (V, error)

// Coalescer is a keyed single-flight cache: concurrent Gets for one key share a
// single loader call, and a successful result is served until it is older than the TTL.
// Construct one per value type per process and pass it by reference.
type Coalescer[V any] struct {
	backend        Backend[V]
	clock          Clock
	ttl            time.Duration
	staleRetention time.Duration
	serveStale     bool
	logger         *zap.Logger

	group singleflight.Group
	epoch atomic.Uint64

	hits      int64
	misses    int64
	loads     int64
	staleHits int64
}

// CoalescerOption is a functional option for configuring the coalescer
type CoalescerOption func(*coalescerOptions)

type coalescerOptions struct {
	clock          Clock
	ttl            time.Duration
	staleRetention time.Duration
	serveStale     bool
	logger         *zap.Logger
}

// WithClock injects the clock used for freshness checks
func WithClock(clock Clock) CoalescerOption {
	return func(o *coalescerOptions) {
		o.clock = clock
	}
}

// WithTTL sets how long loaded values stay fresh
func WithTTL(ttl time.Duration) CoalescerOption {
	return func(o *coalescerOptions) {
		o.ttl = ttl
	}
}

// WithServeStaleOnError lets Get fall back to the last loaded value when the loader fails.
// Stale values are kept for retention after they were stored.
func WithServeStaleOnError(enabled bool, retention time.Duration) CoalescerOption {
	return func(o *coalescerOptions) {
		o.serveStale = enabled
		o.staleRetention = retention
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) CoalescerOption {
	return func(o *coalescerOptions) {
		o.logger = logger
	}
}

// NewCoalescer creates a coalescer over backend
func NewCoalescer[V any](backend Backend[V], opts ...CoalescerOption) *Coalescer[V] {
	o := coalescerOptions{
		clock:  SystemClock{},
		ttl:    DefaultTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.staleRetention < o.ttl {
		o.staleRetention = o.ttl
	}

	return &Coalescer[V]{
		backend:        backend,
		clock:          o.clock,
		ttl:            o.ttl,
		staleRetention: o.staleRetention,
		serveStale:     o.serveStale,
		logger:         o.logger,
	}
}

// GetOption modifies a single Get call
type GetOption func(*getOptions)

type getOptions struct {
	forceRefresh bool
}

// ForceRefresh skips the cached value and always runs the loader
func ForceRefresh() GetOption {
	return func(o *getOptions) {
		o.forceRefresh = true
	}
}

type loadResult[V any] struct {
	value V
}

// Get returns the fresh cached value for key, joins an in-flight load for key,
// or runs loader. Failed loads are never cached. A cancelled ctx abandons the wait
// but not the load.
func (c *Coalescer[V]) Get(ctx context.Context, key string, loader Loader[V], opts ...GetOption) (V, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.forceRefresh {
		if entry, ok := c.lookup(ctx, key); ok && c.isFresh(entry) {
			atomic.AddInt64(&c.hits, 1)
			return entry.Value, nil
		}
	}
	atomic.AddInt64(&c.misses, 1)

	// Forced loads do not join a regular in-flight load, which may predate the caller's write.
	flightKey := key
	if o.forceRefresh {
		flightKey = "force\x00" + key
	}

	// The load belongs to every caller waiting on it, so it ignores the starter's
	// cancellation and each caller gives up on its own ctx instead.
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), key, loader)
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(loadResult[V]).value, nil
	}
}

func (c *Coalescer[V]) load(ctx context.Context, key string, loader Loader[V]) (loadResult[V], error) {
	atomic.AddInt64(&c.loads, 1)
	epoch := c.epoch.Load()

	value, err := loader(ctx)
	if err != nil {
		if c.serveStale {
			if entry, ok := c.lookup(ctx, key); ok && c.clock.Now().Sub(entry.StoredAt) <= c.staleRetention {
				atomic.AddInt64(&c.staleHits, 1)
				c.logger.Warn("serving stale cache entry after load failure",
					zap.String("key", key),
					zap.Duration("age", c.clock.Now().Sub(entry.StoredAt)),
					zap.Error(err),
				)
				return loadResult[V]{value: entry.Value}, nil
			}
		}
		return loadResult[V]{}, err
	}

	// An invalidation during the load means the value may predate a write.
	if c.epoch.Load() != epoch {
		return loadResult[V]{value: value}, nil
	}

	entry := Entry[V]{Value: value, StoredAt: c.clock.Now()}
	if err := c.backend.Set(ctx, key, entry, c.retention()); err != nil {
		c.logger.Warn("failed to store cache entry", zap.String("key", key), zap.Error(err))
	}
	return loadResult[V]{value: value}, nil
}

// Invalidate drops the cached value for key
func (c *Coalescer[V]) Invalidate(ctx context.Context, key string) {
	c.epoch.Add(1)
	c.group.Forget(key)
	if err := c.backend.Delete(ctx, key); err != nil {
		c.logger.Warn("failed to invalidate cache entry", zap.String("key", key), zap.Error(err))
	}
}

// InvalidatePrefix drops every cached value whose key starts with prefix
func (c *Coalescer[V]) InvalidatePrefix(ctx context.Context, prefix string) {
	c.epoch.Add(1)
	if err := c.backend.DeletePrefix(ctx, prefix); err != nil {
		c.logger.Warn("failed to invalidate cache prefix", zap.String("prefix", prefix), zap.Error(err))
	}
}

// Stats returns hit, miss, load and stale-hit counters
func (c *Coalescer[V]) Stats() CoalescerStats {
	return CoalescerStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Loads:     atomic.LoadInt64(&c.loads),
		StaleHits: atomic.LoadInt64(&c.staleHits),
	}
}

// Close releases the backend
func (c *Coalescer[V]) Close() error {
	return c.backend.Close()
}

func (c *Coalescer[V]) lookup(ctx context.Context, key string) (Entry[V], bool) {
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache backend read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return Entry[V]{}, false
	}
	return entry, ok
}

func (c *Coalescer[V]) isFresh(entry Entry[V]) bool {
	return c.clock.Now().Sub(entry.StoredAt) < c.ttl
}

func (c *Coalescer[V]) retention() time.Duration {
	if c.serveStale {
		return c.staleRetention
	}
	return c.ttl
}

// CoalescerStats holds coalescer counters for monitoring
type CoalescerStats struct {
	Hits      int64
	Misses    int64
	Loads     int64
	StaleHits int64
}

// Key joins key parts with ':'
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
