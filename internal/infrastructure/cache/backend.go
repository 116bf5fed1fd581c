package cache

import (
	"context"
	"time"
)

// Entry is a cached value with the time it was stored
type Entry[V any] struct {
	Value    V         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Backend stores cache entries. Freshness is decided by the Coalescer, not the backend;
// backends only need to keep entries for at least the retention they are given.
type Backend[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Set(ctx context.Context, key string, entry Entry[V], retention time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}
