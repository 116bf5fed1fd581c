package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	entry     Entry[V]
	expiresAt time.Time
}

// MemoryBackend implements Backend using an in-process map.
// It is suitable for single-instance deployments and testing.
type MemoryBackend[V any] struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry[V]
	clock     Clock
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryBackend creates a new in-memory backend.
// It starts a background goroutine to drop entries past their retention.
func NewMemoryBackend[V any](clock Clock, cleanupInterval time.Duration) *MemoryBackend[V] {
	if clock == nil {
		clock = SystemClock{}
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	b := &MemoryBackend[V]{
		entries:  make(map[string]memoryEntry[V]),
		clock:    clock,
		stopChan: make(chan struct{}),
	}

	b.wg.Add(1)
	go b.cleanupLoop(cleanupInterval)

	return b
}

// Get returns the entry for key if it is still retained
func (b *MemoryBackend[V]) Get(_ context.Context, key string) (Entry[V], bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[key]
	if !ok || b.clock.Now().After(e.expiresAt) {
		return Entry[V]{}, false, nil
	}
	return e.entry, true, nil
}

// Set stores entry for key until retention elapses
func (b *MemoryBackend[V]) Set(_ context.Context, key string, entry Entry[V], retention time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = memoryEntry[V]{
		entry:     entry,
		expiresAt: entry.StoredAt.Add(retention),
	}
	return nil
}

// Delete removes key
func (b *MemoryBackend[V]) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}

// DeletePrefix removes every key starting with prefix
func (b *MemoryBackend[V]) DeletePrefix(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			delete(b.entries, key)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired or not
func (b *MemoryBackend[V]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Close stops the cleanup goroutine.
// Safe to call multiple times.
func (b *MemoryBackend[V]) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
	})
	return nil
}

func (b *MemoryBackend[V]) cleanupLoop(interval time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.cleanup()
		}
	}
}

func (b *MemoryBackend[V]) cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	for key, e := range b.entries {
		if now.After(e.expiresAt) {
			delete(b.entries, key)
		}
	}
}

var _ Backend[int] = (*MemoryBackend[int])(nil)
