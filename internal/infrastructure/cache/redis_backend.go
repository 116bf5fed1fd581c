package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisBackend implements Backend using Redis, so several processes share cached reads.
// Values are stored as JSON.
type RedisBackend[V any] struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend connects to Redis and creates a backend
func NewRedisBackend[V any](cfg RedisConfig, keyPrefix string) (*RedisBackend[V], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBackendWithClient[V](client, keyPrefix), nil
}

// NewRedisBackendWithClient creates a backend with an existing Redis client
func NewRedisBackendWithClient[V any](client *redis.Client, keyPrefix string) *RedisBackend[V] {
	if keyPrefix == "" {
		keyPrefix = "purchasing:cache:"
	}
	return &RedisBackend[V]{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get loads and decodes the entry for key
func (b *RedisBackend[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	var entry Entry[V]

	raw, err := b.client.Get(ctx, b.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entry, false, nil
		}
		return entry, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return entry, true, nil
}

// Set encodes and stores entry with the given retention as the Redis TTL
func (b *RedisBackend[V]) Set(ctx context.Context, key string, entry Entry[V], retention time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := b.client.Set(ctx, b.keyPrefix+key, raw, retention).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes key
func (b *RedisBackend[V]) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix using SCAN
func (b *RedisBackend[V]) DeletePrefix(ctx context.Context, prefix string) error {
	iter := b.client.Scan(ctx, 0, b.keyPrefix+prefix+"*", 100).Iterator()
	keys := make([]string, 0, 16)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (b *RedisBackend[V]) Close() error {
	return b.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (b *RedisBackend[V]) GetClient() *redis.Client {
	return b.client
}

var _ Backend[int] = (*RedisBackend[int])(nil)
