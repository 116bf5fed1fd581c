package cache

import (
	"fmt"

	"github.com/erp/purchasing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Backend kinds accepted in cache.backend
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewBackend creates the backend named in cfg. When Redis is requested but unreachable
// it falls back to memory if cfg.AllowInMemoryFallback is set.
func NewBackend[V any](cfg config.CacheConfig, redisCfg config.RedisConfig, clock Clock, logger *zap.Logger, keyPrefix string) (Backend[V], error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Backend != BackendRedis {
		return NewMemoryBackend[V](clock, cfg.CleanupInterval), nil
	}

	backend, err := NewRedisBackend[V](RedisConfig{
		Host:     redisCfg.Host,
		Port:     redisCfg.Port,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	}, cfg.KeyPrefix+keyPrefix)
	if err == nil {
		logger.Info("using Redis cache backend", zap.String("prefix", cfg.KeyPrefix+keyPrefix))
		return backend, nil
	}

	if !cfg.AllowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for cache but unavailable: %w", err)
	}

	logger.Warn("Redis unavailable, falling back to in-memory cache backend. "+
		"Cached reads will not be shared across instances.",
		zap.Error(err),
	)
	return NewMemoryBackend[V](clock, cfg.CleanupInterval), nil
}

// NewCoalescerFromConfig builds a backend and a coalescer from configuration
func NewCoalescerFromConfig[V any](cfg config.CacheConfig, redisCfg config.RedisConfig, clock Clock, logger *zap.Logger, keyPrefix string) (*Coalescer[V], error) {
	if clock == nil {
		clock = SystemClock{}
	}
	backend, err := NewBackend[V](cfg, redisCfg, clock, logger, keyPrefix)
	if err != nil {
		return nil, err
	}
	return NewCoalescer(backend,
		WithClock(clock),
		WithTTL(cfg.TTL),
		WithServeStaleOnError(cfg.ServeStaleOnError, cfg.StaleRetention),
		WithLogger(logger),
	), nil
}
