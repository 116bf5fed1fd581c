package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/config"
	"gorm.io/gorm"
)

// ReadRetry bounds retries of repository reads. Writes never go through it.
type ReadRetry struct {
	attempts        int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// DefaultReadRetry is 3 attempts starting at 50ms
func DefaultReadRetry() ReadRetry {
	return ReadRetry{attempts: 3, initialInterval: 50 * time.Millisecond, maxInterval: 500 * time.Millisecond}
}

// NewReadRetry builds a ReadRetry from configuration
func NewReadRetry(cfg config.RetryConfig) ReadRetry {
	r := DefaultReadRetry()
	if cfg.Attempts > 0 {
		r.attempts = cfg.Attempts
	}
	if cfg.InitialInterval > 0 {
		r.initialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		r.maxInterval = cfg.MaxInterval
	}
	return r
}

// Do runs read until it succeeds, returns a permanent error, or runs out of attempts.
// Not-found and domain errors are permanent. Exhausted attempts surface as a
// TransientDataAccessError wrapping the last failure.
func (r ReadRetry) Do(ctx context.Context, op string, read func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval
	policy.MaxInterval = r.maxInterval
	policy.MaxElapsedTime = 0

	attempts := r.attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := read()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err == nil || isPermanent(err) {
		return err
	}
	return shared.NewTransientDataAccessError(op, err)
}

func isPermanent(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	var de *shared.DomainError
	return errors.As(err, &de)
}
