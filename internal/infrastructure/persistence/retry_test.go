package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func fastRetry(attempts int) ReadRetry {
	return ReadRetry{attempts: attempts, initialInterval: time.Millisecond, maxInterval: time.Millisecond}
}

func TestReadRetry_Do(t *testing.T) {
	ctx := context.Background()
	flaky := errors.New("connection reset by peer")

	t.Run("recovers from a transient failure", func(t *testing.T) {
		calls := 0
		err := fastRetry(3).Do(ctx, "load purchase", func() error {
			calls++
			if calls < 3 {
				return flaky
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("surfaces a transient data access error after the last attempt", func(t *testing.T) {
		calls := 0
		err := fastRetry(3).Do(ctx, "load purchase", func() error {
			calls++
			return flaky
		})
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, shared.ErrTransientDataAccess)
		assert.ErrorIs(t, err, flaky)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		calls := 0
		err := fastRetry(3).Do(ctx, "load purchase", func() error {
			calls++
			return shared.NewNotFoundError("PURCHASE_NOT_FOUND", "missing")
		})
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("record not found is not retried", func(t *testing.T) {
		calls := 0
		err := fastRetry(3).Do(ctx, "load purchase", func() error {
			calls++
			return gorm.ErrRecordNotFound
		})
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestNewReadRetry(t *testing.T) {
	r := NewReadRetry(config.RetryConfig{Attempts: 2})
	assert.Equal(t, 2, r.attempts)
	assert.Equal(t, 50*time.Millisecond, r.initialInterval)

	d := NewReadRetry(config.RetryConfig{})
	assert.Equal(t, DefaultReadRetry(), d)
}
