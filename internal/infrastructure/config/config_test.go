package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnvKeys = []string{
	"PURCHASING_APP_NAME",
	"PURCHASING_APP_ENV",
	"PURCHASING_DATABASE_HOST",
	"PURCHASING_DATABASE_PORT",
	"PURCHASING_DATABASE_PASSWORD",
	"PURCHASING_DATABASE_SSLMODE",
	"PURCHASING_DATABASE_MAX_OPEN_CONNS",
	"PURCHASING_DATABASE_MAX_IDLE_CONNS",
	"PURCHASING_CACHE_BACKEND",
	"PURCHASING_CACHE_TTL",
	"PURCHASING_CACHE_SERVE_STALE_ON_ERROR",
	"PURCHASING_CACHE_ALLOW_IN_MEMORY_FALLBACK",
	"PURCHASING_RETRY_ATTEMPTS",
	"PURCHASING_REFUND_WINDOW_DAYS",
	"PURCHASING_JOURNAL_CASH_ACCOUNT",
	"PURCHASING_JOURNAL_INVENTORY_ACCOUNT",
	"PURCHASING_TELEMETRY_DB_LOG_FULL_SQL",
}

// isolateEnv saves and clears the config env vars, restoring them after the test
func isolateEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string, len(testEnvKeys))
	for _, k := range testEnvKeys {
		original[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		isolateEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "purchasing", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "purchasing", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "memory", cfg.Cache.Backend)
		assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
		assert.False(t, cfg.Cache.ServeStaleOnError)
		assert.True(t, cfg.Cache.AllowInMemoryFallback)
		assert.Equal(t, 3, cfg.Retry.Attempts)
		assert.Equal(t, 50*time.Millisecond, cfg.Retry.InitialInterval)
		assert.Equal(t, 30, cfg.Refund.WindowDays)
		assert.Equal(t, "1400", cfg.Journal.InventoryAccount)
		assert.Equal(t, "2100", cfg.Journal.AccountsPayableAccount)
		assert.Equal(t, "1000", cfg.Journal.CashAccount)
	})

	t.Run("loads values from environment variables with PURCHASING prefix", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("PURCHASING_APP_NAME", "purchasing-test")
		os.Setenv("PURCHASING_DATABASE_HOST", "testdb.local")
		os.Setenv("PURCHASING_DATABASE_PORT", "5433")
		os.Setenv("PURCHASING_CACHE_BACKEND", "redis")
		os.Setenv("PURCHASING_CACHE_TTL", "10s")
		os.Setenv("PURCHASING_CACHE_SERVE_STALE_ON_ERROR", "true")
		os.Setenv("PURCHASING_CACHE_ALLOW_IN_MEMORY_FALLBACK", "false")
		os.Setenv("PURCHASING_RETRY_ATTEMPTS", "2")
		os.Setenv("PURCHASING_REFUND_WINDOW_DAYS", "14")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "purchasing-test", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "redis", cfg.Cache.Backend)
		assert.Equal(t, 10*time.Second, cfg.Cache.TTL)
		assert.True(t, cfg.Cache.ServeStaleOnError)
		assert.False(t, cfg.Cache.AllowInMemoryFallback)
		assert.Equal(t, 2, cfg.Retry.Attempts)
		assert.Equal(t, 14, cfg.Refund.WindowDays)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("PURCHASING_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("PURCHASING_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown cache backend", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("PURCHASING_CACHE_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.backend")
	})

	t.Run("rejects retry attempts above bound", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("PURCHASING_RETRY_ATTEMPTS", "10")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry.attempts")
	})

	t.Run("rejects duplicate journal account codes", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("PURCHASING_JOURNAL_CASH_ACCOUNT", "1400")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "different account codes")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func() {
		os.Setenv("PURCHASING_APP_ENV", "production")
		os.Setenv("PURCHASING_DATABASE_PASSWORD", "secure-password")
		os.Setenv("PURCHASING_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()
		os.Unsetenv("PURCHASING_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()
		os.Setenv("PURCHASING_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()
		os.Setenv("PURCHASING_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
