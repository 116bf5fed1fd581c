// Package bootstrap holds the start-up steps shared by the command-line tools:
// configuration, logging, a plain SQL connection and exit codes.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/infrastructure/config"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Process exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ErrUsage marks errors caused by bad command-line arguments
var ErrUsage = errors.New("invalid usage")

// Usagef returns an ErrUsage carrying a formatted message
func Usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// Options adjusts how the logger is built from configuration
type Options struct {
	LogLevel   string // overrides log.level when set
	LogFormat  string // overrides log.format when set
	TimeFormat string
}

// Runtime is the loaded configuration and the logger built from it
type Runtime struct {
	Config *config.Config
	Logger *zap.Logger
}

// Load reads configuration and builds the logger
func Load(opts Options) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(LoggerConfig(cfg.Log, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Runtime{Config: cfg, Logger: log}, nil
}

// LoggerConfig merges the configured log settings with command-line overrides
func LoggerConfig(lc config.LogConfig, opts Options) *logger.Config {
	out := &logger.Config{
		Level:      lc.Level,
		Format:     lc.Format,
		Output:     lc.Output,
		TimeFormat: opts.TimeFormat,
	}
	if opts.LogLevel != "" {
		out.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		out.Format = opts.LogFormat
	}
	return out
}

// Sync flushes the logger
func (r *Runtime) Sync() {
	_ = r.Logger.Sync()
}

// OpenSQL opens and pings a database/sql connection for tools that do not need GORM
func OpenSQL(ctx context.Context, dbCfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
