package persistence

import (
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/infrastructure/config"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the postgres connection, wires the zap GORM logger and,
// when database tracing is enabled, the otelgorm plugin.
func NewDatabase(cfg config.DatabaseConfig, tel config.TelemetryConfig, logLevel string, zapLogger *zap.Logger) (*Database, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	maxSQL := logger.DefaultMaxSQLLength
	if tel.DBLogFullSQL {
		maxSQL = 0
	}
	gormLogger := logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(logLevel),
		logger.WithSlowThreshold(tel.DBSlowQueryThresh),
		logger.WithMaxSQLLength(maxSQL),
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if tel.DBTraceEnabled {
		if err := RegisterTracing(db, tel.DBLogFullSQL); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// RegisterTracing installs the otelgorm plugin. Query variables are only
// recorded when logFullSQL is set.
func RegisterTracing(db *gorm.DB, logFullSQL bool) error {
	opts := []otelgorm.Option{otelgorm.WithDBName("purchasing")}
	if !logFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register otelgorm plugin: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}
