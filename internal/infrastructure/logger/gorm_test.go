package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func statement(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info, WithMaxSQLLength(64))
	next, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, gormlogger.Warn, next.level)
	assert.Equal(t, 64, next.maxSQLLength)
}

func TestGormLogger_Trace(t *testing.T) {
	update := statement("UPDATE purchase_items SET received_quantity = 5 WHERE id = 'x'", 1)

	t.Run("statement carries the processor context", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)
		purchaseID, actor := uuid.New(), uuid.New()
		traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
		spanID, _ := trace.SpanIDFromHex("0102030405060708")
		ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		}))
		ctx = WithOperation(WithActor(WithPurchaseID(ctx, purchaseID), actor), "receive")

		gl.Trace(ctx, time.Now(), update, nil)

		require.Equal(t, 1, recorded.Len())
		entry := recorded.All()[0]
		assert.Equal(t, "sql", entry.Message)
		assert.Equal(t, zapcore.DebugLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, purchaseID.String(), fields["purchase_id"])
		assert.Equal(t, actor.String(), fields["actor_id"])
		assert.Equal(t, "receive", fields["operation"])
		assert.Equal(t, traceID.String(), fields["trace_id"])
		assert.Equal(t, "update", fields["statement"])
	})

	t.Run("error is logged", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), update, errors.New("deadlock"))
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.ErrorLevel, recorded.All()[0].Level)
		assert.Equal(t, "sql failed", recorded.All()[0].Message)
	})

	t.Run("record not found is ignored by default", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), statement("SELECT * FROM purchases", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("record not found can be logged", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error, WithRecordNotFound(true))
		gl.Trace(context.Background(), time.Now(), statement("SELECT * FROM purchases", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 1, recorded.Len())
	})

	t.Run("slow statement warns with the threshold", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), update, nil)
		require.Equal(t, 1, recorded.Len())
		entry := recorded.All()[0]
		assert.Equal(t, "slow sql", entry.Message)
		assert.Equal(t, time.Millisecond, entry.ContextMap()["threshold"])
	})

	t.Run("zero threshold disables slow warnings", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(0))
		gl.Trace(context.Background(), time.Now().Add(-time.Hour), update, nil)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("write matching no rows warns", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.Trace(context.Background(), time.Now(), statement("UPDATE purchases SET status = 'received' WHERE id = 'x'", 0), nil)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, "sql write matched no rows", recorded.All()[0].Message)
	})

	t.Run("empty select is not a warning", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.Trace(context.Background(), time.Now(), statement("SELECT * FROM purchase_refunds WHERE return_id = 'x'", 0), nil)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("long statements are truncated", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info, WithMaxSQLLength(16))
		gl.Trace(context.Background(), time.Now(), statement("INSERT INTO purchase_events "+strings.Repeat("x", 100), 1), nil)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, "INSERT INTO purc...(truncated)", recorded.All()[0].ContextMap()["sql"])
	})

	t.Run("full statements when the limit is zero", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info, WithMaxSQLLength(0))
		long := "INSERT INTO purchase_events " + strings.Repeat("x", 1000)
		gl.Trace(context.Background(), time.Now(), statement(long, 1), nil)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, long, recorded.All()[0].ContextMap()["sql"])
	})

	t.Run("error level skips rendering successful statements", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		rendered := false
		gl.Trace(context.Background(), time.Now(), func() (string, int64) {
			rendered = true
			return "SELECT 1", 1
		}, nil)
		assert.False(t, rendered)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), update, errors.New("x"))
		assert.Equal(t, 0, recorded.Len())
	})
}

func TestGormLogger_MessagesCarryContext(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)
	purchaseID := uuid.New()
	gl.Warn(WithPurchaseID(context.Background(), purchaseID), "retrying %s", "connection")

	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	assert.Equal(t, "retrying connection", entry.Message)
	assert.Equal(t, purchaseID.String(), entry.ContextMap()["purchase_id"])
}

func TestStatementKind(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM purchases":         "select",
		"  insert into purchase_events":   "insert",
		"UPDATE purchases SET status = 1": "update",
		"DELETE FROM purchase_refunds":    "delete",
		"WITH t AS (SELECT 1) SELECT 1":   "with",
		"SAVEPOINT sp1":                   "other",
		"":                                "unknown",
	}
	for sql, want := range tests {
		assert.Equal(t, want, statementKind(sql), sql)
	}
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("other"))
}
