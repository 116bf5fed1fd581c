// Package purchasing implements the purchase lifecycle processors: placement,
// receipts, returns, payments, refunds and the event timeline.
package purchasing

import (
	"context"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	"github.com/erp/purchasing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// CacheInvalidator drops cached reads of a purchase after a write
type CacheInvalidator interface {
	InvalidatePurchase(ctx context.Context, purchaseID uuid.UUID)
}

// Option configures the optional dependencies of a service
type Option func(*deps)

// deps holds what every service shares: logging, metrics, tracing, time and cache invalidation
type deps struct {
	logger      *zap.Logger
	metrics     *telemetry.PurchasingMetrics
	tracer      trace.Tracer
	clock       Clock
	invalidator CacheInvalidator
}

// WithLogger sets the base logger
func WithLogger(l *zap.Logger) Option {
	return func(d *deps) {
		d.logger = l
	}
}

// WithMetrics sets the purchasing metrics
func WithMetrics(m *telemetry.PurchasingMetrics) Option {
	return func(d *deps) {
		d.metrics = m
	}
}

// WithTracer sets the tracer used for processor spans
func WithTracer(t trace.Tracer) Option {
	return func(d *deps) {
		d.tracer = t
	}
}

// WithClock sets the clock used for event and void timestamps
func WithClock(c Clock) Option {
	return func(d *deps) {
		d.clock = c
	}
}

// WithInvalidator sets the cache invalidated after writes
func WithInvalidator(inv CacheInvalidator) Option {
	return func(d *deps) {
		d.invalidator = inv
	}
}

func newDeps(opts []Option) deps {
	d := deps{}
	for _, opt := range opts {
		opt(&d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(telemetry.TracerName)
	}
	if d.clock == nil {
		d.clock = systemClock{}
	}
	return d
}

// begin starts a span and tags ctx for logging
func (d *deps) begin(ctx context.Context, operation string, purchaseID, actor uuid.UUID) (context.Context, trace.Span) {
	ctx = logger.WithContext(ctx, d.logger)
	ctx = logger.WithOperation(ctx, operation)
	if purchaseID != uuid.Nil {
		ctx = logger.WithPurchaseID(ctx, purchaseID)
	}
	if actor != uuid.Nil {
		ctx = logger.WithActor(ctx, actor)
	}
	ctx, span := d.tracer.Start(ctx, operation,
		trace.WithAttributes(attribute.String("purchase.id", purchaseID.String())),
	)
	return ctx, span
}

// fail marks span as errored and returns err unchanged
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// sideEffectFailed records a non-fatal step failure on the saga, the log and the metrics.
// Errors of another kind are wrapped as side-effect or timeline errors.
func (d *deps) sideEffectFailed(ctx context.Context, saga *purchasing.Saga, step purchasing.Step, subject string, err error, fields ...zap.Field) {
	if !shared.IsKind(err, shared.KindSideEffect) && !shared.IsKind(err, shared.KindTimeline) {
		if step == purchasing.StepTimelineAppend {
			err = shared.NewTimelineError("Failed to append timeline event", err)
		} else {
			err = shared.NewSideEffectError("SIDE_EFFECT_FAILED", "Failed to run "+string(step), err)
		}
	}
	saga.Failed(step, subject, err)

	fields = append(fields,
		zap.String("step", string(step)),
		zap.String("subject", subject),
		zap.Error(err),
	)
	logger.L(ctx).Warn("side effect failed, continuing", fields...)
	d.metrics.RecordSideEffectFailure(ctx, logger.GetOperation(ctx), string(step))
	trace.SpanFromContext(ctx).AddEvent("side_effect_failed", trace.WithAttributes(
		attribute.String("step", string(step)),
		attribute.String("subject", subject),
	))
}

// record appends an event on the timeline as a best-effort step
func (d *deps) record(ctx context.Context, timeline *TimelineRecorder, saga *purchasing.Saga, event *purchasing.PurchaseEvent) {
	if err := timeline.Record(ctx, event); err != nil {
		d.sideEffectFailed(ctx, saga, purchasing.StepTimelineAppend, string(event.EventType), err,
			zap.String("event_id", event.ID.String()))
		return
	}
	saga.Succeeded(purchasing.StepTimelineAppend, string(event.EventType))
}

// invalidate drops cached reads of purchaseID
func (d *deps) invalidate(ctx context.Context, saga *purchasing.Saga, purchaseID uuid.UUID) {
	if d.invalidator == nil {
		saga.Skipped(purchasing.StepInvalidate, purchaseID.String())
		return
	}
	d.invalidator.InvalidatePurchase(ctx, purchaseID)
	saga.Succeeded(purchasing.StepInvalidate, purchaseID.String())
}
