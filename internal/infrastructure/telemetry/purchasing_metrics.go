package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Attribute keys shared by purchasing metrics
var (
	AttrOperation     = attribute.Key("operation")
	AttrStep          = attribute.Key("step")
	AttrStatus        = attribute.Key("status")
	AttrPaymentMethod = attribute.Key("payment_method")
	AttrEventType     = attribute.Key("event_type")
)

// PurchasingMetrics counts lifecycle operations and their side-effect failures.
// A nil *PurchasingMetrics is valid and records nothing.
type PurchasingMetrics struct {
	receipts           *Counter
	returns            *Counter
	returnAmount       *AmountCounter
	payments           *Counter
	paymentAmount      *AmountCounter
	paymentVoids       *Counter
	refunds            *Counter
	refundAmount       *AmountCounter
	sideEffectFailures *Counter
	timelineBackfilled *Counter
}

// NewPurchasingMetrics creates the purchasing instruments on meter
func NewPurchasingMetrics(meter metric.Meter) (*PurchasingMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(TracerName)
	}

	pm := &PurchasingMetrics{}
	var err error
	if pm.receipts, err = NewCounter(meter, "purchasing_receipts_total", "Receipt operations that changed received quantities", "{receipt}"); err != nil {
		return nil, err
	}
	if pm.returns, err = NewCounter(meter, "purchasing_returns_total", "Return operations that changed returned quantities", "{return}"); err != nil {
		return nil, err
	}
	if pm.returnAmount, err = NewAmountCounter(meter, "purchasing_return_amount_total", "Monetary value of returned goods"); err != nil {
		return nil, err
	}
	if pm.payments, err = NewCounter(meter, "purchasing_payments_total", "Payments recorded against purchases", "{payment}"); err != nil {
		return nil, err
	}
	if pm.paymentAmount, err = NewAmountCounter(meter, "purchasing_payment_amount_total", "Monetary value of recorded payments"); err != nil {
		return nil, err
	}
	if pm.paymentVoids, err = NewCounter(meter, "purchasing_payment_voids_total", "Payments voided", "{payment}"); err != nil {
		return nil, err
	}
	if pm.refunds, err = NewCounter(meter, "purchasing_refunds_total", "Refund transactions created", "{refund}"); err != nil {
		return nil, err
	}
	if pm.refundAmount, err = NewAmountCounter(meter, "purchasing_refund_amount_total", "Monetary value of refund transactions"); err != nil {
		return nil, err
	}
	if pm.sideEffectFailures, err = NewCounter(meter, "purchasing_side_effect_failures_total", "Non-fatal side-effect steps that failed", "{failure}"); err != nil {
		return nil, err
	}
	if pm.timelineBackfilled, err = NewCounter(meter, "purchasing_timeline_backfilled_total", "Timeline events inserted by backfill", "{event}"); err != nil {
		return nil, err
	}
	return pm, nil
}

// RecordReceipt counts a receipt that moved the order into status
func (m *PurchasingMetrics) RecordReceipt(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.receipts.Inc(ctx, AttrStatus.String(status))
}

// RecordReturn counts a return and its monetary value
func (m *PurchasingMetrics) RecordReturn(ctx context.Context, status string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.returns.Inc(ctx, AttrStatus.String(status))
	m.returnAmount.Add(ctx, amount.InexactFloat64())
}

// RecordPayment counts a payment and its amount by method
func (m *PurchasingMetrics) RecordPayment(ctx context.Context, method string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attr := AttrPaymentMethod.String(method)
	m.payments.Inc(ctx, attr)
	m.paymentAmount.Add(ctx, amount.InexactFloat64(), attr)
}

// RecordPaymentVoid counts a voided payment
func (m *PurchasingMetrics) RecordPaymentVoid(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.paymentVoids.Inc(ctx, AttrPaymentMethod.String(method))
}

// RecordRefunds counts refund transactions created in one allocation
func (m *PurchasingMetrics) RecordRefunds(ctx context.Context, count int, amount decimal.Decimal) {
	if m == nil || count <= 0 {
		return
	}
	m.refunds.Add(ctx, int64(count))
	m.refundAmount.Add(ctx, amount.InexactFloat64())
}

// RecordSideEffectFailure counts a failed non-fatal step
func (m *PurchasingMetrics) RecordSideEffectFailure(ctx context.Context, operation, step string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.Inc(ctx, AttrOperation.String(operation), AttrStep.String(step))
}

// RecordTimelineBackfill counts events inserted by a backfill run
func (m *PurchasingMetrics) RecordTimelineBackfill(ctx context.Context, eventType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.timelineBackfilled.Add(ctx, int64(n), AttrEventType.String(eventType))
}
