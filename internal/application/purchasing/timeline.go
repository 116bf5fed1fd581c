package purchasing

import (
	"context"
	"fmt"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TimelineRecorder appends lifecycle events and rebuilds missing ones for older purchases
type TimelineRecorder struct {
	events    purchasing.EventRepository
	purchases purchasing.PurchaseRepository
	payments  purchasing.PaymentRepository
	returns   purchasing.ReturnRepository
	deps
}

// NewTimelineRecorder creates a new TimelineRecorder
func NewTimelineRecorder(
	events purchasing.EventRepository,
	purchases purchasing.PurchaseRepository,
	payments purchasing.PaymentRepository,
	returns purchasing.ReturnRepository,
	opts ...Option,
) *TimelineRecorder {
	return &TimelineRecorder{
		events:    events,
		purchases: purchases,
		payments:  payments,
		returns:   returns,
		deps:      newDeps(opts),
	}
}

// Record appends one event. Failures are returned as TimelineError.
func (r *TimelineRecorder) Record(ctx context.Context, event *purchasing.PurchaseEvent) error {
	if event == nil || event.PurchaseID == uuid.Nil {
		return shared.NewValidationError("INVALID_EVENT", "Event must reference a purchase")
	}
	if !event.EventType.IsValid() {
		return shared.NewValidationError("INVALID_EVENT_TYPE", fmt.Sprintf("Unknown event type %q", event.EventType))
	}
	if event.EventDate.IsZero() {
		event.EventDate = r.clock.Now()
	}
	if err := r.events.Append(ctx, event); err != nil {
		return shared.NewTimelineError(fmt.Sprintf("Failed to append %s event", event.EventType), err)
	}
	return nil
}

// Timeline lists the events of a purchase ordered by event date
func (r *TimelineRecorder) Timeline(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.PurchaseEvent, error) {
	return r.events.ListByPurchase(ctx, purchaseID)
}

// timelineKey identifies an event for backfill: receipts and returns are one family
// each, payment events are per payment
type timelineKey struct {
	family    string
	paymentID string
}

func keyOf(e *purchasing.PurchaseEvent) timelineKey {
	switch e.EventType {
	case purchasing.EventPartialReceipt, purchasing.EventFullReceipt:
		return timelineKey{family: "receipt"}
	case purchasing.EventPartialReturn, purchasing.EventFullReturn:
		return timelineKey{family: "return"}
	case purchasing.EventPaymentMade, purchasing.EventPaymentVoided:
		return timelineKey{family: string(e.EventType), paymentID: e.MetaString(purchasing.MetaPaymentID)}
	default:
		return timelineKey{family: string(e.EventType)}
	}
}

// Backfill synthesizes the events a purchase should have from its current state and
// inserts those that are missing. Running it again inserts nothing.
func (r *TimelineRecorder) Backfill(ctx context.Context, purchaseID, actor uuid.UUID) (*BackfillResult, error) {
	ctx, span := r.begin(ctx, "TimelineRecorder.Backfill", purchaseID, actor)
	defer span.End()

	p, err := r.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	existing, err := r.events.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	payments, err := r.payments.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	returns, err := r.returns.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fail(span, err)
	}

	seen := make(map[timelineKey]bool, len(existing))
	for idx := range existing {
		seen[keyOf(&existing[idx])] = true
	}

	result := &BackfillResult{PurchaseID: purchaseID}
	for _, event := range r.synthesize(p, payments, returns, actor) {
		if seen[keyOf(event)] {
			result.Skipped++
			continue
		}
		event.WithMeta(purchasing.MetaBackfilled, true)
		if err := r.Record(ctx, event); err != nil {
			r.sideEffectFailed(ctx, &result.Saga, purchasing.StepTimelineAppend, string(event.EventType), err)
			continue
		}
		seen[keyOf(event)] = true
		result.Saga.Succeeded(purchasing.StepTimelineAppend, string(event.EventType))
		result.Created = append(result.Created, *event)
		r.metrics.RecordTimelineBackfill(ctx, string(event.EventType), 1)
	}

	if len(result.Created) > 0 {
		r.invalidate(ctx, &result.Saga, purchaseID)
	}
	logger.L(ctx).Info("timeline backfilled",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// synthesize builds the events implied by the purchase, its payments and its returns
func (r *TimelineRecorder) synthesize(p *purchasing.Purchase, payments []purchasing.PurchasePayment, returns []purchasing.PurchaseReturn, actor uuid.UUID) []*purchasing.PurchaseEvent {
	totals := p.Totals()
	lastUpdate := p.UpdatedAt
	if lastUpdate.IsZero() {
		lastUpdate = p.PurchaseDate
	}

	events := []*purchasing.PurchaseEvent{
		purchasing.NewPurchaseEvent(p.ID, purchasing.EventOrderPlaced, placedDescription(p), actor, p.PurchaseDate).
			WithItemCounts(len(p.Items), len(p.Items)).
			WithPaymentAmount(p.TotalAmount),
	}

	if totals.Received.IsPositive() {
		status := purchasing.DeriveStatus(totals.Ordered, totals.Received, decimal.Zero)
		events = append(events, purchasing.NewPurchaseEvent(p.ID, purchasing.ReceiptEventType(status),
			fmt.Sprintf("Received %s of %s ordered items", totals.Received, totals.Ordered), actor, lastUpdate).
			WithStatusChange(purchasing.PurchaseStatusPending, status).
			WithItemCounts(countItems(p, func(i *purchasing.PurchaseItem) bool { return i.ReceivedQuantity.IsPositive() }), len(p.Items)))
	}

	if totals.Returned.IsPositive() {
		returnDate := purchasing.LatestReturnDate(returns)
		if returnDate.IsZero() {
			returnDate = lastUpdate
		}
		status := purchasing.DeriveStatus(totals.Ordered, totals.Received, totals.Returned)
		events = append(events, purchasing.NewPurchaseEvent(p.ID, purchasing.ReturnEventType(status),
			fmt.Sprintf("%s of %s received items returned", totals.Returned, totals.Received), actor, returnDate).
			WithStatusChange(purchasing.DeriveStatus(totals.Ordered, totals.Received, decimal.Zero), status).
			WithItemCounts(countItems(p, func(i *purchasing.PurchaseItem) bool { return i.ReturnedQuantity.IsPositive() }), len(p.Items)).
			WithReturnAmount(p.ReturnedAmount()))

		if purchasing.IsBalanceResolved(totals) {
			events = append(events, purchasing.NewPurchaseEvent(p.ID, purchasing.EventBalanceResolved,
				balanceResolvedDescription(totals), actor, returnDate))
		}
	}

	for idx := range payments {
		pay := &payments[idx]
		events = append(events, purchasing.NewPurchaseEvent(p.ID, purchasing.EventPaymentMade,
			paymentMadeDescription(pay), actor, pay.PaymentDate).
			WithPaymentAmount(pay.Amount).
			WithMeta(purchasing.MetaPaymentID, pay.ID.String()).
			WithMeta(purchasing.MetaMethod, pay.Method.String()))

		if pay.IsVoid() {
			voidedAt := pay.UpdatedAt
			if pay.VoidedAt != nil {
				voidedAt = *pay.VoidedAt
			}
			events = append(events, purchasing.NewPurchaseEvent(p.ID, purchasing.EventPaymentVoided,
				fmt.Sprintf("Payment of %s by %s voided", pay.Amount.StringFixed(2), pay.Method), actor, voidedAt).
				WithPaymentAmount(pay.Amount).
				WithMeta(purchasing.MetaPaymentID, pay.ID.String()).
				WithMeta(purchasing.MetaMethod, pay.Method.String()))
		}
	}
	return events
}

func countItems(p *purchasing.Purchase, match func(*purchasing.PurchaseItem) bool) int {
	n := 0
	for idx := range p.Items {
		if match(&p.Items[idx]) {
			n++
		}
	}
	return n
}

func placedDescription(p *purchasing.Purchase) string {
	return fmt.Sprintf("Order %s placed with %s: %d items totalling %s",
		p.OrderNumber, p.SupplierName, len(p.Items), p.TotalAmount.StringFixed(2))
}

func paymentMadeDescription(pay *purchasing.PurchasePayment) string {
	return fmt.Sprintf("Payment of %s by %s recorded", pay.Amount.StringFixed(2), pay.Method)
}

func balanceResolvedDescription(totals purchasing.ItemTotals) string {
	return fmt.Sprintf("All %s received items returned, balance resolved", totals.Received)
}
