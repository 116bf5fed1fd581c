package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceiptProcessor records goods received against a purchase
type ReceiptProcessor struct {
	purchases purchasing.PurchaseRepository
	stock     purchasing.StockLedger
	journal   purchasing.AccountingJournal
	timeline  *TimelineRecorder
	deps
}

// NewReceiptProcessor creates a new ReceiptProcessor
func NewReceiptProcessor(
	purchases purchasing.PurchaseRepository,
	stock purchasing.StockLedger,
	journal purchasing.AccountingJournal,
	timeline *TimelineRecorder,
	opts ...Option,
) *ReceiptProcessor {
	return &ReceiptProcessor{
		purchases: purchases,
		stock:     stock,
		journal:   journal,
		timeline:  timeline,
		deps:      newDeps(opts),
	}
}

type receiptChange struct {
	item     *purchasing.PurchaseItem
	received decimal.Decimal
	delta    decimal.Decimal
}

// Receive applies cumulative received quantities. Every line is validated before anything
// is written. Item and status writes are fatal on failure; stock movements, the journal
// entry and the timeline event are best-effort and reported on the result saga.
func (p *ReceiptProcessor) Receive(ctx context.Context, req ReceiveRequest) (*ReceiptResult, error) {
	ctx, span := p.begin(ctx, "ReceiptProcessor.Receive", req.PurchaseID, req.Actor)
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, fail(span, err)
	}
	lineIDs := make([]uuid.UUID, len(req.Items))
	for i, line := range req.Items {
		lineIDs[i] = line.PurchaseItemID
	}
	if err := checkDuplicateLines(lineIDs); err != nil {
		return nil, fail(span, err)
	}

	purchase, err := p.purchases.FindByID(ctx, req.PurchaseID)
	if err != nil {
		return nil, fail(span, err)
	}

	changes := make([]receiptChange, 0, len(req.Items))
	for _, line := range req.Items {
		item := purchase.GetItem(line.PurchaseItemID)
		if item == nil {
			return nil, fail(span, shared.NewNotFoundError("ITEM_NOT_FOUND",
				fmt.Sprintf("Purchase item %s not found on purchase %s", line.PurchaseItemID, purchase.OrderNumber)))
		}
		if err := item.ValidateReceivedQuantity(line.ReceivedQuantity); err != nil {
			return nil, fail(span, err)
		}
		changes = append(changes, receiptChange{
			item:     item,
			received: line.ReceivedQuantity,
			delta:    line.ReceivedQuantity.Sub(item.ReceivedQuantity),
		})
	}

	result := &ReceiptResult{
		Purchase:       purchase,
		PreviousStatus: purchase.Status,
		Status:         purchase.Status,
		ReceivedDelta:  decimal.Zero,
		ReceiptTotal:   decimal.Zero,
	}
	result.Saga.Succeeded(purchasing.StepValidate, purchase.ID.String())

	receiptDate := req.ReceiptDate
	if receiptDate.IsZero() {
		receiptDate = p.clock.Now()
	}

	received := decimal.Zero
	for _, c := range changes {
		subject := c.item.ID.String()
		if c.delta.IsZero() {
			result.Saga.Skipped(purchasing.StepWriteItems, subject)
			continue
		}

		if err := p.purchases.UpdateItemReceivedQuantity(ctx, c.item.ID, c.received); err != nil {
			logger.L(ctx).Error("failed to write received quantity",
				zap.String("item_id", subject),
				zap.Int("items_written", result.ItemsChanged),
				zap.Error(err),
			)
			return nil, fail(span, err)
		}
		if _, err := c.item.SetReceivedQuantity(c.received); err != nil {
			return nil, fail(span, err)
		}
		result.Saga.Succeeded(purchasing.StepWriteItems, subject)
		result.ItemsChanged++
		result.ReceivedDelta = result.ReceivedDelta.Add(c.delta)
		if c.delta.IsPositive() {
			received = received.Add(c.delta)
			result.ReceiptTotal = result.ReceiptTotal.Add(c.delta.Mul(c.item.UnitPrice))
		}

		p.applyStock(ctx, &result.Saga, purchase, c, req)
	}

	if result.ItemsChanged == 0 {
		logger.L(ctx).Debug("receipt changed nothing")
		return result, nil
	}
	result.Changed = true

	result.Status = purchase.DeriveStatus()
	if err := p.purchases.UpdateStatus(ctx, purchase.ID, result.Status); err != nil {
		logger.L(ctx).Error("failed to write purchase status", zap.String("status", result.Status.String()), zap.Error(err))
		return nil, fail(span, err)
	}
	purchase.Status = result.Status
	result.Saga.Succeeded(purchasing.StepWriteStatus, result.Status.String())

	if result.ReceiptTotal.IsPositive() {
		entryID, err := p.journal.PostReceipt(ctx, purchasing.JournalPosting{
			ReferenceID:      purchase.ID,
			PurchaseID:       purchase.ID,
			CounterpartyName: purchase.SupplierName,
			Amount:           result.ReceiptTotal,
			Date:             receiptDate,
			Actor:            req.Actor,
		})
		if err != nil {
			p.sideEffectFailed(ctx, &result.Saga, purchasing.StepJournalPost, purchase.ID.String(), err,
				zap.String("amount", result.ReceiptTotal.String()))
		} else {
			result.JournalEntryID = &entryID
			result.Saga.Succeeded(purchasing.StepJournalPost, entryID.String())
		}
	} else {
		result.Saga.Skipped(purchasing.StepJournalPost, purchase.ID.String())
	}

	for _, event := range p.buildEvents(purchase, result, received, receiptDate, req.Actor) {
		p.record(ctx, p.timeline, &result.Saga, event)
		result.Events = append(result.Events, *event)
	}
	p.invalidate(ctx, &result.Saga, purchase.ID)

	p.metrics.RecordReceipt(ctx, result.Status.String())
	logger.L(ctx).Info("receipt processed",
		zap.String("previous_status", result.PreviousStatus.String()),
		zap.String("status", result.Status.String()),
		zap.String("received_delta", result.ReceivedDelta.String()),
		zap.String("receipt_total", result.ReceiptTotal.String()),
		zap.Bool("has_failures", result.HasFailures()),
	)
	return result, nil
}

// applyStock moves stock by the line delta. A lowered quantity is a receipt correction.
func (p *ReceiptProcessor) applyStock(ctx context.Context, saga *purchasing.Saga, purchase *purchasing.Purchase, c receiptChange, req ReceiveRequest) {
	reason := purchasing.ReasonPurchaseReceipt
	if c.delta.IsNegative() {
		reason = purchasing.ReasonPurchaseReceiptCorrection
	}
	subject := c.item.ID.String()

	_, err := p.stock.Apply(ctx, purchasing.StockMovement{
		ItemID:        c.item.ItemID,
		WarehouseID:   purchase.WarehouseID,
		VariationID:   c.item.VariationID,
		QuantityDelta: c.delta,
		MovementType:  purchasing.MovementPurchaseReceipt,
		ReferenceID:   purchase.ID,
		Reason:        reason,
		Actor:         req.Actor,
		Notes:         req.Notes,
	})
	if err != nil {
		p.sideEffectFailed(ctx, saga, purchasing.StepStockMovement, subject, err,
			zap.String("item_id", c.item.ItemID.String()),
			zap.String("delta", c.delta.String()),
		)
		return
	}
	saga.Succeeded(purchasing.StepStockMovement, subject)
}

// buildEvents returns the receipt summary, or a status change for a pure correction,
// plus cancelled when the purchase fell back to nothing received
func (p *ReceiptProcessor) buildEvents(purchase *purchasing.Purchase, result *ReceiptResult, received decimal.Decimal, receiptDate time.Time, actor uuid.UUID) []*purchasing.PurchaseEvent {
	totals := purchase.Totals()
	events := make([]*purchasing.PurchaseEvent, 0, 2)

	if received.IsPositive() {
		// returns outrank receipts in the status, so full or partial is judged on receipts alone
		receiptStatus := purchasing.DeriveStatus(totals.Ordered, totals.Received, decimal.Zero)
		event := purchasing.NewPurchaseEvent(purchase.ID, purchasing.ReceiptEventType(receiptStatus),
			fmt.Sprintf("Received %s items (%s of %s received)", result.ReceivedDelta, totals.Received, totals.Ordered),
			actor, receiptDate).
			WithStatusChange(result.PreviousStatus, result.Status).
			WithItemCounts(result.ItemsChanged, len(purchase.Items)).
			WithMeta(purchasing.MetaDelta, result.ReceivedDelta.String()).
			WithMeta(purchasing.MetaReceiptDate, receiptDate.Format(time.RFC3339))
		if result.JournalEntryID != nil {
			event.WithMeta(purchasing.MetaJournalID, result.JournalEntryID.String())
		}
		events = append(events, event)
	} else if result.Status != result.PreviousStatus {
		events = append(events, purchasing.NewPurchaseEvent(purchase.ID, purchasing.EventStatusChange,
			fmt.Sprintf("Receipt corrected by %s items, status %s -> %s", result.ReceivedDelta, result.PreviousStatus, result.Status),
			actor, receiptDate).
			WithStatusChange(result.PreviousStatus, result.Status).
			WithItemCounts(result.ItemsChanged, len(purchase.Items)).
			WithMeta(purchasing.MetaDelta, result.ReceivedDelta.String()))
	}

	if result.Status == purchasing.PurchaseStatusCancelled &&
		result.PreviousStatus != purchasing.PurchaseStatusCancelled &&
		result.PreviousStatus != purchasing.PurchaseStatusPending {
		events = append(events, purchasing.NewPurchaseEvent(purchase.ID, purchasing.EventCancelled,
			fmt.Sprintf("Nothing received on %s after correction", purchase.OrderNumber), actor, receiptDate).
			WithStatusChange(result.PreviousStatus, result.Status))
	}
	return events
}
