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

// ReturnProcessor records goods sent back to the supplier
type ReturnProcessor struct {
	purchases  purchasing.PurchaseRepository
	returns    purchasing.ReturnRepository
	stock      purchasing.StockLedger
	journal    purchasing.AccountingJournal
	timeline   *TimelineRecorder
	windowDays int
	deps
}

// NewReturnProcessor creates a new ReturnProcessor. windowDays <= 0 uses the default window.
func NewReturnProcessor(
	purchases purchasing.PurchaseRepository,
	returns purchasing.ReturnRepository,
	stock purchasing.StockLedger,
	journal purchasing.AccountingJournal,
	timeline *TimelineRecorder,
	windowDays int,
	opts ...Option,
) *ReturnProcessor {
	return &ReturnProcessor{
		purchases:  purchases,
		returns:    returns,
		stock:      stock,
		journal:    journal,
		timeline:   timeline,
		windowDays: windowDays,
		deps:       newDeps(opts),
	}
}

type returnChange struct {
	item     *purchasing.PurchaseItem
	returned decimal.Decimal
	delta    decimal.Decimal
}

// Return applies cumulative returned quantities and records one return per call.
// A line may not lower its returned quantity or exceed what was received.
func (p *ReturnProcessor) Return(ctx context.Context, req ReturnRequest) (*ReturnResult, error) {
	ctx, span := p.begin(ctx, "ReturnProcessor.Return", req.PurchaseID, req.Actor)
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

	eligibility := purchasing.CheckEligibility(purchase, req.ReturnDate, p.windowDays)
	if !eligibility.Eligible && (!req.AllowLateReturn || eligibility.DaysSincePurchase < 0) {
		return nil, fail(span, shared.NewValidationError("RETURN_WINDOW_EXPIRED", eligibility.Reason))
	}

	changes := make([]returnChange, 0, len(req.Items))
	for _, line := range req.Items {
		item := purchase.GetItem(line.PurchaseItemID)
		if item == nil {
			return nil, fail(span, shared.NewNotFoundError("ITEM_NOT_FOUND",
				fmt.Sprintf("Purchase item %s not found on purchase %s", line.PurchaseItemID, purchase.OrderNumber)))
		}
		if err := item.ValidateReturnedQuantity(line.ReturnedQuantity); err != nil {
			return nil, fail(span, err)
		}
		changes = append(changes, returnChange{
			item:     item,
			returned: line.ReturnedQuantity,
			delta:    line.ReturnedQuantity.Sub(item.ReturnedQuantity),
		})
	}

	result := &ReturnResult{
		Purchase:       purchase,
		PreviousStatus: purchase.Status,
		Status:         purchase.Status,
		ReturnedDelta:  decimal.Zero,
		ReturnTotal:    decimal.Zero,
		LateReturn:     !eligibility.Eligible,
	}
	result.Saga.Succeeded(purchasing.StepValidate, purchase.ID.String())

	pending := make([]returnChange, 0, len(changes))
	for _, c := range changes {
		if c.delta.IsZero() {
			result.Saga.Skipped(purchasing.StepWriteItems, c.item.ID.String())
			continue
		}
		pending = append(pending, c)
	}
	if len(pending) == 0 {
		logger.L(ctx).Debug("return changed nothing")
		return result, nil
	}

	existing, err := p.returns.ListByPurchase(ctx, purchase.ID)
	if err != nil {
		return nil, fail(span, err)
	}
	ret, err := purchasing.NewPurchaseReturn(purchase.ID,
		purchasing.GenerateReturnNumber(purchase.OrderNumber, len(existing)+1),
		req.Reason, req.ReturnDate, req.Actor)
	if err != nil {
		return nil, fail(span, err)
	}

	for _, c := range pending {
		subject := c.item.ID.String()
		if err := p.purchases.UpdateItemReturnedQuantity(ctx, c.item.ID, c.returned); err != nil {
			logger.L(ctx).Error("failed to write returned quantity",
				zap.String("item_id", subject),
				zap.Int("items_written", result.ItemsChanged),
				zap.Error(err),
			)
			return nil, fail(span, err)
		}
		if _, err := c.item.SetReturnedQuantity(c.returned); err != nil {
			return nil, fail(span, err)
		}
		if err := ret.AddItem(c.item.ID, c.delta, c.item.UnitPrice); err != nil {
			return nil, fail(span, err)
		}
		result.Saga.Succeeded(purchasing.StepWriteItems, subject)
		result.ItemsChanged++
		result.ReturnedDelta = result.ReturnedDelta.Add(c.delta)

		p.applyStock(ctx, &result.Saga, purchase, ret, c, req.Actor)
	}
	result.ReturnTotal = ret.TotalAmount
	result.Changed = true

	if err := p.returns.Create(ctx, ret); err != nil {
		logger.L(ctx).Error("failed to write return", zap.String("return_number", ret.ReturnNumber), zap.Error(err))
		return nil, fail(span, err)
	}
	result.Return = ret
	result.Saga.Succeeded(purchasing.StepWriteReturn, ret.ID.String())

	result.Status = purchase.DeriveStatus()
	if err := p.purchases.UpdateStatus(ctx, purchase.ID, result.Status); err != nil {
		logger.L(ctx).Error("failed to write purchase status", zap.String("status", result.Status.String()), zap.Error(err))
		return nil, fail(span, err)
	}
	purchase.Status = result.Status
	result.Saga.Succeeded(purchasing.StepWriteStatus, result.Status.String())

	if result.ReturnTotal.IsPositive() {
		entryID, err := p.journal.PostReturn(ctx, purchasing.JournalPosting{
			ReferenceID:      ret.ID,
			PurchaseID:       purchase.ID,
			CounterpartyName: purchase.SupplierName,
			Amount:           result.ReturnTotal,
			Date:             req.ReturnDate,
			Actor:            req.Actor,
		})
		if err != nil {
			p.sideEffectFailed(ctx, &result.Saga, purchasing.StepJournalPost, ret.ID.String(), err,
				zap.String("amount", result.ReturnTotal.String()))
		} else {
			result.JournalEntryID = &entryID
			result.Saga.Succeeded(purchasing.StepJournalPost, entryID.String())
		}
	} else {
		result.Saga.Skipped(purchasing.StepJournalPost, ret.ID.String())
	}

	totals := purchase.Totals()
	event := purchasing.NewPurchaseEvent(purchase.ID, purchasing.ReturnEventType(result.Status),
		fmt.Sprintf("%s of %s received items returned (+%s returned)", totals.Returned, totals.Received, result.ReturnedDelta),
		req.Actor, req.ReturnDate).
		WithStatusChange(result.PreviousStatus, result.Status).
		WithItemCounts(result.ItemsChanged, len(purchase.Items)).
		WithReturnAmount(result.ReturnTotal).
		WithMeta(purchasing.MetaReturnID, ret.ID.String()).
		WithMeta(purchasing.MetaReason, req.Reason).
		WithMeta(purchasing.MetaDelta, result.ReturnedDelta.String())
	if result.JournalEntryID != nil {
		event.WithMeta(purchasing.MetaJournalID, result.JournalEntryID.String())
	}
	if result.LateReturn {
		event.WithMeta("late_return", true)
	}
	p.record(ctx, p.timeline, &result.Saga, event)
	result.Events = append(result.Events, *event)

	if purchasing.IsBalanceResolved(totals) {
		result.BalanceResolved = true
		resolved := purchasing.NewPurchaseEvent(purchase.ID, purchasing.EventBalanceResolved,
			balanceResolvedDescription(totals), req.Actor, req.ReturnDate).
			WithMeta(purchasing.MetaReturnID, ret.ID.String())
		p.record(ctx, p.timeline, &result.Saga, resolved)
		result.Events = append(result.Events, *resolved)
	}
	p.invalidate(ctx, &result.Saga, purchase.ID)

	p.metrics.RecordReturn(ctx, result.Status.String(), result.ReturnTotal)
	logger.L(ctx).Info("return processed",
		zap.String("return_number", ret.ReturnNumber),
		zap.String("previous_status", result.PreviousStatus.String()),
		zap.String("status", result.Status.String()),
		zap.String("returned_delta", result.ReturnedDelta.String()),
		zap.String("return_total", result.ReturnTotal.String()),
		zap.Bool("late_return", result.LateReturn),
		zap.Bool("has_failures", result.HasFailures()),
	)
	return result, nil
}

func (p *ReturnProcessor) applyStock(ctx context.Context, saga *purchasing.Saga, purchase *purchasing.Purchase, ret *purchasing.PurchaseReturn, c returnChange, actor uuid.UUID) {
	subject := c.item.ID.String()
	_, err := p.stock.Apply(ctx, purchasing.StockMovement{
		ItemID:        c.item.ItemID,
		WarehouseID:   purchase.WarehouseID,
		VariationID:   c.item.VariationID,
		QuantityDelta: c.delta.Neg(),
		MovementType:  purchasing.MovementPurchaseReturn,
		ReferenceID:   ret.ID,
		Reason:        purchasing.ReasonPurchaseReturn,
		Actor:         actor,
		Notes:         ret.Reason,
	})
	if err != nil {
		p.sideEffectFailed(ctx, saga, purchasing.StepStockMovement, subject, err,
			zap.String("item_id", c.item.ItemID.String()),
			zap.String("delta", c.delta.Neg().String()),
		)
		return
	}
	saga.Succeeded(purchasing.StepStockMovement, subject)
}
