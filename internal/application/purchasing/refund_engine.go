package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundEngine applies the return window and works out what the supplier owes back
type RefundEngine struct {
	purchases  purchasing.PurchaseRepository
	returns    purchasing.ReturnRepository
	payments   purchasing.PaymentRepository
	refunds    purchasing.RefundRepository
	windowDays int
	deps
}

// NewRefundEngine creates a new RefundEngine. windowDays <= 0 uses the default window.
func NewRefundEngine(
	purchases purchasing.PurchaseRepository,
	returns purchasing.ReturnRepository,
	payments purchasing.PaymentRepository,
	refunds purchasing.RefundRepository,
	windowDays int,
	opts ...Option,
) *RefundEngine {
	return &RefundEngine{
		purchases:  purchases,
		returns:    returns,
		payments:   payments,
		refunds:    refunds,
		windowDays: windowDays,
		deps:       newDeps(opts),
	}
}

// CheckEligibility tests returnDate against the configured return window
func (e *RefundEngine) CheckEligibility(purchase *purchasing.Purchase, returnDate time.Time) purchasing.Eligibility {
	return purchasing.CheckEligibility(purchase, returnDate, e.windowDays)
}

// ComputeRefundDue works out the refund position from already loaded records
func (e *RefundEngine) ComputeRefundDue(purchase *purchasing.Purchase, returns []purchasing.PurchaseReturn, refunds []purchasing.RefundTransaction, payments []purchasing.PurchasePayment) purchasing.RefundSummary {
	return purchasing.ComputeRefundDue(purchase, returns, refunds, payments)
}

// RefundDue loads a purchase with its returns, refunds and payments and computes its refund position
func (e *RefundEngine) RefundDue(ctx context.Context, purchaseID uuid.UUID) (*purchasing.RefundSummary, error) {
	in, err := e.load(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	summary := purchasing.ComputeRefundDue(in.purchase, in.returns, in.refunds, in.payments)
	return &summary, nil
}

type refundInputs struct {
	purchase *purchasing.Purchase
	returns  []purchasing.PurchaseReturn
	refunds  []purchasing.RefundTransaction
	payments []purchasing.PurchasePayment
}

func (e *RefundEngine) load(ctx context.Context, purchaseID uuid.UUID) (*refundInputs, error) {
	p, err := e.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	returns, err := e.returns.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	refunds, err := e.refunds.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	payments, err := e.payments.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return &refundInputs{purchase: p, returns: returns, refunds: refunds, payments: payments}, nil
}

// ProcessAutomaticRefund creates pending refunds for a return, spread over the active
// payments oldest first. The amount is what the return has not been refunded yet.
// Whatever no payment has balance for is returned as ErrRefundUnallocated alongside
// the created refunds. Calling it again for a fully refunded return creates nothing.
func (e *RefundEngine) ProcessAutomaticRefund(ctx context.Context, returnID, actor uuid.UUID) (*RefundAllocationResult, error) {
	ctx, span := e.begin(ctx, "RefundEngine.ProcessAutomaticRefund", uuid.Nil, actor)
	defer span.End()

	ret, err := e.returns.FindByID(ctx, returnID)
	if err != nil {
		return nil, fail(span, err)
	}
	ctx = logger.WithPurchaseID(ctx, ret.PurchaseID)

	in, err := e.load(ctx, ret.PurchaseID)
	if err != nil {
		return nil, fail(span, err)
	}

	result := &RefundAllocationResult{
		ReturnID:    ret.ID,
		PurchaseID:  ret.PurchaseID,
		Allocated:   decimal.Zero,
		Unallocated: decimal.Zero,
	}

	alreadyRefunded := decimal.Zero
	for _, r := range in.refunds {
		if r.ReturnID == ret.ID && r.Status.CountsAgainstPayment() {
			alreadyRefunded = alreadyRefunded.Add(r.RefundAmount)
		}
	}
	outstanding := ret.TotalAmount.Sub(alreadyRefunded)
	if !outstanding.IsPositive() {
		logger.L(ctx).Debug("return already refunded", zap.String("return_id", ret.ID.String()))
		return result, nil
	}

	allocations, remainder := purchasing.AllocateRefund(outstanding, in.payments, in.refunds)
	refunds := make([]purchasing.RefundTransaction, 0, len(allocations))
	for _, a := range allocations {
		refund, err := purchasing.NewRefundTransaction(ret.ID, ret.PurchaseID, a.PaymentID, a.Amount, a.Method, actor)
		if err != nil {
			return nil, fail(span, err)
		}
		refunds = append(refunds, *refund)
		result.Allocated = result.Allocated.Add(a.Amount)
	}

	if len(refunds) > 0 {
		if err := e.refunds.CreateBatch(ctx, refunds); err != nil {
			logger.L(ctx).Error("failed to write refunds", zap.String("return_id", ret.ID.String()), zap.Error(err))
			return nil, fail(span, err)
		}
		e.metrics.RecordRefunds(ctx, len(refunds), result.Allocated)
	}
	result.Refunds = refunds
	result.Unallocated = remainder

	if len(refunds) > 0 {
		var saga purchasing.Saga
		e.invalidate(ctx, &saga, ret.PurchaseID)
	}

	logger.L(ctx).Info("automatic refund allocated",
		zap.String("return_id", ret.ID.String()),
		zap.Int("refunds", len(refunds)),
		zap.String("allocated", result.Allocated.String()),
		zap.String("unallocated", remainder.String()),
	)
	if remainder.IsPositive() {
		logger.L(ctx).Warn("refund exceeds refundable payments",
			zap.String("return_id", ret.ID.String()),
			zap.String("unallocated", remainder.String()),
		)
		return result, fail(span, fmt.Errorf("%w: %s of %s could not be allocated",
			purchasing.ErrRefundUnallocated, remainder.StringFixed(2), outstanding.StringFixed(2)))
	}
	return result, nil
}
