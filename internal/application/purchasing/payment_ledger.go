package purchasing

import (
	"context"
	"fmt"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentLedger records and voids supplier payments. Payments are never deleted.
type PaymentLedger struct {
	purchases purchasing.PurchaseRepository
	payments  purchasing.PaymentRepository
	journal   purchasing.AccountingJournal
	timeline  *TimelineRecorder
	deps
}

// NewPaymentLedger creates a new PaymentLedger
func NewPaymentLedger(
	purchases purchasing.PurchaseRepository,
	payments purchasing.PaymentRepository,
	journal purchasing.AccountingJournal,
	timeline *TimelineRecorder,
	opts ...Option,
) *PaymentLedger {
	return &PaymentLedger{
		purchases: purchases,
		payments:  payments,
		journal:   journal,
		timeline:  timeline,
		deps:      newDeps(opts),
	}
}

// CreatePayment records an active payment, posts its journal entry and links it back
func (l *PaymentLedger) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error) {
	ctx, span := l.begin(ctx, "PaymentLedger.CreatePayment", req.PurchaseID, req.Actor)
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, fail(span, err)
	}
	purchase, err := l.purchases.FindByID(ctx, req.PurchaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	payment, err := purchasing.NewPurchasePayment(purchase.ID, req.Amount, req.Method, req.PaymentDate, req.Reference, req.Notes, req.Actor)
	if err != nil {
		return nil, fail(span, err)
	}

	result := &PaymentResult{Payment: payment}
	result.Saga.Succeeded(purchasing.StepValidate, purchase.ID.String())

	if err := l.payments.Create(ctx, payment); err != nil {
		logger.L(ctx).Error("failed to write payment", zap.String("amount", req.Amount.String()), zap.Error(err))
		return nil, fail(span, err)
	}
	result.Saga.Succeeded(purchasing.StepWritePayment, payment.ID.String())

	entryID, err := l.journal.PostPayment(ctx, purchasing.JournalPosting{
		ReferenceID:      payment.ID,
		PurchaseID:       purchase.ID,
		CounterpartyName: purchase.SupplierName,
		Amount:           payment.Amount,
		Date:             payment.PaymentDate,
		Actor:            req.Actor,
	})
	if err != nil {
		l.sideEffectFailed(ctx, &result.Saga, purchasing.StepJournalPost, payment.ID.String(), err,
			zap.String("payment_id", payment.ID.String()),
			zap.String("amount", payment.Amount.String()),
		)
		result.Saga.Skipped(purchasing.StepJournalLink, payment.ID.String())
	} else {
		result.Saga.Succeeded(purchasing.StepJournalPost, entryID.String())
		result.JournalEntryID = &entryID
		if err := l.payments.SetJournalEntry(ctx, payment.ID, entryID); err != nil {
			l.sideEffectFailed(ctx, &result.Saga, purchasing.StepJournalLink, payment.ID.String(), err,
				zap.String("journal_entry_id", entryID.String()))
		} else {
			payment.JournalEntryID = &entryID
			result.Saga.Succeeded(purchasing.StepJournalLink, entryID.String())
		}
	}

	summary, err := l.summaryFor(ctx, purchase)
	if err != nil {
		// the payment is written; the event goes out without a settlement status
		logger.L(ctx).Warn("failed to compute payment summary", zap.Error(err))
	}
	result.Summary = summary

	event := purchasing.NewPurchaseEvent(purchase.ID, purchasing.EventPaymentMade,
		paymentMadeDescription(payment), req.Actor, payment.PaymentDate).
		WithPaymentAmount(payment.Amount).
		WithMeta(purchasing.MetaPaymentID, payment.ID.String()).
		WithMeta(purchasing.MetaMethod, payment.Method.String())
	if summary != nil {
		event.WithMeta(purchasing.MetaPayStatus, summary.Status.String())
	}
	if payment.JournalEntryID != nil {
		event.WithMeta(purchasing.MetaJournalID, payment.JournalEntryID.String())
	}
	l.record(ctx, l.timeline, &result.Saga, event)
	l.invalidate(ctx, &result.Saga, purchase.ID)

	l.metrics.RecordPayment(ctx, payment.Method.String(), payment.Amount)
	logger.L(ctx).Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", payment.Method.String()),
		zap.Bool("has_failures", result.HasFailures()),
	)
	return result, nil
}

// VoidPayment flips an active payment to void. A reversal entry is posted only when
// the payment had a journal entry. Voiding twice is a ValidationError.
func (l *PaymentLedger) VoidPayment(ctx context.Context, req VoidPaymentRequest) (*PaymentResult, error) {
	ctx, span := l.begin(ctx, "PaymentLedger.VoidPayment", uuid.Nil, req.Actor)
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, fail(span, err)
	}
	payment, err := l.payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		return nil, fail(span, err)
	}
	ctx = logger.WithPurchaseID(ctx, payment.PurchaseID)

	purchase, err := l.purchases.FindByID(ctx, payment.PurchaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := payment.Void(req.Reason, req.Actor, l.clock.Now()); err != nil {
		return nil, fail(span, err)
	}

	result := &PaymentResult{Payment: payment}
	result.Saga.Succeeded(purchasing.StepValidate, payment.ID.String())

	if err := l.payments.MarkVoid(ctx, payment); err != nil {
		logger.L(ctx).Error("failed to void payment", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return nil, fail(span, err)
	}
	result.Saga.Succeeded(purchasing.StepWritePayment, payment.ID.String())

	if payment.JournalEntryID == nil {
		result.Saga.Skipped(purchasing.StepJournalPost, payment.ID.String())
	} else {
		entryID, err := l.journal.PostPaymentReversal(ctx, purchasing.JournalPosting{
			ReferenceID:      payment.ID,
			PurchaseID:       purchase.ID,
			CounterpartyName: purchase.SupplierName,
			Amount:           payment.Amount,
			Date:             *payment.VoidedAt,
			Actor:            req.Actor,
		})
		if err != nil {
			l.sideEffectFailed(ctx, &result.Saga, purchasing.StepJournalPost, payment.ID.String(), err,
				zap.String("payment_id", payment.ID.String()),
				zap.String("amount", payment.Amount.String()),
			)
		} else {
			result.Saga.Succeeded(purchasing.StepJournalPost, entryID.String())
			result.JournalEntryID = &entryID
			if err := l.payments.SetReversalJournalEntry(ctx, payment.ID, entryID); err != nil {
				l.sideEffectFailed(ctx, &result.Saga, purchasing.StepJournalLink, payment.ID.String(), err,
					zap.String("journal_entry_id", entryID.String()))
			} else {
				payment.ReversalJournalEntryID = &entryID
				result.Saga.Succeeded(purchasing.StepJournalLink, entryID.String())
			}
		}
	}

	summary, err := l.summaryFor(ctx, purchase)
	if err != nil {
		logger.L(ctx).Warn("failed to compute payment summary", zap.Error(err))
	}
	result.Summary = summary

	event := purchasing.NewPurchaseEvent(purchase.ID, purchasing.EventPaymentVoided,
		fmt.Sprintf("Payment of %s by %s voided: %s", payment.Amount.StringFixed(2), payment.Method, req.Reason),
		req.Actor, *payment.VoidedAt).
		WithPaymentAmount(payment.Amount).
		WithMeta(purchasing.MetaPaymentID, payment.ID.String()).
		WithMeta(purchasing.MetaMethod, payment.Method.String()).
		WithMeta(purchasing.MetaReason, req.Reason)
	if summary != nil {
		event.WithMeta(purchasing.MetaPayStatus, summary.Status.String())
	}
	l.record(ctx, l.timeline, &result.Saga, event)
	l.invalidate(ctx, &result.Saga, purchase.ID)

	l.metrics.RecordPaymentVoid(ctx, payment.Method.String())
	logger.L(ctx).Info("payment voided",
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.Bool("reversed", result.JournalEntryID != nil),
		zap.Bool("has_failures", result.HasFailures()),
	)
	return result, nil
}

// Summary returns the settlement position of a purchase
func (l *PaymentLedger) Summary(ctx context.Context, purchaseID uuid.UUID) (*PaymentSummary, error) {
	purchase, err := l.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return l.summaryFor(ctx, purchase)
}

func (l *PaymentLedger) summaryFor(ctx context.Context, purchase *purchasing.Purchase) (*PaymentSummary, error) {
	payments, err := l.payments.ListByPurchase(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}
	return buildPaymentSummary(purchase, payments), nil
}
