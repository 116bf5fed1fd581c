package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM.
// It never issues a DELETE.
type GormPaymentRepository struct {
	db    *gorm.DB
	retry ReadRetry
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB, retry ReadRetry) *GormPaymentRepository {
	return &GormPaymentRepository{db: db, retry: retry}
}

// Create inserts a payment row
func (r *GormPaymentRepository) Create(ctx context.Context, payment *purchasing.PurchasePayment) error {
	if err := r.db.WithContext(ctx).Create(models.PurchasePaymentModelFromDomain(payment)).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.PurchasePayment, error) {
	var model models.PurchasePaymentModel
	err := r.retry.Do(ctx, "load payment", func() error {
		err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("PAYMENT_NOT_FOUND", fmt.Sprintf("Payment %s not found", id))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByPurchase lists all payments of a purchase, void ones included
func (r *GormPaymentRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.PurchasePayment, error) {
	var rows []models.PurchasePaymentModel
	err := r.retry.Do(ctx, "list payments", func() error {
		return r.db.WithContext(ctx).
			Where("purchase_id = ?", purchaseID).
			Order("payment_date ASC, created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]purchasing.PurchasePayment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// SetJournalEntry stores the journal entry posted for the payment
func (r *GormPaymentRepository) SetJournalEntry(ctx context.Context, paymentID, journalEntryID uuid.UUID) error {
	return r.update(ctx, paymentID, map[string]any{"journal_entry_id": journalEntryID})
}

// SetReversalJournalEntry stores the reversal entry posted when the payment was voided
func (r *GormPaymentRepository) SetReversalJournalEntry(ctx context.Context, paymentID, journalEntryID uuid.UUID) error {
	return r.update(ctx, paymentID, map[string]any{"reversal_journal_entry_id": journalEntryID})
}

// MarkVoid flips an active payment to void. A payment that is no longer
// active is left untouched and reported as already void.
func (r *GormPaymentRepository) MarkVoid(ctx context.Context, payment *purchasing.PurchasePayment) error {
	result := r.db.WithContext(ctx).
		Model(&models.PurchasePaymentModel{}).
		Where("id = ? AND status = ?", payment.ID, purchasing.PaymentRecordActive).
		Updates(map[string]any{
			"status":     purchasing.PaymentRecordVoid,
			"notes":      payment.Notes,
			"voided_at":  payment.VoidedAt,
			"voided_by":  payment.VoidedBy,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to void payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewValidationError("PAYMENT_ALREADY_VOID", "Payment is already void")
	}
	return nil
}

func (r *GormPaymentRepository) update(ctx context.Context, paymentID uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.PurchasePaymentModel{}).
		Where("id = ?", paymentID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("PAYMENT_NOT_FOUND", fmt.Sprintf("Payment %s not found", paymentID))
	}
	return nil
}

var _ purchasing.PaymentRepository = (*GormPaymentRepository)(nil)
