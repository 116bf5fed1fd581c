package persistence

import (
	"context"
	"fmt"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRefundRepository implements RefundRepository using GORM
type GormRefundRepository struct {
	db    *gorm.DB
	retry ReadRetry
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB, retry ReadRetry) *GormRefundRepository {
	return &GormRefundRepository{db: db, retry: retry}
}

// CreateBatch inserts refunds in one transaction
func (r *GormRefundRepository) CreateBatch(ctx context.Context, refunds []purchasing.RefundTransaction) error {
	if len(refunds) == 0 {
		return nil
	}
	rows := make([]models.RefundTransactionModel, len(refunds))
	for i := range refunds {
		rows[i] = *models.RefundTransactionModelFromDomain(&refunds[i])
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to create refund transactions: %w", err)
		}
		return nil
	})
}

// ListByPurchase lists refunds of a purchase, oldest first
func (r *GormRefundRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.RefundTransaction, error) {
	return r.list(ctx, "purchase_id = ?", purchaseID)
}

// ListByReturn lists refunds created for one return
func (r *GormRefundRepository) ListByReturn(ctx context.Context, returnID uuid.UUID) ([]purchasing.RefundTransaction, error) {
	return r.list(ctx, "return_id = ?", returnID)
}

func (r *GormRefundRepository) list(ctx context.Context, where string, id uuid.UUID) ([]purchasing.RefundTransaction, error) {
	var rows []models.RefundTransactionModel
	err := r.retry.Do(ctx, "list refunds", func() error {
		return r.db.WithContext(ctx).Where(where, id).Order("created_at ASC, id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]purchasing.RefundTransaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var _ purchasing.RefundRepository = (*GormRefundRepository)(nil)
