package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReturnRepository implements ReturnRepository using GORM
type GormReturnRepository struct {
	db    *gorm.DB
	retry ReadRetry
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB, retry ReadRetry) *GormReturnRepository {
	return &GormReturnRepository{db: db, retry: retry}
}

// Create inserts a return header and its items atomically
func (r *GormReturnRepository) Create(ctx context.Context, ret *purchasing.PurchaseReturn) error {
	model := models.PurchaseReturnModelFromDomain(ret)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(model).Error; err != nil {
			return fmt.Errorf("failed to create purchase return: %w", err)
		}
		if len(model.Items) == 0 {
			return nil
		}
		if err := tx.Create(&model.Items).Error; err != nil {
			return fmt.Errorf("failed to create purchase return items: %w", err)
		}
		return nil
	})
}

// FindByID finds a return with its items
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.PurchaseReturn, error) {
	var model models.PurchaseReturnModel
	err := r.retry.Do(ctx, "load purchase return", func() error {
		err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("RETURN_NOT_FOUND", fmt.Sprintf("Purchase return %s not found", id))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByPurchase lists returns of a purchase ordered by return date
func (r *GormReturnRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.PurchaseReturn, error) {
	var rows []models.PurchaseReturnModel
	err := r.retry.Do(ctx, "list purchase returns", func() error {
		return r.db.WithContext(ctx).
			Preload("Items").
			Where("purchase_id = ?", purchaseID).
			Order("return_date ASC, created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]purchasing.PurchaseReturn, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var _ purchasing.ReturnRepository = (*GormReturnRepository)(nil)
