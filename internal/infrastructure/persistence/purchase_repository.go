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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPurchaseRepository implements PurchaseRepository using GORM
type GormPurchaseRepository struct {
	db    *gorm.DB
	retry ReadRetry
}

// NewGormPurchaseRepository creates a new GormPurchaseRepository
func NewGormPurchaseRepository(db *gorm.DB, retry ReadRetry) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db, retry: retry}
}

// FindByID finds a purchase by its ID with items
func (r *GormPurchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.Purchase, error) {
	var model models.PurchaseModel
	err := r.retry.Do(ctx, "load purchase", func() error {
		err := r.db.WithContext(ctx).
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("PURCHASE_NOT_FOUND", fmt.Sprintf("Purchase %s not found", id))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts the purchase and its items atomically
func (r *GormPurchaseRepository) Create(ctx context.Context, purchase *purchasing.Purchase) error {
	model := models.PurchaseModelFromDomain(purchase)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(model).Error; err != nil {
			return fmt.Errorf("failed to create purchase: %w", err)
		}
		if len(model.Items) == 0 {
			return nil
		}
		if err := tx.Create(&model.Items).Error; err != nil {
			return fmt.Errorf("failed to create purchase items: %w", err)
		}
		return nil
	})
}

// UpdateItemReceivedQuantity writes the absolute received quantity of an item
func (r *GormPurchaseRepository) UpdateItemReceivedQuantity(ctx context.Context, itemID uuid.UUID, received decimal.Decimal) error {
	return r.updateItem(ctx, itemID, "received_quantity", received)
}

// UpdateItemReturnedQuantity writes the absolute returned quantity of an item
func (r *GormPurchaseRepository) UpdateItemReturnedQuantity(ctx context.Context, itemID uuid.UUID, returned decimal.Decimal) error {
	return r.updateItem(ctx, itemID, "returned_quantity", returned)
}

func (r *GormPurchaseRepository) updateItem(ctx context.Context, itemID uuid.UUID, column string, value decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.PurchaseItemModel{}).
		Where("id = ?", itemID).
		Updates(map[string]any{column: value, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("ITEM_NOT_FOUND", fmt.Sprintf("Purchase item %s not found", itemID))
	}
	return nil
}

// UpdateStatus persists the derived status and bumps updated_at
func (r *GormPurchaseRepository) UpdateStatus(ctx context.Context, purchaseID uuid.UUID, status purchasing.PurchaseStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.PurchaseModel{}).
		Where("id = ?", purchaseID).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update purchase status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("PURCHASE_NOT_FOUND", fmt.Sprintf("Purchase %s not found", purchaseID))
	}
	return nil
}

// ListIDs pages through purchase ids
func (r *GormPurchaseRepository) ListIDs(ctx context.Context, filter shared.Filter) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.retry.Do(ctx, "list purchases", func() error {
		ids = ids[:0]
		return r.db.WithContext(ctx).
			Model(&models.PurchaseModel{}).
			Order(orderClause(filter, purchaseSortFields)).
			Offset(filter.Offset()).
			Limit(filter.Limit()).
			Pluck("id", &ids).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

var purchaseSortFields = map[string]string{
	"created_at":    "created_at",
	"purchase_date": "purchase_date",
	"order_number":  "order_number",
}

// orderClause builds a safe ORDER BY from a whitelist, with id as tiebreaker
func orderClause(filter shared.Filter, allowed map[string]string) string {
	column, ok := allowed[filter.OrderBy]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if filter.OrderDir == "desc" {
		dir = "DESC"
	}
	return column + " " + dir + ", id " + dir
}

// Ensure interface compliance
var _ purchasing.PurchaseRepository = (*GormPurchaseRepository)(nil)
