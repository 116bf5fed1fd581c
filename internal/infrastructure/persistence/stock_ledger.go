package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLedger implements StockLedger on the stock_levels and stock_movements tables.
// The counter update and the movement row are written in one transaction.
type GormStockLedger struct {
	db *gorm.DB
}

// NewGormStockLedger creates a new GormStockLedger
func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

// Apply adds movement.QuantityDelta to the stock counter and records the movement.
// A zero delta is a no-op and returns false.
func (l *GormStockLedger) Apply(ctx context.Context, movement purchasing.StockMovement) (bool, error) {
	if movement.QuantityDelta.IsZero() {
		return false, nil
	}
	if movement.ItemID == uuid.Nil || movement.WarehouseID == uuid.Nil {
		return false, shared.NewValidationError("INVALID_MOVEMENT", "Stock movement requires item and warehouse")
	}

	now := time.Now()
	variationKey := uuid.Nil
	if movement.VariationID != nil {
		variationKey = *movement.VariationID
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level := models.StockLevelModel{
			ID:           uuid.New(),
			ItemID:       movement.ItemID,
			WarehouseID:  movement.WarehouseID,
			VariationKey: variationKey,
			Quantity:     movement.QuantityDelta,
			UpdatedAt:    now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}, {Name: "warehouse_id"}, {Name: "variation_key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("stock_levels.quantity + ?", movement.QuantityDelta),
				"updated_at": now,
			}),
		}).Create(&level).Error; err != nil {
			return fmt.Errorf("failed to update stock level: %w", err)
		}

		row := models.StockMovementModel{
			ID:            uuid.New(),
			ItemID:        movement.ItemID,
			WarehouseID:   movement.WarehouseID,
			VariationID:   movement.VariationID,
			QuantityDelta: movement.QuantityDelta,
			MovementType:  string(movement.MovementType),
			ReferenceID:   movement.ReferenceID,
			Reason:        movement.Reason,
			Notes:         movement.Notes,
			CreatedBy:     movement.Actor,
			CreatedAt:     now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ purchasing.StockLedger = (*GormStockLedger)(nil)
