package persistence

import (
	"context"
	"fmt"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormEventRepository implements the append-only EventRepository using GORM
type GormEventRepository struct {
	db    *gorm.DB
	retry ReadRetry
}

// NewGormEventRepository creates a new GormEventRepository
func NewGormEventRepository(db *gorm.DB, retry ReadRetry) *GormEventRepository {
	return &GormEventRepository{db: db, retry: retry}
}

// Append inserts an event
func (r *GormEventRepository) Append(ctx context.Context, event *purchasing.PurchaseEvent) error {
	model, err := models.PurchaseEventModelFromDomain(event)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append purchase event: %w", err)
	}
	return nil
}

// ListByPurchase lists events ordered by event date, insertion order breaking ties
func (r *GormEventRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.PurchaseEvent, error) {
	var rows []models.PurchaseEventModel
	err := r.retry.Do(ctx, "list purchase events", func() error {
		return r.db.WithContext(ctx).
			Where("purchase_id = ?", purchaseID).
			Order("event_date ASC, created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]purchasing.PurchaseEvent, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

var _ purchasing.EventRepository = (*GormEventRepository)(nil)
