package purchasing

import (
	"context"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlacementService creates purchases
type PlacementService struct {
	purchases purchasing.PurchaseRepository
	timeline  *TimelineRecorder
	deps
}

// NewPlacementService creates a new PlacementService
func NewPlacementService(purchases purchasing.PurchaseRepository, timeline *TimelineRecorder, opts ...Option) *PlacementService {
	return &PlacementService{
		purchases: purchases,
		timeline:  timeline,
		deps:      newDeps(opts),
	}
}

// PlaceOrder creates a pending purchase with all its items in one transaction
// and records order_placed on the timeline
func (s *PlacementService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := s.begin(ctx, "PlacementService.PlaceOrder", uuid.Nil, req.Actor)
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, fail(span, err)
	}

	p, err := purchasing.NewPurchase(req.OrderNumber, req.SupplierID, req.SupplierName, req.WarehouseID, req.PurchaseDate, req.Actor)
	if err != nil {
		return nil, fail(span, err)
	}
	p.Notes = req.Notes
	for _, line := range req.Items {
		if _, err := p.AddItem(line.ItemType, line.ItemID, line.VariationID, line.ItemName, line.Quantity, line.UnitPrice); err != nil {
			return nil, fail(span, err)
		}
	}

	result := &PlaceOrderResult{Purchase: p}
	result.Saga.Succeeded(purchasing.StepValidate, p.OrderNumber)

	if err := s.purchases.Create(ctx, p); err != nil {
		logger.L(ctx).Error("failed to create purchase", zap.String("order_number", p.OrderNumber), zap.Error(err))
		return nil, fail(span, err)
	}
	result.Saga.Succeeded(purchasing.StepWriteItems, p.ID.String())
	ctx = logger.WithPurchaseID(ctx, p.ID)

	event := purchasing.NewPurchaseEvent(p.ID, purchasing.EventOrderPlaced, placedDescription(p), req.Actor, p.PurchaseDate).
		WithItemCounts(len(p.Items), len(p.Items)).
		WithPaymentAmount(p.TotalAmount)
	s.record(ctx, s.timeline, &result.Saga, event)
	s.invalidate(ctx, &result.Saga, p.ID)

	logger.L(ctx).Info("purchase placed",
		zap.String("order_number", p.OrderNumber),
		zap.Int("items", len(p.Items)),
		zap.String("total", p.TotalAmount.String()),
	)
	return result, nil
}
