package purchasing

import (
	"context"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/cache"
	"github.com/google/uuid"
)

const (
	keyPurchase = "purchase"
	keyTimeline = "timeline"
	keyPayments = "payments"
	keySummary  = "summary"
)

// QueryCaches holds one coalescer per read model
type QueryCaches struct {
	Purchases *cache.Coalescer[*purchasing.Purchase]
	Timelines *cache.Coalescer[[]purchasing.PurchaseEvent]
	Payments  *cache.Coalescer[[]purchasing.PurchasePayment]
	Summaries *cache.Coalescer[*PaymentSummary]
}

// PurchaseQueryService serves coalesced reads of purchases, timelines and payments.
// It implements CacheInvalidator for the processors.
type PurchaseQueryService struct {
	purchases purchasing.PurchaseRepository
	events    purchasing.EventRepository
	payments  purchasing.PaymentRepository
	caches    QueryCaches
}

// NewPurchaseQueryService creates a new PurchaseQueryService
func NewPurchaseQueryService(
	purchases purchasing.PurchaseRepository,
	events purchasing.EventRepository,
	payments purchasing.PaymentRepository,
	caches QueryCaches,
) *PurchaseQueryService {
	return &PurchaseQueryService{
		purchases: purchases,
		events:    events,
		payments:  payments,
		caches:    caches,
	}
}

// GetPurchase returns a purchase with its items
func (s *PurchaseQueryService) GetPurchase(ctx context.Context, id uuid.UUID, opts ...cache.GetOption) (*purchasing.Purchase, error) {
	return s.caches.Purchases.Get(ctx, cache.Key(keyPurchase, id.String()), func(ctx context.Context) (*purchasing.Purchase, error) {
		return s.purchases.FindByID(ctx, id)
	}, opts...)
}

// Timeline returns the events of a purchase ordered by event date
func (s *PurchaseQueryService) Timeline(ctx context.Context, purchaseID uuid.UUID, opts ...cache.GetOption) ([]purchasing.PurchaseEvent, error) {
	return s.caches.Timelines.Get(ctx, cache.Key(keyTimeline, purchaseID.String()), func(ctx context.Context) ([]purchasing.PurchaseEvent, error) {
		return s.events.ListByPurchase(ctx, purchaseID)
	}, opts...)
}

// Payments returns every payment of a purchase, void ones included
func (s *PurchaseQueryService) Payments(ctx context.Context, purchaseID uuid.UUID, opts ...cache.GetOption) ([]purchasing.PurchasePayment, error) {
	return s.caches.Payments.Get(ctx, cache.Key(keyPayments, purchaseID.String()), func(ctx context.Context) ([]purchasing.PurchasePayment, error) {
		return s.payments.ListByPurchase(ctx, purchaseID)
	}, opts...)
}

// PaymentSummary returns the settlement position of a purchase
func (s *PurchaseQueryService) PaymentSummary(ctx context.Context, purchaseID uuid.UUID, opts ...cache.GetOption) (*PaymentSummary, error) {
	return s.caches.Summaries.Get(ctx, cache.Key(keySummary, purchaseID.String()), func(ctx context.Context) (*PaymentSummary, error) {
		p, err := s.purchases.FindByID(ctx, purchaseID)
		if err != nil {
			return nil, err
		}
		payments, err := s.payments.ListByPurchase(ctx, purchaseID)
		if err != nil {
			return nil, err
		}
		return buildPaymentSummary(p, payments), nil
	}, opts...)
}

// InvalidatePurchase drops every cached read of a purchase
func (s *PurchaseQueryService) InvalidatePurchase(ctx context.Context, purchaseID uuid.UUID) {
	id := purchaseID.String()
	s.caches.Purchases.Invalidate(ctx, cache.Key(keyPurchase, id))
	s.caches.Timelines.Invalidate(ctx, cache.Key(keyTimeline, id))
	s.caches.Payments.Invalidate(ctx, cache.Key(keyPayments, id))
	s.caches.Summaries.Invalidate(ctx, cache.Key(keySummary, id))
}

// Close releases the cache backends
func (s *PurchaseQueryService) Close() error {
	var firstErr error
	for _, closer := range []interface{ Close() error }{
		s.caches.Purchases, s.caches.Timelines, s.caches.Payments, s.caches.Summaries,
	} {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
