package purchasing

import (
	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/cache"
	"github.com/erp/purchasing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ports are the storage and collaborator adapters the services run on
type Ports struct {
	Purchases purchasing.PurchaseRepository
	Returns   purchasing.ReturnRepository
	Payments  purchasing.PaymentRepository
	Refunds   purchasing.RefundRepository
	Events    purchasing.EventRepository
	Stock     purchasing.StockLedger
	Journal   purchasing.AccountingJournal
}

// Services is the wired set of purchasing services
type Services struct {
	Placement *PlacementService
	Receipts  *ReceiptProcessor
	Returns   *ReturnProcessor
	Payments  *PaymentLedger
	Refunds   *RefundEngine
	Timeline  *TimelineRecorder
	Queries   *PurchaseQueryService
}

// NewQueryCaches builds one coalescer per read model from configuration
func NewQueryCaches(cfg config.CacheConfig, redisCfg config.RedisConfig, clock cache.Clock, logger *zap.Logger) (QueryCaches, error) {
	var (
		caches QueryCaches
		err    error
	)
	if caches.Purchases, err = cache.NewCoalescerFromConfig[*purchasing.Purchase](cfg, redisCfg, clock, logger, keyPurchase+":"); err != nil {
		return QueryCaches{}, err
	}
	if caches.Timelines, err = cache.NewCoalescerFromConfig[[]purchasing.PurchaseEvent](cfg, redisCfg, clock, logger, keyTimeline+":"); err != nil {
		return QueryCaches{}, err
	}
	if caches.Payments, err = cache.NewCoalescerFromConfig[[]purchasing.PurchasePayment](cfg, redisCfg, clock, logger, keyPayments+":"); err != nil {
		return QueryCaches{}, err
	}
	if caches.Summaries, err = cache.NewCoalescerFromConfig[*PaymentSummary](cfg, redisCfg, clock, logger, keySummary+":"); err != nil {
		return QueryCaches{}, err
	}
	return caches, nil
}

// NewServices wires every service over ports. Writes invalidate the query caches.
func NewServices(ports Ports, caches QueryCaches, refundWindowDays int, opts ...Option) *Services {
	queries := NewPurchaseQueryService(ports.Purchases, ports.Events, ports.Payments, caches)
	opts = append(opts, WithInvalidator(queries))

	timeline := NewTimelineRecorder(ports.Events, ports.Purchases, ports.Payments, ports.Returns, opts...)
	return &Services{
		Placement: NewPlacementService(ports.Purchases, timeline, opts...),
		Receipts:  NewReceiptProcessor(ports.Purchases, ports.Stock, ports.Journal, timeline, opts...),
		Returns:   NewReturnProcessor(ports.Purchases, ports.Returns, ports.Stock, ports.Journal, timeline, refundWindowDays, opts...),
		Payments:  NewPaymentLedger(ports.Purchases, ports.Payments, ports.Journal, timeline, opts...),
		Refunds:   NewRefundEngine(ports.Purchases, ports.Returns, ports.Payments, ports.Refunds, refundWindowDays, opts...),
		Timeline:  timeline,
		Queries:   queries,
	}
}
