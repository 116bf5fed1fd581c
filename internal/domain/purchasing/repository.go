package purchasing

import (
	"context"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseRepository defines the interface for purchase persistence
type PurchaseRepository interface {
	// FindByID finds a purchase with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Purchase, error)

	// Create inserts a purchase and all its items in one transaction
	Create(ctx context.Context, purchase *Purchase) error

	// UpdateItemReceivedQuantity writes the absolute cumulative received quantity of one item
	UpdateItemReceivedQuantity(ctx context.Context, itemID uuid.UUID, received decimal.Decimal) error

	// UpdateItemReturnedQuantity writes the absolute cumulative returned quantity of one item
	UpdateItemReturnedQuantity(ctx context.Context, itemID uuid.UUID, returned decimal.Decimal) error

	// UpdateStatus persists the derived status and bumps updated_at
	UpdateStatus(ctx context.Context, purchaseID uuid.UUID, status PurchaseStatus) error

	// ListIDs pages through purchase ids, oldest first
	ListIDs(ctx context.Context, filter shared.Filter) ([]uuid.UUID, error)
}

// ReturnRepository defines the interface for purchase return persistence
type ReturnRepository interface {
	// Create inserts a return and its items in one transaction
	Create(ctx context.Context, ret *PurchaseReturn) error

	// FindByID finds a return with its items
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseReturn, error)

	// ListByPurchase lists returns of a purchase ordered by return date
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]PurchaseReturn, error)
}

// PaymentRepository defines the interface for purchase payment persistence.
// Rows are never deleted.
type PaymentRepository interface {
	Create(ctx context.Context, payment *PurchasePayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*PurchasePayment, error)

	// ListByPurchase lists payments of a purchase, oldest payment date first
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]PurchasePayment, error)

	// SetJournalEntry stores the journal entry id posted for a payment
	SetJournalEntry(ctx context.Context, paymentID, journalEntryID uuid.UUID) error

	// SetReversalJournalEntry stores the reversal entry id posted when a payment is voided
	SetReversalJournalEntry(ctx context.Context, paymentID, journalEntryID uuid.UUID) error

	// MarkVoid flips status to void and stores the voided notes, actor and time
	MarkVoid(ctx context.Context, payment *PurchasePayment) error
}

// RefundRepository defines the interface for refund transaction persistence
type RefundRepository interface {
	// CreateBatch inserts refunds in one transaction
	CreateBatch(ctx context.Context, refunds []RefundTransaction) error
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]RefundTransaction, error)
	ListByReturn(ctx context.Context, returnID uuid.UUID) ([]RefundTransaction, error)
}

// EventRepository defines the interface for the append-only timeline
type EventRepository interface {
	Append(ctx context.Context, event *PurchaseEvent) error

	// ListByPurchase lists events ordered by event date
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]PurchaseEvent, error)
}
