package purchasing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementPurchaseReceipt MovementType = "purchase_receipt"
	MovementPurchaseReturn  MovementType = "purchase_return"
)

// Stock movement reasons
const (
	ReasonPurchaseReceipt           = "purchase receipt"
	ReasonPurchaseReceiptCorrection = "purchase receipt correction"
	ReasonPurchaseReturn            = "purchase return"
)

// StockMovement is a signed quantity change for one (item, warehouse, variation)
type StockMovement struct {
	ItemID        uuid.UUID
	WarehouseID   uuid.UUID
	VariationID   *uuid.UUID
	QuantityDelta decimal.Decimal
	MovementType  MovementType
	ReferenceID   uuid.UUID
	Reason        string
	Actor         uuid.UUID
	Notes         string
}

// StockLedger applies signed deltas to stock counters and records a movement row
type StockLedger interface {
	Apply(ctx context.Context, movement StockMovement) (bool, error)
}

// JournalPosting carries what the journal needs to post one entry
type JournalPosting struct {
	ReferenceID      uuid.UUID
	PurchaseID       uuid.UUID
	CounterpartyName string
	Amount           decimal.Decimal
	Date             time.Time
	Actor            uuid.UUID
}

// AccountingJournal posts balanced double-entry journal entries and returns the entry id
type AccountingJournal interface {
	PostReceipt(ctx context.Context, posting JournalPosting) (uuid.UUID, error)
	PostReturn(ctx context.Context, posting JournalPosting) (uuid.UUID, error)
	PostPayment(ctx context.Context, posting JournalPosting) (uuid.UUID, error)
	PostPaymentReversal(ctx context.Context, posting JournalPosting) (uuid.UUID, error)
}
