package purchasing

import (
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseReturn records one return call that sent goods back to the supplier
type PurchaseReturn struct {
	shared.BaseEntity
	PurchaseID   uuid.UUID
	ReturnNumber string
	Reason       string
	ReturnDate   time.Time
	TotalAmount  decimal.Decimal
	CreatedBy    uuid.UUID
	Items        []PurchaseReturnItem
}

// PurchaseReturnItem is the per-line quantity and value of a return
type PurchaseReturnItem struct {
	ID             uuid.UUID
	ReturnID       uuid.UUID
	PurchaseItemID uuid.UUID
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	Amount         decimal.Decimal
	CreatedAt      time.Time
}

// NewPurchaseReturn creates an empty return header
func NewPurchaseReturn(purchaseID uuid.UUID, returnNumber, reason string, returnDate time.Time, createdBy uuid.UUID) (*PurchaseReturn, error) {
	if purchaseID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PURCHASE", "Purchase ID cannot be empty")
	}
	if returnDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_RETURN_DATE", "Return date is required")
	}
	return &PurchaseReturn{
		BaseEntity:   shared.NewBaseEntity(),
		PurchaseID:   purchaseID,
		ReturnNumber: returnNumber,
		Reason:       reason,
		ReturnDate:   returnDate,
		TotalAmount:  decimal.Zero,
		CreatedBy:    createdBy,
		Items:        make([]PurchaseReturnItem, 0),
	}, nil
}

// AddItem appends a returned line and updates the return total
func (r *PurchaseReturn) AddItem(purchaseItemID uuid.UUID, quantity, unitPrice decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_QUANTITY", "Return quantity must be positive")
	}
	amount := quantity.Mul(unitPrice)
	r.Items = append(r.Items, PurchaseReturnItem{
		ID:             uuid.New(),
		ReturnID:       r.ID,
		PurchaseItemID: purchaseItemID,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		Amount:         amount,
		CreatedAt:      r.CreatedAt,
	})
	r.TotalAmount = r.TotalAmount.Add(amount)
	return nil
}

// GenerateReturnNumber builds a return number from the order number and a sequence
func GenerateReturnNumber(orderNumber string, seq int) string {
	return fmt.Sprintf("%s-R%02d", orderNumber, seq)
}

// SumReturns totals the amount of the given returns
func SumReturns(returns []PurchaseReturn) decimal.Decimal {
	total := decimal.Zero
	for _, r := range returns {
		total = total.Add(r.TotalAmount)
	}
	return total
}

// LatestReturnDate returns the most recent return date, or the zero time
func LatestReturnDate(returns []PurchaseReturn) time.Time {
	var latest time.Time
	for _, r := range returns {
		if r.ReturnDate.After(latest) {
			latest = r.ReturnDate
		}
	}
	return latest
}
