package purchasing

import (
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseStatus represents the lifecycle status of a purchase
type PurchaseStatus string

const (
	PurchaseStatusPending           PurchaseStatus = "pending"
	PurchaseStatusPartiallyReceived PurchaseStatus = "partially_received"
	PurchaseStatusReceived          PurchaseStatus = "received"
	PurchaseStatusPartiallyReturned PurchaseStatus = "partially_returned"
	PurchaseStatusReturned          PurchaseStatus = "returned"
	PurchaseStatusCancelled         PurchaseStatus = "cancelled"
)

// IsValid checks if the status is a valid PurchaseStatus
func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusPartiallyReceived, PurchaseStatusReceived,
		PurchaseStatusPartiallyReturned, PurchaseStatusReturned, PurchaseStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PurchaseStatus
func (s PurchaseStatus) String() string {
	return string(s)
}

// ItemType distinguishes a product line from a package (bundle) line
type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypePackage ItemType = "package"
)

// IsValid checks if the item type is known
func (t ItemType) IsValid() bool {
	return t == ItemTypeProduct || t == ItemTypePackage
}

// PurchaseItem is a line of a purchase.
// Invariant: 0 <= ReturnedQuantity <= ReceivedQuantity <= Quantity.
type PurchaseItem struct {
	ID               uuid.UUID
	PurchaseID       uuid.UUID
	ItemType         ItemType
	ItemID           uuid.UUID
	VariationID      *uuid.UUID
	ItemName         string
	Quantity         decimal.Decimal // ordered, immutable
	ReceivedQuantity decimal.Decimal // cumulative
	ReturnedQuantity decimal.Decimal // cumulative
	UnitPrice        decimal.Decimal
	Total            decimal.Decimal // Quantity * UnitPrice, immutable
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPurchaseItem creates a purchase line
func NewPurchaseItem(purchaseID uuid.UUID, itemType ItemType, itemID uuid.UUID, variationID *uuid.UUID, itemName string, quantity, unitPrice decimal.Decimal) (*PurchaseItem, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if !itemType.IsValid() {
		return nil, shared.NewValidationError("INVALID_ITEM_TYPE", fmt.Sprintf("Unknown item type %q", itemType))
	}
	if itemName == "" {
		return nil, shared.NewValidationError("INVALID_ITEM_NAME", "Item name cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewValidationError("INVALID_UNIT_PRICE", "Unit price cannot be negative")
	}

	now := time.Now()
	return &PurchaseItem{
		ID:               uuid.New(),
		PurchaseID:       purchaseID,
		ItemType:         itemType,
		ItemID:           itemID,
		VariationID:      variationID,
		ItemName:         itemName,
		Quantity:         quantity,
		ReceivedQuantity: decimal.Zero,
		ReturnedQuantity: decimal.Zero,
		UnitPrice:        unitPrice,
		Total:            quantity.Mul(unitPrice),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ValidateReceivedQuantity checks a new cumulative received quantity
// against the item bounds without mutating the item
func (i *PurchaseItem) ValidateReceivedQuantity(received decimal.Decimal) error {
	if received.IsNegative() {
		return shared.NewValidationError("INVALID_QUANTITY", "Received quantity cannot be negative")
	}
	if received.GreaterThan(i.Quantity) {
		return shared.NewValidationError("QUANTITY_EXCEEDED",
			fmt.Sprintf("Cannot receive %s of %s: only %s ordered", received, i.ItemName, i.Quantity))
	}
	if received.LessThan(i.ReturnedQuantity) {
		return shared.NewValidationError("QUANTITY_BELOW_RETURNED",
			fmt.Sprintf("Received quantity %s of %s cannot be below returned quantity %s", received, i.ItemName, i.ReturnedQuantity))
	}
	return nil
}

// SetReceivedQuantity sets the cumulative received quantity and returns the delta
func (i *PurchaseItem) SetReceivedQuantity(received decimal.Decimal) (decimal.Decimal, error) {
	if err := i.ValidateReceivedQuantity(received); err != nil {
		return decimal.Zero, err
	}
	delta := received.Sub(i.ReceivedQuantity)
	i.ReceivedQuantity = received
	i.UpdatedAt = time.Now()
	return delta, nil
}

// ValidateReturnedQuantity checks a new cumulative returned quantity
func (i *PurchaseItem) ValidateReturnedQuantity(returned decimal.Decimal) error {
	if returned.LessThan(i.ReturnedQuantity) {
		return shared.NewValidationError("RETURN_DECREASE",
			fmt.Sprintf("Returned quantity of %s cannot decrease from %s to %s", i.ItemName, i.ReturnedQuantity, returned))
	}
	if returned.GreaterThan(i.ReceivedQuantity) {
		return shared.NewValidationError("RETURN_EXCEEDS_RECEIVED",
			fmt.Sprintf("Cannot return more than received for %s: maximum returnable is %s", i.ItemName, i.ReturnableQuantity()))
	}
	return nil
}

// SetReturnedQuantity sets the cumulative returned quantity and returns the delta
func (i *PurchaseItem) SetReturnedQuantity(returned decimal.Decimal) (decimal.Decimal, error) {
	if err := i.ValidateReturnedQuantity(returned); err != nil {
		return decimal.Zero, err
	}
	delta := returned.Sub(i.ReturnedQuantity)
	i.ReturnedQuantity = returned
	i.UpdatedAt = time.Now()
	return delta, nil
}

// ReturnableQuantity is how much more can still be returned
func (i *PurchaseItem) ReturnableQuantity() decimal.Decimal {
	return i.ReceivedQuantity.Sub(i.ReturnedQuantity)
}

// RemainingQuantity is how much is still to be received
func (i *PurchaseItem) RemainingQuantity() decimal.Decimal {
	remaining := i.Quantity.Sub(i.ReceivedQuantity)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// ReturnedAmount is the value of the returned quantity
func (i *PurchaseItem) ReturnedAmount() decimal.Decimal {
	return i.ReturnedQuantity.Mul(i.UnitPrice)
}

// Purchase is the purchase aggregate root
type Purchase struct {
	shared.BaseEntity
	OrderNumber  string
	SupplierID   uuid.UUID
	SupplierName string
	WarehouseID  uuid.UUID
	PurchaseDate time.Time
	Status       PurchaseStatus
	TotalAmount  decimal.Decimal // sum of item totals, fixed at creation
	Notes        string
	CreatedBy    uuid.UUID
	Items        []PurchaseItem
}

// NewPurchase creates a pending purchase; items are added with AddItem before it is persisted
func NewPurchase(orderNumber string, supplierID uuid.UUID, supplierName string, warehouseID uuid.UUID, purchaseDate time.Time, createdBy uuid.UUID) (*Purchase, error) {
	if orderNumber == "" {
		return nil, shared.NewValidationError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(orderNumber) > 50 {
		return nil, shared.NewValidationError("INVALID_ORDER_NUMBER", "Order number cannot exceed 50 characters")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if purchaseDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_PURCHASE_DATE", "Purchase date is required")
	}

	return &Purchase{
		BaseEntity:   shared.NewBaseEntity(),
		OrderNumber:  orderNumber,
		SupplierID:   supplierID,
		SupplierName: supplierName,
		WarehouseID:  warehouseID,
		PurchaseDate: purchaseDate,
		Status:       PurchaseStatusPending,
		TotalAmount:  decimal.Zero,
		CreatedBy:    createdBy,
		Items:        make([]PurchaseItem, 0),
	}, nil
}

// AddItem appends a line and recomputes TotalAmount. Only valid before the purchase is persisted.
func (p *Purchase) AddItem(itemType ItemType, itemID uuid.UUID, variationID *uuid.UUID, itemName string, quantity, unitPrice decimal.Decimal) (*PurchaseItem, error) {
	for _, existing := range p.Items {
		if existing.ItemID == itemID && sameVariation(existing.VariationID, variationID) {
			return nil, shared.NewValidationError("DUPLICATE_ITEM", "Item already exists in purchase, update quantity instead")
		}
	}

	item, err := NewPurchaseItem(p.ID, itemType, itemID, variationID, itemName, quantity, unitPrice)
	if err != nil {
		return nil, err
	}

	p.Items = append(p.Items, *item)
	p.TotalAmount = p.ItemsTotal()
	return &p.Items[len(p.Items)-1], nil
}

// ItemsTotal sums the item totals
func (p *Purchase) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Items {
		total = total.Add(item.Total)
	}
	return total
}

// GetItem returns an item by its ID
func (p *Purchase) GetItem(itemID uuid.UUID) *PurchaseItem {
	for idx := range p.Items {
		if p.Items[idx].ID == itemID {
			return &p.Items[idx]
		}
	}
	return nil
}

// Totals aggregates the item quantities
func (p *Purchase) Totals() ItemTotals {
	return AggregateItems(p.Items)
}

// DeriveStatus computes the status implied by the current item quantities
func (p *Purchase) DeriveStatus() PurchaseStatus {
	t := p.Totals()
	return DeriveStatus(t.Ordered, t.Received, t.Returned)
}

// ReturnedAmount is the value of everything returned so far
func (p *Purchase) ReturnedAmount() decimal.Decimal {
	total := decimal.Zero
	for idx := range p.Items {
		total = total.Add(p.Items[idx].ReturnedAmount())
	}
	return total
}

// DaysSincePurchase counts whole calendar days between the purchase date and at,
// read in the purchase date's location
func (p *Purchase) DaysSincePurchase(at time.Time) int {
	from := calendarDay(p.PurchaseDate)
	to := calendarDay(at.In(p.PurchaseDate.Location()))
	return int(to.Sub(from) / (24 * time.Hour))
}

// calendarDay moves t's wall-clock date to midnight UTC, where every day is 24 hours
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameVariation(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
