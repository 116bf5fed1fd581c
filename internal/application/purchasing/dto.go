package purchasing

import (
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ========== Request DTOs ==========

// PlaceOrderRequest creates a purchase with its items
type PlaceOrderRequest struct {
	OrderNumber  string           `json:"order_number" validate:"required,max=50"`
	SupplierID   uuid.UUID        `json:"supplier_id" validate:"required"`
	SupplierName string           `json:"supplier_name" validate:"required,max=200"`
	WarehouseID  uuid.UUID        `json:"warehouse_id" validate:"required"`
	PurchaseDate time.Time        `json:"purchase_date" validate:"required"`
	Notes        string           `json:"notes" validate:"max=2000"`
	Actor        uuid.UUID        `json:"actor" validate:"required"`
	Items        []PlaceOrderItem `json:"items" validate:"required,min=1,dive"`
}

// PlaceOrderItem is one ordered line
type PlaceOrderItem struct {
	ItemType    purchasing.ItemType `json:"item_type" validate:"required,oneof=product package"`
	ItemID      uuid.UUID           `json:"item_id" validate:"required"`
	VariationID *uuid.UUID          `json:"variation_id"`
	ItemName    string              `json:"item_name" validate:"required,max=200"`
	Quantity    decimal.Decimal     `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal     `json:"unit_price" validate:"gte=0"`
}

// ReceiveRequest records cumulative received quantities
type ReceiveRequest struct {
	PurchaseID  uuid.UUID     `json:"purchase_id" validate:"required"`
	Actor       uuid.UUID     `json:"actor" validate:"required"`
	ReceiptDate time.Time     `json:"receipt_date"`
	Notes       string        `json:"notes" validate:"max=2000"`
	Items       []ReceiveLine `json:"items" validate:"required,min=1,dive"`
}

// ReceiveLine is the new cumulative received quantity of one purchase item
type ReceiveLine struct {
	PurchaseItemID   uuid.UUID       `json:"purchase_item_id" validate:"required"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity" validate:"gte=0"`
}

// ReturnRequest records cumulative returned quantities
type ReturnRequest struct {
	PurchaseID      uuid.UUID    `json:"purchase_id" validate:"required"`
	Reason          string       `json:"reason" validate:"required,max=500"`
	ReturnDate      time.Time    `json:"return_date" validate:"required"`
	Actor           uuid.UUID    `json:"actor" validate:"required"`
	AllowLateReturn bool         `json:"allow_late_return"`
	Items           []ReturnLine `json:"items" validate:"required,min=1,dive"`
}

// ReturnLine is the new cumulative returned quantity of one purchase item
type ReturnLine struct {
	PurchaseItemID   uuid.UUID       `json:"purchase_item_id" validate:"required"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity" validate:"gte=0"`
}

// CreatePaymentRequest records a payment to the supplier
type CreatePaymentRequest struct {
	PurchaseID  uuid.UUID                `json:"purchase_id" validate:"required"`
	Amount      decimal.Decimal          `json:"amount" validate:"gt=0"`
	Method      purchasing.PaymentMethod `json:"method" validate:"required,oneof=cash bank_transfer cheque card mobile other"`
	PaymentDate time.Time                `json:"payment_date" validate:"required"`
	Reference   string                   `json:"reference" validate:"max=100"`
	Notes       string                   `json:"notes" validate:"max=2000"`
	Actor       uuid.UUID                `json:"actor" validate:"required"`
}

// VoidPaymentRequest voids an active payment
type VoidPaymentRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
	Actor     uuid.UUID `json:"actor" validate:"required"`
}

// ========== Result DTOs ==========

// PlaceOrderResult is the outcome of PlaceOrder
type PlaceOrderResult struct {
	purchasing.Saga
	Purchase *purchasing.Purchase
}

// ReceiptResult is the outcome of a receipt call.
// Changed is false when no line moved and nothing was written.
type ReceiptResult struct {
	purchasing.Saga
	Purchase       *purchasing.Purchase
	PreviousStatus purchasing.PurchaseStatus
	Status         purchasing.PurchaseStatus
	Changed        bool
	ItemsChanged   int
	ReceivedDelta  decimal.Decimal
	ReceiptTotal   decimal.Decimal
	JournalEntryID *uuid.UUID
	Events         []purchasing.PurchaseEvent
}

// ReturnResult is the outcome of a return call
type ReturnResult struct {
	purchasing.Saga
	Purchase        *purchasing.Purchase
	Return          *purchasing.PurchaseReturn
	PreviousStatus  purchasing.PurchaseStatus
	Status          purchasing.PurchaseStatus
	Changed         bool
	ItemsChanged    int
	ReturnedDelta   decimal.Decimal
	ReturnTotal     decimal.Decimal
	BalanceResolved bool
	LateReturn      bool
	JournalEntryID  *uuid.UUID
	Events          []purchasing.PurchaseEvent
}

// PaymentResult is the outcome of creating or voiding a payment.
// JournalEntryID is the payment entry on create and the reversal entry on void.
type PaymentResult struct {
	purchasing.Saga
	Payment        *purchasing.PurchasePayment
	Summary        *PaymentSummary
	JournalEntryID *uuid.UUID
}

// PaymentSummary is the settlement position of a purchase
type PaymentSummary struct {
	PurchaseID     uuid.UUID                `json:"purchase_id"`
	TotalAmount    decimal.Decimal          `json:"total_amount"`
	ReturnedAmount decimal.Decimal          `json:"returned_amount"`
	NetPayable     decimal.Decimal          `json:"net_payable"`
	TotalPaid      decimal.Decimal          `json:"total_paid"`
	BalanceDue     decimal.Decimal          `json:"balance_due"`
	Status         purchasing.PaymentStatus `json:"status"`
	ActivePayments int                      `json:"active_payments"`
	VoidPayments   int                      `json:"void_payments"`
}

// RefundAllocationResult is the outcome of ProcessAutomaticRefund.
// Unallocated is what no payment had balance left for.
type RefundAllocationResult struct {
	ReturnID    uuid.UUID
	PurchaseID  uuid.UUID
	Refunds     []purchasing.RefundTransaction
	Allocated   decimal.Decimal
	Unallocated decimal.Decimal
}

// BackfillResult is the outcome of a timeline backfill
type BackfillResult struct {
	purchasing.Saga
	PurchaseID uuid.UUID
	Created    []purchasing.PurchaseEvent
	Skipped    int
}

// buildPaymentSummary computes the settlement position from a purchase and its payments
func buildPaymentSummary(p *purchasing.Purchase, payments []purchasing.PurchasePayment) *PaymentSummary {
	net := purchasing.NetPayable(p)
	paid := purchasing.SumActivePayments(payments)
	balance := net.Sub(paid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	s := &PaymentSummary{
		PurchaseID:     p.ID,
		TotalAmount:    p.TotalAmount,
		ReturnedAmount: p.ReturnedAmount(),
		NetPayable:     net,
		TotalPaid:      paid,
		BalanceDue:     balance,
		Status:         purchasing.ComputePaymentStatus(net, paid),
	}
	for idx := range payments {
		if payments[idx].IsActive() {
			s.ActivePayments++
		} else {
			s.VoidPayments++
		}
	}
	return s
}
