package purchasing

import (
	"strings"
	"time"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a supplier was paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobile       PaymentMethod = "mobile"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheque,
		PaymentMethodCard, PaymentMethodMobile, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentRecordStatus is the row state of a payment
type PaymentRecordStatus string

const (
	PaymentRecordActive PaymentRecordStatus = "active"
	PaymentRecordVoid   PaymentRecordStatus = "void"
)

// PaymentStatus is the settlement state of a purchase
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusOverpaid PaymentStatus = "overpaid"
)

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// ComputePaymentStatus compares the amount paid against the net payable amount.
// It is monotonic in paid for a fixed net.
func ComputePaymentStatus(netPayable, paid decimal.Decimal) PaymentStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return PaymentStatusUnpaid
	case paid.LessThan(netPayable):
		return PaymentStatusPartial
	case paid.Equal(netPayable):
		return PaymentStatusPaid
	default:
		return PaymentStatusOverpaid
	}
}

// NetPayable is the purchase total minus the value of returned items, floored at zero
func NetPayable(p *Purchase) decimal.Decimal {
	net := p.TotalAmount.Sub(p.ReturnedAmount())
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// PurchasePayment is an append-only payment against a purchase.
// Voiding flips Status and never removes the row.
type PurchasePayment struct {
	shared.BaseEntity
	PurchaseID             uuid.UUID
	Amount                 decimal.Decimal
	Method                 PaymentMethod
	PaymentDate            time.Time
	Status                 PaymentRecordStatus
	Reference              string
	Notes                  string
	JournalEntryID         *uuid.UUID
	ReversalJournalEntryID *uuid.UUID
	VoidedAt               *time.Time
	VoidedBy               *uuid.UUID
	CreatedBy              uuid.UUID
}

// NewPurchasePayment creates an active payment
func NewPurchasePayment(purchaseID uuid.UUID, amount decimal.Decimal, method PaymentMethod, paymentDate time.Time, reference, notes string, createdBy uuid.UUID) (*PurchasePayment, error) {
	if purchaseID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PURCHASE", "Purchase ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Invalid payment method")
	}
	if paymentDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_DATE", "Payment date is required")
	}

	return &PurchasePayment{
		BaseEntity:  shared.NewBaseEntity(),
		PurchaseID:  purchaseID,
		Amount:      amount,
		Method:      method,
		PaymentDate: paymentDate,
		Status:      PaymentRecordActive,
		Reference:   reference,
		Notes:       notes,
		CreatedBy:   createdBy,
	}, nil
}

// IsActive returns true if the payment counts toward the amount paid
func (p *PurchasePayment) IsActive() bool {
	return p.Status == PaymentRecordActive
}

// IsVoid returns true if the payment has been voided
func (p *PurchasePayment) IsVoid() bool {
	return p.Status == PaymentRecordVoid
}

// Void flips the payment to void and appends the reason to its notes
func (p *PurchasePayment) Void(reason string, actor uuid.UUID, at time.Time) error {
	if p.IsVoid() {
		return shared.NewValidationError("PAYMENT_ALREADY_VOID", "Payment is already void")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Void reason is required")
	}

	p.Status = PaymentRecordVoid
	p.Notes = AppendVoidNote(p.Notes, reason)
	p.VoidedAt = &at
	p.VoidedBy = &actor
	p.Touch(at)
	return nil
}

// AppendVoidNote appends "VOIDED: <reason>" to existing notes without overwriting them
func AppendVoidNote(notes, reason string) string {
	entry := "VOIDED: " + reason
	if strings.TrimSpace(notes) == "" {
		return entry
	}
	return notes + "\n" + entry
}

// SumActivePayments totals the amount of all active payments
func SumActivePayments(payments []PurchasePayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.IsActive() {
			total = total.Add(p.Amount)
		}
	}
	return total
}
