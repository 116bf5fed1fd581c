package purchasing

import (
	"time"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus represents the state of a refund transaction
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
	RefundStatusCancelled  RefundStatus = "cancelled"
)

// IsValid checks if the status is a valid RefundStatus
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusPending, RefundStatusProcessing, RefundStatusCompleted,
		RefundStatusFailed, RefundStatusCancelled:
		return true
	}
	return false
}

// IsInFlight returns true for refunds that are neither settled nor abandoned
func (s RefundStatus) IsInFlight() bool {
	return s == RefundStatusPending || s == RefundStatusProcessing
}

// CountsAgainstPayment returns true if the refund consumes part of its payment
func (s RefundStatus) CountsAgainstPayment() bool {
	return s != RefundStatusFailed && s != RefundStatusCancelled
}

// RefundTransaction is money owed back by the supplier against one payment
type RefundTransaction struct {
	shared.BaseEntity
	ReturnID     uuid.UUID
	PurchaseID   uuid.UUID
	PaymentID    uuid.UUID
	RefundAmount decimal.Decimal
	Method       PaymentMethod
	Status       RefundStatus
	CreatedBy    uuid.UUID
	ProcessedAt  *time.Time
}

// NewRefundTransaction creates a pending refund against a payment
func NewRefundTransaction(returnID, purchaseID, paymentID uuid.UUID, amount decimal.Decimal, method PaymentMethod, createdBy uuid.UUID) (*RefundTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Refund amount must be positive")
	}
	return &RefundTransaction{
		BaseEntity:   shared.NewBaseEntity(),
		ReturnID:     returnID,
		PurchaseID:   purchaseID,
		PaymentID:    paymentID,
		RefundAmount: amount,
		Method:       method,
		Status:       RefundStatusPending,
		CreatedBy:    createdBy,
	}, nil
}

// SumRefunds totals refunds matching the predicate
func SumRefunds(refunds []RefundTransaction, match func(RefundStatus) bool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range refunds {
		if match(r.Status) {
			total = total.Add(r.RefundAmount)
		}
	}
	return total
}

// IsCompleted matches completed refunds
func IsCompleted(s RefundStatus) bool {
	return s == RefundStatusCompleted
}
