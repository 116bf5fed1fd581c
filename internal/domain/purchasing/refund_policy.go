package purchasing

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReturnWindowDays is the return policy window used when none is configured
const DefaultReturnWindowDays = 30

// ErrRefundUnallocated is returned when a refund could not be fully spread over the payments
var ErrRefundUnallocated = shared.NewValidationError("REFUND_UNALLOCATED", "Refund amount exceeds refundable payments")

// Eligibility is the outcome of a return window check
type Eligibility struct {
	Eligible          bool
	DaysSincePurchase int
	WindowDays        int
	Reason            string
}

// CheckEligibility tests whether returnDate falls inside the return window
func CheckEligibility(purchase *Purchase, returnDate time.Time, windowDays int) Eligibility {
	if windowDays <= 0 {
		windowDays = DefaultReturnWindowDays
	}
	days := purchase.DaysSincePurchase(returnDate)
	e := Eligibility{
		Eligible:          days <= windowDays,
		DaysSincePurchase: days,
		WindowDays:        windowDays,
	}
	switch {
	case days < 0:
		e.Eligible = false
		e.Reason = fmt.Sprintf("Return date is %d days before the purchase date", -days)
	case !e.Eligible:
		e.Reason = fmt.Sprintf("Return window of %d days has passed (%d days since purchase)", windowDays, days)
	}
	return e
}

// RefundSummary is the refund position of a purchase
type RefundSummary struct {
	TotalReturned           decimal.Decimal
	CompletedRefunds        decimal.Decimal
	PendingRefundAmount     decimal.Decimal
	TotalPaid               decimal.Decimal
	NetPayable              decimal.Decimal
	RefundDue               decimal.Decimal
	RefundableNow           decimal.Decimal
	PaymentMadeAfterReturns bool
}

// ComputeRefundDue works out how much the supplier still owes back.
//
// RefundDue = returned - completed - pending, floored at zero. RefundableNow is the
// part of it covered by the overpayment the supplier holds (paid - net payable -
// completed - pending). PaymentMadeAfterReturns is informational only.
func ComputeRefundDue(purchase *Purchase, returns []PurchaseReturn, refunds []RefundTransaction, payments []PurchasePayment) RefundSummary {
	s := RefundSummary{
		TotalReturned:       SumReturns(returns),
		CompletedRefunds:    SumRefunds(refunds, IsCompleted),
		PendingRefundAmount: SumRefunds(refunds, RefundStatus.IsInFlight),
		TotalPaid:           SumActivePayments(payments),
		NetPayable:          NetPayable(purchase),
	}

	settled := s.CompletedRefunds.Add(s.PendingRefundAmount)
	s.RefundDue = floorZero(s.TotalReturned.Sub(settled))
	held := floorZero(s.TotalPaid.Sub(s.NetPayable).Sub(settled))
	s.RefundableNow = decimal.Min(s.RefundDue, held)

	if latest := LatestReturnDate(returns); !latest.IsZero() {
		for _, p := range payments {
			if p.IsActive() && p.PaymentDate.After(latest) {
				s.PaymentMadeAfterReturns = true
				break
			}
		}
	}
	return s
}

// RefundAllocation is the share of a refund assigned to one payment
type RefundAllocation struct {
	PaymentID uuid.UUID
	Method    PaymentMethod
	Amount    decimal.Decimal
}

// AllocateRefund spreads amount over active payments, oldest first, each capped at
// its unrefunded balance. It returns the allocations and whatever could not be placed.
func AllocateRefund(amount decimal.Decimal, payments []PurchasePayment, existing []RefundTransaction) ([]RefundAllocation, decimal.Decimal) {
	active := make([]PurchasePayment, 0, len(payments))
	for _, p := range payments {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].PaymentDate.Equal(active[j].PaymentDate) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].PaymentDate.Before(active[j].PaymentDate)
	})

	refunded := make(map[uuid.UUID]decimal.Decimal)
	for _, r := range existing {
		if r.Status.CountsAgainstPayment() {
			refunded[r.PaymentID] = refunded[r.PaymentID].Add(r.RefundAmount)
		}
	}

	remaining := amount
	allocations := make([]RefundAllocation, 0)
	for _, p := range active {
		if !remaining.IsPositive() {
			break
		}
		balance := p.Amount.Sub(refunded[p.ID])
		if !balance.IsPositive() {
			continue
		}
		share := decimal.Min(balance, remaining)
		allocations = append(allocations, RefundAllocation{PaymentID: p.ID, Method: p.Method, Amount: share})
		remaining = remaining.Sub(share)
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return allocations, remaining
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
