package purchasing

import "github.com/shopspring/decimal"

// ItemTotals holds the quantity aggregates of a purchase's items
type ItemTotals struct {
	Ordered  decimal.Decimal
	Received decimal.Decimal
	Returned decimal.Decimal
}

// Net is the quantity received and kept
func (t ItemTotals) Net() decimal.Decimal {
	return t.Received.Sub(t.Returned)
}

// AggregateItems sums ordered, received and returned quantities across items
func AggregateItems(items []PurchaseItem) ItemTotals {
	totals := ItemTotals{
		Ordered:  decimal.Zero,
		Received: decimal.Zero,
		Returned: decimal.Zero,
	}
	for _, item := range items {
		totals.Ordered = totals.Ordered.Add(item.Quantity)
		totals.Received = totals.Received.Add(item.ReceivedQuantity)
		totals.Returned = totals.Returned.Add(item.ReturnedQuantity)
	}
	return totals
}

// DeriveStatus maps item aggregates to a purchase status.
//
// Rules are evaluated in order; the first match wins:
//
//	returned > 0 and returned == received  -> returned
//	returned > 0 and returned <  received  -> partially_returned
//	received == 0                          -> cancelled
//	received == ordered                    -> received
//	0 < received < ordered                 -> partially_received
//	otherwise                              -> pending
//
// Return rules take precedence over receipt rules whenever anything has been returned.
// A purchase with nothing received maps to cancelled, not pending; callers placing a
// new order set pending explicitly and only re-derive after a receipt or return.
func DeriveStatus(ordered, received, returned decimal.Decimal) PurchaseStatus {
	if returned.IsPositive() {
		if returned.Equal(received) {
			return PurchaseStatusReturned
		}
		if returned.LessThan(received) {
			return PurchaseStatusPartiallyReturned
		}
	}

	switch {
	case received.IsZero():
		return PurchaseStatusCancelled
	case received.Equal(ordered):
		return PurchaseStatusReceived
	case received.IsPositive() && received.LessThan(ordered):
		return PurchaseStatusPartiallyReceived
	default:
		return PurchaseStatusPending
	}
}
