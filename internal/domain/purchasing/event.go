package purchasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType enumerates timeline entries
type EventType string

const (
	EventOrderPlaced     EventType = "order_placed"
	EventPartialReceipt  EventType = "partial_receipt"
	EventFullReceipt     EventType = "full_receipt"
	EventPartialReturn   EventType = "partial_return"
	EventFullReturn      EventType = "full_return"
	EventBalanceResolved EventType = "balance_resolved"
	EventStatusChange    EventType = "status_change"
	EventPaymentMade     EventType = "payment_made"
	EventPaymentVoided   EventType = "payment_voided"
	EventCancelled       EventType = "cancelled"
)

// IsValid checks if the event type is known
func (t EventType) IsValid() bool {
	switch t {
	case EventOrderPlaced, EventPartialReceipt, EventFullReceipt, EventPartialReturn,
		EventFullReturn, EventBalanceResolved, EventStatusChange, EventPaymentMade,
		EventPaymentVoided, EventCancelled:
		return true
	}
	return false
}

// String returns the string representation of EventType
func (t EventType) String() string {
	return string(t)
}

// Metadata keys written on timeline events
const (
	MetaPaymentID   = "payment_id"
	MetaReturnID    = "return_id"
	MetaMethod      = "method"
	MetaReason      = "reason"
	MetaDelta       = "delta"
	MetaBackfilled  = "backfilled"
	MetaPayStatus   = "payment_status"
	MetaJournalID   = "journal_entry_id"
	MetaReceiptDate = "receipt_date"
)

// PurchaseEvent is one append-only timeline entry
type PurchaseEvent struct {
	ID             uuid.UUID
	PurchaseID     uuid.UUID
	EventType      EventType
	Description    string
	PreviousStatus *PurchaseStatus
	NewStatus      *PurchaseStatus
	AffectedItems  int
	TotalItems     int
	PaymentAmount  *decimal.Decimal
	ReturnAmount   *decimal.Decimal
	Metadata       map[string]any
	CreatedBy      uuid.UUID
	EventDate      time.Time
	CreatedAt      time.Time
}

// NewPurchaseEvent creates a timeline entry dated at eventDate
func NewPurchaseEvent(purchaseID uuid.UUID, eventType EventType, description string, createdBy uuid.UUID, eventDate time.Time) *PurchaseEvent {
	return &PurchaseEvent{
		ID:          uuid.New(),
		PurchaseID:  purchaseID,
		EventType:   eventType,
		Description: description,
		Metadata:    make(map[string]any),
		CreatedBy:   createdBy,
		EventDate:   eventDate,
		CreatedAt:   time.Now(),
	}
}

// WithStatusChange records the status transition on the event
func (e *PurchaseEvent) WithStatusChange(previous, next PurchaseStatus) *PurchaseEvent {
	e.PreviousStatus = &previous
	e.NewStatus = &next
	return e
}

// WithItemCounts records how many lines were touched out of the total
func (e *PurchaseEvent) WithItemCounts(affected, total int) *PurchaseEvent {
	e.AffectedItems = affected
	e.TotalItems = total
	return e
}

// WithPaymentAmount sets the payment amount
func (e *PurchaseEvent) WithPaymentAmount(amount decimal.Decimal) *PurchaseEvent {
	e.PaymentAmount = &amount
	return e
}

// WithReturnAmount sets the return amount
func (e *PurchaseEvent) WithReturnAmount(amount decimal.Decimal) *PurchaseEvent {
	e.ReturnAmount = &amount
	return e
}

// WithMeta sets a metadata entry
func (e *PurchaseEvent) WithMeta(key string, value any) *PurchaseEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// MetaString reads a string metadata entry
func (e *PurchaseEvent) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ReceiptEventType picks partial or full receipt from the derived status
func ReceiptEventType(status PurchaseStatus) EventType {
	if status == PurchaseStatusReceived {
		return EventFullReceipt
	}
	return EventPartialReceipt
}

// ReturnEventType picks partial or full return from the derived status
func ReturnEventType(status PurchaseStatus) EventType {
	if status == PurchaseStatusReturned {
		return EventFullReturn
	}
	return EventPartialReturn
}

// IsBalanceResolved reports whether returns have caught up to receipts.
// Single-item orders are excluded.
func IsBalanceResolved(totals ItemTotals) bool {
	return totals.Received.GreaterThan(decimal.NewFromInt(1)) && totals.Received.Equal(totals.Returned)
}
