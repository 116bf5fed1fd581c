package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseEventModel is the persistence model for an append-only timeline event.
type PurchaseEventModel struct {
	ID             uuid.UUID                  `gorm:"type:uuid;primary_key"`
	PurchaseID     uuid.UUID                  `gorm:"type:uuid;not null;index:idx_purchase_events_purchase_date,priority:1"`
	EventType      purchasing.EventType       `gorm:"type:varchar(30);not null;index"`
	Description    string                     `gorm:"type:text;not null"`
	PreviousStatus *purchasing.PurchaseStatus `gorm:"type:varchar(30)"`
	NewStatus      *purchasing.PurchaseStatus `gorm:"type:varchar(30)"`
	AffectedItems  int                        `gorm:"not null;default:0"`
	TotalItems     int                        `gorm:"not null;default:0"`
	PaymentAmount  *decimal.Decimal           `gorm:"type:decimal(18,4)"`
	ReturnAmount   *decimal.Decimal           `gorm:"type:decimal(18,4)"`
	Metadata       string                     `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedBy      uuid.UUID                  `gorm:"type:uuid;not null"`
	EventDate      time.Time                  `gorm:"not null;index:idx_purchase_events_purchase_date,priority:2"`
	CreatedAt      time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseEventModel) TableName() string {
	return "purchase_events"
}

// ToDomain converts the persistence model to a domain PurchaseEvent.
func (m *PurchaseEventModel) ToDomain() (*purchasing.PurchaseEvent, error) {
	e := &purchasing.PurchaseEvent{
		ID:             m.ID,
		PurchaseID:     m.PurchaseID,
		EventType:      m.EventType,
		Description:    m.Description,
		PreviousStatus: m.PreviousStatus,
		NewStatus:      m.NewStatus,
		AffectedItems:  m.AffectedItems,
		TotalItems:     m.TotalItems,
		PaymentAmount:  m.PaymentAmount,
		ReturnAmount:   m.ReturnAmount,
		CreatedBy:      m.CreatedBy,
		EventDate:      m.EventDate,
		CreatedAt:      m.CreatedAt,
	}
	if m.Metadata != "" && m.Metadata != "{}" {
		if err := json.Unmarshal([]byte(m.Metadata), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of event %s: %w", m.ID, err)
		}
	}
	return e, nil
}

// PurchaseEventModelFromDomain creates a new persistence model from a domain PurchaseEvent.
func PurchaseEventModelFromDomain(e *purchasing.PurchaseEvent) (*PurchaseEventModel, error) {
	metadata := "{}"
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = string(data)
	}
	return &PurchaseEventModel{
		ID:             e.ID,
		PurchaseID:     e.PurchaseID,
		EventType:      e.EventType,
		Description:    e.Description,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		AffectedItems:  e.AffectedItems,
		TotalItems:     e.TotalItems,
		PaymentAmount:  e.PaymentAmount,
		ReturnAmount:   e.ReturnAmount,
		Metadata:       metadata,
		CreatedBy:      e.CreatedBy,
		EventDate:      e.EventDate,
		CreatedAt:      e.CreatedAt,
	}, nil
}
