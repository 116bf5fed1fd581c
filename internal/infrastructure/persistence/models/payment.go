package models

import (
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchasePaymentModel is the persistence model for a payment against a purchase.
// Rows are never deleted; voiding flips Status.
type PurchasePaymentModel struct {
	BaseModel
	PurchaseID             uuid.UUID                      `gorm:"type:uuid;not null;index"`
	Amount                 decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	Method                 purchasing.PaymentMethod       `gorm:"type:varchar(30);not null"`
	PaymentDate            time.Time                      `gorm:"not null;index"`
	Status                 purchasing.PaymentRecordStatus `gorm:"type:varchar(10);not null;default:'active'"`
	Reference              string                         `gorm:"type:varchar(100)"`
	Notes                  string                         `gorm:"type:text"`
	JournalEntryID         *uuid.UUID                     `gorm:"type:uuid"`
	ReversalJournalEntryID *uuid.UUID                     `gorm:"type:uuid"`
	VoidedAt               *time.Time
	VoidedBy               *uuid.UUID `gorm:"type:uuid"`
	CreatedBy              uuid.UUID  `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (PurchasePaymentModel) TableName() string {
	return "purchase_payments"
}

// ToDomain converts the persistence model to a domain PurchasePayment.
func (m *PurchasePaymentModel) ToDomain() *purchasing.PurchasePayment {
	return &purchasing.PurchasePayment{
		BaseEntity:             m.BaseModel.Entity(),
		PurchaseID:             m.PurchaseID,
		Amount:                 m.Amount,
		Method:                 m.Method,
		PaymentDate:            m.PaymentDate,
		Status:                 m.Status,
		Reference:              m.Reference,
		Notes:                  m.Notes,
		JournalEntryID:         m.JournalEntryID,
		ReversalJournalEntryID: m.ReversalJournalEntryID,
		VoidedAt:               m.VoidedAt,
		VoidedBy:               m.VoidedBy,
		CreatedBy:              m.CreatedBy,
	}
}

// PurchasePaymentModelFromDomain creates a new persistence model from a domain PurchasePayment.
func PurchasePaymentModelFromDomain(p *purchasing.PurchasePayment) *PurchasePaymentModel {
	m := &PurchasePaymentModel{
		PurchaseID:             p.PurchaseID,
		Amount:                 p.Amount,
		Method:                 p.Method,
		PaymentDate:            p.PaymentDate,
		Status:                 p.Status,
		Reference:              p.Reference,
		Notes:                  p.Notes,
		JournalEntryID:         p.JournalEntryID,
		ReversalJournalEntryID: p.ReversalJournalEntryID,
		VoidedAt:               p.VoidedAt,
		VoidedBy:               p.VoidedBy,
		CreatedBy:              p.CreatedBy,
	}
	m.SetEntity(p.BaseEntity)
	return m
}

// RefundTransactionModel is the persistence model for a refund against one payment.
type RefundTransactionModel struct {
	BaseModel
	ReturnID     uuid.UUID                `gorm:"type:uuid;not null;index"`
	PurchaseID   uuid.UUID                `gorm:"type:uuid;not null;index"`
	PaymentID    uuid.UUID                `gorm:"type:uuid;not null;index"`
	RefundAmount decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Method       purchasing.PaymentMethod `gorm:"type:varchar(30);not null"`
	Status       purchasing.RefundStatus  `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedBy    uuid.UUID                `gorm:"type:uuid;not null"`
	ProcessedAt  *time.Time
}

// TableName returns the table name for GORM
func (RefundTransactionModel) TableName() string {
	return "refund_transactions"
}

// ToDomain converts the persistence model to a domain RefundTransaction.
func (m *RefundTransactionModel) ToDomain() *purchasing.RefundTransaction {
	return &purchasing.RefundTransaction{
		BaseEntity:   m.BaseModel.Entity(),
		ReturnID:     m.ReturnID,
		PurchaseID:   m.PurchaseID,
		PaymentID:    m.PaymentID,
		RefundAmount: m.RefundAmount,
		Method:       m.Method,
		Status:       m.Status,
		CreatedBy:    m.CreatedBy,
		ProcessedAt:  m.ProcessedAt,
	}
}

// RefundTransactionModelFromDomain creates a new persistence model from a domain RefundTransaction.
func RefundTransactionModelFromDomain(r *purchasing.RefundTransaction) *RefundTransactionModel {
	m := &RefundTransactionModel{
		ReturnID:     r.ReturnID,
		PurchaseID:   r.PurchaseID,
		PaymentID:    r.PaymentID,
		RefundAmount: r.RefundAmount,
		Method:       r.Method,
		Status:       r.Status,
		CreatedBy:    r.CreatedBy,
		ProcessedAt:  r.ProcessedAt,
	}
	m.SetEntity(r.BaseEntity)
	return m
}
