package models

import (
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseModel is the persistence model for the Purchase aggregate root.
type PurchaseModel struct {
	BaseModel
	OrderNumber  string                    `gorm:"type:varchar(50);not null;uniqueIndex"`
	SupplierID   uuid.UUID                 `gorm:"type:uuid;not null;index"`
	SupplierName string                    `gorm:"type:varchar(200);not null"`
	WarehouseID  uuid.UUID                 `gorm:"type:uuid;not null;index"`
	PurchaseDate time.Time                 `gorm:"not null;index"`
	Status       purchasing.PurchaseStatus `gorm:"type:varchar(30);not null;default:'pending'"`
	TotalAmount  decimal.Decimal           `gorm:"type:decimal(18,4);not null;default:0"`
	Notes        string                    `gorm:"type:text"`
	CreatedBy    uuid.UUID                 `gorm:"type:uuid;not null"`
	Items        []PurchaseItemModel       `gorm:"foreignKey:PurchaseID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseModel) TableName() string {
	return "purchases"
}

// ToDomain converts the persistence model to a domain Purchase.
func (m *PurchaseModel) ToDomain() *purchasing.Purchase {
	p := &purchasing.Purchase{
		BaseEntity:   m.BaseModel.Entity(),
		OrderNumber:  m.OrderNumber,
		SupplierID:   m.SupplierID,
		SupplierName: m.SupplierName,
		WarehouseID:  m.WarehouseID,
		PurchaseDate: m.PurchaseDate,
		Status:       m.Status,
		TotalAmount:  m.TotalAmount,
		Notes:        m.Notes,
		CreatedBy:    m.CreatedBy,
		Items:        make([]purchasing.PurchaseItem, len(m.Items)),
	}
	for i := range m.Items {
		p.Items[i] = *m.Items[i].ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Purchase.
func (m *PurchaseModel) FromDomain(p *purchasing.Purchase) {
	m.SetEntity(p.BaseEntity)
	m.OrderNumber = p.OrderNumber
	m.SupplierID = p.SupplierID
	m.SupplierName = p.SupplierName
	m.WarehouseID = p.WarehouseID
	m.PurchaseDate = p.PurchaseDate
	m.Status = p.Status
	m.TotalAmount = p.TotalAmount
	m.Notes = p.Notes
	m.CreatedBy = p.CreatedBy
	m.Items = make([]PurchaseItemModel, len(p.Items))
	for i := range p.Items {
		m.Items[i] = *PurchaseItemModelFromDomain(&p.Items[i])
	}
}

// PurchaseModelFromDomain creates a new persistence model from a domain Purchase.
func PurchaseModelFromDomain(p *purchasing.Purchase) *PurchaseModel {
	m := &PurchaseModel{}
	m.FromDomain(p)
	return m
}

// PurchaseItemModel is the persistence model for a purchase line item.
type PurchaseItemModel struct {
	ID               uuid.UUID           `gorm:"type:uuid;primary_key"`
	PurchaseID       uuid.UUID           `gorm:"type:uuid;not null;index"`
	ItemType         purchasing.ItemType `gorm:"type:varchar(20);not null;default:'product'"`
	ItemID           uuid.UUID           `gorm:"type:uuid;not null;index"`
	VariationID      *uuid.UUID          `gorm:"type:uuid"`
	ItemName         string              `gorm:"type:varchar(200);not null"`
	Quantity         decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	ReceivedQuantity decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	ReturnedQuantity decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	UnitPrice        decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Total            decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	CreatedAt        time.Time           `gorm:"not null"`
	UpdatedAt        time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseItemModel) TableName() string {
	return "purchase_items"
}

// ToDomain converts the persistence model to a domain PurchaseItem.
func (m *PurchaseItemModel) ToDomain() *purchasing.PurchaseItem {
	return &purchasing.PurchaseItem{
		ID:               m.ID,
		PurchaseID:       m.PurchaseID,
		ItemType:         m.ItemType,
		ItemID:           m.ItemID,
		VariationID:      m.VariationID,
		ItemName:         m.ItemName,
		Quantity:         m.Quantity,
		ReceivedQuantity: m.ReceivedQuantity,
		ReturnedQuantity: m.ReturnedQuantity,
		UnitPrice:        m.UnitPrice,
		Total:            m.Total,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// PurchaseItemModelFromDomain creates a new persistence model from a domain PurchaseItem.
func PurchaseItemModelFromDomain(i *purchasing.PurchaseItem) *PurchaseItemModel {
	return &PurchaseItemModel{
		ID:               i.ID,
		PurchaseID:       i.PurchaseID,
		ItemType:         i.ItemType,
		ItemID:           i.ItemID,
		VariationID:      i.VariationID,
		ItemName:         i.ItemName,
		Quantity:         i.Quantity,
		ReceivedQuantity: i.ReceivedQuantity,
		ReturnedQuantity: i.ReturnedQuantity,
		UnitPrice:        i.UnitPrice,
		Total:            i.Total,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}

// PurchaseReturnModel is the persistence model for a return header.
type PurchaseReturnModel struct {
	BaseModel
	PurchaseID   uuid.UUID                 `gorm:"type:uuid;not null;index"`
	ReturnNumber string                    `gorm:"type:varchar(60);not null;uniqueIndex"`
	Reason       string                    `gorm:"type:varchar(500)"`
	ReturnDate   time.Time                 `gorm:"not null;index"`
	TotalAmount  decimal.Decimal           `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedBy    uuid.UUID                 `gorm:"type:uuid;not null"`
	Items        []PurchaseReturnItemModel `gorm:"foreignKey:ReturnID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseReturnModel) TableName() string {
	return "purchase_returns"
}

// ToDomain converts the persistence model to a domain PurchaseReturn.
func (m *PurchaseReturnModel) ToDomain() *purchasing.PurchaseReturn {
	r := &purchasing.PurchaseReturn{
		BaseEntity:   m.BaseModel.Entity(),
		PurchaseID:   m.PurchaseID,
		ReturnNumber: m.ReturnNumber,
		Reason:       m.Reason,
		ReturnDate:   m.ReturnDate,
		TotalAmount:  m.TotalAmount,
		CreatedBy:    m.CreatedBy,
		Items:        make([]purchasing.PurchaseReturnItem, len(m.Items)),
	}
	for i, item := range m.Items {
		r.Items[i] = purchasing.PurchaseReturnItem{
			ID:             item.ID,
			ReturnID:       item.ReturnID,
			PurchaseItemID: item.PurchaseItemID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Amount:         item.Amount,
			CreatedAt:      item.CreatedAt,
		}
	}
	return r
}

// PurchaseReturnModelFromDomain creates a new persistence model from a domain PurchaseReturn.
func PurchaseReturnModelFromDomain(r *purchasing.PurchaseReturn) *PurchaseReturnModel {
	m := &PurchaseReturnModel{
		PurchaseID:   r.PurchaseID,
		ReturnNumber: r.ReturnNumber,
		Reason:       r.Reason,
		ReturnDate:   r.ReturnDate,
		TotalAmount:  r.TotalAmount,
		CreatedBy:    r.CreatedBy,
		Items:        make([]PurchaseReturnItemModel, len(r.Items)),
	}
	m.SetEntity(r.BaseEntity)
	for i, item := range r.Items {
		m.Items[i] = PurchaseReturnItemModel{
			ID:             item.ID,
			ReturnID:       r.ID,
			PurchaseItemID: item.PurchaseItemID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Amount:         item.Amount,
			CreatedAt:      item.CreatedAt,
		}
	}
	return m
}

// PurchaseReturnItemModel is the persistence model for one returned line.
type PurchaseReturnItemModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReturnID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	PurchaseItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseReturnItemModel) TableName() string {
	return "purchase_return_items"
}
