package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLevelModel is the running on-hand counter for one (item, warehouse, variation).
// VariationKey is uuid.Nil when the item has no variation, so the unique key never contains NULL.
type StockLevelModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	ItemID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_key,priority:1"`
	WarehouseID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_key,priority:2"`
	VariationKey uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_key,priority:3"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// StockMovementModel records one signed stock change.
type StockMovementModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	ItemID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	WarehouseID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariationID   *uuid.UUID      `gorm:"type:uuid"`
	QuantityDelta decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	MovementType  string          `gorm:"type:varchar(30);not null"`
	ReferenceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Reason        string          `gorm:"type:varchar(100);not null"`
	Notes         string          `gorm:"type:text"`
	CreatedBy     uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// JournalEntryModel is a balanced double-entry journal entry header.
type JournalEntryModel struct {
	ID               uuid.UUID          `gorm:"type:uuid;primary_key"`
	EntryType        string             `gorm:"type:varchar(30);not null;index"`
	ReferenceID      uuid.UUID          `gorm:"type:uuid;not null;index"`
	PurchaseID       uuid.UUID          `gorm:"type:uuid;not null;index"`
	CounterpartyName string             `gorm:"type:varchar(200)"`
	Description      string             `gorm:"type:text"`
	EntryDate        time.Time          `gorm:"not null"`
	CreatedBy        uuid.UUID          `gorm:"type:uuid;not null"`
	CreatedAt        time.Time          `gorm:"not null"`
	Lines            []JournalLineModel `gorm:"foreignKey:EntryID;references:ID"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// JournalLineModel is one debit or credit line of a journal entry.
type JournalLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntryID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountCode string          `gorm:"type:varchar(20);not null;index"`
	Debit       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Credit      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "journal_lines"
}
