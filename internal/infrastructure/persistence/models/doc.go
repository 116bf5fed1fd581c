// Package models holds the GORM persistence models of the purchasing engine
// and their mapping to and from domain entities.
package models

// All returns every model, in dependency order, for AutoMigrate in tests.
func All() []any {
	return []any{
		&PurchaseModel{},
		&PurchaseItemModel{},
		&PurchasePaymentModel{},
		&PurchaseReturnModel{},
		&PurchaseReturnItemModel{},
		&RefundTransactionModel{},
		&PurchaseEventModel{},
		&StockLevelModel{},
		&StockMovementModel{},
		&JournalEntryModel{},
		&JournalLineModel{},
	}
}
