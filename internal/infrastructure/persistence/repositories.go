package persistence

import (
	"github.com/erp/purchasing/internal/infrastructure/config"
	"gorm.io/gorm"
)

// Repositories bundles the GORM adapters of every purchasing port
type Repositories struct {
	Purchases *GormPurchaseRepository
	Returns   *GormReturnRepository
	Payments  *GormPaymentRepository
	Refunds   *GormRefundRepository
	Events    *GormEventRepository
	Stock     *GormStockLedger
	Journal   *GormAccountingJournal
}

// NewRepositories creates all adapters over one connection
func NewRepositories(db *gorm.DB, retry ReadRetry, accounts config.JournalConfig) *Repositories {
	return &Repositories{
		Purchases: NewGormPurchaseRepository(db, retry),
		Returns:   NewGormReturnRepository(db, retry),
		Payments:  NewGormPaymentRepository(db, retry),
		Refunds:   NewGormRefundRepository(db, retry),
		Events:    NewGormEventRepository(db, retry),
		Stock:     NewGormStockLedger(db),
		Journal:   NewGormAccountingJournal(db, accounts),
	}
}
