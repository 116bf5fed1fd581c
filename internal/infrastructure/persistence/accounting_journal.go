package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/config"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Journal entry types
const (
	EntryPurchaseReceipt = "purchase_receipt"
	EntryPurchaseReturn  = "purchase_return"
	EntryPurchasePayment = "purchase_payment"
	EntryPaymentReversal = "purchase_payment_reversal"
)

// GormAccountingJournal implements AccountingJournal as balanced two-line entries
type GormAccountingJournal struct {
	db       *gorm.DB
	accounts config.JournalConfig
}

// NewGormAccountingJournal creates a new GormAccountingJournal
func NewGormAccountingJournal(db *gorm.DB, accounts config.JournalConfig) *GormAccountingJournal {
	return &GormAccountingJournal{db: db, accounts: accounts}
}

// PostReceipt debits inventory and credits accounts payable
func (j *GormAccountingJournal) PostReceipt(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	return j.post(ctx, EntryPurchaseReceipt, j.accounts.InventoryAccount, j.accounts.AccountsPayableAccount, posting)
}

// PostReturn debits accounts payable and credits inventory
func (j *GormAccountingJournal) PostReturn(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	return j.post(ctx, EntryPurchaseReturn, j.accounts.AccountsPayableAccount, j.accounts.InventoryAccount, posting)
}

// PostPayment debits accounts payable and credits cash
func (j *GormAccountingJournal) PostPayment(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	return j.post(ctx, EntryPurchasePayment, j.accounts.AccountsPayableAccount, j.accounts.CashAccount, posting)
}

// PostPaymentReversal mirrors PostPayment: debits cash and credits accounts payable
func (j *GormAccountingJournal) PostPaymentReversal(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	return j.post(ctx, EntryPaymentReversal, j.accounts.CashAccount, j.accounts.AccountsPayableAccount, posting)
}

func (j *GormAccountingJournal) post(ctx context.Context, entryType, debitAccount, creditAccount string, posting purchasing.JournalPosting) (uuid.UUID, error) {
	if !posting.Amount.IsPositive() {
		return uuid.Nil, shared.NewValidationError("INVALID_AMOUNT", "Journal amount must be positive")
	}

	entryID := uuid.New()
	entry := models.JournalEntryModel{
		ID:               entryID,
		EntryType:        entryType,
		ReferenceID:      posting.ReferenceID,
		PurchaseID:       posting.PurchaseID,
		CounterpartyName: posting.CounterpartyName,
		Description:      fmt.Sprintf("%s %s", entryType, posting.CounterpartyName),
		EntryDate:        posting.Date,
		CreatedBy:        posting.Actor,
		CreatedAt:        time.Now(),
		Lines: []models.JournalLineModel{
			{ID: uuid.New(), EntryID: entryID, AccountCode: debitAccount, Debit: posting.Amount, Credit: decimal.Zero},
			{ID: uuid.New(), EntryID: entryID, AccountCode: creditAccount, Debit: decimal.Zero, Credit: posting.Amount},
		},
	}

	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create journal entry: %w", err)
		}
		if err := tx.Create(&entry.Lines).Error; err != nil {
			return fmt.Errorf("failed to create journal lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return entryID, nil
}

var _ purchasing.AccountingJournal = (*GormAccountingJournal)(nil)
