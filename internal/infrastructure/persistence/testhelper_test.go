package persistence

import (
	"testing"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/infrastructure/config"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testAccounts = config.JournalConfig{
	InventoryAccount:       "1400",
	AccountsPayableAccount: "2100",
	CashAccount:            "1000",
}

// newTestDB opens an in-memory SQLite database with the purchasing schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, or each would see its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestRepositories(t *testing.T) (*Repositories, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	retry := ReadRetry{attempts: 2, initialInterval: time.Millisecond, maxInterval: time.Millisecond}
	return NewRepositories(db, retry, testAccounts), db
}

// newTestPurchase builds a two-line order: 10 x 5.00 and 4 x 2.50
func newTestPurchase(t *testing.T) *purchasing.Purchase {
	t.Helper()
	p, err := purchasing.NewPurchase("PO-2026-0001", uuid.New(), "Acme Supplies", uuid.New(),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), uuid.New())
	require.NoError(t, err)
	_, err = p.AddItem(purchasing.ItemTypeProduct, uuid.New(), nil, "Widget", decimal.NewFromInt(10), decimal.NewFromInt(5))
	require.NoError(t, err)
	variation := uuid.New()
	_, err = p.AddItem(purchasing.ItemTypeProduct, uuid.New(), &variation, "Gadget", decimal.NewFromInt(4), decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	return p
}
