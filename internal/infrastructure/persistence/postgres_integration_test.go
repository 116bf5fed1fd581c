//go:build integration

package persistence

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	purchasingapp "github.com/erp/purchasing/internal/application/purchasing"
	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/erp/purchasing/internal/infrastructure/cache"
	"github.com/erp/purchasing/internal/infrastructure/config"
	"github.com/erp/purchasing/internal/infrastructure/migration"
	"github.com/erp/purchasing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newPostgresDB starts a PostgreSQL container and applies the migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("purchasing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, migrationsPath(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.NotZero(t, version)

	return db
}

// migrationsPath walks up from this file to the repository's migrations directory
func migrationsPath(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir := filepath.Dir(filename)
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(dir, "migrations")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatal("migrations directory not found")
	return ""
}

func TestPostgres_PurchaseLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	db := newPostgresDB(t)
	repos := NewRepositories(db, DefaultReadRetry(), testAccounts)

	caches, err := purchasingapp.NewQueryCaches(config.CacheConfig{
		Backend: cache.BackendMemory,
		TTL:     time.Minute,
	}, config.RedisConfig{}, cache.SystemClock{}, zap.NewNop())
	require.NoError(t, err)

	services := purchasingapp.NewServices(purchasingapp.Ports{
		Purchases: repos.Purchases,
		Returns:   repos.Returns,
		Payments:  repos.Payments,
		Refunds:   repos.Refunds,
		Events:    repos.Events,
		Stock:     repos.Stock,
		Journal:   repos.Journal,
	}, caches, 30)
	t.Cleanup(func() { _ = services.Queries.Close() })

	actor := uuid.New()
	purchaseDate := time.Now().UTC().Truncate(24 * time.Hour)
	widgetID, gadgetID := uuid.New(), uuid.New()

	placed, err := services.Placement.PlaceOrder(ctx, purchasingapp.PlaceOrderRequest{
		OrderNumber:  "PO-IT-0001",
		SupplierID:   uuid.New(),
		SupplierName: "Acme Supplies",
		WarehouseID:  uuid.New(),
		PurchaseDate: purchaseDate,
		Actor:        actor,
		Items: []purchasingapp.PlaceOrderItem{
			{ItemType: purchasing.ItemTypeProduct, ItemID: widgetID, ItemName: "Widget", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(5)},
			{ItemType: purchasing.ItemTypeProduct, ItemID: gadgetID, ItemName: "Gadget", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.RequireFromString("2.5")},
		},
	})
	require.NoError(t, err)
	require.False(t, placed.HasFailures())
	p := placed.Purchase

	t.Run("receipt moves stock and posts the journal", func(t *testing.T) {
		result, err := services.Receipts.Receive(ctx, purchasingapp.ReceiveRequest{
			PurchaseID: p.ID,
			Actor:      actor,
			Items: []purchasingapp.ReceiveLine{
				{PurchaseItemID: p.Items[0].ID, ReceivedQuantity: decimal.NewFromInt(10)},
				{PurchaseItemID: p.Items[1].ID, ReceivedQuantity: decimal.NewFromInt(4)},
			},
		})
		require.NoError(t, err)
		assert.False(t, result.HasFailures())
		assert.Equal(t, purchasing.PurchaseStatusReceived, result.Status)
		require.NotNil(t, result.JournalEntryID)

		var level models.StockLevelModel
		require.NoError(t, db.Where("item_id = ?", widgetID).First(&level).Error)
		assert.True(t, level.Quantity.Equal(decimal.NewFromInt(10)))

		stored, err := repos.Purchases.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, purchasing.PurchaseStatusReceived, stored.Status)
	})

	t.Run("overpayment then return yields a refund", func(t *testing.T) {
		paid, err := services.Payments.CreatePayment(ctx, purchasingapp.CreatePaymentRequest{
			PurchaseID:  p.ID,
			Amount:      decimal.NewFromInt(60),
			Method:      purchasing.PaymentMethodBankTransfer,
			PaymentDate: purchaseDate,
			Actor:       actor,
		})
		require.NoError(t, err)
		assert.False(t, paid.HasFailures())
		assert.Equal(t, purchasing.PaymentStatusPaid, paid.Summary.Status)

		returned, err := services.Returns.Return(ctx, purchasingapp.ReturnRequest{
			PurchaseID: p.ID,
			Reason:     "damaged",
			ReturnDate: purchaseDate.AddDate(0, 0, 1),
			Actor:      actor,
			Items:      []purchasingapp.ReturnLine{{PurchaseItemID: p.Items[0].ID, ReturnedQuantity: decimal.NewFromInt(2)}},
		})
		require.NoError(t, err)
		assert.False(t, returned.HasFailures())
		assert.Equal(t, purchasing.PurchaseStatusPartiallyReturned, returned.Status)
		assert.Equal(t, "PO-IT-0001-R01", returned.Return.ReturnNumber)

		refund, err := services.Refunds.ProcessAutomaticRefund(ctx, returned.Return.ID, actor)
		require.NoError(t, err)
		assert.True(t, refund.Allocated.Equal(decimal.NewFromInt(10)))

		again, err := services.Refunds.ProcessAutomaticRefund(ctx, returned.Return.ID, actor)
		require.NoError(t, err)
		assert.Empty(t, again.Refunds)

		due, err := services.Refunds.RefundDue(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, due.PendingRefundAmount.Equal(decimal.NewFromInt(10)))
		assert.True(t, due.RefundDue.IsZero())
	})

	t.Run("journal entries balance", func(t *testing.T) {
		var rows []struct {
			EntryID uuid.UUID
			Debit   decimal.Decimal
			Credit  decimal.Decimal
		}
		require.NoError(t, db.Raw(`
			SELECT l.entry_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
			FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
			WHERE e.purchase_id = ?
			GROUP BY l.entry_id`, p.ID).Scan(&rows).Error)
		require.Len(t, rows, 3) // receipt, payment, return
		for _, r := range rows {
			assert.True(t, r.Debit.Equal(r.Credit), "entry %s unbalanced", r.EntryID)
		}
	})

	t.Run("timeline is complete and backfill adds nothing", func(t *testing.T) {
		events, err := services.Queries.Timeline(ctx, p.ID, cache.ForceRefresh())
		require.NoError(t, err)
		types := make([]purchasing.EventType, 0, len(events))
		for _, e := range events {
			types = append(types, e.EventType)
		}
		assert.ElementsMatch(t, []purchasing.EventType{
			purchasing.EventOrderPlaced,
			purchasing.EventFullReceipt,
			purchasing.EventPaymentMade,
			purchasing.EventPartialReturn,
		}, types)

		result, err := services.Timeline.Backfill(ctx, p.ID, actor)
		require.NoError(t, err)
		assert.Empty(t, result.Created)
	})

	t.Run("unknown purchase is not found", func(t *testing.T) {
		_, err := repos.Purchases.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
