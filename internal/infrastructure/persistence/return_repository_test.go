package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormReturnRepository_CreateAndList(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()
	purchaseID := uuid.New()
	itemID := uuid.New()
	base := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	second, err := purchasing.NewPurchaseReturn(purchaseID, "PO-1-R02", "wrong size", base.AddDate(0, 0, 2), uuid.New())
	require.NoError(t, err)
	require.NoError(t, second.AddItem(itemID, decimal.NewFromInt(1), decimal.NewFromInt(5)))
	first, err := purchasing.NewPurchaseReturn(purchaseID, "PO-1-R01", "damaged", base, uuid.New())
	require.NoError(t, err)
	require.NoError(t, first.AddItem(itemID, decimal.NewFromInt(3), decimal.NewFromInt(5)))

	require.NoError(t, repos.Returns.Create(ctx, second))
	require.NoError(t, repos.Returns.Create(ctx, first))

	returns, err := repos.Returns.ListByPurchase(ctx, purchaseID)
	require.NoError(t, err)
	require.Len(t, returns, 2)
	assert.Equal(t, "PO-1-R01", returns[0].ReturnNumber)
	require.Len(t, returns[0].Items, 1)
	assert.True(t, returns[0].TotalAmount.Equal(decimal.NewFromInt(15)))
	assert.True(t, purchasing.SumReturns(returns).Equal(decimal.NewFromInt(20)))

	found, err := repos.Returns.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "wrong size", found.Reason)

	_, err = repos.Returns.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormRefundRepository_CreateBatch(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()
	purchaseID := uuid.New()
	returnID := uuid.New()

	var refunds []purchasing.RefundTransaction
	for _, amount := range []int64{30, 20} {
		r, err := purchasing.NewRefundTransaction(returnID, purchaseID, uuid.New(), decimal.NewFromInt(amount), purchasing.PaymentMethodCash, uuid.New())
		require.NoError(t, err)
		refunds = append(refunds, *r)
	}
	require.NoError(t, repos.Refunds.CreateBatch(ctx, refunds))
	require.NoError(t, repos.Refunds.CreateBatch(ctx, nil))

	byReturn, err := repos.Refunds.ListByReturn(ctx, returnID)
	require.NoError(t, err)
	assert.Len(t, byReturn, 2)

	byPurchase, err := repos.Refunds.ListByPurchase(ctx, purchaseID)
	require.NoError(t, err)
	require.Len(t, byPurchase, 2)
	assert.Equal(t, purchasing.RefundStatusPending, byPurchase[0].Status)
	total := purchasing.SumRefunds(byPurchase, purchasing.RefundStatus.IsInFlight)
	assert.True(t, total.Equal(decimal.NewFromInt(50)))
}

func TestGormEventRepository_AppendAndList(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()
	purchaseID := uuid.New()
	actor := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	paymentID := uuid.New()
	payment := purchasing.NewPurchaseEvent(purchaseID, purchasing.EventPaymentMade, "Payment of 50 by cash", actor, base.Add(2*time.Hour)).
		WithPaymentAmount(decimal.NewFromInt(50)).
		WithMeta(purchasing.MetaPaymentID, paymentID.String())
	placed := purchasing.NewPurchaseEvent(purchaseID, purchasing.EventOrderPlaced, "Order placed", actor, base).
		WithStatusChange(purchasing.PurchaseStatusPending, purchasing.PurchaseStatusPending)

	require.NoError(t, repos.Events.Append(ctx, payment))
	require.NoError(t, repos.Events.Append(ctx, placed))

	events, err := repos.Events.ListByPurchase(ctx, purchaseID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, purchasing.EventOrderPlaced, events[0].EventType)
	assert.Nil(t, events[0].Metadata)
	assert.Equal(t, purchasing.EventPaymentMade, events[1].EventType)
	assert.Equal(t, paymentID.String(), events[1].MetaString(purchasing.MetaPaymentID))
	require.NotNil(t, events[1].PaymentAmount)
	assert.True(t, events[1].PaymentAmount.Equal(decimal.NewFromInt(50)))
}
