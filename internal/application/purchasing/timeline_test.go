package purchasing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryEventRepository keeps appended events in memory
type memoryEventRepository struct {
	mu     sync.Mutex
	events []purchasing.PurchaseEvent
}

func (r *memoryEventRepository) Append(_ context.Context, event *purchasing.PurchaseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *memoryEventRepository) ListByPurchase(_ context.Context, purchaseID uuid.UUID) ([]purchasing.PurchaseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]purchasing.PurchaseEvent, 0, len(r.events))
	for _, e := range r.events {
		if e.PurchaseID == purchaseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestTimelineRecorder_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults the event date to now", func(t *testing.T) {
		env := newTestEnv()
		events := env.captureEvents(nil)

		event := purchasing.NewPurchaseEvent(uuid.New(), purchasing.EventStatusChange, "manual", testActorID, time.Time{})
		require.NoError(t, env.timeline.Record(ctx, event))

		require.Len(t, *events, 1)
		assert.Equal(t, testNow, (*events)[0].EventDate)
	})

	t.Run("rejects unknown event types", func(t *testing.T) {
		env := newTestEnv()
		event := purchasing.NewPurchaseEvent(uuid.New(), "shipped", "", testActorID, testNow)

		err := env.timeline.Record(ctx, event)

		assert.ErrorIs(t, err, &shared.DomainError{Code: "INVALID_EVENT_TYPE"})
		env.events.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("rejects events without a purchase", func(t *testing.T) {
		env := newTestEnv()
		err := env.timeline.Record(ctx, purchasing.NewPurchaseEvent(uuid.Nil, purchasing.EventOrderPlaced, "", testActorID, testNow))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("append failure is a timeline error", func(t *testing.T) {
		env := newTestEnv()
		env.captureEvents(errors.New("insert failed"))

		err := env.timeline.Record(ctx, purchasing.NewPurchaseEvent(uuid.New(), purchasing.EventOrderPlaced, "", testActorID, testNow))

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrTimeline))
		assert.Contains(t, err.Error(), "insert failed")
	})
}

func TestTimelineRecorder_Backfill(t *testing.T) {
	ctx := context.Background()

	p := newTestPurchase(t)
	setReceived(t, p, 10, 4)
	setReturned(t, p, 2, 0)

	ret, err := purchasing.NewPurchaseReturn(p.ID, "PO-2026-0001-R01", "damaged", testPurchaseDay.AddDate(0, 0, 4), testActorID)
	require.NoError(t, err)
	require.NoError(t, ret.AddItem(p.Items[0].ID, dec(2), dec(5)))

	kept, err := purchasing.NewPurchasePayment(p.ID, dec(40), purchasing.PaymentMethodBankTransfer, testPurchaseDay.AddDate(0, 0, 1), "", "", testActorID)
	require.NoError(t, err)
	voided, err := purchasing.NewPurchasePayment(p.ID, dec(15), purchasing.PaymentMethodCash, testPurchaseDay.AddDate(0, 0, 2), "", "", testActorID)
	require.NoError(t, err)
	require.NoError(t, voided.Void("wrong supplier", testActorID, testPurchaseDay.AddDate(0, 0, 3)))

	repo := &memoryEventRepository{}
	placed := purchasing.NewPurchaseEvent(p.ID, purchasing.EventOrderPlaced, "placed", testActorID, p.PurchaseDate)
	require.NoError(t, repo.Append(ctx, placed))

	purchases := new(MockPurchaseRepository)
	payments := new(MockPaymentRepository)
	returns := new(MockReturnRepository)
	inv := new(MockInvalidator)
	purchases.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	payments.On("ListByPurchase", mock.Anything, p.ID).Return([]purchasing.PurchasePayment{*kept, *voided}, nil)
	returns.On("ListByPurchase", mock.Anything, p.ID).Return([]purchasing.PurchaseReturn{*ret}, nil)
	inv.On("InvalidatePurchase", mock.Anything, p.ID).Return().Once()

	recorder := NewTimelineRecorder(repo, purchases, payments, returns, WithClock(fixedClock{now: testNow}), WithInvalidator(inv))

	t.Run("first run fills in the missing events", func(t *testing.T) {
		result, err := recorder.Backfill(ctx, p.ID, testActorID)

		require.NoError(t, err)
		assert.False(t, result.HasFailures())
		assert.Equal(t, 1, result.Skipped)

		types := make([]purchasing.EventType, 0, len(result.Created))
		for _, e := range result.Created {
			types = append(types, e.EventType)
			assert.Equal(t, true, e.Metadata[purchasing.MetaBackfilled])
		}
		assert.Equal(t, []purchasing.EventType{
			purchasing.EventFullReceipt,
			purchasing.EventPartialReturn,
			purchasing.EventPaymentMade,
			purchasing.EventPaymentMade,
			purchasing.EventPaymentVoided,
		}, types)

		ret := result.Created[1]
		assert.Equal(t, testPurchaseDay.AddDate(0, 0, 4), ret.EventDate)
		require.NotNil(t, ret.ReturnAmount)
		assert.True(t, ret.ReturnAmount.Equal(dec(10)))

		void := result.Created[4]
		assert.Equal(t, voided.ID.String(), void.MetaString(purchasing.MetaPaymentID))
		assert.Equal(t, testPurchaseDay.AddDate(0, 0, 3), void.EventDate)

		stored, err := repo.ListByPurchase(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 6)
	})

	t.Run("second run inserts nothing", func(t *testing.T) {
		result, err := recorder.Backfill(ctx, p.ID, testActorID)

		require.NoError(t, err)
		assert.Empty(t, result.Created)
		assert.Equal(t, 6, result.Skipped)

		stored, err := repo.ListByPurchase(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 6)
	})

	inv.AssertExpectations(t)
}

func TestTimelineRecorder_BackfillKeepsLiveReceiptEvents(t *testing.T) {
	ctx := context.Background()
	p := newTestPurchase(t)
	setReceived(t, p, 4, 0)

	repo := &memoryEventRepository{}
	for _, e := range []*purchasing.PurchaseEvent{
		purchasing.NewPurchaseEvent(p.ID, purchasing.EventOrderPlaced, "placed", testActorID, p.PurchaseDate),
		purchasing.NewPurchaseEvent(p.ID, purchasing.EventPartialReceipt, "first delivery", testActorID, testPurchaseDay.AddDate(0, 0, 1)),
	} {
		require.NoError(t, repo.Append(ctx, e))
	}

	purchases := new(MockPurchaseRepository)
	payments := new(MockPaymentRepository)
	returns := new(MockReturnRepository)
	purchases.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	payments.On("ListByPurchase", mock.Anything, p.ID).Return(nil, nil)
	returns.On("ListByPurchase", mock.Anything, p.ID).Return(nil, nil)

	recorder := NewTimelineRecorder(repo, purchases, payments, returns)
	result, err := recorder.Backfill(ctx, p.ID, testActorID)

	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, 2, result.Skipped)
	_, invalidated := result.Outcome(purchasing.StepInvalidate)
	assert.False(t, invalidated)
}

func TestTimelineRecorder_BackfillUnknownPurchase(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()
	env.purchases.On("FindByID", mock.Anything, id).Return(nil, shared.NewNotFoundError("PURCHASE_NOT_FOUND", "Purchase not found"))

	_, err := env.timeline.Backfill(context.Background(), id, testActorID)

	assert.True(t, errors.Is(err, shared.ErrNotFound))
	env.events.AssertNotCalled(t, "ListByPurchase", mock.Anything, mock.Anything)
}
