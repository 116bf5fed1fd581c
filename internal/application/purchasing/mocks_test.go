package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/erp/purchasing/internal/domain/purchasing"
	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPurchaseRepository is a mock implementation of PurchaseRepository
type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.Purchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchasing.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) Create(ctx context.Context, purchase *purchasing.Purchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockPurchaseRepository) UpdateItemReceivedQuantity(ctx context.Context, itemID uuid.UUID, received decimal.Decimal) error {
	args := m.Called(ctx, itemID, received)
	return args.Error(0)
}

func (m *MockPurchaseRepository) UpdateItemReturnedQuantity(ctx context.Context, itemID uuid.UUID, returned decimal.Decimal) error {
	args := m.Called(ctx, itemID, returned)
	return args.Error(0)
}

func (m *MockPurchaseRepository) UpdateStatus(ctx context.Context, purchaseID uuid.UUID, status purchasing.PurchaseStatus) error {
	args := m.Called(ctx, purchaseID, status)
	return args.Error(0)
}

func (m *MockPurchaseRepository) ListIDs(ctx context.Context, filter shared.Filter) ([]uuid.UUID, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockReturnRepository is a mock implementation of ReturnRepository
type MockReturnRepository struct {
	mock.Mock
}

func (m *MockReturnRepository) Create(ctx context.Context, ret *purchasing.PurchaseReturn) error {
	args := m.Called(ctx, ret)
	return args.Error(0)
}

func (m *MockReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.PurchaseReturn, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchasing.PurchaseReturn), args.Error(1)
}

func (m *MockReturnRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.PurchaseReturn, error) {
	args := m.Called(ctx, purchaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchasing.PurchaseReturn), args.Error(1)
}

// MockPaymentRepository is a mock implementation of PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *purchasing.PurchasePayment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.PurchasePayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchasing.PurchasePayment), args.Error(1)
}

func (m *MockPaymentRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.PurchasePayment, error) {
	args := m.Called(ctx, purchaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchasing.PurchasePayment), args.Error(1)
}

func (m *MockPaymentRepository) SetJournalEntry(ctx context.Context, paymentID, journalEntryID uuid.UUID) error {
	args := m.Called(ctx, paymentID, journalEntryID)
	return args.Error(0)
}

func (m *MockPaymentRepository) SetReversalJournalEntry(ctx context.Context, paymentID, journalEntryID uuid.UUID) error {
	args := m.Called(ctx, paymentID, journalEntryID)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkVoid(ctx context.Context, payment *purchasing.PurchasePayment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

// MockRefundRepository is a mock implementation of RefundRepository
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) CreateBatch(ctx context.Context, refunds []purchasing.RefundTransaction) error {
	args := m.Called(ctx, refunds)
	return args.Error(0)
}

func (m *MockRefundRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.RefundTransaction, error) {
	args := m.Called(ctx, purchaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchasing.RefundTransaction), args.Error(1)
}

func (m *MockRefundRepository) ListByReturn(ctx context.Context, returnID uuid.UUID) ([]purchasing.RefundTransaction, error) {
	args := m.Called(ctx, returnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchasing.RefundTransaction), args.Error(1)
}

// MockEventRepository is a mock implementation of EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Append(ctx context.Context, event *purchasing.PurchaseEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]purchasing.PurchaseEvent, error) {
	args := m.Called(ctx, purchaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchasing.PurchaseEvent), args.Error(1)
}

// MockStockLedger is a mock implementation of StockLedger
type MockStockLedger struct {
	mock.Mock
}

func (m *MockStockLedger) Apply(ctx context.Context, movement purchasing.StockMovement) (bool, error) {
	args := m.Called(ctx, movement)
	return args.Bool(0), args.Error(1)
}

// MockAccountingJournal is a mock implementation of AccountingJournal
type MockAccountingJournal struct {
	mock.Mock
}

func (m *MockAccountingJournal) PostReceipt(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	args := m.Called(ctx, posting)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAccountingJournal) PostReturn(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	args := m.Called(ctx, posting)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAccountingJournal) PostPayment(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	args := m.Called(ctx, posting)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAccountingJournal) PostPaymentReversal(ctx context.Context, posting purchasing.JournalPosting) (uuid.UUID, error) {
	args := m.Called(ctx, posting)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// MockInvalidator is a mock implementation of CacheInvalidator
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) InvalidatePurchase(ctx context.Context, purchaseID uuid.UUID) {
	m.Called(ctx, purchaseID)
}

// fixedClock always returns the same instant
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var (
	testActorID     = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	testSupplierID  = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	testWarehouseID = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	testPurchaseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	testNow         = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
)

// newTestPurchase builds PO-2026-0001 with Widget 10 x 5 and Gadget 4 x 2.5 (total 60)
func newTestPurchase(t *testing.T) *purchasing.Purchase {
	t.Helper()
	p, err := purchasing.NewPurchase("PO-2026-0001", testSupplierID, "Acme Supplies", testWarehouseID, testPurchaseDay, testActorID)
	require.NoError(t, err)
	_, err = p.AddItem(purchasing.ItemTypeProduct, uuid.New(), nil, "Widget", decimal.NewFromInt(10), decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = p.AddItem(purchasing.ItemTypeProduct, uuid.New(), nil, "Gadget", decimal.NewFromInt(4), decimal.NewFromFloat(2.5))
	require.NoError(t, err)
	return p
}

// setReceived sets received quantities on p as if earlier receipts had been processed
func setReceived(t *testing.T, p *purchasing.Purchase, qty ...int64) {
	t.Helper()
	for i, q := range qty {
		_, err := p.Items[i].SetReceivedQuantity(decimal.NewFromInt(q))
		require.NoError(t, err)
	}
	p.Status = p.DeriveStatus()
}

// setReturned sets returned quantities on p as if earlier returns had been processed
func setReturned(t *testing.T, p *purchasing.Purchase, qty ...int64) {
	t.Helper()
	for i, q := range qty {
		_, err := p.Items[i].SetReturnedQuantity(decimal.NewFromInt(q))
		require.NoError(t, err)
	}
	p.Status = p.DeriveStatus()
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// decEq matches a decimal argument by value
func decEq(v decimal.Decimal) any {
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(v) })
}

type testEnv struct {
	purchases *MockPurchaseRepository
	returns   *MockReturnRepository
	payments  *MockPaymentRepository
	refunds   *MockRefundRepository
	events    *MockEventRepository
	stock     *MockStockLedger
	journal   *MockAccountingJournal
	inv       *MockInvalidator
	timeline  *TimelineRecorder
	opts      []Option
}

func newTestEnv() *testEnv {
	env := &testEnv{
		purchases: new(MockPurchaseRepository),
		returns:   new(MockReturnRepository),
		payments:  new(MockPaymentRepository),
		refunds:   new(MockRefundRepository),
		events:    new(MockEventRepository),
		stock:     new(MockStockLedger),
		journal:   new(MockAccountingJournal),
		inv:       new(MockInvalidator),
	}
	env.opts = []Option{WithClock(fixedClock{now: testNow}), WithInvalidator(env.inv)}
	env.timeline = NewTimelineRecorder(env.events, env.purchases, env.payments, env.returns, env.opts...)
	return env
}

// captureEvents records appended events in order
func (env *testEnv) captureEvents(err error) *[]*purchasing.PurchaseEvent {
	var captured []*purchasing.PurchaseEvent
	env.events.On("Append", mock.Anything, mock.AnythingOfType("*purchasing.PurchaseEvent")).
		Run(func(args mock.Arguments) {
			captured = append(captured, args.Get(1).(*purchasing.PurchaseEvent))
		}).
		Return(err)
	return &captured
}

func (env *testEnv) assertExpectations(t *testing.T) {
	t.Helper()
	env.purchases.AssertExpectations(t)
	env.returns.AssertExpectations(t)
	env.payments.AssertExpectations(t)
	env.refunds.AssertExpectations(t)
	env.events.AssertExpectations(t)
	env.stock.AssertExpectations(t)
	env.journal.AssertExpectations(t)
	env.inv.AssertExpectations(t)
}
