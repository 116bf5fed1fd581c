package purchasing

import (
	"testing"
	"time"

	"github.com/erp/purchasing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePaymentStatus(t *testing.T) {
	net := decimal.NewFromInt(50)
	tests := []struct {
		paid int64
		want PaymentStatus
	}{
		{0, PaymentStatusUnpaid},
		{1, PaymentStatusPartial},
		{49, PaymentStatusPartial},
		{50, PaymentStatusPaid},
		{51, PaymentStatusOverpaid},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePaymentStatus(net, decimal.NewFromInt(tt.paid)))
		})
	}
}

func TestComputePaymentStatus_Monotonic(t *testing.T) {
	rank := map[PaymentStatus]int{
		PaymentStatusUnpaid:   0,
		PaymentStatusPartial:  1,
		PaymentStatusPaid:     2,
		PaymentStatusOverpaid: 3,
	}
	net := decimal.RequireFromString("37.5")
	prev := -1
	for cents := int64(0); cents <= 8000; cents += 25 {
		status := ComputePaymentStatus(net, decimal.New(cents, -2))
		assert.GreaterOrEqual(t, rank[status], prev, "status regressed at %d cents", cents)
		prev = rank[status]
	}
	assert.Equal(t, 3, prev)
}

func TestComputePaymentStatus_ZeroNet(t *testing.T) {
	assert.Equal(t, PaymentStatusUnpaid, ComputePaymentStatus(decimal.Zero, decimal.Zero))
	assert.Equal(t, PaymentStatusOverpaid, ComputePaymentStatus(decimal.Zero, decimal.NewFromInt(50)))
}

func TestNewPurchasePayment(t *testing.T) {
	t.Run("valid payment is active", func(t *testing.T) {
		p, err := NewPurchasePayment(uuid.New(), decimal.NewFromInt(20), PaymentMethodCash, time.Now(), "", "", uuid.New())
		require.NoError(t, err)
		assert.True(t, p.IsActive())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPurchasePayment(uuid.New(), decimal.Zero, PaymentMethodCash, time.Now(), "", "", uuid.New())
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := NewPurchasePayment(uuid.New(), decimal.NewFromInt(1), PaymentMethod("barter"), time.Now(), "", "", uuid.New())
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestPurchasePayment_Void(t *testing.T) {
	p, err := NewPurchasePayment(uuid.New(), decimal.NewFromInt(20), PaymentMethodBankTransfer, time.Now(), "TX-1", "first instalment", uuid.New())
	require.NoError(t, err)
	actor := uuid.New()
	now := time.Now()

	require.NoError(t, p.Void("duplicate entry", actor, now))
	assert.True(t, p.IsVoid())
	assert.Equal(t, "first instalment\nVOIDED: duplicate entry", p.Notes)
	assert.Equal(t, actor, *p.VoidedBy)

	err = p.Void("again", actor, now)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "first instalment\nVOIDED: duplicate entry", p.Notes)
}

func TestSumActivePayments(t *testing.T) {
	payments := []PurchasePayment{
		{Amount: decimal.NewFromInt(10), Status: PaymentRecordActive},
		{Amount: decimal.NewFromInt(25), Status: PaymentRecordVoid},
		{Amount: decimal.NewFromInt(5), Status: PaymentRecordActive},
	}
	assert.True(t, SumActivePayments(payments).Equal(decimal.NewFromInt(15)))
}

func TestAppendVoidNote(t *testing.T) {
	assert.Equal(t, "VOIDED: typo", AppendVoidNote("", "typo"))
	assert.Equal(t, "note\nVOIDED: typo", AppendVoidNote("note", "typo"))
}
