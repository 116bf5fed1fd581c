package telemetry

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*PurchasingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	pm, err := NewPurchasingMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return pm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestPurchasingMetrics_Records(t *testing.T) {
	pm, reader := newTestMetrics(t)
	ctx := context.Background()

	pm.RecordReceipt(ctx, "received")
	pm.RecordReturn(ctx, "partially_returned", decimal.NewFromInt(25))
	pm.RecordPayment(ctx, "cash", decimal.NewFromInt(50))
	pm.RecordPaymentVoid(ctx, "cash")
	pm.RecordRefunds(ctx, 2, decimal.NewFromInt(30))
	pm.RecordSideEffectFailure(ctx, "receipt", "stock_movement")
	pm.RecordSideEffectFailure(ctx, "return", "journal_post")
	pm.RecordTimelineBackfill(ctx, "created", 3)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumInt(t, metrics["purchasing_receipts_total"]))
	assert.Equal(t, int64(1), sumInt(t, metrics["purchasing_returns_total"]))
	assert.Equal(t, int64(1), sumInt(t, metrics["purchasing_payments_total"]))
	assert.Equal(t, int64(1), sumInt(t, metrics["purchasing_payment_voids_total"]))
	assert.Equal(t, int64(2), sumInt(t, metrics["purchasing_refunds_total"]))
	assert.Equal(t, int64(2), sumInt(t, metrics["purchasing_side_effect_failures_total"]))
	assert.Equal(t, int64(3), sumInt(t, metrics["purchasing_timeline_backfilled_total"]))

	amount, ok := metrics["purchasing_payment_amount_total"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, amount.DataPoints, 1)
	assert.Equal(t, 50.0, amount.DataPoints[0].Value)
}

func TestPurchasingMetrics_NilIsNoop(t *testing.T) {
	var pm *PurchasingMetrics
	assert.NotPanics(t, func() {
		pm.RecordReceipt(context.Background(), "received")
		pm.RecordSideEffectFailure(context.Background(), "receipt", "stock_movement")
	})
}

func TestNewPurchasingMetrics_NilMeterUsesNoop(t *testing.T) {
	pm, err := NewPurchasingMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, pm)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(1.0).Description())
	assert.Equal(t, "AlwaysOffSampler", sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
