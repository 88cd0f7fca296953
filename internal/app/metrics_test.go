package app

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xenking/foodcart/internal/domain/order"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, m.Name)
			points := map[string]int64{}
			for _, dp := range sum.DataPoints {
				var key string
				if kv, ok := dp.Attributes.Value(attribute.Key("result")); ok {
					key = kv.AsString()
				}
				if kv, ok := dp.Attributes.Value(attribute.Key("status")); ok {
					key = kv.AsString()
				}
				if kv, ok := dp.Attributes.Value(attribute.Key("op")); ok {
					key = kv.AsString()
				}
				points[key] = dp.Value
			}
			out[m.Name] = points
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	ctx := context.Background()
	m.Submission(ctx, nil)
	m.Submission(ctx, errors.Wrap(order.ErrOrderRejected, "create order"))
	m.Submission(ctx, order.ErrSubmissionInProgress)
	m.Submission(ctx, errors.New("timeout"))
	m.StatusUpdate(ctx, order.StatusPreparing)
	m.CartMutation(ctx, "add")
	m.CartMutation(ctx, "add")

	got := collectSums(t, reader)
	assert.Equal(t, map[string]int64{"ok": 1, "rejected": 1, "in_progress": 1, "failed": 1},
		got["foodcart.order.submissions"])
	assert.Equal(t, map[string]int64{"preparing": 1}, got["foodcart.order.status_updates"])
	assert.Equal(t, map[string]int64{"add": 2}, got["foodcart.cart.mutations"])
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submission(context.Background(), nil)
		m.StatusUpdate(context.Background(), order.StatusDelivered)
		m.CartMutation(context.Background(), "clear")
	})
}
