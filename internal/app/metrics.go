package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/foodcart/internal/domain/order"
)

const meterName = "github.com/xenking/foodcart"

// Metrics counts client-side domain events.
type Metrics struct {
	submissions   metric.Int64Counter
	statusUpdates metric.Int64Counter
	cartMutations metric.Int64Counter
}

// NewMetrics registers the counters with mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.submissions, err = meter.Int64Counter("foodcart.order.submissions",
		metric.WithDescription("Order submissions by result"),
	); err != nil {
		return nil, errors.Wrap(err, "submissions counter")
	}
	if m.statusUpdates, err = meter.Int64Counter("foodcart.order.status_updates",
		metric.WithDescription("Applied order status changes"),
	); err != nil {
		return nil, errors.Wrap(err, "status updates counter")
	}
	if m.cartMutations, err = meter.Int64Counter("foodcart.cart.mutations",
		metric.WithDescription("Cart mutations by operation"),
	); err != nil {
		return nil, errors.Wrap(err, "cart mutations counter")
	}
	return &m, nil
}

// Submission counts an order submission attempt. A nil Metrics is a no-op,
// as are the other recorders.
func (m *Metrics) Submission(ctx context.Context, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, order.ErrSubmissionInProgress):
		result = "in_progress"
	case errors.Is(err, order.ErrOrderRejected):
		result = "rejected"
	default:
		result = "failed"
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) StatusUpdate(ctx context.Context, s order.Status) {
	if m == nil {
		return
	}
	m.statusUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(s))))
}

func (m *Metrics) CartMutation(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
