package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Tracker polls the order service for the active order and feeds status
// changes into the Engine. Stale and duplicate statuses are dropped.
type Tracker struct {
	engine   *Engine
	interval time.Duration
	lg       *zap.Logger
	onChange func(orderID string, status Status)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// OnStatusChange registers fn to be called after every applied status
// change. fn runs on the polling goroutine.
func OnStatusChange(fn func(orderID string, status Status)) TrackerOption {
	return func(t *Tracker) { t.onChange = fn }
}

// NewTracker creates a Tracker polling every interval.
func NewTracker(e *Engine, interval time.Duration, lg *zap.Logger, opts ...TrackerOption) *Tracker {
	if lg == nil {
		lg = zap.NewNop()
	}
	t := &Tracker{engine: e, interval: interval, lg: lg}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Run polls until ctx is cancelled. Poll failures are logged and retried on
// the next tick.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := t.Poll(ctx); err != nil && ctx.Err() == nil {
				t.lg.Warn("Order status poll failed", zap.Error(err))
			}
		}
	}
}

// Poll fetches the active order once and applies its status and rider
// location. It reports whether the local status changed. Nothing is fetched
// when no order is tracked or the tracked order is already terminal.
func (t *Tracker) Poll(ctx context.Context) (bool, error) {
	active, ok := t.engine.ActiveOrder()
	if !ok || active.Status.Terminal() {
		return false, nil
	}

	remote, err := t.engine.svc.FetchOrder(ctx, active.ID)
	if err != nil {
		return false, errors.Wrapf(err, "fetch order %s", active.ID)
	}
	if remote.RiderLocation != nil {
		if err := t.engine.UpdateRiderLocation(active.ID, *remote.RiderLocation); err != nil {
			t.lg.Debug("Dropping rider location", zap.String("order_id", active.ID), zap.Error(err))
		}
	}
	if remote.Status == active.Status {
		return false, nil
	}

	err = t.engine.ApplyStatusUpdate(active.ID, remote.Status)
	switch {
	case err == nil:
		t.lg.Info("Order status updated",
			zap.String("order_id", active.ID),
			zap.String("status", string(remote.Status)),
		)
		if t.onChange != nil {
			t.onChange(active.ID, remote.Status)
		}
		return true, nil
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrNotTracked):
		// Tracking ended or a newer status arrived while the request was in flight.
		t.lg.Debug("Dropping status update", zap.String("order_id", active.ID), zap.Error(err))
		return false, nil
	default:
		return false, err
	}
}
