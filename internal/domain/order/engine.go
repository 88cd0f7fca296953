package order

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
)

// CartSource is the cart an order is built from. The engine clears it after
// a successful submission.
type CartSource interface {
	Snapshot() cart.Snapshot
	Clear()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(lg *zap.Logger) Option {
	return func(e *Engine) { e.lg = lg }
}

// WithClock overrides the time source used to stamp orders the server
// returned without a creation time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithInitialState seeds the order history (newest first) and the active
// order. An activeID that is not in history is ignored.
func WithInitialState(history []Order, activeID string) Option {
	return func(e *Engine) {
		for i := range history {
			o := history[i].Clone()
			e.orders[o.ID] = o
			e.history = append(e.history, o.ID)
		}
		if _, ok := e.orders[activeID]; ok {
			e.active = activeID
		}
	}
}

// Engine owns submitted orders and the active order being tracked.
//
// State changes are applied under mu. Calls to the order Service are made
// without holding mu, so reads and status updates are never blocked by an
// outstanding request. Only one submission may be outstanding at a time.
type Engine struct {
	svc Service
	lg  *zap.Logger
	now func() time.Time

	mu         sync.RWMutex
	orders     map[string]*Order
	history    []string // newest first
	active     string
	rider      *Coordinates
	submitting bool
	lastErr    error
}

// NewEngine creates an Engine that submits and fetches orders through svc.
func NewEngine(svc Service, opts ...Option) *Engine {
	e := &Engine{
		svc:    svc,
		lg:     zap.NewNop(),
		now:    time.Now,
		orders: make(map[string]*Order),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Submit converts the cart into an order and sends it to the order service.
//
// The cart must be non-empty. While a submission is outstanding further
// calls fail with ErrSubmissionInProgress. On success the new order becomes
// the active order and the cart is cleared. On failure, including context
// cancellation, nothing changes and the cart keeps its contents.
func (e *Engine) Submit(ctx context.Context, c CartSource, addr Address, pm PaymentMethod) (*Order, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	snap := c.Snapshot()
	if snap.Empty() || snap.Restaurant == nil {
		e.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if err := snap.Validate(); err != nil {
		e.mu.Unlock()
		return nil, errors.Wrap(err, "validate cart")
	}
	if !pm.Valid() {
		e.mu.Unlock()
		return nil, errors.Wrapf(ErrInvalidPaymentMethod, "%q", pm)
	}
	e.submitting = true
	e.mu.Unlock()

	resolved := false
	defer func() {
		if !resolved {
			e.mu.Lock()
			e.submitting = false
			e.mu.Unlock()
		}
	}()

	draft := NewDraft(snap, addr, pm)
	lg := e.lg.With(zap.String("restaurant_id", draft.Restaurant.ID))
	lg.Debug("Submitting order",
		zap.Int("items", len(draft.Items)),
		zap.Stringer("total", draft.Total),
	)

	o, err := e.svc.CreateOrder(ctx, draft)
	if err == nil {
		err = e.acknowledgeCreated(o, draft)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	resolved = true
	e.submitting = false

	if err != nil {
		e.lastErr = err
		lg.Warn("Order submission failed", zap.Error(err))
		return nil, errors.Wrap(err, "create order")
	}

	e.store(o)
	e.active = o.ID
	e.rider = nil
	e.lastErr = nil
	// Clear under mu so a new submission cannot observe the old cart.
	c.Clear()

	lg.Info("Order submitted", zap.String("order_id", o.ID))
	return o.Clone(), nil
}

// acknowledgeCreated accepts the reply to a creation request. Once the
// server has assigned an ID the order exists, so fields the reply leaves out
// are taken from the draft and only a missing ID is a failure.
func (e *Engine) acknowledgeCreated(o *Order, d Draft) error {
	if o == nil || o.ID == "" {
		return errors.Wrap(ErrOrderRejected, "missing order id")
	}
	if o.Restaurant.ID == "" {
		o.Restaurant = d.Restaurant
	}
	if o.DeliveryAddress == (Address{}) {
		o.DeliveryAddress = d.DeliveryAddress
	}
	if !o.PaymentMethod.Valid() {
		o.PaymentMethod = d.PaymentMethod
	}
	if o.Total.IsZero() {
		o.Subtotal = d.Subtotal
		o.DeliveryFee = d.DeliveryFee
		o.ServiceFee = d.ServiceFee
		o.Discount = d.Discount
		o.PromoCode = d.PromoCode
		o.Total = d.Total
	}
	if !o.Status.Valid() {
		if o.Status != "" {
			e.lg.Warn("Unknown status in order reply",
				zap.String("order_id", o.ID),
				zap.String("status", string(o.Status)),
			)
		}
		o.Status = StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = e.now()
	}
	if err := o.Validate(); err != nil {
		// The draft was built from a validated cart.
		e.lg.Warn("Replacing invalid items in order reply", zap.String("order_id", o.ID), zap.Error(err))
		o.Items = slices.Clone(d.Items)
	}
	return nil
}

// acknowledge normalizes and checks an order returned by the server.
func (e *Engine) acknowledge(o *Order) error {
	if o == nil || o.ID == "" {
		return errors.Wrap(ErrOrderRejected, "missing order id")
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = e.now()
	}
	return o.Validate()
}

// ApplyStatusUpdate moves the active order to status. Updates for any other
// order fail with ErrNotTracked; transitions the state machine does not
// allow fail with *IllegalTransitionError. Rejected updates change nothing.
func (e *Engine) ApplyStatusUpdate(orderID string, status Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == "" || e.active != orderID {
		return ErrNotTracked
	}
	o := e.orders[orderID]
	if !o.Status.CanTransition(status) {
		return &IllegalTransitionError{OrderID: orderID, From: o.Status, To: status}
	}

	e.lg.Debug("Order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(status)),
	)
	o.Status = status
	return nil
}

// EndTracking clears the active order. History is kept.
func (e *Engine) EndTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = ""
	e.rider = nil
}

// Track fetches an order and makes it the active order.
func (e *Engine) Track(ctx context.Context, id string) (*Order, error) {
	o, err := e.svc.FetchOrder(ctx, id)
	if err == nil {
		err = e.acknowledge(o)
	}
	if err != nil {
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
		return nil, errors.Wrapf(err, "fetch order %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	merged := e.merge(o)
	if e.active != merged.ID {
		e.rider = nil
	}
	if o.RiderLocation != nil {
		loc := *o.RiderLocation
		e.rider = &loc
	}
	e.active = merged.ID
	return merged.Clone(), nil
}

// RefreshHistory reloads the order history from the server. Known orders
// only move forward through the state machine.
func (e *Engine) RefreshHistory(ctx context.Context) error {
	list, err := e.svc.FetchOrderHistory(ctx)
	if err != nil {
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
		return errors.Wrap(err, "fetch order history")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(list)+len(e.history))
	seen := make(map[string]struct{}, len(list))
	for i := range list {
		o := list[i].Clone()
		if err := e.acknowledge(o); err != nil {
			e.lg.Debug("Skipping malformed order", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		e.merge(o)
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		ids = append(ids, o.ID)
	}
	// Orders placed locally but not yet listed by the server stay on top.
	var local []string
	for _, id := range e.history {
		if _, ok := seen[id]; !ok {
			local = append(local, id)
		}
	}
	e.history = append(local, ids...)
	return nil
}

// UpdateRiderLocation records the courier position for the active order.
func (e *Engine) UpdateRiderLocation(orderID string, c Coordinates) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == "" || e.active != orderID {
		return ErrNotTracked
	}
	e.rider = &c
	return nil
}

// RiderLocation returns the last known courier position for the active order.
func (e *Engine) RiderLocation() (Coordinates, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.rider == nil {
		return Coordinates{}, false
	}
	return *e.rider, true
}

// ActiveOrder returns a copy of the order being tracked.
func (e *Engine) ActiveOrder() (*Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.active == "" {
		return nil, false
	}
	return e.orders[e.active].Clone(), true
}

// Order returns a copy of a known order.
func (e *Engine) Order(id string) (*Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// History returns copies of all known orders, newest first.
func (e *Engine) History() []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Order, 0, len(e.history))
	for _, id := range e.history {
		out = append(out, *e.orders[id].Clone())
	}
	return out
}

// Submitting reports whether a submission is outstanding.
func (e *Engine) Submitting() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.submitting
}

// LastError returns the error of the last failed remote operation, cleared
// by the next successful submission.
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// store records a new order at the top of the history. Caller must hold mu.
func (e *Engine) store(o *Order) {
	if _, ok := e.orders[o.ID]; !ok {
		e.history = slices.Insert(e.history, 0, o.ID)
	}
	e.orders[o.ID] = o.Clone()
}

// merge folds a server copy of an order into local state and returns the
// stored order. Statuses never move backwards. Caller must hold mu.
func (e *Engine) merge(o *Order) *Order {
	cur, ok := e.orders[o.ID]
	if !ok {
		e.store(o)
		return e.orders[o.ID]
	}
	status := cur.Status
	if cur.Status.CanTransition(o.Status) {
		status = o.Status
	}
	next := o.Clone()
	next.Status = status
	e.orders[o.ID] = next
	return next
}
