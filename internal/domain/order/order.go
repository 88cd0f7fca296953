package order

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/cart"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// rank orders the forward progression. Cancelled sits outside of it.
var rank = map[Status]int{
	StatusPending:        1,
	StatusConfirmed:      2,
	StatusPreparing:      3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok || s == StatusCancelled
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Active reports whether an order in status s is still being fulfilled.
func (s Status) Active() bool {
	return s.Valid() && !s.Terminal()
}

// CanTransition reports whether moving from s to next is legal: forward
// progression, or cancellation from any non-terminal status.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return rank[next] > rank[s]
}

// Label returns a human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusConfirmed:
		return "Confirmed"
	case StatusPreparing:
		return "Preparing"
	case StatusOutForDelivery:
		return "On the way"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// PaymentMethod selects how the order is paid. The payment itself is handled
// by an external provider.
type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentApple  PaymentMethod = "apple"
	PaymentGoogle PaymentMethod = "google"
	PaymentCash   PaymentMethod = "cash"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentApple, PaymentGoogle, PaymentCash:
		return true
	default:
		return false
	}
}

// Address is a delivery destination.
type Address struct {
	ID       string
	Label    string
	Street   string
	City     string
	Postcode string
}

// Coordinates is a geographic position.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Item is a line of a submitted order. Quantity and price are frozen at
// submission time.
type Item struct {
	MenuItemID string
	Name       string
	Quantity   int
	Price      decimal.Decimal
}

// Order is a submitted order as acknowledged by the server.
type Order struct {
	ID              string
	Restaurant      cart.RestaurantRef
	Items           []Item
	DeliveryAddress Address
	PaymentMethod   PaymentMethod
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	ServiceFee      decimal.Decimal
	Discount        decimal.Decimal
	PromoCode       string
	Total           decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	// RiderLocation is the courier position reported by the server, if any.
	RiderLocation *Coordinates
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	if o.RiderLocation != nil {
		loc := *o.RiderLocation
		cp.RiderLocation = &loc
	}
	return &cp
}

// ErrInvalidOrder is wrapped by every error returned from Order.Validate.
var ErrInvalidOrder = errors.New("invalid order")

// Validate checks that the status is enumerated and that the order has at
// least one item, each with a positive quantity and non-negative price.
func (o *Order) Validate() error {
	if !o.Status.Valid() {
		return errors.Wrapf(ErrInvalidOrder, "unknown status %q", o.Status)
	}
	if len(o.Items) == 0 {
		return errors.Wrap(ErrInvalidOrder, "no items")
	}
	for _, it := range o.Items {
		if it.Quantity < 1 {
			return errors.Wrapf(ErrInvalidOrder, "item %s: quantity %d", it.MenuItemID, it.Quantity)
		}
		if it.Price.IsNegative() {
			return errors.Wrapf(ErrInvalidOrder, "item %s: negative price %s", it.MenuItemID, it.Price)
		}
	}
	return nil
}

// Draft is the immutable order snapshot sent to the server for creation.
type Draft struct {
	Restaurant      cart.RestaurantRef
	Items           []Item
	DeliveryAddress Address
	PaymentMethod   PaymentMethod
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	ServiceFee      decimal.Decimal
	Discount        decimal.Decimal
	PromoCode       string
	Total           decimal.Decimal
	Status          Status
}

// NewDraft builds a pending Draft from a cart snapshot.
func NewDraft(s cart.Snapshot, addr Address, pm PaymentMethod) Draft {
	items := make([]Item, len(s.Lines))
	for i, l := range s.Lines {
		items[i] = Item{
			MenuItemID: l.ItemID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			Price:      l.UnitPrice,
		}
	}

	var ref cart.RestaurantRef
	if s.Restaurant != nil {
		ref = *s.Restaurant
	}

	return Draft{
		Restaurant:      ref,
		Items:           items,
		DeliveryAddress: addr,
		PaymentMethod:   pm,
		Subtotal:        s.Subtotal().Round(2),
		DeliveryFee:     s.DeliveryFee,
		ServiceFee:      s.ServiceFee,
		Discount:        s.PromoDiscount.Round(2),
		PromoCode:       s.PromoCode,
		Total:           s.OrderTotal(),
		Status:          StatusPending,
	}
}

// Service is the remote order collaborator.
type Service interface {
	CreateOrder(ctx context.Context, d Draft) (*Order, error)
	FetchOrderHistory(ctx context.Context) ([]Order, error)
	FetchOrder(ctx context.Context, id string) (*Order, error)
}
