// Package cart implements the client-side cart: the single-restaurant rule,
// line quantities, fees and promo discount.
//
// All mutations go through Cart and are applied atomically. Derived values
// (subtotal, item count, order total) are computed from an immutable
// Snapshot on every read and never cached.
package cart

import (
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/catalog"
)

var (
	// ErrInvalidQuantity is returned when a quantity cannot be applied to a line.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidDiscount is returned when a promo discount is negative.
	ErrInvalidDiscount = errors.New("discount must not be negative")
)

// RestaurantRef identifies the restaurant a cart belongs to.
type RestaurantRef struct {
	ID   string
	Name string
}

// Line is a single cart entry. UnitPrice is captured when the item is first
// added, so later catalog price changes do not alter an open cart.
type Line struct {
	ItemID       string
	RestaurantID string
	Name         string
	Quantity     int
	UnitPrice    decimal.Decimal
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Policy holds the fixed fees applied to every cart.
type Policy struct {
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
}

// DefaultPolicy returns the standard delivery and service fees.
func DefaultPolicy() Policy {
	return Policy{
		DeliveryFee: decimal.RequireFromString("2.99"),
		ServiceFee:  decimal.RequireFromString("0.99"),
	}
}

// Option configures a Cart at construction.
type Option func(*Cart)

// WithSnapshot sets the initial cart contents. Fees in the snapshot are
// ignored in favour of the policy. Lines without a restaurant, or belonging
// to another restaurant than the snapshot's, are dropped.
func WithSnapshot(s Snapshot) Option {
	return func(c *Cart) {
		c.lines = nil
		c.restaurant = nil
		c.promoCode = s.PromoCode
		c.promoDiscount = s.PromoDiscount
		if s.Restaurant == nil {
			return
		}
		for _, l := range s.Lines {
			if l.RestaurantID != "" && l.RestaurantID != s.Restaurant.ID {
				continue
			}
			l.RestaurantID = s.Restaurant.ID
			c.lines = append(c.lines, l)
		}
		if len(c.lines) > 0 {
			r := *s.Restaurant
			c.restaurant = &r
		}
	}
}

// Cart is the mutable cart owned by a single client instance.
type Cart struct {
	policy Policy

	mu            sync.RWMutex
	lines         []Line
	restaurant    *RestaurantRef
	promoCode     string
	promoDiscount decimal.Decimal
}

// New creates an empty Cart with the given fee policy.
func New(policy Policy, opts ...Option) *Cart {
	c := &Cart{policy: policy}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddItem adds one unit of item from restaurant r. When the cart holds lines
// from another restaurant they are discarded first.
func (c *Cart) AddItem(item catalog.MenuItem, r catalog.Restaurant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restaurant != nil && c.restaurant.ID != r.ID {
		c.lines = nil
	}
	c.restaurant = &RestaurantRef{ID: r.ID, Name: r.Name}

	if i := c.indexOf(item.ID); i >= 0 {
		c.lines[i].Quantity++
		return
	}
	c.lines = append(c.lines, Line{
		ItemID:       item.ID,
		RestaurantID: r.ID,
		Name:         item.Name,
		Quantity:     1,
		UnitPrice:    item.Price,
	})
}

// RemoveOneUnit decrements the quantity of itemID, deleting the line when it
// reaches zero. Missing items are ignored.
func (c *Cart) RemoveOneUnit(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(itemID)
	if i < 0 {
		return
	}
	if c.lines[i].Quantity > 1 {
		c.lines[i].Quantity--
		return
	}
	c.deleteLine(i)
}

// SetQuantity sets the quantity of itemID directly. Non-positive quantities
// delete the line. Missing items are ignored.
func (c *Cart) SetQuantity(itemID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(itemID)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		c.deleteLine(i)
		return nil
	}
	c.lines[i].Quantity = quantity
	return nil
}

// SetQuantityString parses a user-entered quantity and applies it with
// SetQuantity. Input that is not an integer is rejected with
// ErrInvalidQuantity and leaves the cart unchanged.
func (c *Cart) SetQuantityString(itemID, raw string) error {
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return errors.Wrapf(ErrInvalidQuantity, "%q", raw)
	}
	return c.SetQuantity(itemID, int(d.IntPart()))
}

// Clear removes all lines, the restaurant and any promo code.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.restaurant = nil
	c.promoCode = ""
	c.promoDiscount = decimal.Zero
}

// ApplyPromo stores a promo code and its discount. The code itself is not
// validated here.
func (c *Cart) ApplyPromo(code string, discount decimal.Decimal) error {
	if discount.IsNegative() {
		return ErrInvalidDiscount
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.promoCode = code
	c.promoDiscount = discount
	return nil
}

// RemovePromo drops the applied promo code.
func (c *Cart) RemovePromo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promoCode = ""
	c.promoDiscount = decimal.Zero
}

// Snapshot returns an immutable copy of the cart state.
func (c *Cart) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Lines:         slices.Clone(c.lines),
		PromoCode:     c.promoCode,
		PromoDiscount: c.promoDiscount,
		DeliveryFee:   c.policy.DeliveryFee,
		ServiceFee:    c.policy.ServiceFee,
	}
	if c.restaurant != nil {
		r := *c.restaurant
		s.Restaurant = &r
	}
	return s
}

func (c *Cart) indexOf(itemID string) int {
	return slices.IndexFunc(c.lines, func(l Line) bool { return l.ItemID == itemID })
}

// deleteLine removes line i and drops the restaurant when the cart empties.
// Caller must hold c.mu.
func (c *Cart) deleteLine(i int) {
	c.lines = slices.Delete(c.lines, i, i+1)
	if len(c.lines) == 0 {
		c.lines = nil
		c.restaurant = nil
	}
}
