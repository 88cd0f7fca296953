package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvariant is wrapped by every error returned from Snapshot.Validate.
var ErrInvariant = errors.New("cart invariant violated")

// Snapshot is an immutable view of the cart at a given instant.
type Snapshot struct {
	Lines         []Line
	Restaurant    *RestaurantRef
	PromoCode     string
	PromoDiscount decimal.Decimal
	DeliveryFee   decimal.Decimal
	ServiceFee    decimal.Decimal
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Subtotal returns the sum of unit price times quantity over all lines.
func (s Snapshot) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range s.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// ItemCount returns the total number of units in the cart.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// OrderTotal returns subtotal + delivery fee + service fee - promo discount,
// floored at zero and rounded to 2 decimal places.
func (s Snapshot) OrderTotal() decimal.Decimal {
	total := s.Subtotal().
		Add(s.DeliveryFee).
		Add(s.ServiceFee).
		Sub(s.PromoDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}

// Line returns the line for itemID, if present.
func (s Snapshot) Line(itemID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ItemID == itemID {
			return l, true
		}
	}
	return Line{}, false
}

// Validate checks the structural invariants of the cart: a non-empty cart
// has exactly one restaurant, an empty cart has none, quantities are
// positive, prices and discount are non-negative and item IDs are unique.
func (s Snapshot) Validate() error {
	if len(s.Lines) == 0 {
		if s.Restaurant != nil {
			return errors.Wrap(ErrInvariant, "empty cart has restaurant")
		}
	} else if s.Restaurant == nil || s.Restaurant.ID == "" {
		return errors.Wrap(ErrInvariant, "non-empty cart has no restaurant")
	}

	seen := make(map[string]struct{}, len(s.Lines))
	for _, l := range s.Lines {
		if l.RestaurantID != s.Restaurant.ID {
			return errors.Wrapf(ErrInvariant, "line %s: belongs to restaurant %s", l.ItemID, l.RestaurantID)
		}
		if l.Quantity < 1 {
			return errors.Wrapf(ErrInvariant, "line %s: quantity %d", l.ItemID, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return errors.Wrapf(ErrInvariant, "line %s: negative price %s", l.ItemID, l.UnitPrice)
		}
		if _, dup := seen[l.ItemID]; dup {
			return errors.Wrapf(ErrInvariant, "line %s: duplicate", l.ItemID)
		}
		seen[l.ItemID] = struct{}{}
	}

	if s.PromoDiscount.IsNegative() {
		return errors.Wrap(ErrInvariant, "negative promo discount")
	}
	return nil
}
