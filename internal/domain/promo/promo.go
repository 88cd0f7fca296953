// Package promo validates promo codes and computes their discount for a
// cart. The cart itself stores whatever discount it is given; this package
// is the collaborator that decides the amount.
package promo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/cart"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage off the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes a fixed amount off, capped at the subtotal.
	KindFixed Kind = "fixed"
	// KindFreeLowest makes the cheapest unit in the cart free.
	KindFreeLowest Kind = "free_lowest"
)

var (
	// ErrInvalidPromo is returned when a code is unknown or the cart does not
	// meet its minimum item count.
	ErrInvalidPromo = errors.New("invalid promo code")
	// ErrPromoExpired is returned outside the promo's validity window.
	ErrPromoExpired = errors.New("promo code expired")
	// ErrPromoExhausted is returned when a promo has no uses left.
	ErrPromoExhausted = errors.New("promo code usage limit reached")
)

// Promo describes a promo code as published by the server.
type Promo struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinItems    int
	MaxDiscount decimal.Decimal // zero means uncapped
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int // zero means unlimited
	Uses        int
}

// Discount is the computed discount for a cart.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Repository looks up promos by code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Promo, error)
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Calculate computes the discount p grants for the cart snapshot s. Fees are
// never discounted.
func Calculate(p *Promo, s cart.Snapshot) (Discount, error) {
	if p.MinItems > 0 && s.ItemCount() < p.MinItems {
		return Discount{}, ErrInvalidPromo
	}

	subtotal := s.Subtotal()
	var amount decimal.Decimal
	switch p.Kind {
	case KindPercentage:
		amount = subtotal.Mul(p.Value).Div(decimal.NewFromInt(100))
	case KindFixed:
		amount = decimal.Min(p.Value, subtotal)
	case KindFreeLowest:
		amount = lowestUnitPrice(s.Lines)
	default:
		return Discount{}, errors.Errorf("unsupported promo kind: %q", p.Kind)
	}

	if p.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, p.MaxDiscount)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Code:        p.Code,
		Amount:      amount.Round(2),
		Description: p.Description,
	}, nil
}

func lowestUnitPrice(lines []cart.Line) decimal.Decimal {
	if len(lines) == 0 {
		return decimal.Zero
	}
	lowest := lines[0].UnitPrice
	for _, l := range lines[1:] {
		if l.UnitPrice.LessThan(lowest) {
			lowest = l.UnitPrice
		}
	}
	return lowest
}
