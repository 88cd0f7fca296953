package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/cart"
)

// Target is the cart a redeemed promo is applied to.
type Target interface {
	Snapshot() cart.Snapshot
	ApplyPromo(code string, discount decimal.Decimal) error
}

// Validator checks a code against the published promo and computes the
// discount for the given cart.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by repo.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate looks up code, checks its validity window and usage limit and
// returns the discount it grants for s.
func (v *Validator) Validate(ctx context.Context, code string, s cart.Snapshot) (*Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidPromo
	}

	p, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidPromo) {
			return nil, ErrInvalidPromo
		}
		return nil, errors.Wrap(err, "lookup promo")
	}

	now := v.now()
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return nil, ErrPromoExpired
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return nil, ErrPromoExpired
	}
	if p.MaxUses > 0 && p.Uses >= p.MaxUses {
		return nil, ErrPromoExhausted
	}

	d, err := Calculate(p, s)
	if err != nil {
		return nil, err
	}
	if d.Code == "" {
		d.Code = code
	}
	return &d, nil
}

// Redeem validates code against the current contents of t and applies the
// resulting discount. On any error t is left unchanged.
func (v *Validator) Redeem(ctx context.Context, t Target, code string) (*Discount, error) {
	d, err := v.Validate(ctx, code, t.Snapshot())
	if err != nil {
		return nil, err
	}
	if err := t.ApplyPromo(d.Code, d.Amount); err != nil {
		return nil, errors.Wrap(err, "apply promo")
	}
	return d, nil
}
