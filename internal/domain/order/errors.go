package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order lifecycle operations.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrIllegalTransition    = errors.New("illegal status transition")
	// ErrNotTracked is returned for status updates that do not target the
	// active order. Callers receiving notifications may drop them silently.
	ErrNotTracked = errors.New("order is not being tracked")
	// ErrOrderRejected marks errors reported by the order service itself,
	// as opposed to transport failures.
	ErrOrderRejected = errors.New("order rejected")
)

// IllegalTransitionError describes a rejected status update.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal status transition %s -> %s", e.OrderID, e.From, e.To)
}

// Is makes IllegalTransitionError match ErrIllegalTransition.
func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
