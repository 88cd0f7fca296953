package remote

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/promo"
	"github.com/xenking/foodcart/internal/domain/session"
)

// ErrNetwork matches every failure to reach the server or read its response,
// including cancellation and timeouts.
var ErrNetwork = errors.New("network error")

// NetworkError wraps a transport failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// endpoint classifies calls so that server rejections map onto the domain
// errors of the caller.
type endpoint int

const (
	endpointGeneric endpoint = iota
	endpointAuth
	endpointCatalog
	endpointOrderCreate
	endpointOrderRead
	endpointPromo
)

// APIError is a non-2xx response. Message is taken from the response body
// when the server provides one.
type APIError struct {
	Op      string
	Status  int
	Message string

	endpoint endpoint
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d: %s", e.Op, e.Status, e.Message)
}

// Is maps the response onto domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case session.ErrAuth:
		return e.endpoint == endpointAuth
	case session.ErrNotAuthenticated:
		return e.endpoint != endpointAuth && e.Status == http.StatusUnauthorized
	case order.ErrOrderRejected:
		return e.endpoint == endpointOrderCreate
	case catalog.ErrNotFound:
		return e.endpoint == endpointCatalog && e.Status == http.StatusNotFound
	case promo.ErrInvalidPromo:
		return e.endpoint == endpointPromo &&
			(e.Status == http.StatusNotFound || e.Status == http.StatusBadRequest)
	default:
		return false
	}
}
