package roundtrip

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID is the header carrying the request identifier.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID stores a request ID in ctx. RequestID uses it instead of
// generating a new one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID ensures every outgoing request carries an X-Request-ID header.
// An existing valid header wins, then an ID from the request context, then a
// fresh UUID.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (*http.Response, error) {
			id := req.Header.Get(HeaderRequestID)
			if isValidRequestID(id) {
				return next.RoundTrip(req)
			}
			id = RequestIDFromContext(req.Context())
			if !isValidRequestID(id) {
				id = uuid.NewString()
			}
			r := cloneRequest(req)
			r.Header.Set(HeaderRequestID, id)
			return next.RoundTrip(r)
		})
	}
}

// isValidRequestID reports whether id is 1..128 bytes of printable ASCII.
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
