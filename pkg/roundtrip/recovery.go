package roundtrip

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recovery turns a panic further down the chain into an error, logging it
// with a stack trace.
func Recovery() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (resp *http.Response, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					zctx.From(req.Context()).Error("panic recovered",
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					resp = nil
					err = errors.Errorf("round trip panic: %v", rec)
				}
			}()
			return next.RoundTrip(req)
		})
	}
}
