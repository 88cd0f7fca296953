package roundtrip

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogRequests logs every request at debug level and transport failures at
// warn level, using the logger stored in the request context.
func LogRequests() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			lg := zctx.From(req.Context()).With(
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("request_id", req.Header.Get(HeaderRequestID)),
				zap.Duration("duration", time.Since(start)),
			)
			if err != nil {
				lg.Warn("Request failed", zap.Error(err))
				return nil, err
			}
			lg.Debug("Request done", zap.Int("status", resp.StatusCode))
			return resp, nil
		})
	}
}
