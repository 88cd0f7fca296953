package roundtrip

import "net/http"

// TokenSource provides the current bearer token. An empty token means the
// client is anonymous.
type TokenSource interface {
	Token() string
}

// Bearer sets the Authorization header from ts when a token is available.
// Requests that already carry an Authorization header are left alone.
func Bearer(ts TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "" {
				return next.RoundTrip(req)
			}
			token := ts.Token()
			if token == "" {
				return next.RoundTrip(req)
			}
			r := cloneRequest(req)
			r.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(r)
		})
	}
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }
