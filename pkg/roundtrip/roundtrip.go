// Package roundtrip provides client-side http.RoundTripper middleware.
package roundtrip

import "net/http"

// Middleware decorates a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// Func adapts a function to http.RoundTripper.
type Func func(req *http.Request) (*http.Response, error)

func (f Func) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Wrap applies middlewares to rt. The first middleware is the outermost one,
// so it sees the request first and the response last.
func Wrap(rt http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// cloneRequest returns a shallow copy of req with its own header map.
// RoundTrippers must not modify the caller's request.
func cloneRequest(req *http.Request) *http.Request {
	return req.Clone(req.Context())
}
