package roundtrip

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// ErrThrottled is returned when the request budget for a host is exhausted.
// The request never reaches the network.
var ErrThrottled = errors.New("request throttled")

// ThrottleConfig configures the sliding window request budget.
type ThrottleConfig struct {
	// Max is the number of requests allowed per window and host.
	Max int
	// Window is the length of the sliding window.
	Window time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// window tracks request counts across two adjacent windows.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

type throttler struct {
	cfg     ThrottleConfig
	mu      sync.Mutex
	windows map[string]*window
}

// allow reports whether another request to host fits into the budget and
// records it if so.
func (t *throttler) allow(host string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[host]
	if !ok {
		w = &window{currStart: now.Truncate(t.cfg.Window)}
		t.windows[host] = w
	}

	if elapsed := now.Sub(w.currStart); elapsed >= t.cfg.Window {
		w.prevCount = w.currCount
		if elapsed >= 2*t.cfg.Window {
			w.prevCount = 0
		}
		w.currCount = 0
		w.currStart = now.Truncate(t.cfg.Window)
	}

	// Weight the previous window by its overlap with the sliding window.
	overlap := 1.0 - now.Sub(w.currStart).Seconds()/t.cfg.Window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	if w.prevCount*overlap+w.currCount >= float64(t.cfg.Max) {
		return false
	}
	w.currCount++
	return true
}

// Throttle limits outgoing requests per host with a sliding window. A zero
// Max disables throttling.
func Throttle(cfg ThrottleConfig) Middleware {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	t := &throttler{cfg: cfg, windows: make(map[string]*window)}
	return func(next http.RoundTripper) http.RoundTripper {
		if cfg.Max <= 0 || cfg.Window <= 0 {
			return next
		}
		return Func(func(req *http.Request) (*http.Response, error) {
			if !t.allow(req.URL.Host, t.cfg.Now()) {
				return nil, errors.Wrapf(ErrThrottled, "%s %s", req.Method, req.URL.Path)
			}
			return next.RoundTrip(req)
		})
	}
}
