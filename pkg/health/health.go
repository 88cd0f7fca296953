// Package health tracks whether the backend is reachable.
//
// Each registered check runs in its own goroutine at a fixed interval. A
// check must fail failureThreshold times in a row before it is considered
// down and succeed successThreshold times before it is considered up again,
// so a single dropped request does not flip the client into offline mode.
package health

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	failureThreshold = 3
	successThreshold = 1
)

// CheckFunc returns nil when the checked dependency is reachable.
type CheckFunc func(ctx context.Context) error

// check holds the configuration and runtime state for a single check.
//
// run is only ever called from one goroutine, so the counters need no
// synchronization. healthy and lastErr are read from arbitrary goroutines.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= successThreshold {
		c.healthy.Store(true)
	}
}

// Monitor runs connectivity checks in the background.
type Monitor struct {
	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor with no checks.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// AddCheck registers a check. Checks start out healthy. Register all checks
// before calling Start.
func (m *Monitor) AddCheck(name string, timeout time.Duration, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	m.checks = append(m.checks, c)
}

// Start runs every check immediately and then every interval until ctx is
// done or Stop is called.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	checks := append([]*check(nil), m.checks...)
	m.mu.Unlock()

	for _, c := range checks {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			runCheck(ctx, c, interval)
		}()
	}
}

func runCheck(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Stop cancels the background checks and waits for them to exit. It is safe
// to call Stop more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Online reports whether every check is currently healthy.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.checks {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

// Failure describes an unhealthy check.
type Failure struct {
	Check string
	Err   error
}

// Failures lists the unhealthy checks sorted by name.
func (m *Monitor) Failures() []Failure {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Failure
	for _, c := range m.checks {
		if c.healthy.Load() {
			continue
		}
		out = append(out, Failure{Check: c.name, Err: c.lastError()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Check < out[j].Check })
	return out
}
