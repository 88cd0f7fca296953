package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

func TestMonitor_StartsOnline(t *testing.T) {
	m := NewMonitor()
	m.AddCheck("api", time.Second, failingCheck("refused"))
	assert.True(t, m.Online())
	assert.Empty(t, m.Failures())
}

func TestMonitor_FailureThreshold(t *testing.T) {
	m := NewMonitor()
	m.AddCheck("api", time.Second, failingCheck("connection refused"))
	ctx := context.Background()

	m.checks[0].run(ctx)
	m.checks[0].run(ctx)
	assert.True(t, m.Online(), "two failures stay below the threshold")

	m.checks[0].run(ctx)
	assert.False(t, m.Online())

	failures := m.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "api", failures[0].Check)
	assert.EqualError(t, failures[0].Err, "connection refused")
}

func TestMonitor_Recovers(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	m := NewMonitor()
	m.AddCheck("api", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	})
	ctx := context.Background()
	for range 3 {
		m.checks[0].run(ctx)
	}
	require.False(t, m.Online())

	fail.Store(false)
	m.checks[0].run(ctx)
	assert.True(t, m.Online())
}

func TestMonitor_SuccessResetsFailureCount(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor()
	m.AddCheck("flaky", time.Second, func(context.Context) error {
		if calls.Add(1)%3 == 0 {
			return nil
		}
		return errors.New("blip")
	})
	ctx := context.Background()
	for range 9 {
		m.checks[0].run(ctx)
	}
	assert.True(t, m.Online())
}

func TestMonitor_CheckTimeout(t *testing.T) {
	m := NewMonitor()
	m.AddCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	for range 3 {
		m.checks[0].run(context.Background())
	}
	require.False(t, m.Online())
	assert.ErrorIs(t, m.Failures()[0].Err, context.DeadlineExceeded)
}

func TestMonitor_FailuresSorted(t *testing.T) {
	m := NewMonitor()
	m.AddCheck("b", time.Second, failingCheck("b down"))
	m.AddCheck("a", time.Second, failingCheck("a down"))
	m.AddCheck("ok", time.Second, passingCheck())
	for _, c := range m.checks {
		for range 3 {
			c.run(context.Background())
		}
	}
	failures := m.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "a", failures[0].Check)
	assert.Equal(t, "b", failures[1].Check)
}

func TestMonitor_StartStop(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor()
	m.AddCheck("api", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	m.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	m.Stop()
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no checks after Stop")
	m.Stop()
}
