package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	m := NewMonitor(Config{
		LimitBytes:        limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
	m.readAlloc = func() uint64 { return *alloc }
	return m
}

func TestMonitorPausesAndResumes(t *testing.T) {
	alloc := uint64(10)
	m := newTestMonitor(100, &alloc)

	m.check()
	assert.False(t, m.IsPaused())
	assert.InDelta(t, 0.1, m.Usage(), 1e-9)

	alloc = 90
	m.check()
	require.True(t, m.IsPaused())

	// Between the marks the monitor stays paused
	alloc = 80
	m.check()
	assert.True(t, m.IsPaused())

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	alloc = 50
	m.check()
	assert.False(t, m.IsPaused())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after memory recovered")
	}
}

func TestMonitorWaitNotPaused(t *testing.T) {
	alloc := uint64(0)
	m := newTestMonitor(100, &alloc)
	assert.NoError(t, m.Wait(context.Background()))
}

func TestMonitorWaitHonorsContext(t *testing.T) {
	alloc := uint64(99)
	m := newTestMonitor(100, &alloc)
	m.check()
	require.True(t, m.IsPaused())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	alloc := uint64(99)
	m := newTestMonitor(100, &alloc)
	m.check()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	m.Stop()
	m.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Stop did not release waiter")
	}
}

func TestMonitorStartSamples(t *testing.T) {
	alloc := uint64(95)
	m := newTestMonitor(100, &alloc)
	m.Start()
	defer m.Stop()

	assert.Eventually(t, m.IsPaused, time.Second, 5*time.Millisecond)
}

func TestMonitorWithoutLimitNeverPauses(t *testing.T) {
	alloc := uint64(1 << 40)
	m := newTestMonitor(0, &alloc)
	if m.Limit() != 0 {
		t.Skip("GOMEMLIMIT is set in this environment")
	}

	m.Start()
	m.check()
	m.Stop()

	assert.False(t, m.IsPaused())
	assert.Zero(t, m.Usage())
}
