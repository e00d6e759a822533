package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddDispatchesOnDeadline(t *testing.T) {
	var calls int32
	dispatched := make(chan struct{}, 1)

	s := New(Config{JitterCap: 0, BackoffMultiplier: 2, BackoffCeilingFactor: 10}, func(ctx context.Context, monitorID string) bool {
		atomic.AddInt32(&calls, 1)
		select {
		case dispatched <- struct{}{}:
		default:
		}
		return true
	}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	s.Add("monitor-1", 10*time.Millisecond)

	select {
	case <-dispatched:
	case <-time.After(time.Second):
		t.Fatal("expected dispatch to fire")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestRemoveUnschedulesMonitor(t *testing.T) {
	var calls int32
	s := New(Config{BackoffMultiplier: 2, BackoffCeilingFactor: 10}, func(ctx context.Context, monitorID string) bool {
		atomic.AddInt32(&calls, 1)
		return true
	}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	s.Add("monitor-1", 20*time.Millisecond)
	s.Remove("monitor-1")

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls), "removed monitor must not dispatch")
}

func TestRescheduleExtendsIntervalOnFailureAndClampsToCeiling(t *testing.T) {
	s := New(Config{BackoffMultiplier: 100, BackoffCeilingFactor: 3}, func(ctx context.Context, monitorID string) bool {
		return false
	}, testLogger(), nil)

	s.Add("monitor-1", 10*time.Millisecond)

	sm := s.monitors["monitor-1"]
	require.NotNil(t, sm)

	s.reschedule("monitor-1", false)
	s.reschedule("monitor-1", false)
	s.reschedule("monitor-1", false)
	s.reschedule("monitor-1", false)

	ceiling := sm.interval * time.Duration(3)
	assert.Greater(t, sm.currentInterval, sm.interval, "failures must extend the effective interval")
	assert.LessOrEqual(t, sm.currentInterval, ceiling, "backoff must never exceed interval*BackoffCeilingFactor")
	assert.Greater(t, sm.consecutiveFails, 0)
}

func TestRescheduleResetsIntervalOnSuccess(t *testing.T) {
	s := New(Config{BackoffMultiplier: 2, BackoffCeilingFactor: 10}, func(ctx context.Context, monitorID string) bool {
		return true
	}, testLogger(), nil)

	s.Add("monitor-1", 10*time.Millisecond)
	s.reschedule("monitor-1", false)
	s.reschedule("monitor-1", false)
	s.reschedule("monitor-1", true)

	sm := s.monitors["monitor-1"]
	require.NotNil(t, sm)
	assert.Equal(t, sm.interval, sm.currentInterval)
	assert.Zero(t, sm.consecutiveFails)
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(Config{BackoffMultiplier: 2, BackoffCeilingFactor: 10}, func(ctx context.Context, monitorID string) bool {
		return true
	}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()

	s.Stop()
	s.Stop()
	wg.Wait()
}
