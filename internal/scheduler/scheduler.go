// Package scheduler drives a single background goroutine that dispatches
// monitor checks from a container/heap priority queue ordered by next
// deadline, staggering initial dispatch with jitter and extending a
// monitor's effective interval under exponential backoff while it's
// failing.
package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/backoff"
	"github.com/nick2bad4u/uptime-watcher/pkg/metrics"
)

// Dispatcher is called once per monitor deadline. It must not block for
// long; long-running checks should be handed off to a worker (the monitor
// checker runs the actual probe). Dispatcher reports whether the check
// succeeded, which feeds the backoff decision for the monitor's next
// scheduling.
type Dispatcher func(ctx context.Context, monitorID string) (success bool)

type scheduledMonitor struct {
	interval         time.Duration
	currentInterval  time.Duration
	consecutiveFails int
	item             *heapItem
}

// Scheduler owns the priority queue and its background dispatch loop.
type Scheduler struct {
	logger     *slog.Logger
	metrics    *metrics.SchedulerMetrics
	dispatch   Dispatcher
	jitterCap  time.Duration
	backoff    backoff.Policy
	ceilingFactor int

	mu       sync.Mutex
	pq       priorityQueue
	monitors map[string]*scheduledMonitor

	wakeCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Config configures scheduling defaults.
type Config struct {
	JitterCap         time.Duration
	BackoffMultiplier float64
	BackoffCeilingFactor int
}

// New constructs a Scheduler. dispatch is invoked from the scheduling
// goroutine each time a monitor's deadline elapses.
func New(cfg Config, dispatch Dispatcher, logger *slog.Logger, m *metrics.SchedulerMetrics) *Scheduler {
	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	return &Scheduler{
		logger:    logger,
		metrics:   m,
		dispatch:  dispatch,
		jitterCap: cfg.JitterCap,
		backoff: backoff.Policy{
			BaseDelay: time.Second,
			// MaxDelay is intentionally unbounded here: reschedule clamps
			// the computed delay against each monitor's own ceiling
			// (interval * BackoffCeilingFactor), which Policy has no way
			// to express since it's per-monitor rather than global.
			MaxDelay:   365 * 24 * time.Hour,
			Multiplier: cfg.BackoffMultiplier,
			Jitter:     true,
		},
		ceilingFactor: cfg.BackoffCeilingFactor,
		pq:            pq,
		monitors:      make(map[string]*scheduledMonitor),
		wakeCh:        make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}
}

// Add schedules monitorID with the given check interval, jittering its
// initial dispatch uniformly in [0, min(interval, jitterCap)].
func (s *Scheduler) Add(monitorID string, interval time.Duration) {
	cap := s.jitterCap
	if interval < cap {
		cap = interval
	}
	var jitter time.Duration
	if cap > 0 {
		jitter = time.Duration(rand.Int64N(int64(cap)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := &heapItem{monitorID: monitorID, deadline: time.Now().Add(jitter)}
	s.monitors[monitorID] = &scheduledMonitor{interval: interval, currentInterval: interval, item: item}
	heap.Push(&s.pq, item)
	s.recordQueueDepth()
	s.wake()
}

// Remove unschedules monitorID, e.g. on delete or pause.
func (s *Scheduler) Remove(monitorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.monitors[monitorID]
	if !ok {
		return
	}
	if sm.item.index >= 0 {
		heap.Remove(&s.pq, sm.item.index)
	}
	delete(s.monitors, monitorID)
	s.recordQueueDepth()
}

// Reschedule updates monitorID's interval (e.g. after an edit) and
// reinserts its heap entry at now+interval.
func (s *Scheduler) Reschedule(monitorID string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.monitors[monitorID]
	if !ok {
		return
	}
	sm.interval = interval
	sm.currentInterval = interval
	sm.consecutiveFails = 0
	if sm.item.index >= 0 {
		heap.Remove(&s.pq, sm.item.index)
	}
	sm.item = &heapItem{monitorID: monitorID, deadline: time.Now().Add(interval)}
	heap.Push(&s.pq, sm.item)
	s.wake()
}

func (s *Scheduler) recordQueueDepth() {
	if s.metrics != nil {
		s.metrics.QueueDepth.Set(float64(len(s.pq)))
	}
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run blocks, dispatching monitors as their deadlines elapse, until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	for {
		s.mu.Lock()
		var wait time.Duration
		var next *heapItem
		if len(s.pq) > 0 {
			next = s.pq[0]
			wait = time.Until(next.deadline)
		} else {
			wait = time.Hour
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.doneCh:
			timer.Stop()
			return
		case <-s.wakeCh:
			timer.Stop()
			continue
		case <-timer.C:
		}

		s.dispatchDue(ctx)
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.pq) == 0 || s.pq[0].deadline.After(now) {
			s.mu.Unlock()
			return
		}
		item := heap.Pop(&s.pq).(*heapItem)
		sm, ok := s.monitors[item.monitorID]
		s.recordQueueDepth()
		s.mu.Unlock()

		if !ok {
			continue
		}

		if s.metrics != nil {
			s.metrics.DispatchTotal.Inc()
			s.metrics.RescheduleSecs.Observe(now.Sub(item.deadline).Seconds())
		}

		success := s.dispatch(ctx, item.monitorID)
		s.reschedule(item.monitorID, success)
	}
}

func (s *Scheduler) reschedule(monitorID string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sm, ok := s.monitors[monitorID]
	if !ok {
		return
	}

	ceiling := sm.interval * time.Duration(s.ceilingFactor)
	if success {
		sm.consecutiveFails = 0
		sm.currentInterval = sm.interval
	} else {
		sm.consecutiveFails++
		next := s.backoff.Next(sm.currentInterval)
		if next > ceiling {
			next = ceiling
		}
		sm.currentInterval = next
	}

	if s.metrics != nil {
		active := 0
		for _, m := range s.monitors {
			if m.consecutiveFails > 0 {
				active++
			}
		}
		s.metrics.BackoffActive.Set(float64(active))
	}

	item := &heapItem{monitorID: monitorID, deadline: time.Now().Add(sm.currentInterval)}
	sm.item = item
	heap.Push(&s.pq, item)
	s.recordQueueDepth()
}

// Stop signals Run to return and waits for it. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.doneCh) })
	s.wg.Wait()
}
