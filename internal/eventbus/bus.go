package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nick2bad4u/uptime-watcher/pkg/metrics"
)

// Bus is a single tier of the publish/subscribe system (internal or
// public). Construct one per tier via New.
type Bus struct {
	id      string
	logger  *slog.Logger
	metrics *metrics.EventBusMetrics

	mu          sync.RWMutex
	subscribers map[string]Subscriber
	middleware  []Middleware

	eventChan chan Event
	sequence  int64

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Bus tagged with id ("internal" or "public"), used as
// the bus label on every metric and log line this instance emits.
func New(id string, logger *slog.Logger, m *metrics.EventBusMetrics) *Bus {
	return &Bus{
		id:          id,
		logger:      logger.With("bus", id),
		metrics:     m,
		subscribers: make(map[string]Subscriber),
		eventChan:   make(chan Event, 1000),
		stopChan:    make(chan struct{}),
	}
}

// Use appends a middleware to the chain run on every published event
// before subscribers see it.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Subscribe registers sub to receive every event published on this bus.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub.ID()] = sub
	if b.metrics != nil {
		b.metrics.SubscribersActive.WithLabelValues(b.id).Set(float64(len(b.subscribers)))
	}
}

// Unsubscribe removes and closes sub.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	if !ok {
		return
	}
	_ = sub.Close()
	if b.metrics != nil {
		b.metrics.SubscribersActive.WithLabelValues(b.id).Set(float64(count))
	}
}

// ActiveSubscribers reports how many subscribers are currently registered.
func (b *Bus) ActiveSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish enqueues event for asynchronous broadcast, stamping sequence and
// timestamp. Non-blocking: returns ErrChannelFull if the buffer is
// saturated rather than ever blocking the publisher.
func (b *Bus) Publish(event Event) error {
	event.Meta.Sequence = atomic.AddInt64(&b.sequence, 1)
	event.Meta.Timestamp = time.Now()
	event.Meta.BusID = b.id

	select {
	case b.eventChan <- event:
		if b.metrics != nil {
			b.metrics.EventsPublished.WithLabelValues(b.id, event.Name).Inc()
		}
		return nil
	default:
		b.logger.Warn("event channel full, dropping event", "event", event.Name, "event_id", event.Meta.ID)
		if b.metrics != nil {
			b.metrics.EventsDropped.WithLabelValues(b.id).Inc()
		}
		return ErrChannelFull
	}
}

// Start launches the background broadcast worker.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.broadcastWorker(ctx)
}

// Stop signals the broadcast worker to exit and waits for it, bounded by
// ctx. Idempotent.
func (b *Bus) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.stopChan) })

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) broadcastWorker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case event := <-b.eventChan:
			b.broadcast(event)
		}
	}
}

func (b *Bus) broadcast(event Event) {
	start := time.Now()

	b.mu.RLock()
	chain := b.middleware
	b.mu.RUnlock()

	event, ok := runMiddleware(b.logger, chain, event)
	if !ok {
		return
	}

	b.mu.RLock()
	subscribers := make([]Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subscribers = append(subscribers, sub)
	}
	b.mu.RUnlock()

	if len(subscribers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subscribers {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			select {
			case <-sub.Context().Done():
				b.Unsubscribe(sub.ID())
				return
			default:
			}
			if err := sub.Send(event); err != nil {
				b.logger.Warn("failed to deliver event to subscriber", "subscriber_id", sub.ID(), "event", event.Name, "error", err)
				b.Unsubscribe(sub.ID())
			}
		}(sub)
	}
	wg.Wait()

	if b.metrics != nil {
		b.metrics.BroadcastDuration.WithLabelValues(b.id).Observe(time.Since(start).Seconds())
	}
}
