// Package ipc implements the presentation-facing boundary: an Invoke
// registry of request/response handlers behind a standardized envelope,
// and a Broadcast bridge fanning out public-bus events to connected
// clients.
package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/pkg/metrics"
)

// Handler implements one invoke channel. params is the raw, already
// JSON-decoded argument object; the handler is responsible for asserting
// its own shape (the default handlers read it through the stringParam and
// decodeParam helpers).
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Registry maps verb-first hyphenated channel names to Handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	metrics  *metrics.IPCMetrics
	logger   *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(m *metrics.IPCMetrics, logger *slog.Logger) *Registry {
	return &Registry{handlers: make(map[string]Handler), metrics: m, logger: logger}
}

// Register binds name to handler. Returns core.ErrDuplicateHandler if name
// is already registered.
func (r *Registry) Register(name string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("ipc.Register %q: %w", name, core.ErrDuplicateHandler)
	}
	r.handlers[name] = handler
	return nil
}

// Channels lists every registered channel name, used by the
// diagnostics:verify-handlers inventory.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Invoke runs name's handler with params, always returning an Envelope
// rather than a bare error, so callers can serialize the result directly.
// Records duration and outcome in Prometheus regardless of success.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) Envelope {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		if r.metrics != nil {
			r.metrics.InvokeTotal.WithLabelValues(name, "unknown_channel").Inc()
		}
		return failure(core.NewNotFoundError("ipc.Invoke", fmt.Sprintf("no handler registered for channel %q", name)))
	}

	start := time.Now()
	data, err := handler(ctx, params)
	if r.metrics != nil {
		r.metrics.InvokeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if r.metrics != nil {
			r.metrics.InvokeTotal.WithLabelValues(name, "error").Inc()
		}
		r.logger.Warn("ipc handler failed", "channel", name, "error", err)
		return failure(err)
	}

	if r.metrics != nil {
		r.metrics.InvokeTotal.WithLabelValues(name, "success").Inc()
	}
	return success(data)
}

// VerifyHandlers is the diagnostics:verify-handlers handler: it reports the
// registry's own inventory so a presentation layer can confirm every
// channel it expects is actually wired before relying on it.
func (r *Registry) VerifyHandlers(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"channels": r.Channels()}, nil
}
