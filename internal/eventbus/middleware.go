package eventbus

import "log/slog"

// Middleware inspects or rewrites an event before it's broadcast, and may
// veto delivery by returning ok=false. Middleware runs in registration
// order; each is wrapped in a recover guard so a panicking middleware
// cannot take the broadcast worker down with it.
type Middleware func(Event) (Event, bool)

func runMiddleware(logger *slog.Logger, chain []Middleware, event Event) (Event, bool) {
	for _, mw := range chain {
		var (
			next Event
			ok   bool
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event middleware panicked, dropping event", "event", event.Name, "panic", r)
					ok = false
				}
			}()
			next, ok = mw(event)
		}()
		if !ok {
			return Event{}, false
		}
		event = next
	}
	return event, true
}
