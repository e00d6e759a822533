package ipc

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nick2bad4u/uptime-watcher/internal/eventbus"
	"github.com/nick2bad4u/uptime-watcher/pkg/metrics"
)

// Bridge fans out public-bus events to connected presentation clients.
type Bridge interface {
	Send(topic string, payload any)
}

// Frame is the wire shape of a broadcast message.
type Frame struct {
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketBridge fans out Frames to every connected client over
// gorilla/websocket, adapted from a connection-registry/broadcast hub:
// register/unregister channels, a buffered broadcast channel, and a
// per-client goroutine write pump.
type WebSocketBridge struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Frame
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	logger     *slog.Logger
	metrics    *metrics.IPCMetrics
}

// NewWebSocketBridge constructs a WebSocketBridge.
func NewWebSocketBridge(logger *slog.Logger, m *metrics.IPCMetrics) *WebSocketBridge {
	return &WebSocketBridge{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Frame, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
		metrics:    m,
	}
}

var _ Bridge = (*WebSocketBridge)(nil)

// Run drives the hub's register/unregister/broadcast loop until ctx is
// cancelled. Run it in its own goroutine.
func (b *WebSocketBridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return

		case conn := <-b.register:
			b.mu.Lock()
			b.clients[conn] = true
			count := len(b.clients)
			b.mu.Unlock()
			if b.metrics != nil {
				b.metrics.ConnectionsActive.Set(float64(count))
			}

		case conn := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[conn]; ok {
				delete(b.clients, conn)
				_ = conn.Close()
			}
			count := len(b.clients)
			b.mu.Unlock()
			if b.metrics != nil {
				b.metrics.ConnectionsActive.Set(float64(count))
			}

		case frame := <-b.broadcast:
			b.mu.RLock()
			for conn := range b.clients {
				go b.sendTo(conn, frame)
			}
			b.mu.RUnlock()
			if b.metrics != nil {
				b.metrics.BroadcastTotal.WithLabelValues(frame.Topic).Inc()
			}
		}
	}
}

func (b *WebSocketBridge) sendTo(conn *websocket.Conn, frame Frame) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(frame); err != nil {
		b.logger.Debug("broadcast bridge write failed, unregistering client", "error", err)
		b.unregister <- conn
	}
}

// Send queues topic/payload for broadcast. Non-blocking: drops the frame
// and logs if the buffer is saturated rather than blocking the publisher.
func (b *WebSocketBridge) Send(topic string, payload any) {
	frame := Frame{Topic: topic, Payload: payload, Timestamp: time.Now()}
	select {
	case b.broadcast <- frame:
	default:
		b.logger.Warn("broadcast bridge channel full, dropping frame", "topic", topic)
	}
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection and
// registers it with the hub.
func (b *WebSocketBridge) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	b.register <- conn
	go b.readPump(conn)
}

func (b *WebSocketBridge) readPump(conn *websocket.Conn) {
	defer func() { b.unregister <- conn }()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *WebSocketBridge) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		_ = conn.Close()
	}
	b.clients = make(map[*websocket.Conn]bool)
	if b.metrics != nil {
		b.metrics.ConnectionsActive.Set(0)
	}
}

// SubscribeBus forwards every event published on bus to the bridge as a
// Frame, run in its own goroutine until ctx is cancelled.
func SubscribeBus(ctx context.Context, bus *eventbus.Bus, bridge Bridge) {
	sub := eventbus.NewChannelSubscriber("ipc-bridge", 256)
	bus.Subscribe(sub)
	go func() {
		defer bus.Unsubscribe(sub.ID())
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.Events():
				if !ok {
					return
				}
				payload, err := event.ClonedPayload()
				if err != nil {
					continue
				}
				bridge.Send(event.Name, payload)
			}
		}
	}()
}
