package ipc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick2bad4u/uptime-watcher/internal/eventbus"
)

type fakeBridge struct {
	mu     sync.Mutex
	frames []Frame
}

func (f *fakeBridge) Send(topic string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, Frame{Topic: topic, Payload: payload})
}

func (f *fakeBridge) snapshot() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestSendIsNonBlockingWhenBufferSaturated(t *testing.T) {
	b := NewWebSocketBridge(testLogger(), nil)
	// never call Run(), so nothing drains b.broadcast (buffer 256).
	for i := 0; i < 300; i++ {
		b.Send("topic", i)
	}
	// must return without blocking or panicking.
}

func TestHandleUpgradeRegistersClientAndBroadcastsFrames(t *testing.T) {
	bridge := NewWebSocketBridge(testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", bridge.HandleUpgrade)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	bridge.Send("site:added", map[string]any{"identifier": "site-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "site:added", frame.Topic)
}

func TestSubscribeBusForwardsEventsToBridge(t *testing.T) {
	bus := eventbus.New("public", testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	bridge := &fakeBridge{}
	SubscribeBus(ctx, bus, bridge)

	require.NoError(t, bus.Publish(eventbus.NewEvent("site:added", map[string]any{"identifier": "site-1"}, "")))

	require.Eventually(t, func() bool {
		return len(bridge.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	frames := bridge.snapshot()
	assert.Equal(t, "site:added", frames[0].Topic)
}
