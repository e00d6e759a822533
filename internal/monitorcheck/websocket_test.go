package monitorcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

func TestWebSocketServiceRequiresURL(t *testing.T) {
	svc := NewWebSocketService()
	_, err := svc.Check(context.Background(), testMonitor(core.MonitorTypeWebSocketKeepalive, core.MonitorConfig{}))
	assert.True(t, core.IsValidation(err))
}

func TestWebSocketServiceUpOnPong(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	svc := NewWebSocketService()
	m := testMonitor(core.MonitorTypeWebSocketKeepalive, core.MonitorConfig{URL: url})
	m.Timeout = 2 * time.Second

	result, err := svc.Check(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, core.HistoryUp, result.Status)
}

func TestWebSocketServiceDownOnUnreachable(t *testing.T) {
	svc := NewWebSocketService()
	result, err := svc.Check(context.Background(), testMonitor(core.MonitorTypeWebSocketKeepalive, core.MonitorConfig{URL: "ws://127.0.0.1:1"}))
	require.NoError(t, err)
	assert.Equal(t, core.HistoryDown, result.Status)
}
