package monitorcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// WebSocketService implements the "websocket-keepalive" monitor type:
// opens a connection, writes a ping control frame, and waits for the pong
// handler to fire within the monitor's timeout.
type WebSocketService struct {
	dialer *websocket.Dialer
}

// NewWebSocketService constructs a WebSocketService.
func NewWebSocketService() *WebSocketService {
	return &WebSocketService{dialer: websocket.DefaultDialer}
}

var _ core.Service = (*WebSocketService)(nil)

func (s *WebSocketService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.URL == "" {
		return core.CheckResult{}, core.NewValidationError("WebSocketService.Check", "url is required", nil)
	}

	start := time.Now()
	conn, _, err := s.dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("websocket dial %s failed: %v", cfg.URL, err),
		}, nil
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(monitor.Timeout)
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		return core.CheckResult{
			Status:  core.HistoryDown,
			Details: fmt.Sprintf("websocket ping write failed: %v", err),
		}, nil
	}

	_ = conn.SetReadDeadline(deadline)
	readErrCh := make(chan error, 1)
	go func() {
		_, _, err := conn.ReadMessage()
		readErrCh <- err
	}()

	select {
	case <-ctx.Done():
		return core.CheckResult{}, core.ErrAborted
	case <-pongCh:
		elapsed := time.Since(start)
		return core.CheckResult{
			Status:       core.HistoryUp,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("websocket pong received from %s in %s", cfg.URL, elapsed.Round(time.Millisecond)),
		}, nil
	case err := <-readErrCh:
		elapsed := time.Since(start)
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("websocket read failed waiting for pong: %v", err),
		}, nil
	}
}
