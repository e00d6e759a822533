package monitorcheck

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// PortService implements the "port" monitor type: a bare TCP dial.
type PortService struct {
	dialer *net.Dialer
}

// NewPortService constructs a PortService.
func NewPortService() *PortService {
	return &PortService{dialer: &net.Dialer{}}
}

var _ core.Service = (*PortService)(nil)

func (s *PortService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.Host == "" || cfg.Port == 0 {
		return core.CheckResult{}, core.NewValidationError("PortService.Check", "host and port are required", nil)
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	start := time.Now()
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("dial %s failed: %v", addr, err),
		}, nil
	}
	_ = conn.Close()

	return core.CheckResult{
		Status:       core.HistoryUp,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("connected to %s in %s", addr, elapsed.Round(time.Millisecond)),
	}, nil
}
