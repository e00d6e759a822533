package monitorcheck

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// PingService implements the "ping" monitor type via an ICMP echo request.
// Requires the process to have raw-socket privilege (CAP_NET_RAW or root);
// this is a deployment concern, not handled here.
type PingService struct{}

// NewPingService constructs a PingService.
func NewPingService() *PingService {
	return &PingService{}
}

var _ core.Service = (*PingService)(nil)

func (s *PingService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.Host == "" {
		return core.CheckResult{}, core.NewValidationError("PingService.Check", "host is required", nil)
	}

	timeout := monitor.Timeout.Truncate(time.Second)
	if timeout < monitor.Timeout {
		timeout += time.Second
	}
	if timeout < time.Second {
		timeout = time.Second
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return core.CheckResult{}, core.NewNetworkError("PingService.Check", "failed to open icmp socket", err)
	}
	defer conn.Close()

	dst, err := net.ResolveIPAddr("ip4", cfg.Host)
	if err != nil {
		return core.CheckResult{
			Status:  core.HistoryDown,
			Details: fmt.Sprintf("resolve %s failed: %v", cfg.Host, err),
		}, nil
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{ID: os.Getpid() & 0xffff, Seq: 1, Data: []byte("uptime-watcher")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return core.CheckResult{}, core.NewNetworkError("PingService.Check", "failed to marshal icmp message", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok || deadline.After(time.Now().Add(timeout)) {
		deadline = time.Now().Add(timeout)
	}
	_ = conn.SetDeadline(deadline)

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return core.CheckResult{
			Status:  core.HistoryDown,
			Details: fmt.Sprintf("write icmp echo failed: %v", err),
		}, nil
	}

	reply := make([]byte, 1500)
	n, _, err := conn.ReadFrom(reply)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("no icmp reply from %s: %v", cfg.Host, err),
		}, nil
	}

	parsed, err := icmp.ParseMessage(1, reply[:n])
	if err != nil || parsed.Type != ipv4.ICMPTypeEchoReply {
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("unexpected icmp reply from %s", cfg.Host),
		}, nil
	}

	return core.CheckResult{
		Status:       core.HistoryUp,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("ping %s replied in %s", cfg.Host, elapsed.Round(time.Millisecond)),
	}, nil
}
