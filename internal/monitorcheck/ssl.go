package monitorcheck

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// SSLService implements the "ssl" monitor type: dials TLS and inspects the
// leaf certificate's expiry.
type SSLService struct{}

// NewSSLService constructs an SSLService.
func NewSSLService() *SSLService {
	return &SSLService{}
}

var _ core.Service = (*SSLService)(nil)

func (s *SSLService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.Host == "" {
		return core.CheckResult{}, core.NewValidationError("SSLService.Check", "host is required", nil)
	}
	port := cfg.Port
	if port == 0 {
		port = 443
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: cfg.Host}}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("tls handshake with %s failed: %v", addr, err),
		}, nil
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return core.CheckResult{}, fmt.Errorf("unexpected connection type from tls.Dialer")
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      "no peer certificates presented",
		}, nil
	}

	notAfter := certs[0].NotAfter
	daysLeft := time.Until(notAfter).Hours() / 24

	status := core.HistoryUp
	if daysLeft < 0 {
		status = core.HistoryDown
	} else if cfg.CertificateWarningDays > 0 && daysLeft < float64(cfg.CertificateWarningDays) {
		status = core.HistoryDegraded
	}

	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("certificate for %s expires %s (%.1f days)", cfg.Host, notAfter.Format(time.RFC3339), daysLeft),
	}, nil
}
