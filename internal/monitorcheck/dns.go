package monitorcheck

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// DNSService implements the "dns" monitor type, dispatching by record-type
// tag. "ANY" fans out every supported record type concurrently and merges
// the results.
type DNSService struct {
	resolver *net.Resolver
}

// NewDNSService constructs a DNSService using the system resolver.
func NewDNSService() *DNSService {
	return &DNSService{resolver: net.DefaultResolver}
}

var _ core.Service = (*DNSService)(nil)

var dnsRecordTypes = []string{"A", "AAAA", "CNAME", "MX", "NS", "TXT", "SRV", "PTR"}

func (s *DNSService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.Host == "" {
		return core.CheckResult{}, core.NewValidationError("DNSService.Check", "host is required", nil)
	}

	recordType := strings.ToUpper(cfg.RecordType)
	if recordType == "" {
		recordType = "A"
	}

	start := time.Now()
	var result string
	var err error

	if recordType == "ANY" {
		result, err = s.lookupAny(ctx, cfg.Host)
	} else {
		result, err = s.lookupOne(ctx, recordType, cfg.Host)
	}
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("%s lookup for %s failed: %v", recordType, cfg.Host, err),
		}, nil
	}

	status := core.HistoryUp
	if cfg.ExpectedValue != "" && !strings.Contains(result, cfg.ExpectedValue) {
		status = core.HistoryDegraded
	}

	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("%s %s -> %s", recordType, cfg.Host, result),
	}, nil
}

func (s *DNSService) lookupOne(ctx context.Context, recordType, host string) (string, error) {
	switch recordType {
	case "A", "AAAA":
		addrs, err := s.resolver.LookupHost(ctx, host)
		return strings.Join(addrs, ","), err
	case "CNAME":
		cname, err := s.resolver.LookupCNAME(ctx, host)
		return cname, err
	case "MX":
		mxs, err := s.resolver.LookupMX(ctx, host)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(mxs))
		for _, mx := range mxs {
			parts = append(parts, mx.Host)
		}
		return strings.Join(parts, ","), nil
	case "NS":
		nss, err := s.resolver.LookupNS(ctx, host)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(nss))
		for _, ns := range nss {
			parts = append(parts, ns.Host)
		}
		return strings.Join(parts, ","), nil
	case "TXT":
		txts, err := s.resolver.LookupTXT(ctx, host)
		return strings.Join(txts, ","), err
	case "SRV":
		_, srvs, err := s.resolver.LookupSRV(ctx, "", "", host)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(srvs))
		for _, srv := range srvs {
			parts = append(parts, fmt.Sprintf("%s:%d", srv.Target, srv.Port))
		}
		return strings.Join(parts, ","), nil
	case "PTR":
		names, err := s.resolver.LookupAddr(ctx, host)
		return strings.Join(names, ","), err
	default:
		return "", fmt.Errorf("unsupported dns record type %q", recordType)
	}
}

func (s *DNSService) lookupAny(ctx context.Context, host string) (string, error) {
	results := make([]string, len(dnsRecordTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, rt := range dnsRecordTypes {
		i, rt := i, rt
		g.Go(func() error {
			v, err := s.lookupOne(gctx, rt, host)
			if err != nil {
				results[i] = ""
				return nil
			}
			results[i] = rt + "=" + v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	nonEmpty := make([]string, 0, len(results))
	for _, r := range results {
		if r != "" {
			nonEmpty = append(nonEmpty, r)
		}
	}
	if len(nonEmpty) == 0 {
		return "", fmt.Errorf("no records found for %s", host)
	}
	return strings.Join(nonEmpty, "; "), nil
}
