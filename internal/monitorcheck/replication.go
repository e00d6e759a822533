package monitorcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/monitorcheck/httpclient"
)

// ReplicationService implements the "replication" monitor type: fetches
// timestamp endpoints from a primary and a replica concurrently and flags
// degradation when replication lag exceeds the configured threshold.
type ReplicationService struct {
	client *httpclient.Client
}

// NewReplicationService constructs a ReplicationService.
func NewReplicationService(client *httpclient.Client) *ReplicationService {
	return &ReplicationService{client: client}
}

var _ core.Service = (*ReplicationService)(nil)

func (s *ReplicationService) fetchTimestamp(ctx context.Context, url string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpResponseSizeLimit))
	if err != nil {
		return time.Time{}, err
	}
	ts := gjson.GetBytes(body, "timestamp")
	if !ts.Exists() {
		return time.Time{}, fmt.Errorf("response from %s has no timestamp field", url)
	}
	return time.UnixMilli(ts.Int()), nil
}

func (s *ReplicationService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.PrimaryURL == "" || cfg.ReplicaURL == "" {
		return core.CheckResult{}, core.NewValidationError("ReplicationService.Check", "primaryUrl and replicaUrl are required", nil)
	}

	var primaryTS, replicaTS time.Time
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		primaryTS, err = s.fetchTimestamp(gctx, cfg.PrimaryURL)
		return err
	})
	g.Go(func() error {
		var err error
		replicaTS, err = s.fetchTimestamp(gctx, cfg.ReplicaURL)
		return err
	})
	err := g.Wait()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{Status: core.HistoryDown, ResponseTime: elapsed, Details: fmt.Sprintf("replication check failed: %v", err)}, nil
	}

	lag := primaryTS.Sub(replicaTS)
	if lag < 0 {
		lag = -lag
	}
	threshold := time.Duration(cfg.LagThresholdMS) * time.Millisecond

	status := core.HistoryUp
	if threshold > 0 && lag > threshold {
		status = core.HistoryDegraded
	}

	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("replication lag %s (threshold %s)", lag.Round(time.Millisecond), threshold),
	}, nil
}
