package monitorcheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/monitorcheck/httpclient"
)

// CDNEdgeConsistencyService implements the "cdn-edge-consistency" monitor
// type: requests a baseline origin and N edge URLs concurrently, hashes
// each body, and flags degradation on any hash mismatch.
type CDNEdgeConsistencyService struct {
	client *httpclient.Client
}

// NewCDNEdgeConsistencyService constructs a CDNEdgeConsistencyService.
func NewCDNEdgeConsistencyService(client *httpclient.Client) *CDNEdgeConsistencyService {
	return &CDNEdgeConsistencyService{client: client}
}

var _ core.Service = (*CDNEdgeConsistencyService)(nil)

func (s *CDNEdgeConsistencyService) fetchHash(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpResponseSizeLimit))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func (s *CDNEdgeConsistencyService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.BaselineURL == "" || len(cfg.EdgeURLs) == 0 {
		return core.CheckResult{}, core.NewValidationError("CDNEdgeConsistencyService.Check", "baselineUrl and edgeUrls are required", nil)
	}

	start := time.Now()
	baselineHash, err := s.fetchHash(ctx, cfg.BaselineURL)
	if err != nil {
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{Status: core.HistoryDown, ResponseTime: elapsed, Details: fmt.Sprintf("baseline request failed: %v", err)}, nil
	}

	edgeHashes := make([]string, len(cfg.EdgeURLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range cfg.EdgeURLs {
		i, url := i, url
		g.Go(func() error {
			h, err := s.fetchHash(gctx, url)
			edgeHashes[i] = h
			return err
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{Status: core.HistoryDegraded, ResponseTime: elapsed, Details: fmt.Sprintf("edge request failed: %v", err)}, nil
	}

	mismatches := 0
	for _, h := range edgeHashes {
		if h != baselineHash {
			mismatches++
		}
	}

	status := core.HistoryUp
	if mismatches > 0 {
		status = core.HistoryDegraded
	}

	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("%d/%d edges mismatched baseline", mismatches, len(edgeHashes)),
	}, nil
}
