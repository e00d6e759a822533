package monitorcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/monitorcheck/httpclient"
)

// ServerHeartbeatService implements the "server-heartbeat" monitor type:
// fetches a JSON status endpoint and asserts a status field plus timestamp
// drift against the configured maximum.
type ServerHeartbeatService struct {
	client *httpclient.Client
}

// NewServerHeartbeatService constructs a ServerHeartbeatService.
func NewServerHeartbeatService(client *httpclient.Client) *ServerHeartbeatService {
	return &ServerHeartbeatService{client: client}
}

var _ core.Service = (*ServerHeartbeatService)(nil)

func (s *ServerHeartbeatService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.URL == "" {
		return core.CheckResult{}, core.NewValidationError("ServerHeartbeatService.Check", "url is required", nil)
	}
	statusField := cfg.HeartbeatStatusField
	if statusField == "" {
		statusField = "status"
	}
	timestampField := cfg.HeartbeatTimestampField
	if timestampField == "" {
		timestampField = "timestamp"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return core.CheckResult{}, core.NewValidationError("ServerHeartbeatService.Check", "invalid url", err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{Status: core.HistoryDown, ResponseTime: elapsed, Details: fmt.Sprintf("heartbeat request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpResponseSizeLimit))
	if !json.Valid(body) {
		return core.CheckResult{Status: core.HistoryDown, ResponseTime: elapsed, Details: "heartbeat response is not valid json"}, nil
	}

	status := gjson.GetBytes(body, statusField).String()
	if status == "" || status == "down" {
		return core.CheckResult{Status: core.HistoryDown, ResponseTime: elapsed, Details: fmt.Sprintf("heartbeat status field %q reports %q", statusField, status)}, nil
	}

	tsResult := gjson.GetBytes(body, timestampField)
	if tsResult.Exists() && cfg.HeartbeatMaxDriftMS > 0 {
		reported := time.UnixMilli(tsResult.Int())
		drift := time.Since(reported)
		if drift < 0 {
			drift = -drift
		}
		if drift > time.Duration(cfg.HeartbeatMaxDriftMS)*time.Millisecond {
			return core.CheckResult{
				Status:       core.HistoryDegraded,
				ResponseTime: elapsed,
				Details:      fmt.Sprintf("heartbeat drift %s exceeds budget", drift.Round(time.Millisecond)),
			}, nil
		}
	}

	return core.CheckResult{
		Status:       core.HistoryUp,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("heartbeat status=%q in %s", status, elapsed.Round(time.Millisecond)),
	}, nil
}
