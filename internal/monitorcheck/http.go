package monitorcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/monitorcheck/httpclient"
)

// httpResponseSizeLimit bounds how much of a response body a check reads,
// protecting against an endpoint that streams an unbounded response.
const httpResponseSizeLimit = 1 << 20 // 1 MiB

// HTTPService implements every HTTP-family monitor type: http,
// http-status, http-keyword, http-header, http-json, http-latency. They
// share a transport and request/timing path and differ only in which
// assertion they apply to the response.
type HTTPService struct {
	client *httpclient.Client
}

// NewHTTPService constructs an HTTPService sharing client across every
// HTTP-family monitor.
func NewHTTPService(client *httpclient.Client) *HTTPService {
	return &HTTPService{client: client}
}

var _ core.Service = (*HTTPService)(nil)

func (s *HTTPService) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	cfg := monitor.Config
	if cfg.URL == "" {
		return core.CheckResult{}, core.NewValidationError("HTTPService.Check", "url is required", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return core.CheckResult{}, core.NewValidationError("HTTPService.Check", "invalid url", err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return core.CheckResult{}, core.ErrAborted
		}
		return core.CheckResult{
			Status:       core.HistoryDown,
			ResponseTime: elapsed,
			Details:      fmt.Sprintf("request failed: %v", err),
		}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpResponseSizeLimit))

	switch monitor.Type {
	case core.MonitorTypeHTTPStatus:
		return s.checkStatus(resp, elapsed, cfg)
	case core.MonitorTypeHTTPKeyword:
		return s.checkKeyword(resp, elapsed, body, cfg)
	case core.MonitorTypeHTTPHeader:
		return s.checkHeader(resp, elapsed, cfg)
	case core.MonitorTypeHTTPJSON:
		return s.checkJSON(resp, elapsed, body, cfg)
	case core.MonitorTypeHTTPLatency:
		return s.checkLatency(resp, elapsed, cfg)
	default:
		return s.checkBasic(resp, elapsed)
	}
}

func (s *HTTPService) checkBasic(resp *http.Response, elapsed time.Duration) (core.CheckResult, error) {
	status := core.HistoryUp
	if resp.StatusCode >= 500 {
		status = core.HistoryDegraded
	} else if resp.StatusCode >= 400 {
		status = core.HistoryDown
	}
	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("HTTP %d in %s", resp.StatusCode, elapsed.Round(time.Millisecond)),
	}, nil
}

func (s *HTTPService) checkStatus(resp *http.Response, elapsed time.Duration, cfg core.MonitorConfig) (core.CheckResult, error) {
	status := core.HistoryDown
	if cfg.ExpectedStatusCode != nil && resp.StatusCode == *cfg.ExpectedStatusCode {
		status = core.HistoryUp
	}
	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("HTTP %d (expected %v)", resp.StatusCode, cfg.ExpectedStatusCode),
	}, nil
}

func (s *HTTPService) checkKeyword(resp *http.Response, elapsed time.Duration, body []byte, cfg core.MonitorConfig) (core.CheckResult, error) {
	status := core.HistoryDown
	if strings.Contains(string(body), cfg.BodyKeyword) {
		status = core.HistoryUp
	}
	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("keyword %q present=%v", cfg.BodyKeyword, status == core.HistoryUp),
	}, nil
}

func (s *HTTPService) checkHeader(resp *http.Response, elapsed time.Duration, cfg core.MonitorConfig) (core.CheckResult, error) {
	actual := resp.Header.Get(cfg.HeaderName)
	status := core.HistoryDown
	if actual == cfg.ExpectedHeaderValue {
		status = core.HistoryUp
	}
	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("header %s=%q (expected %q)", cfg.HeaderName, actual, cfg.ExpectedHeaderValue),
	}, nil
}

func (s *HTTPService) checkJSON(resp *http.Response, elapsed time.Duration, body []byte, cfg core.MonitorConfig) (core.CheckResult, error) {
	result := gjson.GetBytes(body, cfg.JSONPath)
	status := core.HistoryDown
	if result.Exists() && result.String() == cfg.ExpectedJSONValue {
		status = core.HistoryUp
	}
	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("json path %s=%q (expected %q)", cfg.JSONPath, result.String(), cfg.ExpectedJSONValue),
	}, nil
}

func (s *HTTPService) checkLatency(resp *http.Response, elapsed time.Duration, cfg core.MonitorConfig) (core.CheckResult, error) {
	status := core.HistoryUp
	if cfg.MaxResponseTimeMS != nil && elapsed > time.Duration(*cfg.MaxResponseTimeMS)*time.Millisecond {
		status = core.HistoryDegraded
	}
	if resp.StatusCode >= 500 {
		status = core.HistoryDown
	}
	return core.CheckResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("HTTP %d in %s (budget %vms)", resp.StatusCode, elapsed.Round(time.Millisecond), cfg.MaxResponseTimeMS),
	}, nil
}
