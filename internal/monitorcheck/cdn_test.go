package monitorcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/monitorcheck/httpclient"
)

func bodyHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func TestCDNServiceRequiresBaselineAndEdges(t *testing.T) {
	svc := NewCDNEdgeConsistencyService(httpclient.New(0, 0))
	_, err := svc.Check(context.Background(), testMonitor(core.MonitorTypeCDNEdgeConsistency, core.MonitorConfig{BaselineURL: "http://example.com"}))
	assert.True(t, core.IsValidation(err))
}

func TestCDNServiceUpWhenAllEdgesMatch(t *testing.T) {
	baseline := httptest.NewServer(bodyHandler("same-content"))
	defer baseline.Close()
	edge1 := httptest.NewServer(bodyHandler("same-content"))
	defer edge1.Close()
	edge2 := httptest.NewServer(bodyHandler("same-content"))
	defer edge2.Close()

	svc := NewCDNEdgeConsistencyService(httpclient.New(0, 0))
	result, err := svc.Check(context.Background(), testMonitor(core.MonitorTypeCDNEdgeConsistency, core.MonitorConfig{
		BaselineURL: baseline.URL,
		EdgeURLs:    []string{edge1.URL, edge2.URL},
	}))
	require.NoError(t, err)
	assert.Equal(t, core.HistoryUp, result.Status)
}

func TestCDNServiceDegradedOnMismatch(t *testing.T) {
	baseline := httptest.NewServer(bodyHandler("same-content"))
	defer baseline.Close()
	edge1 := httptest.NewServer(bodyHandler("same-content"))
	defer edge1.Close()
	edge2 := httptest.NewServer(bodyHandler("stale-content"))
	defer edge2.Close()

	svc := NewCDNEdgeConsistencyService(httpclient.New(0, 0))
	result, err := svc.Check(context.Background(), testMonitor(core.MonitorTypeCDNEdgeConsistency, core.MonitorConfig{
		BaselineURL: baseline.URL,
		EdgeURLs:    []string{edge1.URL, edge2.URL},
	}))
	require.NoError(t, err)
	assert.Equal(t, core.HistoryDegraded, result.Status)
}

func TestCDNServiceDownWhenBaselineUnreachable(t *testing.T) {
	edge := httptest.NewServer(bodyHandler("content"))
	defer edge.Close()

	svc := NewCDNEdgeConsistencyService(httpclient.New(0, 0))
	result, err := svc.Check(context.Background(), testMonitor(core.MonitorTypeCDNEdgeConsistency, core.MonitorConfig{
		BaselineURL: "http://127.0.0.1:1",
		EdgeURLs:    []string{edge.URL},
	}))
	require.NoError(t, err)
	assert.Equal(t, core.HistoryDown, result.Status)
}
