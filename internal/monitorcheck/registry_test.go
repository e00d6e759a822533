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

func TestStrategyRegistryDispatchesEveryHTTPFamilyType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := NewStrategyRegistry(Dependencies{HTTPClient: httpclient.New(0, 0)})

	for _, mt := range []core.MonitorType{
		core.MonitorTypeHTTP, core.MonitorTypeHTTPStatus, core.MonitorTypeHTTPKeyword,
		core.MonitorTypeHTTPHeader, core.MonitorTypeHTTPJSON, core.MonitorTypeHTTPLatency,
	} {
		t.Run(string(mt), func(t *testing.T) {
			_, err := registry.Check(context.Background(), testMonitor(mt, core.MonitorConfig{URL: server.URL}))
			require.NoError(t, err)
		})
	}
}

func TestStrategyRegistryReturnsErrorForUnregisteredType(t *testing.T) {
	registry := NewStrategyRegistry(Dependencies{HTTPClient: httpclient.New(0, 0)})
	_, err := registry.Check(context.Background(), testMonitor(core.MonitorType("unknown"), core.MonitorConfig{}))
	assert.Error(t, err)
}
