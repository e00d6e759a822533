package monitorcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

func TestDNSServiceRequiresHost(t *testing.T) {
	svc := NewDNSService()
	_, err := svc.Check(context.Background(), testMonitor(core.MonitorTypeDNS, core.MonitorConfig{}))
	assert.True(t, core.IsValidation(err))
}

func TestDNSServiceDefaultsToARecord(t *testing.T) {
	svc := NewDNSService()
	m := testMonitor(core.MonitorTypeDNS, core.MonitorConfig{Host: "localhost"})
	result, err := svc.Check(context.Background(), m)
	// localhost resolves in virtually every network namespace, including
	// one without outbound internet access.
	assert.NoError(t, err)
	assert.Equal(t, core.HistoryUp, result.Status)
}
