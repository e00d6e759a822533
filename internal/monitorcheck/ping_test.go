package monitorcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

func TestPingServiceRequiresHost(t *testing.T) {
	svc := NewPingService()
	_, err := svc.Check(context.Background(), testMonitor(core.MonitorTypePing, core.MonitorConfig{}))
	assert.True(t, core.IsValidation(err))
}
