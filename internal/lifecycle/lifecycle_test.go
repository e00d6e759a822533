package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/repository"
	"github.com/nick2bad4u/uptime-watcher/internal/scheduler"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMonitor(id, siteIdentifier string, monitoring bool) core.Monitor {
	return core.Monitor{
		ID:               id,
		SiteIdentifier:   siteIdentifier,
		Type:             core.MonitorTypeHTTP,
		Monitoring:       monitoring,
		Status:           core.StatusPending,
		CheckInterval:    time.Minute,
		Timeout:          10 * time.Second,
		ActiveOperations: []string{},
		Config:           core.MonitorConfig{URL: "https://example.com"},
	}
}

type harness struct {
	manager  *Manager
	monitors *repository.MonitorRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := testLogger()
	path := filepath.Join(t.TempDir(), "uptimewatcher.db")
	engine, err := storage.Open(context.Background(), path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	sites := repository.NewSiteRepository(engine, logger)
	monitors := repository.NewMonitorRepository(engine, logger)
	sched := scheduler.New(scheduler.Config{BackoffMultiplier: 2, BackoffCeilingFactor: 10}, func(ctx context.Context, monitorID string) bool {
		return true
	}, logger, nil)

	_, err = sites.Upsert(context.Background(), core.Site{Identifier: "site-1", Name: "Example"})
	require.NoError(t, err)

	return &harness{manager: New(monitors, sites, sched, logger), monitors: monitors}
}

func TestStartMonitorIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.monitors.Upsert(ctx, testMonitor("mon-1", "site-1", false))
	require.NoError(t, err)

	require.NoError(t, h.manager.StartMonitor(ctx, "mon-1"))
	got, err := h.monitors.FindByID(ctx, "mon-1")
	require.NoError(t, err)
	assert.True(t, got.Monitoring)

	// already started: must be a no-op, not an error.
	require.NoError(t, h.manager.StartMonitor(ctx, "mon-1"))
}

func TestStopMonitorUnknownReturnsNotFound(t *testing.T) {
	h := newHarness(t)
	err := h.manager.StopMonitor(context.Background(), "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestStartSiteReportsSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.monitors.Upsert(ctx, testMonitor("mon-1", "site-1", false))
	require.NoError(t, err)
	_, err = h.monitors.Upsert(ctx, testMonitor("mon-2", "site-1", false))
	require.NoError(t, err)

	summary, err := h.manager.StartSite(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Empty(t, summary.Failed)
}

func TestStopAllAcrossEverySite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.monitors.Upsert(ctx, testMonitor("mon-1", "site-1", true))
	require.NoError(t, err)

	summary, err := h.manager.StopAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)

	got, err := h.monitors.FindByID(ctx, "mon-1")
	require.NoError(t, err)
	assert.False(t, got.Monitoring)
}

func TestBatchReportsFailuresForMissingMonitors(t *testing.T) {
	h := newHarness(t)
	summary := h.manager.batchSetMonitoring(context.Background(), []string{"missing-1", "missing-2"}, true)
	assert.Equal(t, 2, summary.Attempted)
	assert.Zero(t, summary.Succeeded)
	assert.Len(t, summary.Failed, 2)
}
