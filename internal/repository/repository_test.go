package repository

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
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

func newTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "uptimewatcher.db")
	engine, err := storage.Open(context.Background(), path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMonitor(id, siteIdentifier string) core.Monitor {
	return core.Monitor{
		ID:               id,
		SiteIdentifier:   siteIdentifier,
		Type:             core.MonitorTypeHTTP,
		Monitoring:       true,
		Status:           core.StatusPending,
		CheckInterval:    time.Minute,
		Timeout:          10 * time.Second,
		RetryAttempts:    3,
		ActiveOperations: []string{},
		Config:           core.MonitorConfig{URL: "https://example.com"},
	}
}

func TestSiteUpsertAndFindByIdentifier(t *testing.T) {
	engine := newTestEngine(t)
	sites := NewSiteRepository(engine, testLogger())
	ctx := context.Background()

	_, err := sites.Upsert(ctx, core.Site{Identifier: "site-1", Name: "Example", Monitoring: true})
	require.NoError(t, err)

	got, err := sites.FindByIdentifier(ctx, "site-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Example", got.Name)
	assert.True(t, got.Monitoring)

	_, err = sites.Upsert(ctx, core.Site{Identifier: "site-1", Name: "Renamed", Monitoring: false})
	require.NoError(t, err)

	got, err = sites.FindByIdentifier(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.False(t, got.Monitoring)
}

func TestFindByIdentifierReturnsNilWhenAbsent(t *testing.T) {
	engine := newTestEngine(t)
	sites := NewSiteRepository(engine, testLogger())

	got, err := sites.FindByIdentifier(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteSiteCascadesToMonitorsAndHistory(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	sites := NewSiteRepository(engine, testLogger())
	monitors := NewMonitorRepository(engine, testLogger())
	history := NewHistoryRepository(engine, testLogger())

	_, err := sites.Upsert(ctx, core.Site{Identifier: "site-1", Name: "Example"})
	require.NoError(t, err)
	_, err = monitors.Upsert(ctx, testMonitor("mon-1", "site-1"))
	require.NoError(t, err)
	require.NoError(t, history.Insert(ctx, core.HistoryEntry{
		MonitorID: "mon-1", Timestamp: time.Now(), Status: core.HistoryUp, ResponseTime: time.Millisecond,
	}))

	removed, err := sites.Delete(ctx, "site-1")
	require.NoError(t, err)
	assert.True(t, removed)

	mon, err := monitors.FindByID(ctx, "mon-1")
	require.NoError(t, err)
	assert.Nil(t, mon, "deleting a site must cascade-delete its monitors")

	count, err := history.CountForMonitor(ctx, "mon-1")
	require.NoError(t, err)
	assert.Zero(t, count, "deleting a site must cascade-delete its monitors' history")
}

func TestDeleteMonitorCascadesToHistory(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	sites := NewSiteRepository(engine, testLogger())
	monitors := NewMonitorRepository(engine, testLogger())
	history := NewHistoryRepository(engine, testLogger())

	_, err := sites.Upsert(ctx, core.Site{Identifier: "site-1", Name: "Example"})
	require.NoError(t, err)
	_, err = monitors.Upsert(ctx, testMonitor("mon-1", "site-1"))
	require.NoError(t, err)
	require.NoError(t, history.Insert(ctx, core.HistoryEntry{
		MonitorID: "mon-1", Timestamp: time.Now(), Status: core.HistoryUp, ResponseTime: time.Millisecond,
	}))

	removed, err := monitors.Delete(ctx, "mon-1")
	require.NoError(t, err)
	assert.True(t, removed)

	count, err := history.CountForMonitor(ctx, "mon-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountForSiteReflectsMonitorCount(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	sites := NewSiteRepository(engine, testLogger())
	monitors := NewMonitorRepository(engine, testLogger())

	_, err := sites.Upsert(ctx, core.Site{Identifier: "site-1", Name: "Example"})
	require.NoError(t, err)

	n, err := monitors.CountForSite(ctx, "site-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = monitors.Upsert(ctx, testMonitor("mon-1", "site-1"))
	require.NoError(t, err)
	_, err = monitors.Upsert(ctx, testMonitor("mon-2", "site-1"))
	require.NoError(t, err)

	n, err = monitors.CountForSite(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPruneOldestKeepsNewestRows(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	sites := NewSiteRepository(engine, testLogger())
	monitors := NewMonitorRepository(engine, testLogger())
	history := NewHistoryRepository(engine, testLogger())

	_, err := sites.Upsert(ctx, core.Site{Identifier: "site-1", Name: "Example"})
	require.NoError(t, err)
	_, err = monitors.Upsert(ctx, testMonitor("mon-1", "site-1"))
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		require.NoError(t, history.Insert(ctx, core.HistoryEntry{
			MonitorID: "mon-1", Timestamp: base.Add(time.Duration(i) * time.Second),
			Status: core.HistoryUp, ResponseTime: time.Millisecond,
		}))
	}

	removed, err := history.PruneOldest(ctx, "mon-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, removed)

	remaining, err := history.FindByMonitorID(ctx, "mon-1", 100, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	// newest first: the three surviving rows must be the most recent ones.
	assert.True(t, remaining[0].Timestamp.After(remaining[1].Timestamp) || remaining[0].Timestamp.Equal(remaining[1].Timestamp))
}

func TestSettingsSetAndGetRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	settings := NewSettingsRepository(engine, testLogger())

	_, found, err := settings.Get(ctx, core.SettingHistoryLimit)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, settings.Set(ctx, core.SettingHistoryLimit, "500"))

	value, found, err := settings.Get(ctx, core.SettingHistoryLimit)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "500", value)

	require.NoError(t, settings.Set(ctx, core.SettingHistoryLimit, "1000"))
	value, _, err = settings.Get(ctx, core.SettingHistoryLimit)
	require.NoError(t, err)
	assert.Equal(t, "1000", value)
}

func TestMonitorUpsertRoundTripsConfigAndActiveOperations(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	sites := NewSiteRepository(engine, testLogger())
	monitors := NewMonitorRepository(engine, testLogger())

	_, err := sites.Upsert(ctx, core.Site{Identifier: "site-1", Name: "Example"})
	require.NoError(t, err)

	m := testMonitor("mon-1", "site-1")
	m.ActiveOperations = []string{"op-1", "op-2"}
	_, err = monitors.Upsert(ctx, m)
	require.NoError(t, err)

	got, err := monitors.FindByID(ctx, "mon-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"op-1", "op-2"}, got.ActiveOperations)
	assert.Equal(t, "https://example.com", got.Config.URL)
}
