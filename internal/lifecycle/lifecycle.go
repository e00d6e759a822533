// Package lifecycle provides idempotent start/stop operations over
// monitors, sites, and the whole fleet, batching sequentially to respect
// the single-writer SQLite invariant.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/repository"
	"github.com/nick2bad4u/uptime-watcher/internal/scheduler"
)

// FailedMonitor records why a single monitor's lifecycle transition failed
// within a batch operation.
type FailedMonitor struct {
	MonitorID string
	Reason    string
}

// Summary reports the outcome of a batch lifecycle operation.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    []FailedMonitor
}

// Manager implements the lifecycle operations.
type Manager struct {
	monitors  *repository.MonitorRepository
	sites     *repository.SiteRepository
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// New constructs a Manager.
func New(monitors *repository.MonitorRepository, sites *repository.SiteRepository, sched *scheduler.Scheduler, logger *slog.Logger) *Manager {
	return &Manager{monitors: monitors, sites: sites, scheduler: sched, logger: logger}
}

func (m *Manager) setMonitoring(ctx context.Context, monitorID string, monitoring bool) error {
	mon, err := m.monitors.FindByID(ctx, monitorID)
	if err != nil {
		return err
	}
	if mon == nil {
		return core.NewNotFoundError("lifecycle.setMonitoring", "monitor not found")
	}
	if mon.Monitoring == monitoring {
		return nil // idempotent: already in the desired state
	}

	mon.Monitoring = monitoring
	if _, err := m.monitors.Upsert(ctx, *mon); err != nil {
		return err
	}

	if monitoring {
		m.scheduler.Add(mon.ID, mon.CheckInterval)
	} else {
		m.scheduler.Remove(mon.ID)
	}
	return nil
}

// StartMonitor begins scheduling monitorID.
func (m *Manager) StartMonitor(ctx context.Context, monitorID string) error {
	return m.setMonitoring(ctx, monitorID, true)
}

// StopMonitor stops scheduling monitorID.
func (m *Manager) StopMonitor(ctx context.Context, monitorID string) error {
	return m.setMonitoring(ctx, monitorID, false)
}

func (m *Manager) batchSetMonitoring(ctx context.Context, monitorIDs []string, monitoring bool) Summary {
	summary := Summary{Attempted: len(monitorIDs)}
	for _, id := range monitorIDs {
		if err := m.setMonitoring(ctx, id, monitoring); err != nil {
			summary.Failed = append(summary.Failed, FailedMonitor{MonitorID: id, Reason: err.Error()})
			continue
		}
		summary.Succeeded++
	}
	return summary
}

// StartSite starts every monitor belonging to siteIdentifier.
func (m *Manager) StartSite(ctx context.Context, siteIdentifier string) (Summary, error) {
	return m.batchSite(ctx, siteIdentifier, true)
}

// StopSite stops every monitor belonging to siteIdentifier.
func (m *Manager) StopSite(ctx context.Context, siteIdentifier string) (Summary, error) {
	return m.batchSite(ctx, siteIdentifier, false)
}

func (m *Manager) batchSite(ctx context.Context, siteIdentifier string, monitoring bool) (Summary, error) {
	monitors, err := m.monitors.FindAll(ctx, siteIdentifier)
	if err != nil {
		return Summary{}, err
	}
	ids := make([]string, len(monitors))
	for i, mon := range monitors {
		ids[i] = mon.ID
	}
	return m.batchSetMonitoring(ctx, ids, monitoring), nil
}

// StartAll starts every monitor across every site.
func (m *Manager) StartAll(ctx context.Context) (Summary, error) {
	return m.batchAll(ctx, true)
}

// StopAll stops every monitor across every site.
func (m *Manager) StopAll(ctx context.Context) (Summary, error) {
	return m.batchAll(ctx, false)
}

func (m *Manager) batchAll(ctx context.Context, monitoring bool) (Summary, error) {
	sites, err := m.sites.FindAll(ctx)
	if err != nil {
		return Summary{}, err
	}

	var ids []string
	for _, site := range sites {
		monitors, err := m.monitors.FindAll(ctx, site.Identifier)
		if err != nil {
			return Summary{}, err
		}
		for _, mon := range monitors {
			ids = append(ids, mon.ID)
		}
	}
	return m.batchSetMonitoring(ctx, ids, monitoring), nil
}
