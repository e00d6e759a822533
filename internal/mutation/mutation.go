// Package mutation implements the site mutation pipeline: manager-level
// invariant checks, a writer service that opens one transaction and only
// mutates shared state after commit, and the pure-SQL repository layer
// underneath it.
package mutation

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/eventbus"
	"github.com/nick2bad4u/uptime-watcher/internal/repository"
	"github.com/nick2bad4u/uptime-watcher/internal/scheduler"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

// Manager enforces invariants, runs the writer transaction, and emits the
// internal event describing what changed.
type Manager struct {
	engine    *storage.Engine
	sites     *repository.SiteRepository
	monitors  *repository.MonitorRepository
	cache     core.Cache
	scheduler *scheduler.Scheduler
	bus       *eventbus.Bus
	logger    *slog.Logger
}

// New constructs a Manager.
func New(
	engine *storage.Engine,
	sites *repository.SiteRepository,
	monitors *repository.MonitorRepository,
	cache core.Cache,
	sched *scheduler.Scheduler,
	bus *eventbus.Bus,
	logger *slog.Logger,
) *Manager {
	return &Manager{engine: engine, sites: sites, monitors: monitors, cache: cache, scheduler: sched, bus: bus, logger: logger}
}

// AddSite creates a new site. Fails if the identifier already exists or
// the site has no monitors.
func (m *Manager) AddSite(ctx context.Context, site core.Site) (core.Site, error) {
	if len(site.Monitors) == 0 {
		return core.Site{}, core.NewValidationError("mutation.AddSite", "a site must have at least one monitor", nil)
	}
	if err := core.Validator().Struct(site); err != nil {
		return core.Site{}, core.NewValidationError("mutation.AddSite", "site failed validation", err)
	}

	existing, err := m.sites.FindByIdentifier(ctx, site.Identifier)
	if err != nil {
		return core.Site{}, err
	}
	if existing != nil {
		return core.Site{}, core.ErrDuplicateSite
	}

	err = m.engine.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := m.sites.UpsertTx(ctx, tx, site); err != nil {
			return err
		}
		for _, mon := range site.Monitors {
			mon.SiteIdentifier = site.Identifier
			if _, err := m.monitors.UpsertTx(ctx, tx, mon); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Site{}, err
	}

	m.cache.Set(site.Identifier, site)
	for _, mon := range site.Monitors {
		if mon.Monitoring {
			m.scheduler.Add(mon.ID, mon.CheckInterval)
		}
	}
	m.publish("internal:site:added", site.Identifier, site)
	return site, nil
}

// UpdateSite overwrites a site's name/monitoring flag. Monitor membership
// changes go through AddMonitor/RemoveMonitor.
func (m *Manager) UpdateSite(ctx context.Context, site core.Site) (core.Site, error) {
	if err := core.Validator().Struct(site); err != nil {
		return core.Site{}, core.NewValidationError("mutation.UpdateSite", "site failed validation", err)
	}
	existing, err := m.sites.FindByIdentifier(ctx, site.Identifier)
	if err != nil {
		return core.Site{}, err
	}
	if existing == nil {
		return core.Site{}, core.NewNotFoundError("mutation.UpdateSite", "site not found")
	}

	err = m.engine.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := m.sites.UpsertTx(ctx, tx, site)
		return err
	})
	if err != nil {
		return core.Site{}, err
	}

	m.cache.Delete(site.Identifier)
	m.publish("internal:site:updated", site.Identifier, site)
	return site, nil
}

// RemoveSite deletes a site and cascades to its monitors and history.
func (m *Manager) RemoveSite(ctx context.Context, identifier string) error {
	monitors, err := m.monitors.FindAll(ctx, identifier)
	if err != nil {
		return err
	}

	removed, err := m.sites.Delete(ctx, identifier)
	if err != nil {
		return err
	}
	if !removed {
		return core.NewNotFoundError("mutation.RemoveSite", "site not found")
	}

	for _, mon := range monitors {
		m.scheduler.Remove(mon.ID)
	}
	m.cache.Delete(identifier)
	m.publish("internal:site:removed", identifier, map[string]any{"identifier": identifier, "cascade": true})
	return nil
}

// DeleteAllSites removes every site. Emits a single bulk event rather than
// one per site.
func (m *Manager) DeleteAllSites(ctx context.Context) error {
	sites, err := m.sites.FindAll(ctx)
	if err != nil {
		return err
	}

	if err := m.sites.DeleteAll(ctx); err != nil {
		return err
	}

	for _, site := range sites {
		monitors, err := m.monitors.FindAll(ctx, site.Identifier)
		if err != nil {
			continue
		}
		for _, mon := range monitors {
			m.scheduler.Remove(mon.ID)
		}
	}
	m.cache.Clear()
	m.publish("internal:site:removed", "", map[string]any{"cascade": true, "bulk": true})
	return nil
}

// AddMonitor attaches a new monitor to an existing site.
func (m *Manager) AddMonitor(ctx context.Context, monitor core.Monitor) (core.Monitor, error) {
	if err := core.Validator().Struct(monitor); err != nil {
		return core.Monitor{}, core.NewValidationError("mutation.AddMonitor", "monitor failed validation", err)
	}
	site, err := m.sites.FindByIdentifier(ctx, monitor.SiteIdentifier)
	if err != nil {
		return core.Monitor{}, err
	}
	if site == nil {
		return core.Monitor{}, core.NewNotFoundError("mutation.AddMonitor", "site not found")
	}

	err = m.engine.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := m.monitors.UpsertTx(ctx, tx, monitor)
		return err
	})
	if err != nil {
		return core.Monitor{}, err
	}

	if monitor.Monitoring {
		m.scheduler.Add(monitor.ID, monitor.CheckInterval)
	}
	m.cache.Delete(monitor.SiteIdentifier)
	m.publish("internal:monitor:added", monitor.SiteIdentifier, monitor)
	return monitor, nil
}

// UpdateMonitor overwrites a monitor's configuration, reconciling its
// scheduler entry if monitoring state or interval changed.
func (m *Manager) UpdateMonitor(ctx context.Context, monitor core.Monitor) (core.Monitor, error) {
	if err := core.Validator().Struct(monitor); err != nil {
		return core.Monitor{}, core.NewValidationError("mutation.UpdateMonitor", "monitor failed validation", err)
	}
	existing, err := m.monitors.FindByID(ctx, monitor.ID)
	if err != nil {
		return core.Monitor{}, err
	}
	if existing == nil {
		return core.Monitor{}, core.NewNotFoundError("mutation.UpdateMonitor", "monitor not found")
	}

	err = m.engine.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := m.monitors.UpsertTx(ctx, tx, monitor)
		return err
	})
	if err != nil {
		return core.Monitor{}, err
	}

	switch {
	case !existing.Monitoring && monitor.Monitoring:
		m.scheduler.Add(monitor.ID, monitor.CheckInterval)
	case existing.Monitoring && !monitor.Monitoring:
		m.scheduler.Remove(monitor.ID)
	case monitor.Monitoring && existing.CheckInterval != monitor.CheckInterval:
		m.scheduler.Reschedule(monitor.ID, monitor.CheckInterval)
	}

	m.cache.Delete(monitor.SiteIdentifier)
	m.publish("internal:monitor:status-changed", monitor.SiteIdentifier, monitor)
	return monitor, nil
}

// RemoveMonitor deletes a monitor, refusing to remove a site's last one.
func (m *Manager) RemoveMonitor(ctx context.Context, siteIdentifier, monitorID string) error {
	count, err := m.monitors.CountForSite(ctx, siteIdentifier)
	if err != nil {
		return err
	}
	if count <= 1 {
		return core.ErrLastMonitor
	}

	removed, err := m.monitors.Delete(ctx, monitorID)
	if err != nil {
		return err
	}
	if !removed {
		return core.NewNotFoundError("mutation.RemoveMonitor", "monitor not found")
	}

	m.scheduler.Remove(monitorID)
	m.cache.Delete(siteIdentifier)
	m.publish("internal:monitor:removed", siteIdentifier, map[string]any{"monitorId": monitorID})
	return nil
}

// publish emits an internal event. siteIdentifier is informational for
// callers that pass a payload without it embedded (e.g. bulk operations);
// struct payloads that already carry the site (core.Site's "identifier",
// core.Monitor's "siteIdentifier") are published unchanged since the
// orchestrator resolves the site from them directly.
func (m *Manager) publish(name, siteIdentifier string, payload any) {
	if m.bus == nil {
		return
	}
	if asMap, ok := payload.(map[string]any); ok && siteIdentifier != "" {
		if _, exists := asMap["siteIdentifier"]; !exists {
			asMap["siteIdentifier"] = siteIdentifier
		}
	}
	if err := m.bus.Publish(eventbus.NewEvent(name, payload, "")); err != nil {
		m.logger.Debug("mutation event publish dropped", "event", name, "error", err)
	}
}
