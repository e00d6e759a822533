// Package orchestrator bridges the internal event bus to the public one,
// enriching sanitized payloads with full site snapshots from the cache,
// and owns the handful of cross-cutting operations (full sync, history
// retention updates, the manual-check fast path) that need both.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/checker"
	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/eventbus"
	"github.com/nick2bad4u/uptime-watcher/internal/repository"
)

const (
	// DefaultHistoryLimit applies when a setting value normalizes away
	// (negative, non-finite, or absent).
	DefaultHistoryLimit = 1000
	// HistoryLimitCeiling bounds the per-monitor history ring size.
	HistoryLimitCeiling = 1_000_000
)

// StatusUpdate is the enriched payload returned from the manual-check fast
// path and mirrored onto monitor:status-changed/check-completed broadcasts.
type StatusUpdate struct {
	MonitorID    string
	Status       core.MonitorStatus
	ResponseTime time.Duration
	Details      string
	Site         *core.Site
	Timestamp    time.Time
}

// SyncDelta describes what changed since the previous full sync, attached
// to sites:state-synchronized when known.
type SyncDelta struct {
	Added   []string
	Updated []string
	Removed []string
}

// Orchestrator wires the internal bus to the public bus.
type Orchestrator struct {
	internalBus *eventbus.Bus
	publicBus   *eventbus.Bus
	cache       core.Cache
	sites       *repository.SiteRepository
	monitors    *repository.MonitorRepository
	settings    *repository.SettingsRepository
	checker     *checker.Checker
	logger      *slog.Logger

	sub *eventbus.ChannelSubscriber
}

// New constructs an Orchestrator. checker may be nil in tests that do not
// exercise the manual-check fast path.
func New(
	internalBus, publicBus *eventbus.Bus,
	cache core.Cache,
	sites *repository.SiteRepository,
	monitors *repository.MonitorRepository,
	settings *repository.SettingsRepository,
	chk *checker.Checker,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		internalBus: internalBus,
		publicBus:   publicBus,
		cache:       cache,
		sites:       sites,
		monitors:    monitors,
		settings:    settings,
		checker:     chk,
		logger:      logger,
	}
}

// Start subscribes to the internal bus and begins translating events onto
// the public bus. Call Stop to unsubscribe.
func (o *Orchestrator) Start(ctx context.Context) {
	o.sub = eventbus.NewChannelSubscriber("orchestrator", 256)
	o.internalBus.Subscribe(o.sub)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-o.sub.Context().Done():
				return
			case event, ok := <-o.sub.Events():
				if !ok {
					return
				}
				o.relay(ctx, event)
			}
		}
	}()
}

// Stop unsubscribes from the internal bus.
func (o *Orchestrator) Stop() {
	if o.sub == nil {
		return
	}
	o.internalBus.Unsubscribe(o.sub.ID())
}

// publicTopics maps an internal event name to its public counterpart. A
// missing entry means the event never crosses the boundary.
var publicTopics = map[string]string{
	"internal:site:added":            "site:added",
	"internal:site:updated":          "site:updated",
	"internal:site:removed":          "site:removed",
	"internal:monitor:added":         "monitor:status-changed",
	"internal:monitor:status-changed": "monitor:status-changed",
	"internal:monitor:check-completed": "monitor:check-completed",
	"internal:monitor:removed":       "monitor:status-changed",
	"internal:monitoring:started":    "monitoring:started",
	"internal:monitoring:stopped":    "monitoring:stopped",
}

func (o *Orchestrator) relay(ctx context.Context, event eventbus.Event) {
	public, ok := publicTopics[event.Name]
	if !ok {
		return
	}

	payload, err := event.ClonedPayload()
	if err != nil {
		o.logger.Warn("failed to clone event payload for relay", "event", event.Name, "error", err)
		return
	}

	siteIdentifier, _ := payload["siteIdentifier"].(string)
	if siteIdentifier == "" {
		siteIdentifier, _ = payload["identifier"].(string)
	}
	if siteIdentifier == "" {
		if monitorID, ok := payload["monitorId"].(string); ok && monitorID != "" {
			if monitor, err := o.monitors.FindByID(ctx, monitorID); err == nil && monitor != nil {
				siteIdentifier = monitor.SiteIdentifier
			}
		}
	}
	if siteIdentifier != "" {
		if site, found, err := o.cache.Get(ctx, siteIdentifier); err == nil && found {
			payload["site"] = site
			payload["siteIdentifier"] = siteIdentifier
		}
	}

	if err := o.publicBus.Publish(eventbus.NewEvent(public, payload, event.Meta.CorrelationID)); err != nil {
		o.logger.Debug("public event publish dropped", "event", public, "error", err)
	}
}

// FullSync returns the sanitized, de-duplicated site list and publishes
// sites:state-synchronized with an optional delta.
func (o *Orchestrator) FullSync(ctx context.Context, delta *SyncDelta) ([]core.Site, error) {
	sites, err := o.sites.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	dedup := make(map[string]core.Site, len(sites))
	for _, s := range sites {
		monitors, err := o.monitors.FindAll(ctx, s.Identifier)
		if err != nil {
			return nil, err
		}
		s.Monitors = monitors
		dedup[s.Identifier] = s
		o.cache.Set(s.Identifier, s)
	}

	out := make([]core.Site, 0, len(dedup))
	for _, s := range dedup {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })

	payload := map[string]any{"sites": out}
	if delta != nil {
		payload["delta"] = delta
	}
	if err := o.publicBus.Publish(eventbus.NewEvent("sites:state-synchronized", payload, "")); err != nil {
		o.logger.Debug("sites:state-synchronized publish dropped", "error", err)
	}
	return out, nil
}

// NormalizeHistoryLimit applies the retention normalization rules: negative
// or non-finite values fall back to the default, fractional values floor,
// and values above the ceiling clamp.
func NormalizeHistoryLimit(value float64) int {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return DefaultHistoryLimit
	}
	n := int(math.Floor(value))
	if n > HistoryLimitCeiling {
		return HistoryLimitCeiling
	}
	return n
}

// UpdateHistoryLimit normalizes newValue, persists it, and publishes
// settings:history-limit-updated with the old and new values. Returns the
// normalized value actually stored.
func (o *Orchestrator) UpdateHistoryLimit(ctx context.Context, newValue float64) (int, error) {
	normalized := NormalizeHistoryLimit(newValue)

	previous := DefaultHistoryLimit
	if raw, found, err := o.settings.Get(ctx, core.SettingHistoryLimit); err != nil {
		return 0, err
	} else if found {
		if v, err := strconv.Atoi(raw); err == nil {
			previous = v
		}
	}

	if err := o.settings.Set(ctx, core.SettingHistoryLimit, strconv.Itoa(normalized)); err != nil {
		return 0, err
	}

	payload := map[string]any{"newValue": normalized, "previousValue": previous}
	if err := o.publicBus.Publish(eventbus.NewEvent("settings:history-limit-updated", payload, "")); err != nil {
		o.logger.Debug("settings:history-limit-updated publish dropped", "error", err)
	}
	return normalized, nil
}

// HistoryLimit returns the current normalized history retention setting.
func (o *Orchestrator) HistoryLimit(ctx context.Context) (int, error) {
	raw, found, err := o.settings.Get(ctx, core.SettingHistoryLimit)
	if err != nil {
		return 0, err
	}
	if !found {
		return DefaultHistoryLimit, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultHistoryLimit, nil
	}
	return v, nil
}

// CheckSiteNow runs a manual check for monitorID and returns an enriched
// StatusUpdate directly, ahead of the async broadcast the checker's own
// event emission will also produce on the internal bus.
func (o *Orchestrator) CheckSiteNow(ctx context.Context, siteIdentifier, monitorID string) (StatusUpdate, error) {
	if o.checker == nil {
		return StatusUpdate{}, errors.New("orchestrator: no checker configured")
	}

	result, err := o.checker.Run(ctx, monitorID, true)
	if err != nil && !errors.Is(err, core.ErrAborted) {
		return StatusUpdate{}, err
	}

	monitor, lookupErr := o.monitors.FindByID(ctx, monitorID)
	if lookupErr != nil || monitor == nil {
		return StatusUpdate{}, err
	}

	update := StatusUpdate{
		MonitorID:    monitorID,
		Status:       monitor.Status,
		ResponseTime: result.ResponseTime,
		Details:      result.Details,
		Timestamp:    time.Now(),
	}
	if site, found, cacheErr := o.cache.Get(ctx, siteIdentifier); cacheErr == nil && found {
		update.Site = &site
	}
	return update, err
}
