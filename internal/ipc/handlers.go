package ipc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/lifecycle"
	"github.com/nick2bad4u/uptime-watcher/internal/mutation"
	"github.com/nick2bad4u/uptime-watcher/internal/orchestrator"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

// SchemaVersion is reported in save-sqlite-backup's metadata.
const SchemaVersion = 1

// AppVersion is reported in save-sqlite-backup's metadata. Overridden at
// build time via -ldflags.
var AppVersion = "dev"

// Services bundles the subsystems the default channel set dispatches into.
type Services struct {
	Mutation     *mutation.Manager
	Lifecycle    *lifecycle.Manager
	Orchestrator *orchestrator.Orchestrator
	Engine       *storage.Engine
	BackupDir    string
}

// RegisterDefaultHandlers wires every supported channel onto reg.
func RegisterDefaultHandlers(reg *Registry, svc *Services) error {
	handlers := map[string]Handler{
		"get-sites":                      svc.getSites,
		"add-site":                       svc.addSite,
		"update-site":                    svc.updateSite,
		"remove-site":                    svc.removeSite,
		"delete-all-sites":               svc.deleteAllSites,
		"add-monitor":                    svc.addMonitor,
		"update-monitor":                 svc.updateMonitor,
		"remove-monitor":                 svc.removeMonitor,
		"check-site-now":                 svc.checkSiteNow,
		"start-monitoring-for-monitor":   svc.startMonitoringForMonitor,
		"stop-monitoring-for-monitor":    svc.stopMonitoringForMonitor,
		"start-monitoring-for-site":      svc.startMonitoringForSite,
		"stop-monitoring-for-site":       svc.stopMonitoringForSite,
		"start-monitoring":               svc.startMonitoring,
		"stop-monitoring":                svc.stopMonitoring,
		"get-history-limit":              svc.getHistoryLimit,
		"update-history-limit":           svc.updateHistoryLimit,
		"save-sqlite-backup":             svc.saveSQLiteBackup,
		"diagnostics:verify-handlers":    reg.VerifyHandlers,
	}
	for name, handler := range handlers {
		if err := reg.Register(name, handler); err != nil {
			return err
		}
	}
	return nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", core.NewValidationError("ipc", fmt.Sprintf("parameter %q is required", key), nil)
	}
	return v, nil
}

func decodeParam[T any](params map[string]any, key string) (T, error) {
	var out T
	raw, ok := params[key]
	if !ok {
		return out, core.NewValidationError("ipc", fmt.Sprintf("parameter %q is required", key), nil)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, core.NewValidationError("ipc", fmt.Sprintf("parameter %q is malformed", key), err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, core.NewValidationError("ipc", fmt.Sprintf("parameter %q does not match the expected shape", key), err)
	}
	return out, nil
}

func (s *Services) getSites(ctx context.Context, _ map[string]any) (any, error) {
	sites, err := s.Orchestrator.FullSync(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sites, nil
}

func (s *Services) addSite(ctx context.Context, params map[string]any) (any, error) {
	site, err := decodeParam[core.Site](params, "site")
	if err != nil {
		return nil, err
	}
	return s.Mutation.AddSite(ctx, site)
}

func (s *Services) updateSite(ctx context.Context, params map[string]any) (any, error) {
	identifier, err := stringParam(params, "identifier")
	if err != nil {
		return nil, err
	}
	changes, err := decodeParam[core.Site](params, "changes")
	if err != nil {
		return nil, err
	}
	changes.Identifier = identifier
	return s.Mutation.UpdateSite(ctx, changes)
}

func (s *Services) removeSite(ctx context.Context, params map[string]any) (any, error) {
	identifier, err := stringParam(params, "identifier")
	if err != nil {
		return nil, err
	}
	if err := s.Mutation.RemoveSite(ctx, identifier); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Services) deleteAllSites(ctx context.Context, _ map[string]any) (any, error) {
	if err := s.Mutation.DeleteAllSites(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Services) addMonitor(ctx context.Context, params map[string]any) (any, error) {
	monitor, err := decodeParam[core.Monitor](params, "monitor")
	if err != nil {
		return nil, err
	}
	return s.Mutation.AddMonitor(ctx, monitor)
}

func (s *Services) updateMonitor(ctx context.Context, params map[string]any) (any, error) {
	monitor, err := decodeParam[core.Monitor](params, "monitor")
	if err != nil {
		return nil, err
	}
	return s.Mutation.UpdateMonitor(ctx, monitor)
}

func (s *Services) removeMonitor(ctx context.Context, params map[string]any) (any, error) {
	siteID, err := stringParam(params, "siteId")
	if err != nil {
		return nil, err
	}
	monitorID, err := stringParam(params, "monitorId")
	if err != nil {
		return nil, err
	}
	if err := s.Mutation.RemoveMonitor(ctx, siteID, monitorID); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Services) checkSiteNow(ctx context.Context, params map[string]any) (any, error) {
	siteID, err := stringParam(params, "siteId")
	if err != nil {
		return nil, err
	}
	monitorID, err := stringParam(params, "monitorId")
	if err != nil {
		return nil, err
	}
	update, err := s.Orchestrator.CheckSiteNow(ctx, siteID, monitorID)
	if err != nil {
		return nil, err
	}
	return update, nil
}

func (s *Services) startMonitoringForMonitor(ctx context.Context, params map[string]any) (any, error) {
	monitorID, err := stringParam(params, "monitorId")
	if err != nil {
		return nil, err
	}
	if err := s.Lifecycle.StartMonitor(ctx, monitorID); err != nil {
		return nil, err
	}
	return lifecycle.Summary{Attempted: 1, Succeeded: 1}, nil
}

func (s *Services) stopMonitoringForMonitor(ctx context.Context, params map[string]any) (any, error) {
	monitorID, err := stringParam(params, "monitorId")
	if err != nil {
		return nil, err
	}
	if err := s.Lifecycle.StopMonitor(ctx, monitorID); err != nil {
		return nil, err
	}
	return lifecycle.Summary{Attempted: 1, Succeeded: 1}, nil
}

func (s *Services) startMonitoringForSite(ctx context.Context, params map[string]any) (any, error) {
	siteID, err := stringParam(params, "siteId")
	if err != nil {
		return nil, err
	}
	return s.Lifecycle.StartSite(ctx, siteID)
}

func (s *Services) stopMonitoringForSite(ctx context.Context, params map[string]any) (any, error) {
	siteID, err := stringParam(params, "siteId")
	if err != nil {
		return nil, err
	}
	return s.Lifecycle.StopSite(ctx, siteID)
}

func (s *Services) startMonitoring(ctx context.Context, _ map[string]any) (any, error) {
	return s.Lifecycle.StartAll(ctx)
}

func (s *Services) stopMonitoring(ctx context.Context, _ map[string]any) (any, error) {
	return s.Lifecycle.StopAll(ctx)
}

func (s *Services) getHistoryLimit(ctx context.Context, _ map[string]any) (any, error) {
	return s.Orchestrator.HistoryLimit(ctx)
}

func (s *Services) updateHistoryLimit(ctx context.Context, params map[string]any) (any, error) {
	limit, ok := params["limit"].(float64)
	if !ok {
		return nil, core.NewValidationError("ipc.updateHistoryLimit", "parameter \"limit\" must be a number", nil)
	}
	return s.Orchestrator.UpdateHistoryLimit(ctx, limit)
}

func (s *Services) saveSQLiteBackup(ctx context.Context, _ map[string]any) (any, error) {
	fileName := fmt.Sprintf("uptimewatcher-backup-%s.db", time.Now().UTC().Format("20060102T150405Z"))
	destPath := s.BackupDir + string(os.PathSeparator) + fileName

	if err := s.Engine.VacuumInto(ctx, destPath); err != nil {
		return nil, err
	}
	defer os.Remove(destPath)

	buffer, err := os.ReadFile(destPath)
	if err != nil {
		return nil, core.NewTransactionError("ipc.saveSQLiteBackup", "failed to read backup file", err)
	}
	sum := sha256.Sum256(buffer)

	return map[string]any{
		"buffer":   buffer,
		"fileName": fileName,
		"metadata": map[string]any{
			"appVersion":        AppVersion,
			"checksum":          hex.EncodeToString(sum[:]),
			"schemaVersion":     SchemaVersion,
			"sizeBytes":         len(buffer),
			"retentionHintDays": 30,
		},
	}, nil
}
