// Package monitorcheck implements one core.Service per monitor type tag,
// dispatched through a StrategyRegistry keyed by core.MonitorType. There is
// no open extension point: adding a monitor type means adding an entry
// here and to the closed core.MonitorType enum.
package monitorcheck

import (
	"context"
	"fmt"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// StrategyRegistry dispatches a check to the core.Service registered for
// its monitor type.
type StrategyRegistry struct {
	services map[core.MonitorType]core.Service
}

// NewStrategyRegistry constructs a registry with every built-in monitor
// type registered.
func NewStrategyRegistry(deps Dependencies) *StrategyRegistry {
	r := &StrategyRegistry{services: make(map[core.MonitorType]core.Service)}

	httpSvc := NewHTTPService(deps.HTTPClient)
	r.register(core.MonitorTypeHTTP, httpSvc)
	r.register(core.MonitorTypeHTTPStatus, httpSvc)
	r.register(core.MonitorTypeHTTPKeyword, httpSvc)
	r.register(core.MonitorTypeHTTPHeader, httpSvc)
	r.register(core.MonitorTypeHTTPJSON, httpSvc)
	r.register(core.MonitorTypeHTTPLatency, httpSvc)

	r.register(core.MonitorTypePort, NewPortService())
	r.register(core.MonitorTypePing, NewPingService())
	r.register(core.MonitorTypeDNS, NewDNSService())
	r.register(core.MonitorTypeSSL, NewSSLService())
	r.register(core.MonitorTypeWebSocketKeepalive, NewWebSocketService())
	r.register(core.MonitorTypeServerHeartbeat, NewServerHeartbeatService(deps.HTTPClient))
	r.register(core.MonitorTypeReplication, NewReplicationService(deps.HTTPClient))
	r.register(core.MonitorTypeCDNEdgeConsistency, NewCDNEdgeConsistencyService(deps.HTTPClient))

	return r
}

func (r *StrategyRegistry) register(t core.MonitorType, svc core.Service) {
	r.services[t] = svc
}

// Check dispatches monitor to its registered service.
func (r *StrategyRegistry) Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	svc, ok := r.services[monitor.Type]
	if !ok {
		return core.CheckResult{}, fmt.Errorf("no monitor service registered for type %q", monitor.Type)
	}
	return svc.Check(ctx, monitor)
}
