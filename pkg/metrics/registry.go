// Package metrics exposes Prometheus collectors for every subsystem,
// grouped behind lazily-initialized category accessors so a component that
// never runs (e.g. the IPC broadcast bridge in a headless test) never pays
// for its collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns one Prometheus registerer and the per-subsystem collector
// groups built on top of it.
type Registry struct {
	namespace string
	registerer prometheus.Registerer

	schedulerOnce sync.Once
	scheduler     *SchedulerMetrics

	checkerOnce sync.Once
	checker     *CheckerMetrics

	coordinatorOnce sync.Once
	coordinator     *CoordinatorMetrics

	eventBusOnce sync.Once
	eventBus     *EventBusMetrics

	ipcOnce sync.Once
	ipc     *IPCMetrics
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry backed by
// prometheus.DefaultRegisterer, created once.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New("uptimewatcher", prometheus.DefaultRegisterer)
	})
	return defaultReg
}

// New constructs a Registry under namespace, registering collectors against
// reg as each category is first accessed.
func New(namespace string, reg prometheus.Registerer) *Registry {
	return &Registry{namespace: namespace, registerer: reg}
}

// Namespace returns the metric name prefix this registry uses.
func (r *Registry) Namespace() string { return r.namespace }

// Scheduler returns the scheduler collector group, registering it on first use.
func (r *Registry) Scheduler() *SchedulerMetrics {
	r.schedulerOnce.Do(func() {
		r.scheduler = newSchedulerMetrics(r.namespace, r.registerer)
	})
	return r.scheduler
}

// Checker returns the monitor-checker collector group, registering it on
// first use.
func (r *Registry) Checker() *CheckerMetrics {
	r.checkerOnce.Do(func() {
		r.checker = newCheckerMetrics(r.namespace, r.registerer)
	})
	return r.checker
}

// Coordinator returns the operation-coordinator collector group.
func (r *Registry) Coordinator() *CoordinatorMetrics {
	r.coordinatorOnce.Do(func() {
		r.coordinator = newCoordinatorMetrics(r.namespace, r.registerer)
	})
	return r.coordinator
}

// EventBus returns the event-bus collector group.
func (r *Registry) EventBus() *EventBusMetrics {
	r.eventBusOnce.Do(func() {
		r.eventBus = newEventBusMetrics(r.namespace, r.registerer)
	})
	return r.eventBus
}

// IPC returns the IPC-boundary collector group.
func (r *Registry) IPC() *IPCMetrics {
	r.ipcOnce.Do(func() {
		r.ipc = newIPCMetrics(r.namespace, r.registerer)
	})
	return r.ipc
}
