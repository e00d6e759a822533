package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckerMetrics tracks outcomes of individual monitor checks.
type CheckerMetrics struct {
	ChecksTotal      *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec
	RetriesTotal     *prometheus.CounterVec
	StatusTransition *prometheus.CounterVec
}

func newCheckerMetrics(namespace string, reg prometheus.Registerer) *CheckerMetrics {
	m := &CheckerMetrics{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checker", Name: "checks_total",
			Help: "Total checks performed, by monitor type and result status.",
		}, []string{"monitor_type", "status"}),
		CheckDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "checker", Name: "check_duration_seconds",
			Help:    "Time spent performing a single check, by monitor type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"monitor_type"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checker", Name: "retries_total",
			Help: "Total retry attempts, by monitor type.",
		}, []string{"monitor_type"}),
		StatusTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checker", Name: "status_transitions_total",
			Help: "Total monitor status transitions, by from/to status.",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(m.ChecksTotal, m.CheckDuration, m.RetriesTotal, m.StatusTransition)
	return m
}
