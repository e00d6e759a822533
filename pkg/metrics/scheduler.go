package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulerMetrics tracks the priority-queue scheduler's behavior.
type SchedulerMetrics struct {
	QueueDepth     prometheus.Gauge
	DispatchTotal  prometheus.Counter
	BackoffActive  prometheus.Gauge
	RescheduleSecs prometheus.Histogram
}

func newSchedulerMetrics(namespace string, reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "queue_depth",
			Help: "Number of monitors currently scheduled.",
		}),
		DispatchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "dispatch_total",
			Help: "Total monitor checks dispatched by the scheduler.",
		}),
		BackoffActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "backoff_active",
			Help: "Number of monitors currently under extended backoff interval.",
		}),
		RescheduleSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "reschedule_seconds",
			Help:    "Seconds between a monitor's scheduled deadline and its actual dispatch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.QueueDepth, m.DispatchTotal, m.BackoffActive, m.RescheduleSecs)
	return m
}
