package metrics

import "github.com/prometheus/client_golang/prometheus"

// IPCMetrics tracks invoke-channel request handling and broadcast delivery.
type IPCMetrics struct {
	InvokeTotal      *prometheus.CounterVec
	InvokeDuration   *prometheus.HistogramVec
	BroadcastTotal   *prometheus.CounterVec
	ConnectionsActive prometheus.Gauge
}

func newIPCMetrics(namespace string, reg prometheus.Registerer) *IPCMetrics {
	m := &IPCMetrics{
		InvokeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ipc", Name: "invoke_total",
			Help: "Total invoke requests handled, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		InvokeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ipc", Name: "invoke_duration_seconds",
			Help:    "Time spent handling an invoke request, by channel.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		BroadcastTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ipc", Name: "broadcast_total",
			Help: "Total broadcast frames sent, by topic.",
		}, []string{"topic"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ipc", Name: "connections_active",
			Help: "Active broadcast-bridge connections.",
		}),
	}
	reg.MustRegister(m.InvokeTotal, m.InvokeDuration, m.BroadcastTotal, m.ConnectionsActive)
	return m
}
