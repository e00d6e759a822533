package metrics

import "github.com/prometheus/client_golang/prometheus"

// CoordinatorMetrics tracks the operation coordinator's single-flight state.
type CoordinatorMetrics struct {
	OperationsActive prometheus.Gauge
	RejectedInFlight prometheus.Counter
	CancelledTotal   prometheus.Counter
	TimeoutTotal     prometheus.Counter
}

func newCoordinatorMetrics(namespace string, reg prometheus.Registerer) *CoordinatorMetrics {
	m := &CoordinatorMetrics{
		OperationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "operations_active",
			Help: "Number of monitor check operations currently in flight.",
		}),
		RejectedInFlight: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "rejected_in_flight_total",
			Help: "Total check requests (automatic or manual) that found an operation already in flight; manual ones are queued.",
		}),
		CancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "cancelled_total",
			Help: "Total operations cancelled before completion.",
		}),
		TimeoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "timeout_total",
			Help: "Total operations that elapsed their deadline.",
		}),
	}
	reg.MustRegister(m.OperationsActive, m.RejectedInFlight, m.CancelledTotal, m.TimeoutTotal)
	return m
}
