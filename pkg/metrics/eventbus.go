package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventBusMetrics tracks publish/subscribe traffic on both bus tiers.
type EventBusMetrics struct {
	SubscribersActive *prometheus.GaugeVec
	EventsPublished   *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	BroadcastDuration *prometheus.HistogramVec
}

func newEventBusMetrics(namespace string, reg prometheus.Registerer) *EventBusMetrics {
	m := &EventBusMetrics{
		SubscribersActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "eventbus", Name: "subscribers_active",
			Help: "Active subscribers, by bus tier.",
		}, []string{"bus"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "eventbus", Name: "events_published_total",
			Help: "Total events published, by bus tier and event name.",
		}, []string{"bus", "event"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "eventbus", Name: "events_dropped_total",
			Help: "Total events dropped because the broadcast channel was full.",
		}, []string{"bus"}),
		BroadcastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "eventbus", Name: "broadcast_duration_seconds",
			Help:    "Time spent fanning an event out to all subscribers.",
			Buckets: prometheus.DefBuckets,
		}, []string{"bus"}),
	}
	reg.MustRegister(m.SubscribersActive, m.EventsPublished, m.EventsDropped, m.BroadcastDuration)
	return m
}
