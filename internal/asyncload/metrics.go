package asyncload

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the loader's Prometheus collectors.
type Metrics struct {
	Requests   prometheus.Counter
	Delivered  prometheus.Counter
	Dropped    *prometheus.CounterVec
	QueueDepth prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Subsystem: "asyncload",
			Name:      "requests_total",
			Help:      "Async load requests accepted.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Subsystem: "asyncload",
			Name:      "delivered_total",
			Help:      "Callbacks run on the game thread.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Subsystem: "asyncload",
			Name:      "dropped_total",
			Help:      "Requests finished without a callback, by reason.",
		}, []string{"reason"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "worldsingleton",
			Subsystem: "asyncload",
			Name:      "queue_depth",
			Help:      "Requests waiting for a worker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Delivered, m.Dropped, m.QueueDepth)
	}
	return m
}
