package singleton

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the singleton system's Prometheus collectors.
type Metrics struct {
	ManagersCreated    *prometheus.CounterVec
	InstancesCreated   *prometheus.CounterVec
	Registrations      prometheus.Counter
	Violations         prometheus.Counter
	ResolutionFailures prometheus.Counter
	StalePruned        prometheus.Counter
	RegistryEntries    prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ManagersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Name:      "managers_created_total",
			Help:      "Singleton managers created, by lifetime owner.",
		}, []string{"owner"}),
		InstancesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Name:      "instances_created_total",
			Help:      "Singleton instances created, by allocation path.",
		}, []string{"path"}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Name:      "registrations_total",
			Help:      "Objects registered as singletons.",
		}),
		Violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Name:      "contract_violations_total",
			Help:      "Failed ensures.",
		}),
		ResolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Name:      "resolution_failures_total",
			Help:      "Lookups that found no active game instance.",
		}),
		StalePruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldsingleton",
			Name:      "stale_entries_pruned_total",
			Help:      "Registry entries dropped because their world died.",
		}),
		RegistryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "worldsingleton",
			Name:      "registry_entries",
			Help:      "World registry entries, global slot included.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ManagersCreated,
			m.InstancesCreated,
			m.Registrations,
			m.Violations,
			m.ResolutionFailures,
			m.StalePruned,
			m.RegistryEntries,
		)
	}
	return m
}
