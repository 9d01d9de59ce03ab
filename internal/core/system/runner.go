package system

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Runner executes systems in phase order each tick. Systems sharing a
// phase run in registration order.
type Runner struct {
	phases [phaseCount][]System
	ticks  uint64

	// phaseSeconds is nil unless NewRunner was given a registerer.
	phaseSeconds *prometheus.HistogramVec
}

// NewRunner returns an empty runner. A non-nil reg gets a histogram of
// per-phase wall time.
func NewRunner(reg prometheus.Registerer) *Runner {
	r := &Runner{}
	if reg != nil {
		r.phaseSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "worldsingleton",
			Subsystem: "host",
			Name:      "phase_duration_seconds",
			Help:      "Wall time spent in each tick phase.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"phase"})
		reg.MustRegister(r.phaseSeconds)
	}
	return r
}

// Register adds s to its phase. It panics on a phase outside the known set.
func (r *Runner) Register(s System) {
	p := s.Phase()
	if p < 0 || p >= phaseCount {
		panic("system: unknown phase " + p.String())
	}
	r.phases[p] = append(r.phases[p], s)
}

// Tick runs every registered system once.
func (r *Runner) Tick(dt time.Duration) {
	for p := Phase(0); p < phaseCount; p++ {
		systems := r.phases[p]
		if len(systems) == 0 {
			continue
		}
		start := time.Now()
		for _, s := range systems {
			s.Update(dt)
		}
		if r.phaseSeconds != nil {
			r.phaseSeconds.WithLabelValues(p.String()).Observe(time.Since(start).Seconds())
		}
	}
	r.ticks++
}

// Ticks is the number of completed ticks.
func (r *Runner) Ticks() uint64 { return r.ticks }

// Len is the number of registered systems.
func (r *Runner) Len() int {
	n := 0
	for _, systems := range r.phases {
		n += len(systems)
	}
	return n
}

// Func adapts a plain function into a System.
type Func struct {
	P  Phase
	Fn func(dt time.Duration)
}

func (f Func) Phase() Phase            { return f.P }
func (f Func) Update(dt time.Duration) { f.Fn(dt) }
