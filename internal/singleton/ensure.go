package singleton

import (
	"fmt"

	"go.uber.org/zap"
)

// Reporter is the non-fatal assertion channel. Contract violations are
// logged and counted, and the caller carries on with a nil result. With
// Halt set (development builds) a violation panics after logging.
type Reporter struct {
	log     *zap.Logger
	metrics *Metrics
	halt    bool

	violations int
	degraded   int
	last       string
}

func NewReporter(log *zap.Logger, metrics *Metrics, halt bool) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{log: log, metrics: metrics, halt: halt}
}

// Ensure reports a contract violation when cond is false and returns cond.
func (r *Reporter) Ensure(cond bool, msg string, fields ...zap.Field) bool {
	if cond {
		return true
	}
	r.violations++
	r.last = msg
	if r.metrics != nil {
		r.metrics.Violations.Inc()
	}
	r.log.Error("ensure failed: "+msg, fields...)
	if r.halt {
		panic(fmt.Sprintf("singleton: %s", msg))
	}
	return false
}

// Degraded reports a resolution failure that the caller survives in a
// degraded mode. It never halts.
func (r *Reporter) Degraded(cond bool, msg string, fields ...zap.Field) bool {
	if cond {
		return true
	}
	r.degraded++
	if r.metrics != nil {
		r.metrics.ResolutionFailures.Inc()
	}
	r.log.Warn(msg, fields...)
	return false
}

// Violations returns the number of failed Ensure calls.
func (r *Reporter) Violations() int { return r.violations }

// DegradedCount returns the number of failed Degraded calls.
func (r *Reporter) DegradedCount() int { return r.degraded }

// LastViolation returns the message of the most recent violation.
func (r *Reporter) LastViolation() string { return r.last }
