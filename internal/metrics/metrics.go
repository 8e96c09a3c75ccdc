// Package metrics exposes Prometheus collectors for the scheduler.
// Grounded on the teacher's internal/metrics/metrics.go: package-level
// Counter/Histogram/Gauge/CounterVec collectors, an atomic.Bool idempotency gate on
// Register, and no-op helper functions so call sites never need a nil
// check.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	firesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskscheduler",
			Subsystem: "scheduler",
			Name:      "fires_total",
			Help:      "Number of fires dispatched to handlers.",
		},
	)
	rejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskscheduler",
			Subsystem: "scheduler",
			Name:      "rejected_total",
			Help:      "Number of submissions rejected by the worker pool.",
		},
	)
	retryAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "taskscheduler",
			Subsystem: "scheduler",
			Name:      "retry_attempts",
			Help:      "Number of retry attempts consumed before a schedule/resume succeeded or gave up.",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		},
	)
	liveTimers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskscheduler",
			Subsystem: "scheduler",
			Name:      "live_timers",
			Help:      "Current count of armed (RUNNING) live timers.",
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskscheduler",
			Subsystem: "scheduler",
			Name:      "state_transitions_total",
			Help:      "Number of ExecDetail state transitions, by destination state.",
		}, []string{"state"},
	)
)

// Register registers all collectors with r. Safe to call multiple
// times; subsequent calls after the first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{firesTotal, rejectedTotal, retryAttempts, liveTimers, stateTransitions}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the Prometheus exposition format for the default
// gatherer. The caller wires this into its own HTTP mux.
func Handler() http.Handler { return promhttp.Handler() }

func IncFires() {
	if regOK.Load() {
		firesTotal.Inc()
	}
}

func IncRejected() {
	if regOK.Load() {
		rejectedTotal.Inc()
	}
}

func ObserveRetryAttempts(n int) {
	if regOK.Load() {
		retryAttempts.Observe(float64(n))
	}
}

func SetLiveTimers(n int) {
	if regOK.Load() {
		liveTimers.Set(float64(n))
	}
}

func RecordStateTransition(state string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(state).Inc()
	}
}
