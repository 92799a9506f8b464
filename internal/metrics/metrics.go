// Package metrics exposes keygate's Prometheus instrumentation.
//
// Init must be called once at startup when the metrics listener is enabled;
// all record functions are safe no-ops before that, so library code can call
// them unconditionally.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// TriggerManual marks rotations requested through the API.
	TriggerManual = "manual"
	// TriggerScheduled marks rotations fired by the scheduler.
	TriggerScheduled = "scheduled"
)

var (
	rotationsTotal    *prometheus.CounterVec
	createsTotal      *prometheus.CounterVec
	storeRetriesTotal *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec

	initOnce   sync.Once
	registered bool
)

// Init registers all keygate metrics with the default registry.
func Init() {
	initOnce.Do(func() {
		rotationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_rotations_total",
				Help: "Total credential rotations by trigger and outcome",
			},
			[]string{"trigger", "status"},
		)

		createsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_creates_total",
				Help: "Total credential provisioning operations by outcome",
			},
			[]string{"status"},
		)

		storeRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_store_retries_total",
				Help: "Total retried store calls by operation",
			},
			[]string{"op"},
		)

		requestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keygate_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"route", "status"},
		)

		registered = true
	})
}

// Rotation records one rotation attempt.
func Rotation(trigger, status string) {
	if !registered {
		return
	}
	rotationsTotal.WithLabelValues(trigger, status).Inc()
}

// Create records one provisioning attempt.
func Create(status string) {
	if !registered {
		return
	}
	createsTotal.WithLabelValues(status).Inc()
}

// StoreRetry records one retried store call.
func StoreRetry(op string) {
	if !registered {
		return
	}
	storeRetriesTotal.WithLabelValues(op).Inc()
}

// RequestObserved records one API request duration.
func RequestObserved(route, status string, seconds float64) {
	if !registered {
		return
	}
	requestDuration.WithLabelValues(route, status).Observe(seconds)
}
