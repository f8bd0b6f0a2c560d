package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for admission decisions.
// All methods are safe on a nil receiver, so an unmetered Limiter
// needs no guards.
type Metrics struct {
	checks         *prometheus.CounterVec
	backendErrors  prometheus.Counter
	fallbackActive prometheus.Gauge
	checkDuration  prometheus.Histogram
}

// NewMetrics creates collectors registered on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekit_ratelimit_checks_total",
				Help: "Total number of rate limit checks performed",
			},
			[]string{"dimension", "result"},
		),

		backendErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekit_ratelimit_backend_errors_total",
				Help: "Total number of backend faults absorbed by failing open",
			},
		),

		fallbackActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatekit_ratelimit_fallback_active",
				Help: "Whether the in-process fallback store is in use (1) instead of Redis (0)",
			},
		),

		checkDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatekit_ratelimit_check_duration_seconds",
				Help:    "Duration of backend window checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
			},
		),
	}
}

// RecordCheck records one evaluated check and its outcome.
func (m *Metrics) RecordCheck(dimension Dimension, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.checks.WithLabelValues(string(dimension), result).Inc()
}

// RecordBackendError records a backend fault that was absorbed.
func (m *Metrics) RecordBackendError() {
	if m == nil {
		return
	}
	m.backendErrors.Inc()
}

// SetFallbackActive records which backend the limiter selected.
func (m *Metrics) SetFallbackActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.fallbackActive.Set(1)
	} else {
		m.fallbackActive.Set(0)
	}
}

// ObserveCheckDuration records the latency of one backend call.
func (m *Metrics) ObserveCheckDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.Observe(d.Seconds())
}
