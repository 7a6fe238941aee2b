package scheduler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus-compatible metrics for a running
// Core, all namespaced "avalanche_":
//
//   - active_algorithms (gauge): algorithms currently SCHEDULED, across the
//     arena and blocking goroutines.
//   - free_slots (gauge): event slots with no in-flight event.
//   - iterate_latency_ms (histogram): wall-clock cost of one reconciler pass.
//   - retries_total (counter): RESOURCELESS requeues.
//   - stalls_total (counter): AlgStall terminations.
//   - backpressure_events_total (counter): PushNewEvent rejections due to
//     ErrNoCapacity.
type PrometheusMetrics struct {
	activeAlgorithms prometheus.Gauge
	freeSlots        prometheus.Gauge

	iterateLatency prometheus.Histogram

	retries       prometheus.Counter
	stalls        prometheus.Counter
	backpressure  prometheus.Counter

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics registers every avalanche metric with registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() to isolate a test or a single Core instance.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		activeAlgorithms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "avalanche",
			Name:      "active_algorithms",
			Help:      "Algorithms currently SCHEDULED across the work arena and blocking threads",
		}),
		freeSlots: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "avalanche",
			Name:      "free_slots",
			Help:      "Event slots with no event currently in flight",
		}),
		iterateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avalanche",
			Name:      "iterate_latency_ms",
			Help:      "Wall-clock duration of one SlotReconciler iterate pass, in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avalanche",
			Name:      "retries_total",
			Help:      "Algorithms requeued after a failed resource-pool acquisition",
		}),
		stalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avalanche",
			Name:      "stalls_total",
			Help:      "Events terminated with AlgStall",
		}),
		backpressure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avalanche",
			Name:      "backpressure_events_total",
			Help:      "PushNewEvent calls rejected for lack of a free slot",
		}),
	}
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordIterateLatency observes one iterate pass's duration.
func (pm *PrometheusMetrics) RecordIterateLatency(d time.Duration) {
	if !pm.isEnabled() {
		return
	}
	pm.iterateLatency.Observe(float64(d.Microseconds()) / 1000.0)
}

// IncrementRetries increments the retry counter by one.
func (pm *PrometheusMetrics) IncrementRetries() {
	if !pm.isEnabled() {
		return
	}
	pm.retries.Inc()
}

// IncrementStalls increments the stall counter by one.
func (pm *PrometheusMetrics) IncrementStalls() {
	if !pm.isEnabled() {
		return
	}
	pm.stalls.Inc()
}

// IncrementBackpressure increments the backpressure counter by one.
func (pm *PrometheusMetrics) IncrementBackpressure() {
	if !pm.isEnabled() {
		return
	}
	pm.backpressure.Inc()
}

// UpdateActiveAlgorithms sets the active_algorithms gauge.
func (pm *PrometheusMetrics) UpdateActiveAlgorithms(n int) {
	if !pm.isEnabled() {
		return
	}
	pm.activeAlgorithms.Set(float64(n))
}

// UpdateFreeSlots sets the free_slots gauge.
func (pm *PrometheusMetrics) UpdateFreeSlots(n int) {
	if !pm.isEnabled() {
		return
	}
	pm.freeSlots.Set(float64(n))
}

// Disable stops metric recording (useful for tests that don't want to pay
// for registry contention).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
