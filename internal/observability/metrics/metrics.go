package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking pipeline.
type BookingMetrics struct {
	pipelineTotal     *prometheus.CounterVec
	pipelineLatency   *prometheus.HistogramVec
	conflictOverrides prometheus.Counter
	fallbackDefaults  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		pipelineTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowbook",
			Subsystem: "bookings",
			Name:      "pipeline_total",
			Help:      "Booking pipeline runs by operation and outcome",
		}, []string{"operation", "outcome"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "glowbook",
			Subsystem: "bookings",
			Name:      "pipeline_seconds",
			Help:      "Latency of booking pipeline runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		conflictOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glowbook",
			Subsystem: "bookings",
			Name:      "conflict_overrides_total",
			Help:      "Bookings accepted over a staff conflict by provider policy",
		}),
		fallbackDefaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowbook",
			Subsystem: "bookings",
			Name:      "fallback_defaults_total",
			Help:      "External lookups that failed or timed out and used a safe default",
		}, []string{"lookup"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.pipelineTotal, m.pipelineLatency, m.conflictOverrides, m.fallbackDefaults)
	return m
}

// ObservePipeline records one run. outcome is "ok" or an error code.
func (m *BookingMetrics) ObservePipeline(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.pipelineTotal.WithLabelValues(operation, outcome).Inc()
	m.pipelineLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) ObserveConflictOverride() {
	if m == nil {
		return
	}
	m.conflictOverrides.Inc()
}

func (m *BookingMetrics) ObserveFallback(lookup string) {
	if m == nil {
		return
	}
	m.fallbackDefaults.WithLabelValues(lookup).Inc()
}
