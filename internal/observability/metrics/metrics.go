package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for availability and booking flows.
type SchedulingMetrics struct {
	bookingTotal      *prometheus.CounterVec
	dateFetchFailures *prometheus.CounterVec
	dedupTotal        *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	skippedSlots      prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "booking_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		dateFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "availability_date_failures_total",
			Help:      "Per-date slot fetches that failed and were skipped",
		}, []string{"doctor_id"}),
		dedupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "dedup_checks_total",
			Help:      "Deduplicator checks by operation and result",
		}, []string{"operation", "result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of upstream scheduling API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		skippedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "skipped_slots_total",
			Help:      "Raw slots dropped because their timestamps could not be parsed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.dateFetchFailures, m.dedupTotal, m.upstreamLatency, m.skippedSlots)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveDateFetchFailure(doctorID string) {
	if m == nil {
		return
	}
	m.dateFetchFailures.WithLabelValues(doctorID).Inc()
}

func (m *SchedulingMetrics) ObserveDedup(operation string, duplicate bool) {
	if m == nil {
		return
	}
	result := "miss"
	if duplicate {
		result = "hit"
	}
	m.dedupTotal.WithLabelValues(operation, result).Inc()
}

func (m *SchedulingMetrics) ObserveUpstream(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(method, status).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSkippedSlots(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedSlots.Add(float64(n))
}
