package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SchedulingMetrics exposes counters/histograms for booking and queue flows.
type SchedulingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	conflictsTotal *prometheus.CounterVec
	queueOpsTotal  *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
	bookingLatency prometheus.Histogram
}

// NewSchedulingMetrics registers the scheduling metric family.
func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "conflicts_total",
			Help:      "Rejected bookings by conflict reason",
		}, []string{"reason"}),
		queueOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "queue",
			Name:      "operations_total",
			Help:      "Queue mutations by operation",
		}, []string{"operation"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "clinicops",
			Subsystem: "queue",
			Name:      "waiting_depth",
			Help:      "Waiting entries per doctor after the last mutation",
		}, []string{"doctor_id"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "booking_latency_seconds",
			Help:      "Latency of booking requests",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.conflictsTotal, m.queueOpsTotal, m.queueDepth, m.bookingLatency)
	return m
}

// ObserveBooking records a booking attempt outcome (created, conflict,
// not_found, forbidden, validation, error).
func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveConflict records a rejected booking (unavailable, double_booked).
func (m *SchedulingMetrics) ObserveConflict(reason string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(reason).Inc()
}

// ObserveQueueOp records a queue mutation (enqueue, join, update, remove).
func (m *SchedulingMetrics) ObserveQueueOp(operation string) {
	if m == nil {
		return
	}
	m.queueOpsTotal.WithLabelValues(operation).Inc()
}

// SetQueueDepth records the waiting count for a doctor.
func (m *SchedulingMetrics) SetQueueDepth(doctorID string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(doctorID).Set(float64(depth))
}

// ObserveBookingLatency records booking request duration in seconds.
func (m *SchedulingMetrics) ObserveBookingLatency(seconds float64) {
	if m == nil {
		return
	}
	m.bookingLatency.Observe(seconds)
}
