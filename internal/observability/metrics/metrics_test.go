package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	seen := make(map[string]string)
	for _, pair := range metric.GetLabel() {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range labels {
		if seen[k] != v {
			return false
		}
	}
	return true
}

func TestObserveBookingCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveBooking("conflict")
	m.ObserveConflict("double_booked")
	m.ObserveQueueOp("enqueue")

	if got := counterValue(t, reg, "clinicops_scheduling_bookings_total", map[string]string{"outcome": "created"}); got != 2 {
		t.Errorf("created bookings = %v, want 2", got)
	}
	if got := counterValue(t, reg, "clinicops_scheduling_conflicts_total", map[string]string{"reason": "double_booked"}); got != 1 {
		t.Errorf("double_booked conflicts = %v, want 1", got)
	}
	if got := counterValue(t, reg, "clinicops_queue_operations_total", map[string]string{"operation": "enqueue"}); got != 1 {
		t.Errorf("enqueue ops = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveBooking("created")
	m.ObserveConflict("unavailable")
	m.ObserveQueueOp("remove")
	m.SetQueueDepth("d-1", 4)
	m.ObserveBookingLatency(0.05)
}
