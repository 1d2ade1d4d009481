package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)
	m.ObserveBooking("booked")
	m.ObserveBooking("booked")
	m.ObserveBooking("slot_unavailable")
	m.ObserveDateFetchFailure("doc-1")
	m.ObserveDedup("add_patient", true)
	m.ObserveUpstream("GET", "200", 0.25)
	m.ObserveSkippedSlots(3)
	m.ObserveSkippedSlots(0)

	if got := testutil.ToFloat64(m.bookingTotal.WithLabelValues("booked")); got != 2 {
		t.Fatalf("expected 2 booked, got %v", got)
	}
	if got := testutil.ToFloat64(m.dedupTotal.WithLabelValues("add_patient", "hit")); got != 1 {
		t.Fatalf("expected 1 dedup hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.skippedSlots); got != 3 {
		t.Fatalf("expected 3 skipped slots, got %v", got)
	}
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveBooking("booked")
	m.ObserveDateFetchFailure("doc")
	m.ObserveDedup("book", false)
	m.ObserveUpstream("POST", "500", 0.1)
	m.ObserveSkippedSlots(1)
}
