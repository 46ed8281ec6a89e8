package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("bill-generation")
	m.IncSuccess("bill-generation")
	m.IncFailure("bill-overdue")
	m.ObserveDuration("bill-generation", 150*time.Millisecond)

	if got := testutil.ToFloat64(m.success.WithLabelValues("bill-generation")); got != 2 {
		t.Fatalf("success counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("bill-overdue")); got != 1 {
		t.Fatalf("failure counter = %v, want 1", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.IncSuccess("x")
	m.IncFailure("x")
	m.ObserveDuration("x", time.Second)

	empty := NewCronJobMetrics(nil)
	empty.IncSuccess("")
	empty.ObserveDuration("", 0)
}
