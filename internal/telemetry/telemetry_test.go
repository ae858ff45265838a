package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestPrometheusSink_CountsCommits(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.CommitFastPath()
	sink.CommitFastPath()
	sink.CommitSlowPath()

	if got := counterValue(t, reg, "gemcheck_commit_fast_path_total"); got != 2 {
		t.Errorf("fast path count = %v, want 2", got)
	}
	if got := counterValue(t, reg, "gemcheck_commit_slow_path_total"); got != 1 {
		t.Errorf("slow path count = %v, want 1", got)
	}
}

func TestPrometheusSink_CancelAttemptSplitsSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.CancelAttempt(true)
	sink.CancelAttempt(false)
	sink.CancelAttempt(false)

	if got := counterValue(t, reg, "gemcheck_slow_path_cancel_succeeded_total"); got != 1 {
		t.Errorf("cancel succeeded count = %v, want 1", got)
	}
	if got := counterValue(t, reg, "gemcheck_slow_path_cancel_failed_total"); got != 2 {
		t.Errorf("cancel failed count = %v, want 2", got)
	}
}

func TestNoopSink_DoesNotPanic(t *testing.T) {
	var s Sink = NoopSink{}
	s.CommitFastPath()
	s.CommitSlowPath()
	s.CancelAttempt(true)
	s.HashMismatch()
}
