package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	p := NewPrometheus("ledger")
	reg := prometheus.NewRegistry()
	if err := p.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	p.RecordStatement("hsbc", OutcomeOK, 20*time.Millisecond)
	p.RecordStatement("hsbc", OutcomeOK, 30*time.Millisecond)
	p.RecordStatement("generic", OutcomeNoTransactions, time.Millisecond)
	p.RecordTransactions("hsbc", 1, 3)
	p.RecordArtifact("xlsx", 4096)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"hsbc ok", p.statements.WithLabelValues("hsbc", OutcomeOK), 2},
		{"generic empty", p.statements.WithLabelValues("generic", OutcomeNoTransactions), 1},
		{"in", p.transactions.WithLabelValues("hsbc", "in"), 1},
		{"out", p.transactions.WithLabelValues("hsbc", "out"), 3},
		{"xlsx", p.artifacts.WithLabelValues("xlsx"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(p.duration); n != 2 {
		t.Errorf("duration series: got %d, want 2", n)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewPrometheus("ledger").Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := NewPrometheus("ledger").Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordStatement("generic", OutcomeError, time.Second)
	r.RecordTransactions("generic", 0, 0)
	r.RecordArtifact("csv", 0)
}
