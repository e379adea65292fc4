package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for RecordStatement.
const (
	OutcomeOK             = "ok"
	OutcomeEmptyText      = "empty_text"
	OutcomeNoTransactions = "no_transactions"
	OutcomeError          = "error"
)

// Recorder receives conversion metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordStatement records one processed statement.
	RecordStatement(bank, outcome string, duration time.Duration)
	// RecordTransactions records the ledger rows of a parsed statement.
	RecordTransactions(bank string, in, out int)
	// RecordArtifact records a written output file.
	RecordArtifact(format string, size int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordStatement(bank, outcome string, duration time.Duration) {}

func (Nop) RecordTransactions(bank string, in, out int) {}

func (Nop) RecordArtifact(format string, size int) {}

// Prometheus implements Recorder with client_golang collectors.
type Prometheus struct {
	statements   *prometheus.CounterVec
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	artifacts    *prometheus.CounterVec
	artifactSize *prometheus.HistogramVec
}

// NewPrometheus creates the collectors under namespace. Call Register before use.
func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Statements processed per bank preset and outcome",
			},
			[]string{"bank", "outcome"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Ledger rows produced per bank preset and direction",
			},
			[]string{"bank", "direction"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "statement_duration_seconds",
				Help:      "Time to convert one statement",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"bank"},
		),
		artifacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_total",
				Help:      "Output files written per format",
			},
			[]string{"format"},
		),
		artifactSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "artifact_bytes",
				Help:      "Size of written output files",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"format"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (p *Prometheus) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		p.statements,
		p.transactions,
		p.duration,
		p.artifacts,
		p.artifactSize,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prometheus) RecordStatement(bank, outcome string, duration time.Duration) {
	p.statements.WithLabelValues(bank, outcome).Inc()
	p.duration.WithLabelValues(bank).Observe(duration.Seconds())
}

func (p *Prometheus) RecordTransactions(bank string, in, out int) {
	p.transactions.WithLabelValues(bank, "in").Add(float64(in))
	p.transactions.WithLabelValues(bank, "out").Add(float64(out))
}

func (p *Prometheus) RecordArtifact(format string, size int) {
	p.artifacts.WithLabelValues(format).Inc()
	p.artifactSize.WithLabelValues(format).Observe(float64(size))
}
