package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	phase       *prometheus.GaugeVec
	polls       *prometheus.CounterVec
	settlements *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		phase: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signaldesk_lifecycle_phase",
				Help: "Current lifecycle phase (1 for the active phase, 0 otherwise)",
			},
			[]string{"phase"},
		),
		polls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_settlement_polls_total",
				Help: "Total settlement status polls by result",
			},
			[]string{"result"},
		),
		settlements: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_settlements_total",
				Help: "Total settled commitments by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaldesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

var phases = []string{"READY", "WAITING", "SETTLING", "RESULT_SHOWN"}

// RecordPhase marks the active lifecycle phase.
func (r *Recorder) RecordPhase(phase string) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		r.phase.WithLabelValues(p).Set(v)
	}
}

// RecordPoll records a settlement poll attempt result.
func (r *Recorder) RecordPoll(result string) {
	r.polls.WithLabelValues(result).Inc()
}

// RecordSettlement records a settled commitment.
func (r *Recorder) RecordSettlement(outcome string) {
	r.settlements.WithLabelValues(outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
