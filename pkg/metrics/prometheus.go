package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	foldsTotal    *prometheus.CounterVec
	symbolsTotal  *prometheus.CounterVec
	generations   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	simulationDur *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		foldsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratgate_folds_total",
				Help: "Validation folds processed, by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		symbolsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratgate_symbols_total",
				Help: "Symbols processed by the orchestrator, by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		generations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratgate_optimizer_generations_total",
				Help: "Optimizer generations evolved",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratgate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		simulationDur: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratgate_symbol_validation_duration_seconds",
				Help:    "Duration of one symbol's full validation pipeline",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"symbol"},
		),
	}
}

// RecordFold records one processed validation fold.
func (r *Recorder) RecordFold(symbol, kind string) {
	r.foldsTotal.WithLabelValues(symbol, kind).Inc()
}

// RecordSimulation records the duration of one symbol's pipeline.
func (r *Recorder) RecordSimulation(symbol string, seconds float64) {
	r.simulationDur.WithLabelValues(symbol).Observe(seconds)
}

// RecordSymbol records a per-symbol orchestrator outcome.
func (r *Recorder) RecordSymbol(symbol, outcome string) {
	r.symbolsTotal.WithLabelValues(symbol, outcome).Inc()
}

// RecordGeneration counts one optimizer generation.
func (r *Recorder) RecordGeneration(symbol string) {
	r.generations.WithLabelValues(symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
