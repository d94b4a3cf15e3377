package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	trainingSymbols *prometheus.GaugeVec
	trainingSamples *prometheus.GaugeVec
	lastTrained     *prometheus.GaugeVec
	skipsTotal      *prometheus.CounterVec
	lastScore       *prometheus.GaugeVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder's collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrank_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finrank_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),
		trainingSymbols: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finrank_segment_training_symbols",
				Help: "Symbols contributing samples to the last segment training",
			},
			[]string{"segment"},
		),
		trainingSamples: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finrank_segment_training_samples",
				Help: "Pooled samples in the last segment training",
			},
			[]string{"segment"},
		),
		lastTrained: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finrank_segment_last_trained_timestamp_seconds",
				Help: "Unix time of the last successful segment training",
			},
			[]string{"segment"},
		),
		skipsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrank_skips_total",
				Help: "Symbols or segments left out of a result",
			},
			[]string{"segment", "reason"},
		),
		lastScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finrank_last_risk_adjusted_score",
				Help: "Last risk-adjusted score computed for a symbol",
			},
			[]string{"segment", "symbol"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTraining records the size of a finished segment training.
func (r *Recorder) RecordTraining(segment string, symbols, samples int) {
	r.trainingSymbols.WithLabelValues(segment).Set(float64(symbols))
	r.trainingSamples.WithLabelValues(segment).Set(float64(samples))
	r.lastTrained.WithLabelValues(segment).SetToCurrentTime()
}

func (r *Recorder) RecordSkip(segment, reason string) {
	r.skipsTotal.WithLabelValues(segment, reason).Inc()
}

// RecordScore keeps the last score per symbol. Non-finite scores are dropped.
func (r *Recorder) RecordScore(segment, symbol string, score float64) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return
	}
	r.lastScore.WithLabelValues(segment, symbol).Set(score)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordTraining(string, int, int) {}
func (Nop) RecordSkip(string, string) {}
func (Nop) RecordScore(string, string, float64) {}
