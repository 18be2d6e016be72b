// Package metrics exposes Prometheus instrumentation for the screening pipeline.
package metrics

import (
	"time"

	"sms-screening-service/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verdict sources
const (
	SourcePrefilter = "prefilter"
	SourceRemote    = "remote"
)

// Batch outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// ScreeningMetrics holds all Prometheus metrics for the screening pipeline
type ScreeningMetrics struct {
	VerdictsTotal        *prometheus.CounterVec
	RemoteLatencySeconds prometheus.Histogram
	BatchesTotal         *prometheus.CounterVec
	BatchRows            prometheus.Histogram
	BatchSeconds         prometheus.Histogram
	RowsInFlight         prometheus.Gauge
}

// NewScreeningMetrics registers the metrics with reg
func NewScreeningMetrics(reg prometheus.Registerer) *ScreeningMetrics {
	factory := promauto.With(reg)

	return &ScreeningMetrics{
		VerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sms_screening_verdicts_total",
				Help: "Verdicts produced by source, case and category",
			},
			[]string{"source", "case", "category"},
		),
		RemoteLatencySeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sms_screening_remote_latency_seconds",
				Help:    "Latency of remote classification calls",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sms_screening_batches_total",
				Help: "Batches run by outcome",
			},
			[]string{"outcome"},
		),
		BatchRows: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sms_screening_batch_rows",
				Help:    "Rows per batch",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		BatchSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sms_screening_batch_seconds",
				Help:    "Wall time of a batch",
				Buckets: prometheus.ExponentialBuckets(1, 3, 9),
			},
		),
		RowsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sms_screening_rows_in_flight",
				Help: "Rows currently awaiting remote classification",
			},
		),
	}
}

// RecordVerdict counts one produced verdict
func (m *ScreeningMetrics) RecordVerdict(source string, v models.Verdict) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(source, string(v.Case), v.Category).Inc()
}

// ObserveRemote records one remote call, start is when it was issued
func (m *ScreeningMetrics) ObserveRemote(start time.Time) {
	if m == nil {
		return
	}
	m.RemoteLatencySeconds.Observe(time.Since(start).Seconds())
}

// RecordBatch records a finished batch
func (m *ScreeningMetrics) RecordBatch(outcome string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
	m.BatchRows.Observe(float64(rows))
	m.BatchSeconds.Observe(elapsed.Seconds())
}

// InFlight adjusts the in-flight gauge by delta
func (m *ScreeningMetrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.RowsInFlight.Add(delta)
}
