package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports stage latencies and batch outcomes as
// Prometheus collectors registered on the supplied registerer.
type PrometheusMetricsRecorder struct {
	stageDuration *prometheus.HistogramVec
	stageResults  *prometheus.CounterVec
	actions       *prometheus.CounterVec
	batches       prometheus.Counter
}

// NewPrometheusMetricsRecorder registers the pipeline collectors. A nil
// registerer falls back to prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mortgageintake",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgageintake",
			Subsystem: "pipeline",
			Name:      "stage_results_total",
			Help:      "Pipeline stage outcomes by status.",
		}, []string{"operation", "status"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mortgageintake",
			Subsystem: "pipeline",
			Name:      "actions_total",
			Help:      "Actions by final outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mortgageintake",
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Executed batches.",
		}),
	}
	for _, c := range []prometheus.Collector{r.stageDuration, r.stageResults, r.actions, r.batches} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records a pipeline stage outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.stageDuration.WithLabelValues(operation).Observe(duration.Seconds())
	r.stageResults.WithLabelValues(operation, status).Inc()
}

// RecordReport counts the action outcomes of one executed batch.
func (r *PrometheusMetricsRecorder) RecordReport(_ context.Context, report ExecutionReport) {
	r.batches.Inc()
	for outcome, n := range reportOutcomes(report) {
		if n > 0 {
			r.actions.WithLabelValues(outcome).Add(float64(n))
		}
	}
}
