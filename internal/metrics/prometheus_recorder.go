package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricRecorder on a dedicated Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	sourceFailure *prometheus.CounterVec
	rowsMerged    *prometheus.CounterVec
	alignmentGaps prometheus.Counter
}

var _ MetricRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{registry: prometheus.NewRegistry()}

	r.runsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soundseasons_runs_started_total",
		Help: "Number of pipeline runs started.",
	})
	r.runsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soundseasons_runs_completed_total",
		Help: "Number of pipeline runs completed, by outcome.",
	}, []string{"outcome"})
	r.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "soundseasons_run_duration_seconds",
		Help:    "Duration of pipeline runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	r.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soundseasons_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"stage"})
	r.sourceFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soundseasons_source_failures_total",
		Help: "Number of source adapters that exhausted retries.",
	}, []string{"source"})
	r.rowsMerged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soundseasons_rows_merged_total",
		Help: "Warehouse rows processed per merge, by classification.",
	}, []string{"classification"})
	r.alignmentGaps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soundseasons_alignment_gaps_total",
		Help: "Chart weeks without a weather summary.",
	})

	r.registry.MustRegister(
		r.runsStarted, r.runsCompleted, r.runDuration,
		r.stageDuration, r.sourceFailure, r.rowsMerged, r.alignmentGaps,
	)
	return r
}

// Registry exposes the recorder's registry for scraping or testing.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordRunStart marks the start of a pipeline run.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, runID string) {
	r.runsStarted.Inc()
}

// RecordRunEnd marks the end of a pipeline run with its outcome.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, runID string, duration time.Duration, succeeded bool) {
	outcome := "succeeded"
	if !succeeded {
		outcome = "failed"
	}
	r.runsCompleted.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// RecordStageDuration records the elapsed time of one pipeline stage.
func (r *PrometheusRecorder) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordSourceFailure counts an exhausted source adapter.
func (r *PrometheusRecorder) RecordSourceFailure(ctx context.Context, source string) {
	r.sourceFailure.WithLabelValues(source).Inc()
}

// RecordRowsMerged records a merge outcome.
func (r *PrometheusRecorder) RecordRowsMerged(ctx context.Context, inserted, updated, unchanged int) {
	r.rowsMerged.WithLabelValues("inserted").Add(float64(inserted))
	r.rowsMerged.WithLabelValues("updated").Add(float64(updated))
	r.rowsMerged.WithLabelValues("unchanged").Add(float64(unchanged))
}

// RecordAlignmentGaps counts chart weeks without weather coverage.
func (r *PrometheusRecorder) RecordAlignmentGaps(ctx context.Context, count int) {
	r.alignmentGaps.Add(float64(count))
}
