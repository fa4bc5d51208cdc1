// Package metrics defines the metric recording abstraction for pipeline runs.
package metrics

import (
	"context"
	"time"
)

// MetricRecorder records pipeline observability events.
type MetricRecorder interface {
	// RecordRunStart marks the start of a pipeline run.
	RecordRunStart(ctx context.Context, runID string)
	// RecordRunEnd marks the end of a pipeline run with its outcome.
	RecordRunEnd(ctx context.Context, runID string, duration time.Duration, succeeded bool)
	// RecordStageDuration records the elapsed time of one pipeline stage.
	RecordStageDuration(ctx context.Context, stage string, duration time.Duration)
	// RecordSourceFailure counts an exhausted source adapter.
	RecordSourceFailure(ctx context.Context, source string)
	// RecordRowsMerged records a merge outcome.
	RecordRowsMerged(ctx context.Context, inserted, updated, unchanged int)
	// RecordAlignmentGaps counts chart weeks without weather coverage.
	RecordAlignmentGaps(ctx context.Context, count int)
}

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordRunStart does nothing.
func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, runID string) {}

// RecordRunEnd does nothing.
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, runID string, duration time.Duration, succeeded bool) {
}

// RecordStageDuration does nothing.
func (r *NoOpMetricRecorder) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
}

// RecordSourceFailure does nothing.
func (r *NoOpMetricRecorder) RecordSourceFailure(ctx context.Context, source string) {}

// RecordRowsMerged does nothing.
func (r *NoOpMetricRecorder) RecordRowsMerged(ctx context.Context, inserted, updated, unchanged int) {
}

// RecordAlignmentGaps does nothing.
func (r *NoOpMetricRecorder) RecordAlignmentGaps(ctx context.Context, count int) {}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)
