package pipeline

import (
	"time"

	"github.com/tigerroll/soundseasons/internal/domain/model"
)

// SourceOutcome describes how one source adapter fared during a run.
type SourceOutcome struct {
	// Available is false when the adapter exhausted retries.
	Available bool
	// FailedWeeks lists chart weeks that could not be fetched even though
	// the source was generally available.
	FailedWeeks []model.WeekKey
	// Err carries the terminal error for an unavailable source.
	Err error
}

// RunReport summarizes one pipeline run for operators and report consumers.
type RunReport struct {
	RunID string
	From  model.WeekKey
	To    model.WeekKey

	Charts   SourceOutcome
	Weather  SourceOutcome
	Holidays SourceOutcome

	// MergedWeeks are the weeks whose rows reached the warehouse this run.
	MergedWeeks []model.WeekKey
	// GapWeeks are chart weeks merged without weather coverage.
	GapWeeks []model.WeekKey

	Merge model.MergeReport

	// CorrelationCount is the number of computed (pair, window) results.
	CorrelationCount int
	// TrendCount is the number of computed (season, feature) aggregates.
	TrendCount int
	// SignificantCount is the number of results at or above the
	// significance threshold.
	SignificantCount int

	Duration time.Duration
}
