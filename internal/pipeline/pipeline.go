// Package pipeline orchestrates one ingestion run: fetch both sources, align
// weather onto the ISO-week axis, merge into the warehouse, recompute
// correlations, and export artifacts.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/soundseasons/internal/align"
	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/export"
	"github.com/tigerroll/soundseasons/internal/metrics"
	"github.com/tigerroll/soundseasons/internal/report"
	"github.com/tigerroll/soundseasons/internal/source/charts"
	"github.com/tigerroll/soundseasons/internal/source/holidays"
	"github.com/tigerroll/soundseasons/internal/source/weather"
	"github.com/tigerroll/soundseasons/internal/stats"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/support/logger"
	"github.com/tigerroll/soundseasons/internal/warehouse"
)

const moduleName = "pipeline"

// Pipeline wires the run stages together.
type Pipeline struct {
	cfg      *config.PipelineConfig
	charts   charts.ChartSource
	weather  weather.WeatherSource
	holidays holidays.HolidaySource
	repo     warehouse.Repository
	engine   *stats.Engine
	exporter *export.Exporter
	reports  *report.Service
	recorder metrics.MetricRecorder
}

// NewPipeline creates a Pipeline from its stage components.
func NewPipeline(
	cfg *config.PipelineConfig,
	chartSource charts.ChartSource,
	weatherSource weather.WeatherSource,
	holidaySource holidays.HolidaySource,
	repo warehouse.Repository,
	engine *stats.Engine,
	exporter *export.Exporter,
	reports *report.Service,
	recorder metrics.MetricRecorder,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		charts:   chartSource,
		weather:  weatherSource,
		holidays: holidaySource,
		repo:     repo,
		engine:   engine,
		exporter: exporter,
		reports:  reports,
		recorder: recorder,
	}
}

// Run executes one ingestion run over the inclusive week range [from, to].
//
// Source failures are isolated: an unavailable weather source still merges
// chart-only rows (recorded as gap weeks), while an entirely unavailable
// chart source leaves the warehouse untouched for the run. Re-running over
// the same range is idempotent.
func (p *Pipeline) Run(ctx context.Context, from, to model.WeekKey) (*RunReport, error) {
	started := time.Now()
	runReport := &RunReport{
		RunID: uuid.NewString(),
		From:  from,
		To:    to,
	}

	weeks := model.WeeksBetween(from, to)
	if len(weeks) == 0 {
		return nil, exception.Newf(moduleName, "empty week range: %s .. %s", from, to)
	}

	p.recorder.RecordRunStart(ctx, runReport.RunID)
	logger.Infof("Run %s: ingesting %d weeks (%s .. %s).", runReport.RunID, len(weeks), from, to)

	chartsByWeek, summaries, holidayShares := p.fetchSources(ctx, runReport, weeks, from, to)

	if !runReport.Charts.Available {
		p.recorder.RecordSourceFailure(ctx, "charts")
		p.finish(ctx, runReport, started, false)
		return runReport, exception.New(moduleName, "chart source unavailable, nothing to merge",
			runReport.Charts.Err, false)
	}
	if !runReport.Weather.Available {
		p.recorder.RecordSourceFailure(ctx, "weather")
		logger.Warnf("Run %s: weather source unavailable. Merging chart-only rows.", runReport.RunID)
	}
	if !runReport.Holidays.Available {
		p.recorder.RecordSourceFailure(ctx, "holidays")
		logger.Warnf("Run %s: holiday calendar unavailable. Merging without holiday shares.", runReport.RunID)
	}

	if err := p.mergeStage(ctx, runReport, weeks, chartsByWeek, summaries, holidayShares); err != nil {
		p.finish(ctx, runReport, started, false)
		return runReport, err
	}

	if err := p.statsStage(ctx, runReport); err != nil {
		p.finish(ctx, runReport, started, false)
		return runReport, err
	}

	if err := p.exportStage(ctx, runReport); err != nil {
		// Artifacts are derivable from the warehouse; an export failure does
		// not invalidate the merged data.
		logger.Errorf("Run %s: export failed: %v", runReport.RunID, err)
	}

	p.finish(ctx, runReport, started, true)
	logger.Infof("Run %s finished in %v: %d inserted, %d updated, %d unchanged, %d gap weeks, %d correlations.",
		runReport.RunID, runReport.Duration, runReport.Merge.Inserted, runReport.Merge.Updated,
		runReport.Merge.Unchanged, len(runReport.GapWeeks), runReport.CorrelationCount)
	return runReport, nil
}

// fetchSources fetches all sources concurrently. Chart weeks are fetched
// one by one so a single missing snapshot does not sink the run.
func (p *Pipeline) fetchSources(ctx context.Context, runReport *RunReport, weeks []model.WeekKey, from, to model.WeekKey) (map[model.WeekKey][]model.ChartEntry, []model.WeeklyWeatherSummary, map[model.WeekKey]float64) {
	var (
		wg            sync.WaitGroup
		summaries     []model.WeeklyWeatherSummary
		weatherErr    error
		holidayShares map[model.WeekKey]float64
		holidaysErr   error
		chartsByWeek  = make(map[model.WeekKey][]model.ChartEntry, len(weeks))
		chartsDown    bool
		chartsLastErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		stageStart := time.Now()
		observations, err := p.weather.FetchRange(ctx, from.Monday(), to.Sunday())
		if err != nil {
			weatherErr = err
			return
		}
		summaries = align.Summarize(observations)
		p.recorder.RecordStageDuration(ctx, "fetch_weather", time.Since(stageStart))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		stageStart := time.Now()
		holidayDays, err := p.holidays.FetchRange(ctx, from.Monday(), to.Sunday())
		if err != nil {
			holidaysErr = err
			return
		}
		holidayShares = align.HolidayShares(holidayDays, len(p.cfg.Holidays.Regions))
		p.recorder.RecordStageDuration(ctx, "fetch_holidays", time.Since(stageStart))
	}()

	stageStart := time.Now()
	for _, week := range weeks {
		entries, err := p.charts.FetchWeek(ctx, week)
		if err != nil {
			if exception.IsSourceUnavailable(err) {
				chartsLastErr = err
				runReport.Charts.FailedWeeks = append(runReport.Charts.FailedWeeks, week)
				continue
			}
			chartsLastErr = err
			runReport.Charts.FailedWeeks = append(runReport.Charts.FailedWeeks, week)
			logger.Errorf("Failed to fetch chart week %s: %v", week, err)
			continue
		}
		chartsByWeek[week] = entries
	}
	p.recorder.RecordStageDuration(ctx, "fetch_charts", time.Since(stageStart))

	wg.Wait()

	chartsDown = len(chartsByWeek) == 0
	runReport.Charts = SourceOutcome{
		Available:   !chartsDown,
		FailedWeeks: runReport.Charts.FailedWeeks,
		Err:         chartsLastErr,
	}
	runReport.Weather = SourceOutcome{Available: weatherErr == nil, Err: weatherErr}
	runReport.Holidays = SourceOutcome{Available: holidaysErr == nil, Err: holidaysErr}
	return chartsByWeek, summaries, holidayShares
}

// mergeStage joins chart entries with weekly summaries and merges the whole
// batch atomically.
func (p *Pipeline) mergeStage(ctx context.Context, runReport *RunReport, weeks []model.WeekKey, chartsByWeek map[model.WeekKey][]model.ChartEntry, summaries []model.WeeklyWeatherSummary, holidayShares map[model.WeekKey]float64) error {
	stageStart := time.Now()

	var chartWeeks []model.WeekKey
	for _, week := range weeks {
		if _, ok := chartsByWeek[week]; ok {
			chartWeeks = append(chartWeeks, week)
		}
	}
	runReport.GapWeeks = align.Gaps(chartWeeks, summaries)
	p.recorder.RecordAlignmentGaps(ctx, len(runReport.GapWeeks))

	index := align.SummaryIndex(summaries)
	var rows []model.WarehouseRow
	for _, week := range chartWeeks {
		summary := index[week]
		for _, entry := range chartsByWeek[week] {
			row := model.NewWarehouseRow(entry, summary)
			// A nil map means the calendar was unavailable; with the calendar
			// present, a week without holidays gets an explicit zero share.
			if holidayShares != nil {
				share := holidayShares[week]
				row.HolidayShare = &share
			}
			rows = append(rows, row)
		}
	}

	mergeReport, err := p.repo.Merge(ctx, rows)
	if err != nil {
		return err
	}
	runReport.Merge = mergeReport
	runReport.MergedWeeks = chartWeeks
	p.recorder.RecordRowsMerged(ctx, mergeReport.Inserted, mergeReport.Updated, mergeReport.Unchanged)
	p.recorder.RecordStageDuration(ctx, "merge", time.Since(stageStart))
	return nil
}

// statsStage recomputes correlations over the full warehouse and publishes
// them to the report boundary.
func (p *Pipeline) statsStage(ctx context.Context, runReport *RunReport) error {
	stageStart := time.Now()

	allWeeks, err := p.repo.Weeks(ctx)
	if err != nil {
		return err
	}
	if len(allWeeks) == 0 {
		return nil
	}

	rows, err := p.repo.RowsInRange(ctx, allWeeks[0], allWeeks[len(allWeeks)-1])
	if err != nil {
		return err
	}

	results, err := p.engine.Compute(rows)
	if err != nil {
		return err
	}
	p.reports.SetCorrelations(results)

	trends, err := p.engine.ComputeTrends(rows)
	if err != nil {
		return err
	}
	p.reports.SetTrends(trends, stats.WinterSummerContrast(trends))
	runReport.TrendCount = len(trends)

	runReport.CorrelationCount = len(results)
	for _, r := range results {
		if r.Significant {
			runReport.SignificantCount++
		}
	}
	p.recorder.RecordStageDuration(ctx, "stats", time.Since(stageStart))
	return nil
}

// exportStage writes the run's merged rows and the current correlation
// results as Parquet artifacts.
func (p *Pipeline) exportStage(ctx context.Context, runReport *RunReport) error {
	if len(runReport.MergedWeeks) == 0 {
		return nil
	}
	stageStart := time.Now()

	rows, err := p.repo.RowsInRange(ctx, runReport.MergedWeeks[0], runReport.MergedWeeks[len(runReport.MergedWeeks)-1])
	if err != nil {
		return err
	}
	if err := p.exporter.ExportRows(ctx, rows); err != nil {
		return err
	}

	results, err := p.reports.Correlations(ctx)
	if err != nil {
		return err
	}
	if err := p.exporter.ExportCorrelations(ctx, results); err != nil {
		return err
	}
	p.recorder.RecordStageDuration(ctx, "export", time.Since(stageStart))
	return nil
}

func (p *Pipeline) finish(ctx context.Context, runReport *RunReport, started time.Time, succeeded bool) {
	runReport.Duration = time.Since(started)
	p.recorder.RecordRunEnd(ctx, runReport.RunID, runReport.Duration, succeeded)
}
