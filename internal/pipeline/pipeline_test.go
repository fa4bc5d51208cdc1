package pipeline_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/soundseasons/internal/adapter/database"
	dbconfig "github.com/tigerroll/soundseasons/internal/adapter/database/config"
	"github.com/tigerroll/soundseasons/internal/adapter/storage/local"
	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/export"
	"github.com/tigerroll/soundseasons/internal/metrics"
	"github.com/tigerroll/soundseasons/internal/pipeline"
	"github.com/tigerroll/soundseasons/internal/report"
	"github.com/tigerroll/soundseasons/internal/stats"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/warehouse"
)

// stubChartSource serves preset entries per week and fails the rest.
type stubChartSource struct {
	entries map[model.WeekKey][]model.ChartEntry
	err     error
}

func (s *stubChartSource) FetchWeek(ctx context.Context, week model.WeekKey) ([]model.ChartEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	entries, ok := s.entries[week]
	if !ok {
		return nil, exception.New("charts_source",
			fmt.Sprintf("no chart snapshot published for %s", week),
			exception.ErrSourceUnavailable, false)
	}
	return entries, nil
}

// stubWeatherSource serves preset observations for the whole range.
type stubWeatherSource struct {
	observations []model.WeatherObservation
	err          error
}

func (s *stubWeatherSource) FetchRange(ctx context.Context, from, to time.Time) ([]model.WeatherObservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.observations, nil
}

// stubHolidaySource serves preset holiday days for the whole range.
type stubHolidaySource struct {
	holidays []model.Holiday
	err      error
}

func (s *stubHolidaySource) FetchRange(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.holidays, nil
}

type testConn struct {
	db *gorm.DB
}

func (c *testConn) GORM() *gorm.DB                  { return c.db }
func (c *testConn) GetSQLDB() (*sql.DB, error)      { return c.db.DB() }
func (c *testConn) Type() string                    { return "sqlite" }
func (c *testConn) Name() string                    { return "warehouse" }
func (c *testConn) Config() dbconfig.DatabaseConfig { return dbconfig.DatabaseConfig{Type: "sqlite"} }
func (c *testConn) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type fixture struct {
	pipeline *pipeline.Pipeline
	repo     warehouse.Repository
	charts   *stubChartSource
	weather  *stubWeatherSource
	holidays *stubHolidaySource
	reports  *report.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.WarehouseRow{}))

	var conn database.DBConnection = &testConn{db: db}
	repo := warehouse.NewGormRepository(conn)
	t.Cleanup(func() { _ = repo.Close() })

	chartsStub := &stubChartSource{entries: make(map[model.WeekKey][]model.ChartEntry)}
	weatherStub := &stubWeatherSource{}
	holidayStub := &stubHolidaySource{}

	correlationCfg := &config.CorrelationConfig{
		MinSampleSize:         2,
		SignificanceThreshold: 0.3,
		RollingWindowWeeks:    0,
		Statistics:            []string{"spearman", "pearson"},
		Pairs: []model.FeaturePair{
			{WeatherFeature: "temperature_mean", ChartFeature: "valence"},
		},
	}

	appCfg := config.NewConfig()
	appCfg.SoundSeasons.StorageConfigs["artifacts"] = map[string]interface{}{
		"type":     "local",
		"base_dir": t.TempDir(),
	}
	exportCfg := &config.ExportConfig{
		StorageRef:    "artifacts",
		OutputBaseDir: "exports",
		Compression:   "none",
	}
	exporter := export.NewExporter(exportCfg, local.NewLocalProvider(appCfg))

	pipelineCfg := &config.PipelineConfig{
		Locale:    "DE",
		ChartSize: 200,
		Holidays: config.HolidaysConfig{
			Regions: []model.HolidayRegion{
				{Code: "BE", Name: "Berlin"},
				{Code: "BY", Name: "Bayern"},
			},
		},
	}

	reports := report.NewService(repo)
	p := pipeline.NewPipeline(
		pipelineCfg,
		chartsStub,
		weatherStub,
		holidayStub,
		repo,
		stats.NewEngine(correlationCfg),
		exporter,
		reports,
		metrics.NewNoOpMetricRecorder(),
	)

	return &fixture{
		pipeline: p,
		repo:     repo,
		charts:   chartsStub,
		weather:  weatherStub,
		holidays: holidayStub,
		reports:  reports,
	}
}

func entriesFor(week model.WeekKey, valence float64) []model.ChartEntry {
	return []model.ChartEntry{
		{
			Week: week, Rank: 1, TrackID: "track-1", Title: "One", Artist: "A",
			Features: model.AudioFeatures{Valence: valence, Tempo: 120},
		},
		{
			Week: week, Rank: 2, TrackID: "track-2", Title: "Two", Artist: "B",
			Features: model.AudioFeatures{Valence: valence + 0.1, Tempo: 100},
		},
	}
}

// observationsFor fills every day of the week with a flat temperature.
func observationsFor(week model.WeekKey, temp float64) []model.WeatherObservation {
	var observations []model.WeatherObservation
	day := week.Monday()
	for i := 0; i < 7; i++ {
		observations = append(observations, model.WeatherObservation{
			Date:            day,
			Location:        "national",
			TemperatureMean: temp,
			PrecipitationMM: 1.0,
			WindSpeedKMH:    10.0,
			SunshineHours:   2.0,
		})
		day = day.AddDate(0, 0, 1)
	}
	return observations
}

func TestRunMergesChartsAndWeather(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	w2 := model.WeekKey{Year: 2024, Week: 2}

	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.charts.entries[w2] = entriesFor(w2, 0.6)
	f.weather.observations = append(observationsFor(w1, 2.0), observationsFor(w2, 8.0)...)

	runReport, err := f.pipeline.Run(context.Background(), w1, w2)
	require.NoError(t, err)

	assert.NotEmpty(t, runReport.RunID)
	assert.True(t, runReport.Charts.Available)
	assert.True(t, runReport.Weather.Available)
	assert.Empty(t, runReport.GapWeeks)
	assert.Equal(t, model.MergeReport{Inserted: 4}, runReport.Merge)
	assert.Equal(t, []model.WeekKey{w1, w2}, runReport.MergedWeeks)
	assert.Equal(t, 1, runReport.CorrelationCount)

	rows, err := f.repo.RowsForWeek(context.Background(), w1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].TemperatureMean)
	assert.InDelta(t, 2.0, *rows[0].TemperatureMean, 1e-9)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.weather.observations = observationsFor(w1, 2.0)

	_, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)

	second, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)
	assert.Equal(t, model.MergeReport{Unchanged: 2}, second.Merge)
}

func TestRunRecordsGapWeekWhenWeatherMissing(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	w2 := model.WeekKey{Year: 2024, Week: 2}
	w3 := model.WeekKey{Year: 2024, Week: 3}

	for _, w := range []model.WeekKey{w1, w2, w3} {
		f.charts.entries[w] = entriesFor(w, 0.5)
	}
	// Weather covers every week except W02.
	f.weather.observations = append(observationsFor(w1, 2.0), observationsFor(w3, 8.0)...)

	runReport, err := f.pipeline.Run(context.Background(), w1, w3)
	require.NoError(t, err)
	assert.Equal(t, []model.WeekKey{w2}, runReport.GapWeeks)

	// The gap week's rows persist with NULL weather columns.
	rows, err := f.repo.RowsForWeek(context.Background(), w2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].TemperatureMean)
	assert.Nil(t, rows[0].DaysObserved)
}

func TestRunToleratesMissingChartWeeks(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	w2 := model.WeekKey{Year: 2024, Week: 2}
	w3 := model.WeekKey{Year: 2024, Week: 3}

	// W02's snapshot was never published.
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.charts.entries[w3] = entriesFor(w3, 0.6)
	f.weather.observations = append(observationsFor(w1, 2.0),
		append(observationsFor(w2, 5.0), observationsFor(w3, 8.0)...)...)

	runReport, err := f.pipeline.Run(context.Background(), w1, w3)
	require.NoError(t, err)
	assert.True(t, runReport.Charts.Available)
	assert.Equal(t, []model.WeekKey{w2}, runReport.Charts.FailedWeeks)
	assert.Equal(t, []model.WeekKey{w1, w3}, runReport.MergedWeeks)

	rows, err := f.repo.RowsForWeek(context.Background(), w2)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunMergesChartOnlyWhenWeatherDown(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.weather.err = exception.New("weather_source", "retries exhausted",
		errors.Join(exception.ErrSourceUnavailable, errors.New("boom")), false)

	runReport, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)
	assert.False(t, runReport.Weather.Available)
	assert.Equal(t, []model.WeekKey{w1}, runReport.GapWeeks)
	assert.Equal(t, model.MergeReport{Inserted: 2}, runReport.Merge)

	rows, err := f.repo.RowsForWeek(context.Background(), w1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].TemperatureMean)
}

func TestRunWeatherOutageDoesNotDisturbPriorWeeks(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.weather.observations = observationsFor(w1, 2.0)

	_, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)

	// A later chart-only run over the same week must not blank out the
	// weather already merged.
	f.weather.observations = nil
	f.weather.err = exception.New("weather_source", "retries exhausted",
		exception.ErrSourceUnavailable, false)

	runReport, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)
	assert.False(t, runReport.Weather.Available)
	assert.Equal(t, model.MergeReport{Unchanged: 2}, runReport.Merge)

	rows, err := f.repo.RowsForWeek(context.Background(), w1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].TemperatureMean)
	assert.InDelta(t, 2.0, *rows[0].TemperatureMean, 1e-9)
}

func TestRunFailsWhenChartsEntirelyDown(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.err = exception.New("charts_source", "retries exhausted",
		exception.ErrSourceUnavailable, false)
	f.weather.observations = observationsFor(w1, 2.0)

	runReport, err := f.pipeline.Run(context.Background(), w1, w1)
	require.Error(t, err)
	assert.False(t, runReport.Charts.Available)

	// Nothing reached the warehouse.
	weeks, werr := f.repo.Weeks(context.Background())
	require.NoError(t, werr)
	assert.Empty(t, weeks)
}

// holidaysFor marks every day of the week as a holiday in one region.
func holidaysFor(week model.WeekKey, region string) []model.Holiday {
	var holidays []model.Holiday
	day := week.Monday()
	for i := 0; i < 7; i++ {
		holidays = append(holidays, model.Holiday{Date: day, Region: region, Name: "ferien"})
		day = day.AddDate(0, 0, 1)
	}
	return holidays
}

func TestRunJoinsHolidayShare(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.weather.observations = observationsFor(w1, 2.0)
	// One of the two configured regions is on holiday all week.
	f.holidays.holidays = holidaysFor(w1, "Berlin")

	runReport, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)
	assert.True(t, runReport.Holidays.Available)

	rows, err := f.repo.RowsForWeek(context.Background(), w1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].HolidayShare)
	assert.InDelta(t, 0.5, *rows[0].HolidayShare, 1e-9)
}

func TestRunWithoutHolidaysStoresZeroShare(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.weather.observations = observationsFor(w1, 2.0)

	_, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)

	rows, err := f.repo.RowsForWeek(context.Background(), w1)
	require.NoError(t, err)
	require.NotNil(t, rows[0].HolidayShare)
	assert.Zero(t, *rows[0].HolidayShare)
}

func TestRunToleratesHolidayCalendarOutage(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.weather.observations = observationsFor(w1, 2.0)
	f.holidays.err = exception.New("holidays_source", "retries exhausted",
		exception.ErrSourceUnavailable, false)

	runReport, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)
	assert.False(t, runReport.Holidays.Available)
	assert.Equal(t, model.MergeReport{Inserted: 2}, runReport.Merge)

	rows, err := f.repo.RowsForWeek(context.Background(), w1)
	require.NoError(t, err)
	assert.Nil(t, rows[0].HolidayShare)
}

func TestRunHolidayOutageKeepsStoredShare(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.weather.observations = observationsFor(w1, 2.0)
	f.holidays.holidays = holidaysFor(w1, "Berlin")

	_, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)

	f.holidays.holidays = nil
	f.holidays.err = exception.New("holidays_source", "retries exhausted",
		exception.ErrSourceUnavailable, false)

	runReport, err := f.pipeline.Run(context.Background(), w1, w1)
	require.NoError(t, err)
	assert.Equal(t, model.MergeReport{Unchanged: 2}, runReport.Merge)

	rows, err := f.repo.RowsForWeek(context.Background(), w1)
	require.NoError(t, err)
	require.NotNil(t, rows[0].HolidayShare)
	assert.InDelta(t, 0.5, *rows[0].HolidayShare, 1e-9)
}

func TestRunPublishesSeasonalTrends(t *testing.T) {
	f := newFixture(t)
	w1 := model.WeekKey{Year: 2024, Week: 1}
	w2 := model.WeekKey{Year: 2024, Week: 2}
	f.charts.entries[w1] = entriesFor(w1, 0.3)
	f.charts.entries[w2] = entriesFor(w2, 0.6)
	f.weather.observations = append(observationsFor(w1, 2.0), observationsFor(w2, 8.0)...)

	runReport, err := f.pipeline.Run(context.Background(), w1, w2)
	require.NoError(t, err)

	// January weeks all fall in winter: one aggregate per chart feature.
	assert.Equal(t, 6, runReport.TrendCount)

	trends, err := f.reports.Trends(context.Background())
	require.NoError(t, err)
	require.Len(t, trends, 6)
	for _, trend := range trends {
		assert.Equal(t, model.SeasonWinter, trend.Season)
		assert.Equal(t, 4, trend.SampleSize)
	}

	// No summer rows merged, so no winter/summer contrast yet.
	contrasts, err := f.reports.SeasonalContrasts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, contrasts)
}

func TestRunRejectsEmptyRange(t *testing.T) {
	f := newFixture(t)
	from := model.WeekKey{Year: 2024, Week: 5}
	to := model.WeekKey{Year: 2024, Week: 1}

	_, err := f.pipeline.Run(context.Background(), from, to)
	assert.Error(t, err)
}
