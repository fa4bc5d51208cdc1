package report_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/report"
	"github.com/tigerroll/soundseasons/internal/warehouse"
)

// stubRepository serves canned rows for boundary delegation tests.
type stubRepository struct {
	warehouse.Repository
	rows []model.WarehouseRow
}

func (s *stubRepository) RowsForWeek(ctx context.Context, week model.WeekKey) ([]model.WarehouseRow, error) {
	return s.rows, nil
}

func (s *stubRepository) RowsInRange(ctx context.Context, from, to model.WeekKey) ([]model.WarehouseRow, error) {
	return s.rows, nil
}

func TestServiceDelegatesRowQueries(t *testing.T) {
	repo := &stubRepository{rows: []model.WarehouseRow{{Week: "2024-W01", TrackID: "a", Rank: 1}}}
	svc := report.NewService(repo)

	rows, err := svc.RowsForWeek(context.Background(), model.WeekKey{Year: 2024, Week: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = svc.RowsInRange(context.Background(),
		model.WeekKey{Year: 2024, Week: 1}, model.WeekKey{Year: 2024, Week: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestServiceCorrelationsReturnsCopies(t *testing.T) {
	svc := report.NewService(&stubRepository{})

	results, err := svc.Correlations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)

	published := []model.CorrelationResult{
		{
			Pair:     model.FeaturePair{WeatherFeature: "temperature_mean", ChartFeature: "valence"},
			Window:   model.WindowAllTime,
			Spearman: 0.4,
		},
	}
	svc.SetCorrelations(published)

	results, err = svc.Correlations(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Mutating the returned slice must not affect the published results.
	results[0].Spearman = -1
	again, err := svc.Correlations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.4, again[0].Spearman)
}

func TestServiceTrendsReturnsCopies(t *testing.T) {
	svc := report.NewService(&stubRepository{})

	trends, err := svc.Trends(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trends)
	contrasts, err := svc.SeasonalContrasts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, contrasts)

	svc.SetTrends(
		[]model.TrendAggregate{
			{Season: model.SeasonWinter, ChartFeature: "valence", Mean: 0.4, SampleSize: 12},
		},
		[]model.SeasonalContrast{
			{ChartFeature: "valence", Winter: 0.4, Summer: 0.6, Difference: 0.2, PercentChange: 50},
		},
	)

	trends, err = svc.Trends(context.Background())
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, model.SeasonWinter, trends[0].Season)

	// Mutating the returned slices must not affect the published values.
	trends[0].Mean = -1
	again, err := svc.Trends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.4, again[0].Mean)

	contrasts, err = svc.SeasonalContrasts(context.Background())
	require.NoError(t, err)
	require.Len(t, contrasts, 1)
	contrasts[0].Difference = -1
	againContrasts, err := svc.SeasonalContrasts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.2, againContrasts[0].Difference)
}
