package export_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/soundseasons/internal/adapter/storage"
	"github.com/tigerroll/soundseasons/internal/adapter/storage/local"
	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/export"
)

func newExporter(t *testing.T, compression string) (*export.Exporter, storage.StorageConnection) {
	t.Helper()

	appCfg := config.NewConfig()
	appCfg.SoundSeasons.StorageConfigs["artifacts"] = map[string]interface{}{
		"type":     "local",
		"base_dir": t.TempDir(),
	}
	provider := local.NewLocalProvider(appCfg)

	exportCfg := &config.ExportConfig{
		StorageRef:    "artifacts",
		OutputBaseDir: "exports",
		Compression:   compression,
	}
	conn, err := provider.GetConnection("artifacts")
	require.NoError(t, err)
	return export.NewExporter(exportCfg, provider), conn
}

func exportRows() []model.WarehouseRow {
	w1 := model.WeekKey{Year: 2024, Week: 1}
	w2 := model.WeekKey{Year: 2024, Week: 2}
	summary := &model.WeeklyWeatherSummary{
		Week: w1, DaysObserved: 7,
		TemperatureMean: model.MeasurementSummary{Mean: 3.5},
	}
	return []model.WarehouseRow{
		model.NewWarehouseRow(model.ChartEntry{Week: w1, Rank: 1, TrackID: "a", Title: "One"}, summary),
		model.NewWarehouseRow(model.ChartEntry{Week: w1, Rank: 2, TrackID: "b", Title: "Two"}, summary),
		// A gap week row with NULL weather columns.
		model.NewWarehouseRow(model.ChartEntry{Week: w2, Rank: 1, TrackID: "a", Title: "One"}, nil),
	}
}

func listObjects(t *testing.T, conn storage.StorageConnection, prefix string) []string {
	t.Helper()
	var names []string
	err := conn.ListObjects(context.Background(), "", prefix, func(objectName string) error {
		names = append(names, objectName)
		return nil
	})
	require.NoError(t, err)
	return names
}

func TestExportRowsWritesOneFilePerWeekPartition(t *testing.T) {
	exporter, conn := newExporter(t, "snappy")

	require.NoError(t, exporter.ExportRows(context.Background(), exportRows()))

	w1Files := listObjects(t, conn, "exports/rows/week=2024-W01/")
	w2Files := listObjects(t, conn, "exports/rows/week=2024-W02/")
	require.Len(t, w1Files, 1)
	require.Len(t, w2Files, 1)
	assert.Contains(t, w1Files[0], ".parquet")

	// The written file has actual content.
	reader, err := conn.Download(context.Background(), "", w1Files[0])
	require.NoError(t, err)
	defer reader.Close()
	buf := make([]byte, 4)
	n, _ := reader.Read(buf)
	assert.Equal(t, "PAR1", string(buf[:n]))
}

func TestExportRowsEmptyInputIsNoOp(t *testing.T) {
	exporter, conn := newExporter(t, "snappy")
	require.NoError(t, exporter.ExportRows(context.Background(), nil))
	assert.Empty(t, listObjects(t, conn, "exports/"))
}

func TestExportRowsRejectsUnknownCompression(t *testing.T) {
	exporter, _ := newExporter(t, "zstd")
	err := exporter.ExportRows(context.Background(), exportRows())
	assert.Error(t, err)
}

func TestExportCorrelations(t *testing.T) {
	exporter, conn := newExporter(t, "gzip")

	results := []model.CorrelationResult{
		{
			Pair:        model.FeaturePair{WeatherFeature: "temperature_mean", ChartFeature: "valence"},
			Window:      model.WindowAllTime,
			Spearman:    0.42,
			Pearson:     0.38,
			SampleSize:  26,
			Significant: true,
		},
		{
			Pair:             model.FeaturePair{WeatherFeature: "sunshine_hours", ChartFeature: "energy"},
			Window:           "rolling-13-week@2024-W26",
			SampleSize:       5,
			InsufficientData: true,
		},
	}
	require.NoError(t, exporter.ExportCorrelations(context.Background(), results))

	files := listObjects(t, conn, "exports/correlations/")
	require.Len(t, files, 1)
	assert.Contains(t, files[0], ".parquet")
}
