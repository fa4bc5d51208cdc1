// Package export writes merged warehouse rows and correlation results as
// Parquet artifacts through a storage connection.
package export

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/soundseasons/internal/adapter/storage"
	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

const moduleName = "export"

// rowRecord is the Parquet projection of a warehouse row.
type rowRecord struct {
	Week            string   `parquet:"name=week, type=BYTE_ARRAY, convertedtype=UTF8"`
	TrackID         string   `parquet:"name=track_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Rank            int32    `parquet:"name=rank, type=INT32"`
	Title           string   `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Artist          string   `parquet:"name=artist, type=BYTE_ARRAY, convertedtype=UTF8"`
	Genres          string   `parquet:"name=genres, type=BYTE_ARRAY, convertedtype=UTF8"`
	Valence         float64  `parquet:"name=valence, type=DOUBLE"`
	Energy          float64  `parquet:"name=energy, type=DOUBLE"`
	Tempo           float64  `parquet:"name=tempo, type=DOUBLE"`
	Danceability    float64  `parquet:"name=danceability, type=DOUBLE"`
	Acousticness    float64  `parquet:"name=acousticness, type=DOUBLE"`
	Loudness        float64  `parquet:"name=loudness, type=DOUBLE"`
	TemperatureMean *float64 `parquet:"name=temperature_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	PrecipitationMM *float64 `parquet:"name=precipitation_mm, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindSpeedKMH    *float64 `parquet:"name=wind_speed_kmh, type=DOUBLE, repetitiontype=OPTIONAL"`
	SunshineHours   *float64 `parquet:"name=sunshine_hours, type=DOUBLE, repetitiontype=OPTIONAL"`
	DaysObserved    *int32   `parquet:"name=days_observed, type=INT32, repetitiontype=OPTIONAL"`
}

// correlationRecord is the Parquet projection of a correlation result.
type correlationRecord struct {
	WeatherFeature   string  `parquet:"name=weather_feature, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChartFeature     string  `parquet:"name=chart_feature, type=BYTE_ARRAY, convertedtype=UTF8"`
	Window           string  `parquet:"name=window, type=BYTE_ARRAY, convertedtype=UTF8"`
	Spearman         float64 `parquet:"name=spearman, type=DOUBLE"`
	Pearson          float64 `parquet:"name=pearson, type=DOUBLE"`
	SampleSize       int32   `parquet:"name=sample_size, type=INT32"`
	Significant      bool    `parquet:"name=significant, type=BOOLEAN"`
	InsufficientData bool    `parquet:"name=insufficient_data, type=BOOLEAN"`
}

// Exporter writes run artifacts as Parquet files, partitioned Hive-style by
// week for warehouse rows.
type Exporter struct {
	cfg      *config.ExportConfig
	provider storage.StorageProvider
}

// NewExporter creates an Exporter using the configured storage provider.
func NewExporter(cfg *config.ExportConfig, provider storage.StorageProvider) *Exporter {
	return &Exporter{cfg: cfg, provider: provider}
}

// ExportRows writes one Parquet file per week partition. Partition failures
// are aggregated; a failed partition does not abort the others.
func (e *Exporter) ExportRows(ctx context.Context, rows []model.WarehouseRow) error {
	if len(rows) == 0 {
		logger.Infof("No rows to export, skipping Parquet generation.")
		return nil
	}

	conn, err := e.provider.GetConnection(e.cfg.StorageRef)
	if err != nil {
		return exception.New(moduleName, "failed to resolve storage connection", err, false)
	}

	byWeek := make(map[string][]rowRecord)
	for _, row := range rows {
		byWeek[row.Week] = append(byWeek[row.Week], toRowRecord(row))
	}

	var multiErr error
	for week, records := range byWeek {
		partition := path.Join(e.cfg.OutputBaseDir, "rows", "week="+week)
		if err := e.writePartition(ctx, conn, partition, records, new(rowRecord)); err != nil {
			multiErr = multierror.Append(multiErr, err)
			continue
		}
		logger.Infof("Exported %d rows for %s.", len(records), week)
	}
	return multiErr
}

// ExportCorrelations writes all correlation results as a single Parquet file.
func (e *Exporter) ExportCorrelations(ctx context.Context, results []model.CorrelationResult) error {
	if len(results) == 0 {
		logger.Infof("No correlation results to export, skipping Parquet generation.")
		return nil
	}

	conn, err := e.provider.GetConnection(e.cfg.StorageRef)
	if err != nil {
		return exception.New(moduleName, "failed to resolve storage connection", err, false)
	}

	records := make([]correlationRecord, 0, len(results))
	for _, r := range results {
		records = append(records, correlationRecord{
			WeatherFeature:   r.Pair.WeatherFeature,
			ChartFeature:     r.Pair.ChartFeature,
			Window:           r.Window,
			Spearman:         r.Spearman,
			Pearson:          r.Pearson,
			SampleSize:       int32(r.SampleSize),
			Significant:      r.Significant,
			InsufficientData: r.InsufficientData,
		})
	}

	partition := path.Join(e.cfg.OutputBaseDir, "correlations")
	if err := e.writePartition(ctx, conn, partition, records, new(correlationRecord)); err != nil {
		return err
	}
	logger.Infof("Exported %d correlation results.", len(records))
	return nil
}

// writePartition serializes records into one Parquet file in memory and
// uploads it under the partition prefix.
func (e *Exporter) writePartition(ctx context.Context, conn storage.StorageConnection, partition string, records interface{}, prototype interface{}) error {
	var items []interface{}
	switch v := records.(type) {
	case []rowRecord:
		for _, r := range v {
			items = append(items, r)
		}
	case []correlationRecord:
		for _, r := range v {
			items = append(items, r)
		}
	default:
		return exception.Newf(moduleName, "unsupported record type %T", records)
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, prototype, int64(len(items)))
	if err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to create Parquet writer for '%s'", partition), err, false)
	}

	codec, err := compressionCodec(e.cfg.Compression)
	if err != nil {
		return exception.New(moduleName, "invalid compression type", err, false)
	}
	pw.CompressionType = codec

	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return exception.New(moduleName,
				fmt.Sprintf("failed to write record for '%s'", partition), err, false)
		}
	}
	if err := stopWriter(pw, partition); err != nil {
		return err
	}

	fileName := fmt.Sprintf("data_%s_%s.parquet", time.Now().Format("20060102150405"), randomSuffix(8))
	objectName := path.Join(partition, fileName)
	if err := conn.Upload(ctx, "", objectName, buf, "application/octet-stream"); err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to upload Parquet file '%s'", objectName), err, true)
	}
	return nil
}

// stopWriter finalizes the Parquet file, converting library panics to errors.
func stopWriter(pw *writer.ParquetWriter, partition string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.Newf(moduleName, "Parquet writer panicked during WriteStop for '%s': %v", partition, r)
		}
	}()
	if stopErr := pw.WriteStop(); stopErr != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to stop Parquet writer for '%s'", partition), stopErr, false)
	}
	return nil
}

func toRowRecord(row model.WarehouseRow) rowRecord {
	record := rowRecord{
		Week:            row.Week,
		TrackID:         row.TrackID,
		Rank:            int32(row.Rank),
		Title:           row.Title,
		Artist:          row.Artist,
		Genres:          row.Genres,
		Valence:         row.Valence,
		Energy:          row.Energy,
		Tempo:           row.Tempo,
		Danceability:    row.Danceability,
		Acousticness:    row.Acousticness,
		Loudness:        row.Loudness,
		TemperatureMean: row.TemperatureMean,
		PrecipitationMM: row.PrecipitationMM,
		WindSpeedKMH:    row.WindSpeedKMH,
		SunshineHours:   row.SunshineHours,
	}
	if row.DaysObserved != nil {
		d := int32(*row.DaysObserved)
		record.DaysObserved = &d
	}
	return record
}

// compressionCodec maps the configured compression name to a Parquet codec.
func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "none", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", name)
	}
}

func randomSuffix(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
