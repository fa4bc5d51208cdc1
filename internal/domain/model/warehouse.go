package model

import (
	"strings"
	"time"
)

// WarehouseRow is the durable unit of the analytical dataset: one track in
// one chart week, joined with that week's weather summary. Primary key is
// (week, track_id); re-ingestion upserts, never duplicates.
//
// Weather columns are pointers: a chart week without a weather summary (an
// alignment gap) persists with NULL weather attributes rather than imputed
// zeroes.
type WarehouseRow struct {
	Week    string `gorm:"column:week;primaryKey;size:8"`
	TrackID string `gorm:"column:track_id;primaryKey;size:64"`

	Rank   int    `gorm:"column:rank;not null"`
	Title  string `gorm:"column:title"`
	Artist string `gorm:"column:artist"`
	Genres string `gorm:"column:genres"`

	Valence      float64 `gorm:"column:valence"`
	Energy       float64 `gorm:"column:energy"`
	Tempo        float64 `gorm:"column:tempo"`
	Danceability float64 `gorm:"column:danceability"`
	Acousticness float64 `gorm:"column:acousticness"`
	Loudness     float64 `gorm:"column:loudness"`

	TemperatureMean *float64 `gorm:"column:temperature_mean"`
	PrecipitationMM *float64 `gorm:"column:precipitation_mm"`
	WindSpeedKMH    *float64 `gorm:"column:wind_speed_kmh"`
	SunshineHours   *float64 `gorm:"column:sunshine_hours"`
	DaysObserved    *int     `gorm:"column:days_observed"`

	// HolidayShare is the fraction of the week's (region, day) slots covered
	// by a school holiday. NULL when the holiday calendar was unavailable.
	HolidayShare *float64 `gorm:"column:holiday_share"`

	MergedAt time.Time `gorm:"column:merged_at"`
}

// TableName specifies the warehouse table name.
func (WarehouseRow) TableName() string {
	return "warehouse_rows"
}

// NewWarehouseRow joins a chart entry with its week's weather summary.
// summary may be nil (alignment gap); the weather columns then stay NULL.
func NewWarehouseRow(entry ChartEntry, summary *WeeklyWeatherSummary) WarehouseRow {
	row := WarehouseRow{
		Week:         entry.Week.String(),
		TrackID:      entry.TrackID,
		Rank:         entry.Rank,
		Title:        entry.Title,
		Artist:       entry.Artist,
		Genres:       strings.Join(entry.Genres, ","),
		Valence:      entry.Features.Valence,
		Energy:       entry.Features.Energy,
		Tempo:        entry.Features.Tempo,
		Danceability: entry.Features.Danceability,
		Acousticness: entry.Features.Acousticness,
		Loudness:     entry.Features.Loudness,
	}
	if summary != nil {
		row.TemperatureMean = ptr(summary.TemperatureMean.Mean)
		row.PrecipitationMM = ptr(summary.PrecipitationMM.Mean)
		row.WindSpeedKMH = ptr(summary.WindSpeedKMH.Mean)
		row.SunshineHours = ptr(summary.SunshineHours.Mean)
		row.DaysObserved = ptrInt(summary.DaysObserved)
	}
	return row
}

// WeekKey parses the row's week column back into a WeekKey.
func (r WarehouseRow) WeekKey() (WeekKey, error) {
	return ParseWeekKey(r.Week)
}

// ChartFeature returns a named chart feature value for this row.
func (r WarehouseRow) ChartFeature(name string) (float64, bool) {
	return AudioFeatures{
		Valence:      r.Valence,
		Energy:       r.Energy,
		Tempo:        r.Tempo,
		Danceability: r.Danceability,
		Acousticness: r.Acousticness,
		Loudness:     r.Loudness,
	}.ChartFeature(name)
}

// WeatherFeature returns a named weather feature value for this row.
// The second return is false when the name is unknown or the column is NULL.
func (r WarehouseRow) WeatherFeature(name string) (float64, bool) {
	var v *float64
	switch name {
	case "temperature_mean":
		v = r.TemperatureMean
	case "precipitation_mm":
		v = r.PrecipitationMM
	case "wind_speed_kmh":
		v = r.WindSpeedKMH
	case "sunshine_hours":
		v = r.SunshineHours
	case "holiday_share":
		v = r.HolidayShare
	default:
		return 0, false
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// SameChartAttributes reports whether the chart-sourced columns of two rows
// are identical. Used by the merger to classify unchanged vs. conflicting rows.
func (r WarehouseRow) SameChartAttributes(o WarehouseRow) bool {
	return r.Rank == o.Rank &&
		r.Title == o.Title &&
		r.Artist == o.Artist &&
		r.Genres == o.Genres &&
		r.Valence == o.Valence &&
		r.Energy == o.Energy &&
		r.Tempo == o.Tempo &&
		r.Danceability == o.Danceability &&
		r.Acousticness == o.Acousticness &&
		r.Loudness == o.Loudness
}

// SameWeatherAttributes reports whether the weather-derived columns of two
// rows are identical, treating NULL as equal only to NULL.
func (r WarehouseRow) SameWeatherAttributes(o WarehouseRow) bool {
	return floatPtrEq(r.TemperatureMean, o.TemperatureMean) &&
		floatPtrEq(r.PrecipitationMM, o.PrecipitationMM) &&
		floatPtrEq(r.WindSpeedKMH, o.WindSpeedKMH) &&
		floatPtrEq(r.SunshineHours, o.SunshineHours) &&
		intPtrEq(r.DaysObserved, o.DaysObserved) &&
		floatPtrEq(r.HolidayShare, o.HolidayShare)
}

// MergeReport summarizes one atomic merge batch.
type MergeReport struct {
	Inserted  int
	Updated   int
	Unchanged int
}

func ptr(v float64) *float64 { return &v }
func ptrInt(v int) *int      { return &v }

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
