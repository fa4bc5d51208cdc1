package model

import "time"

// Location is one observation site (a Bundesland centroid for the German
// locale). The national daily value is the mean across all configured sites.
type Location struct {
	Name      string  `yaml:"name" mapstructure:"name"`
	Latitude  float64 `yaml:"latitude" mapstructure:"latitude"`
	Longitude float64 `yaml:"longitude" mapstructure:"longitude"`
}

// WeatherObservation is one day of normalized weather at one location.
// Units are metric; sunshine is hours (normalized from API seconds).
type WeatherObservation struct {
	Date            time.Time
	Location        string
	TemperatureMean float64
	PrecipitationMM float64
	WindSpeedKMH    float64
	SunshineHours   float64
}

// MeasurementSummary aggregates one measurement across the observed days of
// a week.
type MeasurementSummary struct {
	Mean float64
	Min  float64
	Max  float64
}

// WeeklyWeatherSummary is the aligner's output: one row per ISO week with
// mean/min/max per measurement. DaysObserved counts the distinct dates that
// contributed (1..7); a week with zero observations produces no summary at
// all, never a zeroed one.
type WeeklyWeatherSummary struct {
	Week            WeekKey
	DaysObserved    int
	TemperatureMean MeasurementSummary
	PrecipitationMM MeasurementSummary
	WindSpeedKMH    MeasurementSummary
	SunshineHours   MeasurementSummary
}

// WeatherFeature returns the weekly mean of a named measurement, used by the
// statistics engine to select the weather side of a correlation pair.
func (s WeeklyWeatherSummary) WeatherFeature(name string) (float64, bool) {
	switch name {
	case "temperature_mean":
		return s.TemperatureMean.Mean, true
	case "precipitation_mm":
		return s.PrecipitationMM.Mean, true
	case "wind_speed_kmh":
		return s.WindSpeedKMH.Mean, true
	case "sunshine_hours":
		return s.SunshineHours.Mean, true
	}
	return 0, false
}

// WeatherFeatureNames lists the weekly environmental signals usable as the
// weather side of a correlation pair. holiday_share is derived from the
// holiday calendar rather than the weather archive; WarehouseRow.WeatherFeature
// accepts all of them.
func WeatherFeatureNames() []string {
	return []string{"temperature_mean", "precipitation_mm", "wind_speed_kmh", "sunshine_hours", "holiday_share"}
}
