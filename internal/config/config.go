package config

import "github.com/tigerroll/soundseasons/internal/domain/model"

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone used for source-local date handling.
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
	// MetricsEnabled switches the run metrics recorder from noop to Prometheus.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// RetryConfig holds configuration for the source adapters' retry mechanism.
type RetryConfig struct {
	MaxAttempts                 int     `yaml:"max_attempts" validate:"min=1"`
	InitialInterval             int     `yaml:"initial_interval"` // milliseconds
	MaxInterval                 int     `yaml:"max_interval"`     // milliseconds
	Factor                      float64 `yaml:"factor"`
	CircuitBreakerThreshold     int     `yaml:"circuit_breaker_threshold"`
	CircuitBreakerResetInterval int     `yaml:"circuit_breaker_reset_interval"` // milliseconds
}

// ChartsConfig holds the chart provider connection settings.
type ChartsConfig struct {
	// APIEndpoint is the chart provider base URL.
	APIEndpoint string `yaml:"api_endpoint" validate:"required,url"`
	// AppID and APIKey authenticate requests via the provider's headers.
	AppID  string `yaml:"app_id"`
	APIKey string `yaml:"api_key"`
	// ChartSlug selects the weekly chart to ingest (e.g., "top-songs-de").
	ChartSlug string `yaml:"chart_slug" validate:"required"`
}

// WeatherConfig holds the weather archive connection settings.
type WeatherConfig struct {
	// APIEndpoint is the archive API base URL.
	APIEndpoint string `yaml:"api_endpoint" validate:"required,url"`
	// Timezone is passed to the archive API so daily buckets align with local days.
	Timezone string `yaml:"timezone"`
	// Locations are the observation sites averaged into the national daily value.
	Locations []model.Location `yaml:"locations" validate:"min=1"`
}

// HolidaysConfig holds the school holiday calendar connection settings.
type HolidaysConfig struct {
	// APIEndpoint is the holiday calendar base URL.
	APIEndpoint string `yaml:"api_endpoint" validate:"required,url"`
	// Regions are the regions whose holiday days feed the weekly share.
	Regions []model.HolidayRegion `yaml:"regions" validate:"min=1"`
}

// PipelineConfig holds ingestion-run settings.
type PipelineConfig struct {
	// Locale is the ISO country code of the market being analyzed.
	Locale string `yaml:"locale" validate:"required,len=2"`
	// ChartSize is the expected number of entries per weekly snapshot.
	ChartSize int `yaml:"chart_size" validate:"min=1"`
	// DefaultWeeks is the range length used when no explicit range is given.
	DefaultWeeks int `yaml:"default_weeks" validate:"min=1"`
	// Retry governs all source adapters.
	Retry    RetryConfig    `yaml:"retry"`
	Charts   ChartsConfig   `yaml:"charts"`
	Weather  WeatherConfig  `yaml:"weather"`
	Holidays HolidaysConfig `yaml:"holidays"`
}

// CorrelationConfig holds the statistics engine settings.
type CorrelationConfig struct {
	// MinSampleSize is the minimum number of aligned points a window needs
	// before coefficients are reported.
	MinSampleSize int `yaml:"min_sample_size" validate:"min=2"`
	// SignificanceThreshold is the |coefficient| at or above which a result
	// is flagged significant.
	SignificanceThreshold float64 `yaml:"significance_threshold" validate:"gte=0,lte=1"`
	// RollingWindowWeeks is the size of the sliding window; 0 disables
	// rolling windows.
	RollingWindowWeeks int `yaml:"rolling_window_weeks" validate:"gte=0"`
	// Statistics lists the coefficients to compute ("spearman", "pearson").
	Statistics []string `yaml:"statistics" validate:"min=1,dive,oneof=spearman pearson"`
	// Pairs lists the weather/chart feature pairs to correlate.
	Pairs []model.FeaturePair `yaml:"pairs" validate:"min=1"`
}

// ExportConfig holds artifact export settings.
type ExportConfig struct {
	// StorageRef names the storage connection used for exported artifacts.
	StorageRef string `yaml:"storage_ref"`
	// OutputBaseDir is the key prefix (or directory) for exported files.
	OutputBaseDir string `yaml:"output_base_dir"`
	// Compression is the parquet compression codec ("snappy", "gzip", "none").
	Compression string `yaml:"compression" validate:"omitempty,oneof=snappy gzip none"`
}

// SoundSeasonsConfig holds all configuration under the "soundseasons" top-level key.
type SoundSeasonsConfig struct {
	System      SystemConfig      `yaml:"system"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Export      ExportConfig      `yaml:"export"`
	// DatastoreConfigs holds named database connection configurations.
	DatastoreConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds named artifact storage configurations.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	SoundSeasons SoundSeasonsConfig `yaml:"soundseasons"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	cfg := &Config{
		SoundSeasons: SoundSeasonsConfig{
			System: SystemConfig{
				Timezone: "Europe/Berlin",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Pipeline: PipelineConfig{
				Locale:       "DE",
				ChartSize:    200,
				DefaultWeeks: 13,
				Retry: RetryConfig{
					MaxAttempts:                 3,
					InitialInterval:             1000,
					MaxInterval:                 30000,
					Factor:                      2.0,
					CircuitBreakerThreshold:     5,
					CircuitBreakerResetInterval: 60000,
				},
				Charts: ChartsConfig{
					APIEndpoint: "https://customer.api.soundcharts.com/api/v2.14",
					ChartSlug:   "top-songs-de",
				},
				Weather: WeatherConfig{
					APIEndpoint: "https://archive-api.open-meteo.com/v1/archive",
					Timezone:    "Europe/Berlin",
					Locations:   DefaultLocations(),
				},
				Holidays: HolidaysConfig{
					APIEndpoint: "https://ferien-api.de/api/v1/holidays",
					Regions:     DefaultHolidayRegions(),
				},
			},
			Correlation: CorrelationConfig{
				MinSampleSize:         8,
				SignificanceThreshold: 0.3,
				RollingWindowWeeks:    13,
				Statistics:            []string{"spearman", "pearson"},
				Pairs:                 DefaultPairs(),
			},
			Export: ExportConfig{
				StorageRef:    "artifacts",
				OutputBaseDir: "exports",
				Compression:   "snappy",
			},
		},
	}

	cfg.SoundSeasons.DatastoreConfigs = map[string]interface{}{}
	cfg.SoundSeasons.StorageConfigs = map[string]interface{}{}
	return cfg
}

// DefaultLocations returns the sixteen Bundesland capital coordinates whose
// daily values are averaged into the national observation.
func DefaultLocations() []model.Location {
	return []model.Location{
		{Name: "Baden-Wuerttemberg", Latitude: 48.7758, Longitude: 9.1829},
		{Name: "Bayern", Latitude: 48.1351, Longitude: 11.5820},
		{Name: "Berlin", Latitude: 52.5200, Longitude: 13.4050},
		{Name: "Brandenburg", Latitude: 52.3906, Longitude: 13.0645},
		{Name: "Bremen", Latitude: 53.0793, Longitude: 8.8017},
		{Name: "Hamburg", Latitude: 53.5511, Longitude: 9.9937},
		{Name: "Hessen", Latitude: 50.0782, Longitude: 8.2398},
		{Name: "Mecklenburg-Vorpommern", Latitude: 53.6355, Longitude: 11.4012},
		{Name: "Niedersachsen", Latitude: 52.3759, Longitude: 9.7320},
		{Name: "Nordrhein-Westfalen", Latitude: 51.2277, Longitude: 6.7735},
		{Name: "Rheinland-Pfalz", Latitude: 49.9929, Longitude: 8.2473},
		{Name: "Saarland", Latitude: 49.2402, Longitude: 6.9969},
		{Name: "Sachsen", Latitude: 51.0504, Longitude: 13.7373},
		{Name: "Sachsen-Anhalt", Latitude: 52.1205, Longitude: 11.6276},
		{Name: "Schleswig-Holstein", Latitude: 54.3233, Longitude: 10.1228},
		{Name: "Thueringen", Latitude: 50.9848, Longitude: 11.0299},
	}
}

// DefaultHolidayRegions returns the sixteen Bundesland codes of the holiday
// calendar API.
func DefaultHolidayRegions() []model.HolidayRegion {
	return []model.HolidayRegion{
		{Code: "BW", Name: "Baden-Wuerttemberg"},
		{Code: "BY", Name: "Bayern"},
		{Code: "BE", Name: "Berlin"},
		{Code: "BB", Name: "Brandenburg"},
		{Code: "HB", Name: "Bremen"},
		{Code: "HH", Name: "Hamburg"},
		{Code: "HE", Name: "Hessen"},
		{Code: "MV", Name: "Mecklenburg-Vorpommern"},
		{Code: "NI", Name: "Niedersachsen"},
		{Code: "NW", Name: "Nordrhein-Westfalen"},
		{Code: "RP", Name: "Rheinland-Pfalz"},
		{Code: "SL", Name: "Saarland"},
		{Code: "SN", Name: "Sachsen"},
		{Code: "ST", Name: "Sachsen-Anhalt"},
		{Code: "SH", Name: "Schleswig-Holstein"},
		{Code: "TH", Name: "Thueringen"},
	}
}

// DefaultPairs returns the full cross of weekly environmental signals and
// chart features.
func DefaultPairs() []model.FeaturePair {
	var pairs []model.FeaturePair
	for _, w := range model.WeatherFeatureNames() {
		for _, c := range model.ChartFeatureNames() {
			pairs = append(pairs, model.FeaturePair{WeatherFeature: w, ChartFeature: c})
		}
	}
	return pairs
}
