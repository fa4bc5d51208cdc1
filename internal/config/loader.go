package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

// Package config provides utilities for loading and managing application configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from an embedded YAML file and environment
// variables. Precedence: defaults < YAML < environment.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.New(moduleName, "failed to expand environment variables in config", err, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.New(moduleName, "failed to unmarshal embedded config", err, false)
	}

	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(&cfg.SoundSeasons).Elem(), "SOUNDSEASONS_"); err != nil {
		return nil, exception.New(moduleName, "failed to load config from environment variables", err, false)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.SoundSeasons.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.SoundSeasons.System.Logging.Level)
	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// Validate checks structural constraints on the loaded configuration and
// cross-field rules the struct tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return exception.New(moduleName, "invalid configuration", err, false)
	}

	for _, p := range cfg.SoundSeasons.Correlation.Pairs {
		if !contains(model.WeatherFeatureNames(), p.WeatherFeature) {
			return exception.Newf(moduleName, "unknown weather feature in pair: '%s'", p.WeatherFeature)
		}
		if !contains(model.ChartFeatureNames(), p.ChartFeature) {
			return exception.Newf(moduleName, "unknown chart feature in pair: '%s'", p.ChartFeature)
		}
	}
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Non-zero values in sourceConfig overwrite the defaults in destConfig.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeSoundSeasonsConfig(&destConfig.SoundSeasons, &sourceConfig.SoundSeasons)
}

func mergeSoundSeasonsConfig(dest, source *SoundSeasonsConfig) {
	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}
	if source.System.MetricsEnabled {
		dest.System.MetricsEnabled = true
	}

	if source.Pipeline.Locale != "" {
		dest.Pipeline.Locale = source.Pipeline.Locale
	}
	if source.Pipeline.ChartSize != 0 {
		dest.Pipeline.ChartSize = source.Pipeline.ChartSize
	}
	if source.Pipeline.DefaultWeeks != 0 {
		dest.Pipeline.DefaultWeeks = source.Pipeline.DefaultWeeks
	}
	mergeRetryConfig(&dest.Pipeline.Retry, &source.Pipeline.Retry)
	mergeChartsConfig(&dest.Pipeline.Charts, &source.Pipeline.Charts)
	mergeWeatherConfig(&dest.Pipeline.Weather, &source.Pipeline.Weather)
	mergeHolidaysConfig(&dest.Pipeline.Holidays, &source.Pipeline.Holidays)

	if source.Correlation.MinSampleSize != 0 {
		dest.Correlation.MinSampleSize = source.Correlation.MinSampleSize
	}
	if source.Correlation.SignificanceThreshold != 0 {
		dest.Correlation.SignificanceThreshold = source.Correlation.SignificanceThreshold
	}
	if source.Correlation.RollingWindowWeeks != 0 {
		dest.Correlation.RollingWindowWeeks = source.Correlation.RollingWindowWeeks
	}
	if source.Correlation.Statistics != nil {
		dest.Correlation.Statistics = source.Correlation.Statistics
	}
	if source.Correlation.Pairs != nil {
		dest.Correlation.Pairs = source.Correlation.Pairs
	}

	if source.Export.StorageRef != "" {
		dest.Export.StorageRef = source.Export.StorageRef
	}
	if source.Export.OutputBaseDir != "" {
		dest.Export.OutputBaseDir = source.Export.OutputBaseDir
	}
	if source.Export.Compression != "" {
		dest.Export.Compression = source.Export.Compression
	}

	if source.DatastoreConfigs != nil {
		if dest.DatastoreConfigs == nil {
			dest.DatastoreConfigs = make(map[string]interface{})
		}
		for key, value := range source.DatastoreConfigs {
			dest.DatastoreConfigs[key] = value
		}
	}
	if source.StorageConfigs != nil {
		if dest.StorageConfigs == nil {
			dest.StorageConfigs = make(map[string]interface{})
		}
		for key, value := range source.StorageConfigs {
			dest.StorageConfigs[key] = value
		}
	}
}

func mergeRetryConfig(dest, source *RetryConfig) {
	if source.MaxAttempts != 0 {
		dest.MaxAttempts = source.MaxAttempts
	}
	if source.InitialInterval != 0 {
		dest.InitialInterval = source.InitialInterval
	}
	if source.MaxInterval != 0 {
		dest.MaxInterval = source.MaxInterval
	}
	if source.Factor != 0 {
		dest.Factor = source.Factor
	}
	if source.CircuitBreakerThreshold != 0 {
		dest.CircuitBreakerThreshold = source.CircuitBreakerThreshold
	}
	if source.CircuitBreakerResetInterval != 0 {
		dest.CircuitBreakerResetInterval = source.CircuitBreakerResetInterval
	}
}

func mergeChartsConfig(dest, source *ChartsConfig) {
	if source.APIEndpoint != "" {
		dest.APIEndpoint = source.APIEndpoint
	}
	if source.AppID != "" {
		dest.AppID = source.AppID
	}
	if source.APIKey != "" {
		dest.APIKey = source.APIKey
	}
	if source.ChartSlug != "" {
		dest.ChartSlug = source.ChartSlug
	}
}

func mergeHolidaysConfig(dest, source *HolidaysConfig) {
	if source.APIEndpoint != "" {
		dest.APIEndpoint = source.APIEndpoint
	}
	if source.Regions != nil {
		dest.Regions = source.Regions
	}
}

func mergeWeatherConfig(dest, source *WeatherConfig) {
	if source.APIEndpoint != "" {
		dest.APIEndpoint = source.APIEndpoint
	}
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Locations != nil {
		dest.Locations = source.Locations
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables named after the yaml tags (e.g. SOUNDSEASONS_PIPELINE_CHARTS_API_KEY).
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.SplitN(yamlTag, ",", 2)[0]
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return exception.Newf(moduleName,
				"failed to set field '%s' from env var '%s': %v", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
