// Package config provides configuration structures and utilities for the pipeline.
// This module defines Fx providers for configuration-related components.
package config

import "go.uber.org/fx"

// NewPipelineConfigProvider extracts and provides *PipelineConfig from *Config.
func NewPipelineConfigProvider(cfg *Config) *PipelineConfig {
	return &cfg.SoundSeasons.Pipeline
}

// NewCorrelationConfigProvider extracts and provides *CorrelationConfig from *Config.
func NewCorrelationConfigProvider(cfg *Config) *CorrelationConfig {
	return &cfg.SoundSeasons.Correlation
}

// NewExportConfigProvider extracts and provides *ExportConfig from *Config.
func NewExportConfigProvider(cfg *Config) *ExportConfig {
	return &cfg.SoundSeasons.Export
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewPipelineConfigProvider),
	fx.Provide(NewCorrelationConfigProvider),
	fx.Provide(NewExportConfigProvider),
)
