package metrics

import (
	"go.uber.org/fx"

	"github.com/tigerroll/soundseasons/internal/config"
)

// Module provides the run metrics recorder to Fx.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
)

// NewMetricRecorder selects the recorder implementation from configuration:
// Prometheus when system.metrics_enabled is set, noop otherwise.
func NewMetricRecorder(cfg *config.Config) MetricRecorder {
	if cfg.SoundSeasons.System.MetricsEnabled {
		return NewPrometheusRecorder()
	}
	return NewNoOpMetricRecorder()
}
