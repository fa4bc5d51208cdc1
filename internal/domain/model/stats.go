package model

import "fmt"

// WindowAllTime covers every merged week in one window.
const WindowAllTime = "all-time"

// Meteorological seasons, by the month of a week's Monday.
const (
	SeasonWinter = "winter"
	SeasonSpring = "spring"
	SeasonSummer = "summer"
	SeasonAutumn = "autumn"
)

// SeasonNames lists the seasons in calendar order starting at winter.
func SeasonNames() []string {
	return []string{SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn}
}

// TrendAggregate is the mean of one chart feature across every chart entry
// merged for one season. Ephemeral, rebuilt per run alongside correlations.
type TrendAggregate struct {
	Season       string
	ChartFeature string
	Mean         float64
	SampleSize   int
}

// SeasonalContrast compares a chart feature's winter and summer means.
// PercentChange is relative to the winter mean.
type SeasonalContrast struct {
	ChartFeature  string
	Winter        float64
	Summer        float64
	Difference    float64
	PercentChange float64
	WinterSamples int
	SummerSamples int
}

// FeaturePair names one weather measurement and one chart feature to be
// correlated against each other.
type FeaturePair struct {
	WeatherFeature string `yaml:"weather" mapstructure:"weather"`
	ChartFeature   string `yaml:"chart" mapstructure:"chart"`
}

// String renders the pair as "weather~chart".
func (p FeaturePair) String() string {
	return p.WeatherFeature + "~" + p.ChartFeature
}

// RollingWindowLabel names one position of a sliding N-week window. The end
// week is part of the label so that successive positions of the same window
// size produce distinct result keys.
func RollingWindowLabel(weeks int, end WeekKey) string {
	return fmt.Sprintf("rolling-%d-week@%s", weeks, end)
}

// ResultKey uniquely identifies one correlation result.
type ResultKey struct {
	Pair   FeaturePair
	Window string
}

// CorrelationResult carries the computed statistics for one pair over one
// window. When the sample is below the configured minimum, InsufficientData
// is set and the coefficients are not meaningful.
type CorrelationResult struct {
	Pair             FeaturePair
	Window           string
	Spearman         float64
	Pearson          float64
	SampleSize       int
	Significant      bool
	InsufficientData bool
}

// Key returns the unique key of this result.
func (r CorrelationResult) Key() ResultKey {
	return ResultKey{Pair: r.Pair, Window: r.Window}
}
