package stats

import (
	"math"
	"sort"

	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

const moduleName = "stats_engine"

// weekPoint is one aligned sample: a week's weather value and the mean of a
// chart feature across that week's entries.
type weekPoint struct {
	week    model.WeekKey
	weather float64
	chart   float64
}

// Engine computes correlation results for the configured feature pairs over
// the all-time window and, when enabled, sliding rolling windows.
type Engine struct {
	cfg *config.CorrelationConfig
}

// NewEngine creates an Engine from correlation configuration.
func NewEngine(cfg *config.CorrelationConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Compute derives correlation results from warehouse rows. The sample unit is
// a week: chart features are averaged across a week's entries before being
// paired with the week's weather value. Weeks whose weather columns are NULL
// drop out of every sample. Each (pair, window) key appears at most once.
func (e *Engine) Compute(rows []model.WarehouseRow) ([]model.CorrelationResult, error) {
	var results []model.CorrelationResult
	seen := make(map[model.ResultKey]struct{})

	for _, pair := range e.cfg.Pairs {
		points, err := e.alignedPoints(rows, pair)
		if err != nil {
			return nil, err
		}

		windows := [][]weekPoint{points}
		labels := []string{model.WindowAllTime}

		// Windows slide over the weekly sample, not the calendar: a rolling
		// window spans more calendar weeks than its size when NULL-weather
		// weeks drop out of the sample.
		if n := e.cfg.RollingWindowWeeks; n > 0 && len(points) >= n {
			for end := n; end <= len(points); end++ {
				window := points[end-n : end]
				windows = append(windows, window)
				labels = append(labels, model.RollingWindowLabel(n, window[len(window)-1].week))
			}
		}

		for i, window := range windows {
			result := e.correlate(pair, labels[i], window)
			key := result.Key()
			if _, dup := seen[key]; dup {
				return nil, exception.Newf(moduleName, "duplicate result key: %s/%s", key.Pair, key.Window)
			}
			seen[key] = struct{}{}
			results = append(results, result)
		}
	}
	return results, nil
}

// ComputeTrends aggregates each chart feature's mean per meteorological
// season, weighting every chart entry equally. Results come back in season
// order (winter first), then feature name. A season without rows is absent.
func (e *Engine) ComputeTrends(rows []model.WarehouseRow) ([]model.TrendAggregate, error) {
	type accum struct {
		sum   float64
		count int
	}
	type trendKey struct {
		season  string
		feature string
	}
	bySeason := make(map[trendKey]*accum)

	for _, row := range rows {
		week, err := row.WeekKey()
		if err != nil {
			return nil, exception.New(moduleName, "invalid week key in row", err, false)
		}
		season := week.Season()
		for _, feature := range model.ChartFeatureNames() {
			value, _ := row.ChartFeature(feature)
			key := trendKey{season: season, feature: feature}
			a := bySeason[key]
			if a == nil {
				a = &accum{}
				bySeason[key] = a
			}
			a.sum += value
			a.count++
		}
	}

	var trends []model.TrendAggregate
	for _, season := range model.SeasonNames() {
		for _, feature := range sortedFeatureNames() {
			a, ok := bySeason[trendKey{season: season, feature: feature}]
			if !ok {
				continue
			}
			trends = append(trends, model.TrendAggregate{
				Season:       season,
				ChartFeature: feature,
				Mean:         a.sum / float64(a.count),
				SampleSize:   a.count,
			})
		}
	}
	return trends, nil
}

// WinterSummerContrast derives per-feature winter/summer differences from the
// seasonal aggregates. Features missing either season are skipped.
func WinterSummerContrast(trends []model.TrendAggregate) []model.SeasonalContrast {
	type seasonPair struct {
		winter, summer *model.TrendAggregate
	}
	byFeature := make(map[string]*seasonPair)
	for i := range trends {
		t := &trends[i]
		p := byFeature[t.ChartFeature]
		if p == nil {
			p = &seasonPair{}
			byFeature[t.ChartFeature] = p
		}
		switch t.Season {
		case model.SeasonWinter:
			p.winter = t
		case model.SeasonSummer:
			p.summer = t
		}
	}

	var contrasts []model.SeasonalContrast
	for _, feature := range sortedFeatureNames() {
		p, ok := byFeature[feature]
		if !ok || p.winter == nil || p.summer == nil {
			continue
		}
		contrast := model.SeasonalContrast{
			ChartFeature:  feature,
			Winter:        p.winter.Mean,
			Summer:        p.summer.Mean,
			Difference:    p.summer.Mean - p.winter.Mean,
			WinterSamples: p.winter.SampleSize,
			SummerSamples: p.summer.SampleSize,
		}
		if p.winter.Mean != 0 {
			contrast.PercentChange = contrast.Difference / math.Abs(p.winter.Mean) * 100
		}
		contrasts = append(contrasts, contrast)
	}
	return contrasts
}

func sortedFeatureNames() []string {
	names := model.ChartFeatureNames()
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted
}

// alignedPoints builds the weekly sample for one pair, in week order.
func (e *Engine) alignedPoints(rows []model.WarehouseRow, pair model.FeaturePair) ([]weekPoint, error) {
	type accum struct {
		weather  float64
		chartSum float64
		count    int
	}
	byWeek := make(map[model.WeekKey]*accum)

	for _, row := range rows {
		weather, ok := row.WeatherFeature(pair.WeatherFeature)
		if !ok {
			continue
		}
		chart, ok := row.ChartFeature(pair.ChartFeature)
		if !ok {
			return nil, exception.Newf(moduleName, "unknown chart feature: '%s'", pair.ChartFeature)
		}

		week, err := row.WeekKey()
		if err != nil {
			return nil, exception.New(moduleName, "invalid week key in row", err, false)
		}
		a := byWeek[week]
		if a == nil {
			a = &accum{weather: weather}
			byWeek[week] = a
		}
		a.chartSum += chart
		a.count++
	}

	points := make([]weekPoint, 0, len(byWeek))
	for week, a := range byWeek {
		points = append(points, weekPoint{
			week:    week,
			weather: a.weather,
			chart:   a.chartSum / float64(a.count),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].week.Before(points[j].week) })
	return points, nil
}

// correlate computes the configured coefficients for one window. Samples
// below the minimum size are reported with InsufficientData set instead of
// misleading coefficients.
func (e *Engine) correlate(pair model.FeaturePair, window string, points []weekPoint) model.CorrelationResult {
	result := model.CorrelationResult{
		Pair:       pair,
		Window:     window,
		SampleSize: len(points),
	}

	if len(points) < e.cfg.MinSampleSize {
		result.InsufficientData = true
		logger.Debugf("%v for %s over %s: %d < %d weeks.",
			exception.ErrInsufficientSample, pair, window, len(points), e.cfg.MinSampleSize)
		return result
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.weather
		ys[i] = p.chart
	}

	for _, statistic := range e.cfg.Statistics {
		switch statistic {
		case "spearman":
			result.Spearman = Spearman(xs, ys)
		case "pearson":
			result.Pearson = Pearson(xs, ys)
		}
	}

	strongest := math.Max(math.Abs(result.Spearman), math.Abs(result.Pearson))
	result.Significant = strongest >= e.cfg.SignificanceThreshold
	return result
}
