// Package align maps daily weather observations onto the ISO-week axis shared
// with chart snapshots.
package align

import (
	"sort"

	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

// Summarize groups daily observations by ISO week and aggregates each
// measurement into mean/min/max. DaysObserved counts distinct dates; weeks
// without any observation produce no summary.
func Summarize(observations []model.WeatherObservation) []model.WeeklyWeatherSummary {
	type weekAccum struct {
		temperature, precipitation, windSpeed, sunshine []float64
		dates                                           map[string]struct{}
	}

	byWeek := make(map[model.WeekKey]*weekAccum)
	for _, obs := range observations {
		week := model.WeekOf(obs.Date)
		a := byWeek[week]
		if a == nil {
			a = &weekAccum{dates: make(map[string]struct{})}
			byWeek[week] = a
		}
		a.temperature = append(a.temperature, obs.TemperatureMean)
		a.precipitation = append(a.precipitation, obs.PrecipitationMM)
		a.windSpeed = append(a.windSpeed, obs.WindSpeedKMH)
		a.sunshine = append(a.sunshine, obs.SunshineHours)
		a.dates[obs.Date.Format("2006-01-02")] = struct{}{}
	}

	summaries := make([]model.WeeklyWeatherSummary, 0, len(byWeek))
	for week, a := range byWeek {
		summaries = append(summaries, model.WeeklyWeatherSummary{
			Week:            week,
			DaysObserved:    len(a.dates),
			TemperatureMean: summarize(a.temperature),
			PrecipitationMM: summarize(a.precipitation),
			WindSpeedKMH:    summarize(a.windSpeed),
			SunshineHours:   summarize(a.sunshine),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Week.Before(summaries[j].Week)
	})
	return summaries
}

// SummaryIndex keys summaries by week for join lookups.
func SummaryIndex(summaries []model.WeeklyWeatherSummary) map[model.WeekKey]*model.WeeklyWeatherSummary {
	index := make(map[model.WeekKey]*model.WeeklyWeatherSummary, len(summaries))
	for i := range summaries {
		index[summaries[i].Week] = &summaries[i]
	}
	return index
}

// HolidayShares computes, per ISO week, the fraction of the week's
// (region, day) slots covered by a school holiday. regions is the number of
// configured regions; duplicate records for the same region and day count
// once. Weeks without any holiday do not appear in the map.
func HolidayShares(holidays []model.Holiday, regions int) map[model.WeekKey]float64 {
	shares := make(map[model.WeekKey]float64)
	if regions == 0 {
		return shares
	}

	type slot struct {
		region string
		day    string
	}
	byWeek := make(map[model.WeekKey]map[slot]struct{})
	for _, h := range holidays {
		week := model.WeekOf(h.Date)
		slots := byWeek[week]
		if slots == nil {
			slots = make(map[slot]struct{})
			byWeek[week] = slots
		}
		slots[slot{region: h.Region, day: h.Date.Format("2006-01-02")}] = struct{}{}
	}

	for week, slots := range byWeek {
		shares[week] = float64(len(slots)) / float64(7*regions)
	}
	return shares
}

// Gaps returns the chart weeks for which no weather summary exists, in
// ascending order. A gap is surfaced, never silently imputed.
func Gaps(chartWeeks []model.WeekKey, summaries []model.WeeklyWeatherSummary) []model.WeekKey {
	index := SummaryIndex(summaries)
	var gaps []model.WeekKey
	for _, week := range chartWeeks {
		if _, ok := index[week]; !ok {
			gaps = append(gaps, week)
		}
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Before(gaps[j]) })
	for _, week := range gaps {
		logger.Warnf("No weather summary for chart week %s.", week)
	}
	return gaps
}

// summarize computes mean/min/max over the values of one measurement.
func summarize(values []float64) model.MeasurementSummary {
	if len(values) == 0 {
		return model.MeasurementSummary{}
	}
	s := model.MeasurementSummary{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = sum / float64(len(values))
	return s
}
