package analytics

import (
	"context"
	"slices"
	"strings"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/solar"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// dayBucket accumulates one UTC day of readings.
type dayBucket struct {
	date     string
	readings int
	energyWh float64
	weather  [5]fieldMean
}

type fieldMean struct {
	sum   float64
	count int
}

func (m *fieldMean) add(v *float64) {
	if v != nil {
		m.sum += *v
		m.count++
	}
}

func (m fieldMean) or(fallback float64) float64 {
	if m.count == 0 {
		return fallback
	}
	return m.sum / float64(m.count)
}

func (b *dayBucket) add(r models.Reading) {
	b.readings++
	b.energyWh += r.EnergyWh
	if w := r.Weather; w != nil {
		b.weather[0].add(w.CloudCover)
		b.weather[1].add(w.Precipitation)
		b.weather[2].add(w.Irradiance)
		b.weather[3].add(w.Temperature)
		b.weather[4].add(w.WindSpeed)
	}
}

func (b *dayBucket) conditions(defaults solar.Conditions) solar.Conditions {
	return solar.Conditions{
		CloudCover:    b.weather[0].or(defaults.CloudCover),
		Precipitation: b.weather[1].or(defaults.Precipitation),
		Irradiance:    b.weather[2].or(defaults.Irradiance),
		Temperature:   b.weather[3].or(defaults.Temperature),
		WindSpeed:     b.weather[4].or(defaults.WindSpeed),
	}
}

// WeatherAdjustedPerformance compares each day's production with what the
// unit should have produced given that day's weather.
func (e *Engine) WeatherAdjustedPerformance(ctx context.Context, unitID string, days int) (models.PerformanceReport, error) {
	unit, err := e.resolve(ctx, unitID, days)
	if err != nil {
		return models.PerformanceReport{}, err
	}
	return e.performance(ctx, unit, days)
}

func (e *Engine) performance(ctx context.Context, unit models.Unit, days int) (models.PerformanceReport, error) {
	now := e.now()
	since := utils.DaysAgo(now, days)
	readings, err := e.readings.FindReadings(ctx, unit.ID, since)
	if err != nil {
		return models.PerformanceReport{}, utils.NewAppError("analytics", "load readings", err)
	}

	buckets := make(map[string]*dayBucket)
	for _, r := range readings {
		if r.Timestamp.Before(since) || r.Timestamp.After(now) {
			continue
		}
		key := utils.DayKey(r.Timestamp)
		b, ok := buckets[key]
		if !ok {
			b = &dayBucket{date: key}
			buckets[key] = b
		}
		b.add(r)
	}

	report := models.PerformanceReport{UnitID: unit.ID, Days: days, CapacityW: unit.CapacityW}
	if len(buckets) == 0 {
		return report, nil
	}

	ordered := make([]*dayBucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	slices.SortFunc(ordered, func(a, b *dayBucket) int { return strings.Compare(a.date, b.date) })

	ratioSum := 0.0
	for _, b := range ordered {
		impact := solar.Score(b.conditions(e.settings.WeatherDefaults))
		actual := b.energyWh / 1000
		expected := unit.CapacityKW() * e.settings.PeakSunHours * impact.Score / 100
		ratio := 0
		if expected > 0 {
			ratio = int(round(actual/expected*100, 0))
		}
		day := models.DailyPerformance{
			Date:             b.date,
			Readings:         b.readings,
			ActualKWh:        round(actual, 3),
			ExpectedKWh:      round(expected, 3),
			WeatherScore:     impact.Score,
			WeatherRating:    impact.Rating,
			PerformanceRatio: ratio,
		}
		report.Daily = append(report.Daily, day)
		report.TotalActualKWh += actual
		report.TotalExpectedKWh += expected
		ratioSum += float64(ratio)
	}

	best, worst := report.Daily[0], report.Daily[0]
	for _, d := range report.Daily[1:] {
		if d.PerformanceRatio > best.PerformanceRatio {
			best = d
		}
		if d.PerformanceRatio < worst.PerformanceRatio {
			worst = d
		}
	}
	report.BestDay, report.WorstDay = &best, &worst
	report.AverageRatio = round(ratioSum/float64(len(report.Daily)), 2)
	report.TotalActualKWh = round(report.TotalActualKWh, 3)
	report.TotalExpectedKWh = round(report.TotalExpectedKWh, 3)
	return report, nil
}
