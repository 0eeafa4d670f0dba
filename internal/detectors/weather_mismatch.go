package detectors

import (
	"fmt"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/solar"
)

// WeatherMismatchDetector compares output against the recorded weather.
// Readings without a snapshot or outside daytime are ignored.
type WeatherMismatchDetector struct {
	th Thresholds
}

// NewWeatherMismatchDetector constructs the weather/performance checks.
func NewWeatherMismatchDetector(th Thresholds) *WeatherMismatchDetector {
	return &WeatherMismatchDetector{th: th}
}

func (d *WeatherMismatchDetector) Name() string { return "weather_mismatch" }

// Detect runs the bad-weather and clear-weather checks independently.
func (d *WeatherMismatchDetector) Detect(_ models.Unit, w *Window) []models.Finding {
	var out []models.Finding
	for r := range w.Descending() {
		if r.Weather == nil || !d.th.IsDaytime(r.HourUTC()) {
			continue
		}
		if f, ok := d.highInBadWeather(w, r); ok {
			out = append(out, f)
		}
		if f, ok := d.lowInClearWeather(w, r); ok {
			out = append(out, f)
		}
	}
	return out
}

func (d *WeatherMismatchDetector) highInBadWeather(w *Window, r models.Reading) (models.Finding, bool) {
	ws := r.Weather
	bad := ws.Condition == models.WeatherRain ||
		(ws.Condition == models.WeatherOvercast && ws.CloudCover != nil && *ws.CloudCover > d.th.OvercastCloudCover)
	if !bad || r.EnergyWh <= d.th.BadWeatherMaxWh {
		return models.Finding{}, false
	}
	limit := d.th.BadWeatherMaxWh
	return pointFinding(w, r, models.FindingHighBadWeather, models.SeverityWarning,
		fmt.Sprintf("Generated %.0f Wh at %s despite %s conditions", r.EnergyWh, hhmm(r.Timestamp), ws.Condition),
		models.FindingMetadata{
			ExpectedValue:    limit,
			ActualValue:      r.EnergyWh,
			DeviationPercent: roundPercent((r.EnergyWh - limit) / limit),
			Threshold:        fmt.Sprintf("condition=%s cloudCover=%s: max %.0f Wh (rain, or overcast above %.0f%%)", ws.Condition, cloudText(ws), limit, d.th.OvercastCloudCover),
			Weather:          weatherContext(ws),
		}), true
}

func (d *WeatherMismatchDetector) lowInClearWeather(w *Window, r models.Reading) (models.Finding, bool) {
	ws := r.Weather
	if !d.th.IsPeak(r.HourUTC()) || ws.Condition != models.WeatherClear || ws.CloudCover == nil {
		return models.Finding{}, false
	}
	if *ws.CloudCover >= d.th.ClearCloudCover || r.EnergyWh >= d.th.ClearWeatherMinWh {
		return models.Finding{}, false
	}
	minimum := d.th.ClearWeatherMinWh
	return pointFinding(w, r, models.FindingLowClearWeather, models.SeverityWarning,
		fmt.Sprintf("Generated only %.0f Wh at %s under clear skies", r.EnergyWh, hhmm(r.Timestamp)),
		models.FindingMetadata{
			ExpectedValue:    minimum,
			ActualValue:      r.EnergyWh,
			DeviationPercent: roundPercent((minimum - r.EnergyWh) / minimum),
			Threshold:        fmt.Sprintf("condition=clear cloudCover=%s below %.0f%%: min %.0f Wh during peak hours", cloudText(ws), d.th.ClearCloudCover, minimum),
			Weather:          weatherContext(ws),
		}), true
}

func weatherContext(ws *models.WeatherSnapshot) *models.WeatherContext {
	impact := solar.ScoreSnapshot(ws)
	return &models.WeatherContext{
		Condition:  ws.Condition,
		CloudCover: ws.CloudCoverOr(solar.NeutralConditions.CloudCover),
		Score:      impact.Score,
		Rating:     impact.Rating,
	}
}

func cloudText(ws *models.WeatherSnapshot) string {
	if ws.CloudCover == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *ws.CloudCover)
}
