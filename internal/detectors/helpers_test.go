package detectors

import (
	"fmt"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
)

var day = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

func reading(id string, ts time.Time, wh float64) models.Reading {
	return models.Reading{ID: id, UnitID: "unit-1", Timestamp: ts, EnergyWh: wh, IntervalHours: 2}
}

func withWeather(r models.Reading, cond models.WeatherCondition, cloud float64) models.Reading {
	r.Weather = &models.WeatherSnapshot{Condition: cond, CloudCover: models.Float(cloud)}
	return r
}

func window(readings ...models.Reading) *Window {
	return NewWindow("unit-1", day.Add(-30*24*time.Hour), day.Add(48*time.Hour), readings)
}

// series builds readings every two hours starting at the given hour.
func series(startHour int, values ...float64) []models.Reading {
	out := make([]models.Reading, 0, len(values))
	for i, v := range values {
		out = append(out, reading(fmt.Sprintf("r%d", i), at(startHour+2*i), v))
	}
	return out
}

func ofType(findings []models.Finding, typ models.FindingType) []models.Finding {
	var out []models.Finding
	for _, f := range findings {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}
