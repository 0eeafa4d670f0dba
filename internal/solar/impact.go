// Package solar scores how favourable weather observations are for PV production.
package solar

import (
	"math"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// Conditions is a fully populated weather observation.
type Conditions struct {
	CloudCover    float64 `yaml:"cloudCover"`    // percent
	Precipitation float64 `yaml:"precipitation"` // mm
	Irradiance    float64 `yaml:"irradiance"`    // W/m²
	Temperature   float64 `yaml:"temperature"`   // °C
	WindSpeed     float64 `yaml:"windSpeed"`     // km/h
}

// NeutralConditions are substituted for fields that were never observed.
var NeutralConditions = Conditions{
	CloudCover:    50,
	Precipitation: 0,
	Irradiance:    500,
	Temperature:   25,
	WindSpeed:     10,
}

// FromSnapshot fills missing snapshot fields from fallback.
func FromSnapshot(w *models.WeatherSnapshot, fallback Conditions) Conditions {
	c := fallback
	if w == nil {
		return c
	}
	if w.CloudCover != nil {
		c.CloudCover = *w.CloudCover
	}
	if w.Precipitation != nil {
		c.Precipitation = *w.Precipitation
	}
	if w.Irradiance != nil {
		c.Irradiance = *w.Irradiance
	}
	if w.Temperature != nil {
		c.Temperature = *w.Temperature
	}
	if w.WindSpeed != nil {
		c.WindSpeed = *w.WindSpeed
	}
	return c
}

// Impact is a 0-100 favourability score and its qualitative rating.
type Impact struct {
	Score  float64
	Rating string
}

const (
	RatingExcellent = "Excellent"
	RatingGood      = "Good"
	RatingFair      = "Fair"
	RatingPoor      = "Poor"
	RatingVeryPoor  = "Very Poor"
)

const (
	referenceIrradiance = 800.0
	optimalTemperature  = 25.0
	highWind            = 50.0
)

// Score maps c to an Impact. It is pure and safe for concurrent use.
func Score(c Conditions) Impact {
	score := 100.0
	score -= clamp(c.CloudCover, 0, 100) * 0.6
	score -= math.Min(math.Max(c.Precipitation, 0)*4, 25)
	if c.Irradiance < referenceIrradiance {
		score -= (referenceIrradiance - math.Max(c.Irradiance, 0)) / referenceIrradiance * 20
	}
	if c.Temperature > optimalTemperature {
		score -= (c.Temperature - optimalTemperature) * 0.4
	}
	if c.WindSpeed > highWind {
		score -= 5
	}
	score = math.Round(clamp(score, 0, 100)*10) / 10
	return Impact{Score: score, Rating: Rate(score)}
}

// ScoreSnapshot scores a reading's snapshot, using NeutralConditions for gaps.
func ScoreSnapshot(w *models.WeatherSnapshot) Impact {
	return Score(FromSnapshot(w, NeutralConditions))
}

// Rate returns the rating band of a 0-100 score.
func Rate(score float64) string {
	switch {
	case score >= 80:
		return RatingExcellent
	case score >= 60:
		return RatingGood
	case score >= 40:
		return RatingFair
	case score >= 20:
		return RatingPoor
	default:
		return RatingVeryPoor
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
