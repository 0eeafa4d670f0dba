package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// Fault names a defect injected into one seeded unit.
type Fault string

const (
	FaultNone      Fault = "none"
	FaultNight     Fault = "night"
	FaultZero      Fault = "zero"
	FaultFrozen    Fault = "frozen"
	FaultSpike     Fault = "spike"
	FaultRainBoost Fault = "rain"
)

// Faults lists the injectable defects in seeding order.
var Faults = []Fault{FaultNone, FaultNight, FaultZero, FaultFrozen, FaultSpike, FaultRainBoost}

type dayWeather struct {
	condition models.WeatherCondition
	cloud     float64
	factor    float64
	precip    float64
}

var weatherTable = []struct {
	weight int
	dayWeather
}{
	{45, dayWeather{models.WeatherClear, 8, 0.95, 0}},
	{30, dayWeather{models.WeatherPartlyCloudy, 45, 0.7, 0}},
	{15, dayWeather{models.WeatherOvercast, 90, 0.25, 0}},
	{10, dayWeather{models.WeatherRain, 92, 0.15, 3}},
}

func pickWeather(rng *rand.Rand) dayWeather {
	n := rng.IntN(100)
	for _, w := range weatherTable {
		if n < w.weight {
			return w.dayWeather
		}
		n -= w.weight
	}
	return weatherTable[0].dayWeather
}

// skyFactor is the clear-sky fraction of nameplate output for an hour.
func skyFactor(hour int) float64 {
	if hour < 6 || hour > 18 {
		return 0
	}
	return math.Max(math.Sin(math.Pi*float64(hour-6)/12), 0.03)
}

// Plan describes the seeded fleet.
type Plan struct {
	Units     int
	Days      int
	CapacityW float64
	Seed      uint64
	Now       time.Time
}

// Generate builds units and hourly readings. Unit i carries Faults[i % len(Faults)].
func Generate(p Plan) ([]models.Unit, []models.Reading, map[string]Fault) {
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	end := p.Now.UTC().Truncate(time.Hour)
	start := end.AddDate(0, 0, -p.Days).Truncate(24 * time.Hour)

	var (
		units    []models.Unit
		readings []models.Reading
		faults   = make(map[string]Fault, p.Units)
	)
	for i := 0; i < p.Units; i++ {
		fault := Faults[i%len(Faults)]
		unit := models.Unit{
			ID:        fmt.Sprintf("unit-%02d", i+1),
			Name:      fmt.Sprintf("Rooftop array %d (%s)", i+1, fault),
			CapacityW: p.CapacityW,
			Status:    models.UnitActive,
			Location:  &models.GeoLocation{Latitude: 52.37 + float64(i)*0.01, Longitude: 4.89},
		}
		units = append(units, unit)
		faults[unit.ID] = fault

		var weather dayWeather
		for ts := start; !ts.After(end); ts = ts.Add(time.Hour) {
			if ts.Hour() == 0 || weather.condition == "" {
				weather = pickWeather(rng)
			}
			cloud := math.Min(100, math.Max(0, weather.cloud+rng.Float64()*6-3))
			energy := p.CapacityW * skyFactor(ts.Hour()) * weather.factor * (0.97 + rng.Float64()*0.06)
			r := models.Reading{
				ID:            fmt.Sprintf("%s-%s", unit.ID, ts.Format("2006010215")),
				UnitID:        unit.ID,
				Timestamp:     ts,
				EnergyWh:      math.Round(energy*10) / 10,
				IntervalHours: 1,
				Weather: &models.WeatherSnapshot{
					Condition:     weather.condition,
					CloudCover:    models.Float(math.Round(cloud)),
					Precipitation: models.Float(weather.precip),
					Irradiance:    models.Float(math.Round(1000 * skyFactor(ts.Hour()) * weather.factor)),
					Temperature:   models.Float(math.Round(12 + 10*skyFactor(ts.Hour()))),
					WindSpeed:     models.Float(math.Round(5 + rng.Float64()*15)),
				},
			}
			readings = append(readings, inject(fault, r, end, p.CapacityW))
		}
	}
	return units, readings, faults
}

// inject alters readings of the last two days according to fault.
func inject(fault Fault, r models.Reading, end time.Time, capacityW float64) models.Reading {
	if end.Sub(r.Timestamp) > 48*time.Hour {
		return r
	}
	h := r.Timestamp.Hour()
	switch fault {
	case FaultNight:
		if h == 22 {
			r.EnergyWh = 45
		}
	case FaultZero:
		if h == 12 {
			r.EnergyWh = 0
			r.Weather.Condition = models.WeatherClear
			r.Weather.CloudCover = models.Float(5)
		}
	case FaultFrozen:
		if h >= 9 && h <= 14 {
			r.EnergyWh = 640
		}
	case FaultSpike:
		if h == 12 {
			r.EnergyWh = capacityW * 2.5
		}
	case FaultRainBoost:
		if h == 11 {
			r.EnergyWh = 900
			r.Weather.Condition = models.WeatherRain
			r.Weather.CloudCover = models.Float(95)
			r.Weather.Precipitation = models.Float(4)
		}
	}
	return r
}
