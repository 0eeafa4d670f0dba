package models

import (
	"fmt"
	"math"
	"time"
)

// DefaultIntervalHours applies when a reading does not carry its own interval.
const DefaultIntervalHours = 2.0

// Reading is one energy-production observation for a unit. Readings are
// immutable once stored.
type Reading struct {
	ID            string           `json:"id"`
	UnitID        string           `json:"unitId"`
	Timestamp     time.Time        `json:"timestamp"`
	EnergyWh      float64          `json:"energyWh"`
	IntervalHours float64          `json:"intervalHours"`
	Weather       *WeatherSnapshot `json:"weather,omitempty"`
}

// Interval returns the reading's interval length, falling back to DefaultIntervalHours.
func (r Reading) Interval() float64 {
	if r.IntervalHours <= 0 {
		return DefaultIntervalHours
	}
	return r.IntervalHours
}

// HourUTC returns the UTC hour of the reading timestamp.
func (r Reading) HourUTC() int {
	return r.Timestamp.UTC().Hour()
}

// Validate checks the stored-reading invariants. Non-finite values are
// rejected since they cannot be encoded into finding metadata.
func (r Reading) Validate() error {
	if !finite(r.EnergyWh) {
		return fmt.Errorf("reading %s: energy %v Wh is not finite", r.ID, r.EnergyWh)
	}
	if !finite(r.IntervalHours) {
		return fmt.Errorf("reading %s: interval %vh is not finite", r.ID, r.IntervalHours)
	}
	if r.EnergyWh < 0 {
		return fmt.Errorf("reading %s: energy %.2f Wh is negative", r.ID, r.EnergyWh)
	}
	if r.IntervalHours < 0 || (r.IntervalHours > 0 && (r.IntervalHours < 0.1 || r.IntervalHours > 24)) {
		return fmt.Errorf("reading %s: interval %.2fh outside 0.1-24h", r.ID, r.IntervalHours)
	}
	if w := r.Weather; w != nil {
		fields := []struct {
			name string
			v    *float64
		}{
			{"cloudCover", w.CloudCover}, {"precipitation", w.Precipitation}, {"irradiance", w.Irradiance},
			{"temperature", w.Temperature}, {"windSpeed", w.WindSpeed},
		}
		for _, f := range fields {
			if f.v != nil && !finite(*f.v) {
				return fmt.Errorf("reading %s: weather %s %v is not finite", r.ID, f.name, *f.v)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// WeatherCondition categorises the sky at observation time.
type WeatherCondition string

const (
	WeatherClear        WeatherCondition = "clear"
	WeatherPartlyCloudy WeatherCondition = "partly_cloudy"
	WeatherCloudy       WeatherCondition = "cloudy"
	WeatherOvercast     WeatherCondition = "overcast"
	WeatherRain         WeatherCondition = "rain"
	WeatherSnow         WeatherCondition = "snow"
	WeatherStorm        WeatherCondition = "storm"
	WeatherFog          WeatherCondition = "fog"
)

// WeatherSnapshot holds optional weather observations attached to a reading.
// Nil fields were not observed.
type WeatherSnapshot struct {
	Condition     WeatherCondition `json:"condition,omitempty"`
	CloudCover    *float64         `json:"cloudCover,omitempty"`
	Precipitation *float64         `json:"precipitation,omitempty"`
	Irradiance    *float64         `json:"irradiance,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty"`
	WindSpeed     *float64         `json:"windSpeed,omitempty"`
}

// CloudCoverOr returns the cloud cover or fallback when absent.
func (w *WeatherSnapshot) CloudCoverOr(fallback float64) float64 {
	if w == nil || w.CloudCover == nil {
		return fallback
	}
	return *w.CloudCover
}

// Float returns a pointer to v, for building optional weather fields.
func Float(v float64) *float64 {
	return &v
}

// UnitStatus is the operational state of an installation.
type UnitStatus string

const (
	UnitActive      UnitStatus = "active"
	UnitInactive    UnitStatus = "inactive"
	UnitMaintenance UnitStatus = "maintenance"
)

// Unit is a monitored solar installation.
type Unit struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	CapacityW float64      `json:"capacityW"`
	Status    UnitStatus   `json:"status"`
	Location  *GeoLocation `json:"location,omitempty"`
}

// CapacityKW returns nameplate capacity in kilowatts.
func (u Unit) CapacityKW() float64 {
	return u.CapacityW / 1000
}

// GeoLocation pins a unit on the map.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
