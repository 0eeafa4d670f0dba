package detectors

import "fmt"

// Thresholds holds the hand-tuned rule constants. Hours are UTC and the
// ranges are inclusive unless noted.
type Thresholds struct {
	NightStartHour     int     `yaml:"nightStartHour"` // night is hour >= start
	NightEndHour       int     `yaml:"nightEndHour"`   // or hour < end
	NightMaxWh         float64 `yaml:"nightMaxWh"`
	PeakStartHour      int     `yaml:"peakStartHour"`
	PeakEndHour        int     `yaml:"peakEndHour"`
	PeakMinimumWh      float64 `yaml:"peakMinimumWh"`
	DaytimeStartHour   int     `yaml:"daytimeStartHour"`
	DaytimeEndHour     int     `yaml:"daytimeEndHour"`
	BadWeatherMaxWh    float64 `yaml:"badWeatherMaxWh"`
	OvercastCloudCover float64 `yaml:"overcastCloudCover"`
	ClearCloudCover    float64 `yaml:"clearCloudCover"`
	ClearWeatherMinWh  float64 `yaml:"clearWeatherMinWh"`
	FrozenMinStreak    int     `yaml:"frozenMinStreak"`
}

// DefaultThresholds returns the canonical rule constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NightStartHour:     19,
		NightEndHour:       6,
		NightMaxWh:         10,
		PeakStartHour:      10,
		PeakEndHour:        14,
		PeakMinimumWh:      200,
		DaytimeStartHour:   6,
		DaytimeEndHour:     18,
		BadWeatherMaxWh:    500,
		OvercastCloudCover: 80,
		ClearCloudCover:    20,
		ClearWeatherMinWh:  200,
		FrozenMinStreak:    4,
	}
}

// Validate checks hour ranges and positive limits.
func (t Thresholds) Validate() error {
	for name, h := range map[string]int{
		"nightStartHour":   t.NightStartHour,
		"nightEndHour":     t.NightEndHour,
		"peakStartHour":    t.PeakStartHour,
		"peakEndHour":      t.PeakEndHour,
		"daytimeStartHour": t.DaytimeStartHour,
		"daytimeEndHour":   t.DaytimeEndHour,
	} {
		if h < 0 || h > 23 {
			return fmt.Errorf("thresholds: %s %d outside 0-23", name, h)
		}
	}
	if t.PeakStartHour > t.PeakEndHour {
		return fmt.Errorf("thresholds: peak hours %d-%d inverted", t.PeakStartHour, t.PeakEndHour)
	}
	if t.DaytimeStartHour > t.DaytimeEndHour {
		return fmt.Errorf("thresholds: daytime hours %d-%d inverted", t.DaytimeStartHour, t.DaytimeEndHour)
	}
	if t.PeakMinimumWh <= 0 || t.BadWeatherMaxWh <= 0 || t.ClearWeatherMinWh <= 0 {
		return fmt.Errorf("thresholds: energy limits must be positive")
	}
	if t.FrozenMinStreak < 2 {
		return fmt.Errorf("thresholds: frozenMinStreak %d must be at least 2", t.FrozenMinStreak)
	}
	return nil
}

// IsNight reports whether hour falls outside daylight.
func (t Thresholds) IsNight(hour int) bool {
	return hour >= t.NightStartHour || hour < t.NightEndHour
}

// IsPeak reports whether hour falls within guaranteed-daylight peak hours.
func (t Thresholds) IsPeak(hour int) bool {
	return hour >= t.PeakStartHour && hour <= t.PeakEndHour
}

// IsDaytime reports whether hour falls within the weather-comparison window.
func (t Thresholds) IsDaytime(hour int) bool {
	return hour >= t.DaytimeStartHour && hour <= t.DaytimeEndHour
}
