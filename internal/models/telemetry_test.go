package models

import (
	"math"
	"testing"
)

func TestReadingValidate(t *testing.T) {
	cases := []struct {
		name    string
		reading Reading
		wantErr bool
	}{
		{name: "default interval", reading: Reading{ID: "r", EnergyWh: 120}},
		{name: "with weather", reading: Reading{ID: "r", EnergyWh: 120, IntervalHours: 1, Weather: &WeatherSnapshot{CloudCover: Float(40)}}},
		{name: "negative energy", reading: Reading{ID: "r", EnergyWh: -1}, wantErr: true},
		{name: "nan energy", reading: Reading{ID: "r", EnergyWh: math.NaN()}, wantErr: true},
		{name: "infinite energy", reading: Reading{ID: "r", EnergyWh: math.Inf(1)}, wantErr: true},
		{name: "nan interval", reading: Reading{ID: "r", EnergyWh: 1, IntervalHours: math.NaN()}, wantErr: true},
		{name: "interval too long", reading: Reading{ID: "r", EnergyWh: 1, IntervalHours: 25}, wantErr: true},
		{name: "nan cloud cover", reading: Reading{ID: "r", EnergyWh: 1, Weather: &WeatherSnapshot{CloudCover: Float(math.NaN())}}, wantErr: true},
		{name: "infinite irradiance", reading: Reading{ID: "r", EnergyWh: 1, Weather: &WeatherSnapshot{Irradiance: Float(math.Inf(-1))}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.reading.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
