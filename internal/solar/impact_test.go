package solar

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helioscope/solar-anomaly/internal/models"
)

func TestScoreIdealConditions(t *testing.T) {
	impact := Score(Conditions{CloudCover: 0, Irradiance: 1000, Temperature: 20, WindSpeed: 5})
	assert.Equal(t, 100.0, impact.Score)
	assert.Equal(t, RatingExcellent, impact.Rating)
}

func TestScorePenalties(t *testing.T) {
	cases := []struct {
		name string
		in   Conditions
		want float64
	}{
		{name: "half cloud", in: Conditions{CloudCover: 50, Irradiance: 800, Temperature: 25}, want: 70},
		{name: "heavy rain capped", in: Conditions{Precipitation: 20, Irradiance: 800, Temperature: 25}, want: 75},
		{name: "dim", in: Conditions{Irradiance: 400, Temperature: 25}, want: 90},
		{name: "hot", in: Conditions{Irradiance: 800, Temperature: 35}, want: 96},
		{name: "windy", in: Conditions{Irradiance: 800, Temperature: 25, WindSpeed: 60}, want: 95},
		{name: "neutral", in: NeutralConditions, want: 62.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.in).Score, 0.001)
		})
	}
}

func TestScoreClampedToRange(t *testing.T) {
	worst := Score(Conditions{CloudCover: 100, Precipitation: 50, Irradiance: 0, Temperature: 60, WindSpeed: 120})
	assert.Equal(t, 0.0, worst.Score)
	assert.Equal(t, RatingVeryPoor, worst.Rating)

	weird := Score(Conditions{CloudCover: -40, Irradiance: 2000, Temperature: -10})
	assert.Equal(t, 100.0, weird.Score)
}

func TestRateBands(t *testing.T) {
	assert.Equal(t, RatingExcellent, Rate(80))
	assert.Equal(t, RatingGood, Rate(79.9))
	assert.Equal(t, RatingFair, Rate(40))
	assert.Equal(t, RatingPoor, Rate(20))
	assert.Equal(t, RatingVeryPoor, Rate(19.9))
}

func TestFromSnapshotFillsGaps(t *testing.T) {
	snap := &models.WeatherSnapshot{Condition: models.WeatherClear, CloudCover: models.Float(10)}
	got := FromSnapshot(snap, NeutralConditions)
	assert.Equal(t, 10.0, got.CloudCover)
	assert.Equal(t, NeutralConditions.Irradiance, got.Irradiance)
	assert.Equal(t, NeutralConditions, FromSnapshot(nil, NeutralConditions))
}
