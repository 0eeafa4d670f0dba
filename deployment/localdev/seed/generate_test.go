package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioscope/solar-anomaly/internal/detectors"
	"github.com/helioscope/solar-anomaly/internal/engine"
	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/store/memory"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

func TestGenerateIsDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 15, 16, 30, 0, 0, time.UTC)
	plan := Plan{Units: 3, Days: 2, CapacityW: 1500, Seed: 7, Now: now}
	_, a, _ := Generate(plan)
	_, b, _ := Generate(plan)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].EnergyWh, b[i].EnergyWh)
	}
	for _, r := range a {
		assert.False(t, r.Timestamp.After(now), "reading in the future: %s", r.Timestamp)
		assert.NoError(t, r.Validate())
	}
}

func TestSeededFaultsAreDetected(t *testing.T) {
	now := time.Date(2024, 6, 15, 16, 30, 0, 0, time.UTC)
	units, readings, faults := Generate(Plan{Units: len(Faults), Days: 10, CapacityW: 1500, Seed: 42, Now: now})

	store := memory.New()
	for _, u := range units {
		store.PutUnit(u)
	}
	store.AddReadings(readings...)

	logger := utils.DiscardLogger()
	loader := detectors.NewLoader(logger, store, 30, detectors.WithClock(func() time.Time { return now }))
	orch := engine.NewOrchestrator(logger, store, loader, detectors.Default(detectors.DefaultThresholds()),
		engine.NewRecorder(logger, store, nil), 2)

	res, err := orch.RunForAllActiveUnits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(Faults), res.UnitsProcessed)

	expected := map[Fault][]models.FindingType{
		FaultNone:      nil,
		FaultNight:     {models.FindingNighttimeGeneration},
		FaultZero:      {models.FindingZeroGenerationClear, models.FindingLowClearWeather},
		FaultFrozen:    {models.FindingFrozenGeneration},
		FaultSpike:     {models.FindingExceedingThreshold},
		FaultRainBoost: {models.FindingHighBadWeather},
	}
	for _, u := range units {
		found, err := store.Find(context.Background(), models.FindingQuery{UnitID: u.ID})
		require.NoError(t, err)
		types := map[models.FindingType]bool{}
		for _, f := range found {
			types[f.Type] = true
		}
		want := expected[faults[u.ID]]
		if want == nil {
			assert.Empty(t, found, "healthy unit %s produced findings", u.ID)
			continue
		}
		for _, typ := range want {
			assert.True(t, types[typ], "unit %s (%s) missing %s, got %v", u.ID, faults[u.ID], typ, types)
		}
	}
}
