package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

var t0 = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func TestFindReadingsSinceInOrder(t *testing.T) {
	s := New()
	s.AddReadings(
		models.Reading{ID: "c", UnitID: "u1", Timestamp: t0.Add(4 * time.Hour)},
		models.Reading{ID: "a", UnitID: "u1", Timestamp: t0},
		models.Reading{ID: "b", UnitID: "u1", Timestamp: t0.Add(2 * time.Hour)},
		models.Reading{ID: "x", UnitID: "u2", Timestamp: t0},
	)

	got, err := s.FindReadings(context.Background(), "u1", t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	n, err := s.CountReadings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestUnits(t *testing.T) {
	s := New()
	s.PutUnit(models.Unit{ID: "b", Status: models.UnitActive})
	s.PutUnit(models.Unit{ID: "a", Status: models.UnitActive})
	s.PutUnit(models.Unit{ID: "m", Status: models.UnitMaintenance})

	active, err := s.FindActiveUnits(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)

	_, err = s.FindUnit(context.Background(), "missing")
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestDedupLookupOnlyMatchesActive(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := models.Finding{ID: "f1", UnitID: "u1", Type: models.FindingFrozenGeneration, PeriodStart: t0, Status: models.StatusOpen}
	_, err := s.Insert(ctx, f)
	require.NoError(t, err)

	_, found, err := s.FindOpenOrAcknowledged(ctx, "u1", models.FindingFrozenGeneration, t0.In(time.FixedZone("CEST", 7200)))
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.UpdateStatus(ctx, "f1", models.StatusResolved, &models.Resolution{ResolvedBy: "ops", ResolvedAt: t0}))
	_, found, err = s.FindOpenOrAcknowledged(ctx, "u1", models.FindingFrozenGeneration, t0)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.Insert(ctx, f)
	assert.Error(t, err)
}

func TestInsertRejectsSecondActiveFinding(t *testing.T) {
	s := New()
	ctx := context.Background()
	f := models.Finding{ID: "f1", UnitID: "u1", Type: models.FindingFrozenGeneration, Status: models.StatusOpen, PeriodStart: t0}
	_, err := s.Insert(ctx, f)
	require.NoError(t, err)

	f.ID = "f2"
	_, err = s.Insert(ctx, f)
	assert.ErrorIs(t, err, utils.ErrConflict)

	require.NoError(t, s.UpdateStatus(ctx, "f1", models.StatusResolved, nil))
	_, err = s.Insert(ctx, f)
	assert.NoError(t, err)
}

func TestFindAndCountByGroup(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i, sev := range []models.Severity{models.SeverityCritical, models.SeverityCritical, models.SeverityWarning} {
		_, err := s.Insert(ctx, models.Finding{
			ID:          string(rune('a' + i)),
			UnitID:      "u1",
			Type:        models.FindingNighttimeGeneration,
			Severity:    sev,
			Status:      models.StatusOpen,
			DetectedAt:  t0.Add(time.Duration(i) * time.Hour),
			PeriodStart: t0.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	page, err := s.Find(ctx, models.FindingQuery{UnitID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)

	counts, err := s.CountByGroup(ctx, models.FindingQuery{UnitID: "u1", Limit: 1}, models.GroupBySeverity)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"critical": 2, "warning": 1}, counts)

	_, err = s.Find(ctx, models.FindingQuery{Types: []models.FindingType{"BOGUS"}})
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
}
