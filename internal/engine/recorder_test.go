package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/store/memory"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

func finding(typ models.FindingType, start time.Time) models.Finding {
	return models.Finding{UnitID: "unit-a", Type: typ, Severity: models.SeverityCritical, PeriodStart: start, DetectedAt: now}
}

func TestRecorderAssignsIDAndSkipsDuplicates(t *testing.T) {
	store := memory.New()
	publisher := &recordingPublisher{err: errors.New("broker down")}
	rec := NewRecorder(utils.DiscardLogger(), store, publisher)

	batch := []models.Finding{
		finding(models.FindingNighttimeGeneration, now.Add(-3*time.Hour)),
		finding(models.FindingNighttimeGeneration, now.Add(-3*time.Hour)),
		finding(models.FindingExceedingThreshold, now.Add(-3*time.Hour)),
	}
	saved, err := rec.Record(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved != 2 {
		t.Fatalf("expected 2 saved, got %d", saved)
	}
	if publisher.count != 2 {
		t.Fatalf("expected publish attempts for each saved finding, got %d", publisher.count)
	}

	stored, err := store.Find(context.Background(), models.FindingQuery{UnitID: "unit-a"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	for _, f := range stored {
		if f.ID == "" || f.Status != models.StatusOpen {
			t.Fatalf("expected id and open status, got %+v", f)
		}
	}
}

func TestRecorderReAlertsAfterResolution(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := NewRecorder(utils.DiscardLogger(), store, nil)
	f := finding(models.FindingZeroGenerationClear, now.Add(-12*time.Hour))

	if saved, _ := rec.Record(ctx, []models.Finding{f}); saved != 1 {
		t.Fatalf("expected first save")
	}
	stored, _ := store.Find(ctx, models.FindingQuery{})
	if err := store.UpdateStatus(ctx, stored[0].ID, models.StatusFalsePositive, nil); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if saved, _ := rec.Record(ctx, []models.Finding{f}); saved != 1 {
		t.Fatalf("expected re-alert once previous finding is closed")
	}
}

func TestRecorderWritesDespiteCancelledContext(t *testing.T) {
	store := memory.New()
	rec := NewRecorder(utils.DiscardLogger(), store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	saved, err := rec.Record(ctx, []models.Finding{finding(models.FindingFrozenGeneration, now)})
	if err != nil || saved != 1 {
		t.Fatalf("expected write to complete, saved=%d err=%v", saved, err)
	}
}

// racingStore reports that a concurrent run already stored the first finding
// it is asked to insert.
type racingStore struct {
	*memory.Store
	inserts int
}

func (r *racingStore) Insert(ctx context.Context, f models.Finding) (models.Finding, error) {
	r.inserts++
	if r.inserts == 1 {
		return models.Finding{}, utils.NewAppError("insert", "active finding already exists", utils.ErrConflict)
	}
	return r.Store.Insert(ctx, f)
}

func TestRecorderSkipsConcurrentDuplicateAndKeepsGoing(t *testing.T) {
	store := &racingStore{Store: memory.New()}
	rec := NewRecorder(utils.DiscardLogger(), store, nil)

	batch := []models.Finding{
		finding(models.FindingNighttimeGeneration, now.Add(-3*time.Hour)),
		finding(models.FindingExceedingThreshold, now.Add(-3*time.Hour)),
		finding(models.FindingFrozenGeneration, now.Add(-6*time.Hour)),
	}
	saved, err := rec.Record(context.Background(), batch)
	if err != nil {
		t.Fatalf("a lost insert race must not fail the unit: %v", err)
	}
	if saved != 2 {
		t.Fatalf("expected the remaining 2 findings saved, got %d", saved)
	}
	stored, _ := store.Find(context.Background(), models.FindingQuery{UnitID: "unit-a"})
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored findings, got %d", len(stored))
	}
}

func TestRecorderStopsOnOtherInsertErrors(t *testing.T) {
	store := memory.New()
	rec := NewRecorder(utils.DiscardLogger(), store, nil)
	rec.newID = func() string { return "fixed" }

	batch := []models.Finding{
		finding(models.FindingNighttimeGeneration, now.Add(-3*time.Hour)),
		finding(models.FindingExceedingThreshold, now.Add(-3*time.Hour)),
	}
	saved, err := rec.Record(context.Background(), batch)
	if err == nil || errors.Is(err, utils.ErrConflict) {
		t.Fatalf("expected a non-conflict insert error, got %v", err)
	}
	if saved != 1 {
		t.Fatalf("expected 1 saved before the failure, got %d", saved)
	}
}
