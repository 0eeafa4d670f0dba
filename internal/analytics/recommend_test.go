package analytics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

func TestLoadRecommenderFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(`rules:
  - id: noisy
    factor: warning_count
    above: 3
    message: "{value} warnings raised; review detector thresholds for this site."
`), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rec, err := LoadRecommender(path, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("load recommender: %v", err)
	}
	recs := rec.Recommend(models.HealthFactors{WarningCount: 5})
	if len(recs) != 1 || recs[0] != "5 warnings raised; review detector thresholds for this site." {
		t.Fatalf("unexpected recommendations: %v", recs)
	}
	if got := rec.Recommend(models.HealthFactors{WarningCount: 3}); got[0] != OptimalMessage {
		t.Fatalf("expected optimal fallback, got %v", got)
	}
}

func TestLoadRecommenderMissingFile(t *testing.T) {
	rec, err := LoadRecommender("non-existent.yaml", utils.DiscardLogger())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	recs := rec.Recommend(models.HealthFactors{PerformanceScore: 60, UptimePercentage: 70, ResolutionScore: 100})
	if len(recs) != 2 {
		t.Fatalf("expected performance and uptime recommendations, got %v", recs)
	}
}

func TestLoadRecommenderRejectsUnknownFactor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - id: x\n    factor: humidity\n    above: 1\n    message: m\n"), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := LoadRecommender(path, nil); err == nil {
		t.Fatalf("expected error for unknown factor")
	}
}

func TestRecommendSkipsDefaultedPerformance(t *testing.T) {
	recs := DefaultRecommender().Recommend(models.HealthFactors{PerformanceScore: 10, PerformanceDefault: true, UptimePercentage: 100})
	if len(recs) != 1 || recs[0] != OptimalMessage {
		t.Fatalf("expected optimal fallback, got %v", recs)
	}
}
