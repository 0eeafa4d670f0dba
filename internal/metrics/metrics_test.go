package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveDetectionRunNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(detectionRunsTotal.WithLabelValues(OutcomeSuccess))
	ObserveDetectionRun(-time.Second, "weird")
	after := testutil.ToFloat64(detectionRunsTotal.WithLabelValues(OutcomeSuccess))
	if after != before+1 {
		t.Fatalf("expected success counter to increase by one, got %v -> %v", before, after)
	}
}

func TestAddFindingsDetectedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(findingsDetectedTotal.WithLabelValues("FROZEN_GENERATION"))
	AddFindingsDetected("FROZEN_GENERATION", 0)
	AddFindingsDetected("FROZEN_GENERATION", 3)
	after := testutil.ToFloat64(findingsDetectedTotal.WithLabelValues("FROZEN_GENERATION"))
	if after != before+3 {
		t.Fatalf("expected +3, got %v -> %v", before, after)
	}
}

func TestIncAnalyticsCacheSplitsHitsAndMisses(t *testing.T) {
	hits := testutil.ToFloat64(analyticsCacheTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(analyticsCacheTotal.WithLabelValues("miss"))
	IncAnalyticsCache(true)
	IncAnalyticsCache(false)
	IncAnalyticsCache(false)
	if got := testutil.ToFloat64(analyticsCacheTotal.WithLabelValues("hit")); got != hits+1 {
		t.Fatalf("expected one hit, got %v -> %v", hits, got)
	}
	if got := testutil.ToFloat64(analyticsCacheTotal.WithLabelValues("miss")); got != misses+2 {
		t.Fatalf("expected two misses, got %v -> %v", misses, got)
	}
}
