package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solar_anomaly"

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations (store or dependency issues).
	OutcomeError = "error"
	// OutcomePartial labels detection runs where some units failed.
	OutcomePartial = "partial"
)

var (
	detectionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_runs_total",
			Help:      "Total number of detection runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	detectionRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_run_seconds",
			Help:      "Wall-clock duration of a detection run over all active units.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	unitScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_scans_total",
			Help:      "Per-unit scans, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	findingsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_detected_total",
			Help:      "Candidate findings produced by detectors, by finding type.",
		},
		[]string{"type"},
	)

	findingsSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_saved_total",
			Help:      "Findings persisted after deduplication, by finding type.",
		},
		[]string{"type"},
	)

	analyticsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_requests_total",
			Help:      "Analytics computations, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	findingsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_published_total",
			Help:      "Finding notifications written to the message bus, by outcome.",
		},
		[]string{"outcome"},
	)

	analyticsCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_cache_total",
			Help:      "Analytics cache lookups, partitioned by result (hit, miss).",
		},
		[]string{"result"},
	)
)

// Register attaches solar-anomaly collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		detectionRunsTotal,
		detectionRunSeconds,
		unitScansTotal,
		findingsDetectedTotal,
		findingsSavedTotal,
		analyticsRequestsTotal,
		findingsPublishedTotal,
		analyticsCacheTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDetectionRun records a run duration and outcome label.
func ObserveDetectionRun(duration time.Duration, outcome string) {
	detectionRunsTotal.WithLabelValues(normalise(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	detectionRunSeconds.Observe(duration.Seconds())
}

// ObserveUnitScan counts one unit scan.
func ObserveUnitScan(outcome string) {
	unitScansTotal.WithLabelValues(normalise(outcome)).Inc()
}

// AddFindingsDetected counts candidate findings of a type.
func AddFindingsDetected(findingType string, n int) {
	if n > 0 {
		findingsDetectedTotal.WithLabelValues(findingType).Add(float64(n))
	}
}

// IncFindingSaved counts one persisted finding.
func IncFindingSaved(findingType string) {
	findingsSavedTotal.WithLabelValues(findingType).Inc()
}

// ObserveAnalytics counts one analytics computation.
func ObserveAnalytics(operation, outcome string) {
	analyticsRequestsTotal.WithLabelValues(operation, normalise(outcome)).Inc()
}

// IncFindingPublished counts one finding notification attempt.
func IncFindingPublished(outcome string) {
	findingsPublishedTotal.WithLabelValues(normalise(outcome)).Inc()
}

// IncAnalyticsCache counts a cache hit or miss.
func IncAnalyticsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	analyticsCacheTotal.WithLabelValues(result).Inc()
}

func normalise(outcome string) string {
	switch outcome {
	case OutcomeError, OutcomePartial:
		return outcome
	default:
		return OutcomeSuccess
	}
}
