package models

import "time"

// RunResult aggregates one detection pass over all active units.
type RunResult struct {
	StartedAt        time.Time     `json:"startedAt"`
	Duration         time.Duration `json:"duration"`
	UnitsProcessed   int           `json:"unitsProcessed"`
	UnitsFailed      int           `json:"unitsFailed"`
	UnitsSkipped     int           `json:"unitsSkipped"`
	FindingsDetected int           `json:"findingsDetected"`
	FindingsSaved    int           `json:"findingsSaved"`
	Failures         []UnitFailure `json:"failures,omitempty"`
}

// UnitFailure records why a single unit's scan was skipped.
type UnitFailure struct {
	UnitID string `json:"unitId"`
	Error  string `json:"error"`
}
