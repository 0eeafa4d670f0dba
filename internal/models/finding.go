package models

import "time"

// FindingType is the closed set of anomaly kinds the detectors emit.
type FindingType string

const (
	FindingNighttimeGeneration FindingType = "NIGHTTIME_GENERATION"
	FindingZeroGenerationClear FindingType = "ZERO_GENERATION_CLEAR_SKY"
	FindingExceedingThreshold  FindingType = "ENERGY_EXCEEDING_THRESHOLD"
	FindingHighBadWeather      FindingType = "HIGH_GENERATION_BAD_WEATHER"
	FindingLowClearWeather     FindingType = "LOW_GENERATION_CLEAR_WEATHER"
	FindingFrozenGeneration    FindingType = "FROZEN_GENERATION"
)

// AllFindingTypes lists every FindingType in a stable order.
func AllFindingTypes() []FindingType {
	return []FindingType{
		FindingNighttimeGeneration,
		FindingZeroGenerationClear,
		FindingExceedingThreshold,
		FindingHighBadWeather,
		FindingLowClearWeather,
		FindingFrozenGeneration,
	}
}

// Valid reports whether t is one of the known finding types.
func (t FindingType) Valid() bool {
	switch t {
	case FindingNighttimeGeneration, FindingZeroGenerationClear, FindingExceedingThreshold,
		FindingHighBadWeather, FindingLowClearWeather, FindingFrozenGeneration:
		return true
	}
	return false
}

// Label returns a short human-readable name.
func (t FindingType) Label() string {
	switch t {
	case FindingNighttimeGeneration:
		return "Nighttime generation"
	case FindingZeroGenerationClear:
		return "Zero generation during peak hours"
	case FindingExceedingThreshold:
		return "Energy exceeding capacity"
	case FindingHighBadWeather:
		return "High generation in bad weather"
	case FindingLowClearWeather:
		return "Low generation in clear weather"
	case FindingFrozenGeneration:
		return "Frozen generation"
	default:
		return string(t)
	}
}

// Severity captures impact levels.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AllSeverities lists severities from most to least severe.
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityWarning, SeverityInfo}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

// FindingStatus tracks review progress of a finding.
type FindingStatus string

const (
	StatusOpen          FindingStatus = "open"
	StatusAcknowledged  FindingStatus = "acknowledged"
	StatusResolved      FindingStatus = "resolved"
	StatusFalsePositive FindingStatus = "false_positive"
)

// AllStatuses lists lifecycle states in workflow order.
func AllStatuses() []FindingStatus {
	return []FindingStatus{StatusOpen, StatusAcknowledged, StatusResolved, StatusFalsePositive}
}

// Valid reports whether s is a known status.
func (s FindingStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusAcknowledged, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// Active reports whether the finding still participates in deduplication.
func (s FindingStatus) Active() bool {
	return s == StatusOpen || s == StatusAcknowledged
}

// Finding is a detected problem on a unit.
type Finding struct {
	ID          string          `json:"id"`
	UnitID      string          `json:"unitId"`
	Type        FindingType     `json:"type"`
	Severity    Severity        `json:"severity"`
	DetectedAt  time.Time       `json:"detectedAt"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   *time.Time      `json:"periodEnd,omitempty"`
	ReadingIDs  []string        `json:"readingIds"`
	Description string          `json:"description"`
	Metadata    FindingMetadata `json:"metadata"`
	Status      FindingStatus   `json:"status"`
	Resolution  *Resolution     `json:"resolution,omitempty"`
}

// DedupKey identifies findings that should not be re-alerted while active.
type DedupKey struct {
	UnitID      string
	Type        FindingType
	PeriodStart time.Time
}

// Key returns the deduplication key of f.
func (f Finding) Key() DedupKey {
	return DedupKey{UnitID: f.UnitID, Type: f.Type, PeriodStart: f.PeriodStart.UTC().Round(0)}
}

// FindingMetadata carries the measurement context of a finding.
type FindingMetadata struct {
	ExpectedValue    float64         `json:"expectedValue"`
	ActualValue      float64         `json:"actualValue"`
	DeviationPercent float64         `json:"deviationPercent"`
	Threshold        string          `json:"threshold"`
	Weather          *WeatherContext `json:"weather,omitempty"`
	Frozen           *FrozenDetail   `json:"frozen,omitempty"`
}

// WeatherContext is attached to weather-mismatch findings.
type WeatherContext struct {
	Condition  WeatherCondition `json:"condition"`
	CloudCover float64          `json:"cloudCover"`
	Score      float64          `json:"score"`
	Rating     string           `json:"rating"`
}

// FrozenDetail is attached to frozen-generation findings.
type FrozenDetail struct {
	StreakLength   int  `json:"streakLength"`
	WeatherChanged bool `json:"weatherChanged"`
}

// Resolution records who closed a finding and how.
type Resolution struct {
	ResolvedBy string    `json:"resolvedBy"`
	ResolvedAt time.Time `json:"resolvedAt"`
	Notes      string    `json:"notes,omitempty"`
}
