package analytics

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// OptimalMessage is returned when no recommendation rule fires.
const OptimalMessage = "System is operating optimally; no action required."

// Recommender turns weak health factors into operator guidance.
type Recommender struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule fires when its factor is strictly above or below the configured bound.
// "{value}" in the message is replaced with the factor value.
type Rule struct {
	ID      string   `yaml:"id"`
	Factor  string   `yaml:"factor"`
	Above   *float64 `yaml:"above"`
	Below   *float64 `yaml:"below"`
	Message string   `yaml:"message"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// Factor names accepted by rules.
const (
	FactorCriticalCount       = "critical_count"
	FactorWarningCount        = "warning_count"
	FactorPerformanceScore    = "performance_score"
	FactorUptimePercentage    = "uptime_percentage"
	FactorMeanResolutionHours = "mean_resolution_hours"
	FactorAnomalyScore        = "anomaly_score"
)

func bound(v float64) *float64 { return &v }

// DefaultRules covers critical findings, performance below 70%, uptime below
// 80% and resolution slower than 48h on average.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:      "critical-findings",
			Factor:  FactorCriticalCount,
			Above:   bound(0),
			Message: "Investigate {value} critical finding(s); they point to sensor, inverter or data pipeline faults.",
		},
		{
			ID:      "low-performance",
			Factor:  FactorPerformanceScore,
			Below:   bound(70),
			Message: "Production is at {value}% of the weather-adjusted expectation; inspect panels for soiling, shading or degradation.",
		},
		{
			ID:      "low-uptime",
			Factor:  FactorUptimePercentage,
			Below:   bound(80),
			Message: "Uptime is {value}%; check inverter connectivity and the telemetry link for recurring outages.",
		},
		{
			ID:      "slow-resolution",
			Factor:  FactorMeanResolutionHours,
			Above:   bound(48),
			Message: "Findings take {value} hours on average to resolve; review the triage process.",
		},
	}
}

// DefaultRecommender returns a Recommender using DefaultRules.
func DefaultRecommender() *Recommender {
	return &Recommender{rules: DefaultRules(), logger: slog.Default()}
}

// LoadRecommender reads rules from a YAML file. An empty path or a missing
// file yields the default rules.
func LoadRecommender(path string, logger *slog.Logger) (*Recommender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return &Recommender{rules: DefaultRules(), logger: logger}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("recommendation rules not found, using defaults", slog.String("path", path))
			return &Recommender{rules: DefaultRules(), logger: logger}, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse recommendation rules: %w", err)
	}
	for _, r := range cfg.Rules {
		if _, ok := factorValue(models.HealthFactors{}, r.Factor); !ok {
			return nil, fmt.Errorf("rule %s: unknown factor %q", r.ID, r.Factor)
		}
		if r.Above == nil && r.Below == nil {
			return nil, fmt.Errorf("rule %s: one of above or below is required", r.ID)
		}
	}
	return &Recommender{rules: cfg.Rules, logger: logger}, nil
}

// Recommend returns the messages of every matching rule, or OptimalMessage.
func (r *Recommender) Recommend(f models.HealthFactors) []string {
	if r == nil {
		return []string{OptimalMessage}
	}
	matched := make([]string, 0)
	for _, rule := range r.rules {
		value, ok := factorValue(f, rule.Factor)
		if !ok {
			continue
		}
		if rule.Above != nil && !(value > *rule.Above) {
			continue
		}
		if rule.Below != nil && !(value < *rule.Below) {
			continue
		}
		if rule.Factor == FactorPerformanceScore && f.PerformanceDefault {
			continue
		}
		r.logger.Debug("recommendation rule matched", slog.String("rule", rule.ID), slog.Float64("value", value))
		matched = appendUnique(matched, strings.ReplaceAll(rule.Message, "{value}", formatValue(value)))
	}
	if len(matched) == 0 {
		return []string{OptimalMessage}
	}
	return matched
}

func factorValue(f models.HealthFactors, factor string) (float64, bool) {
	switch factor {
	case FactorCriticalCount:
		return float64(f.CriticalCount), true
	case FactorWarningCount:
		return float64(f.WarningCount), true
	case FactorPerformanceScore:
		return f.PerformanceScore, true
	case FactorUptimePercentage:
		return f.UptimePercentage, true
	case FactorMeanResolutionHours:
		return f.MeanResolutionHours, true
	case FactorAnomalyScore:
		return f.AnomalyScore, true
	}
	return 0, false
}

func formatValue(v float64) string {
	return strconv.FormatFloat(round(v, 1), 'f', -1, 64)
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
