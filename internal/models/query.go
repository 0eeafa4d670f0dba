package models

import (
	"fmt"
	"time"
)

// MaxQueryLimit caps a single finding page.
const MaxQueryLimit = 10000

// FindingQuery is the explicit filter accepted by finding stores. Empty
// slices and zero times leave that dimension unfiltered.
type FindingQuery struct {
	UnitID     string
	Types      []FindingType
	Severities []Severity
	Statuses   []FindingStatus
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Validate rejects unknown enum values, inverted ranges and bad paging.
func (q FindingQuery) Validate() error {
	for _, t := range q.Types {
		if !t.Valid() {
			return fmt.Errorf("unknown finding type %q", t)
		}
	}
	for _, s := range q.Severities {
		if !s.Valid() {
			return fmt.Errorf("unknown severity %q", s)
		}
	}
	for _, s := range q.Statuses {
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", s)
		}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return fmt.Errorf("range end %s before start %s", q.To.Format(time.RFC3339), q.From.Format(time.RFC3339))
	}
	if q.Limit < 0 || q.Limit > MaxQueryLimit {
		return fmt.Errorf("limit %d outside 0-%d", q.Limit, MaxQueryLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset %d is negative", q.Offset)
	}
	return nil
}

// Matches reports whether f satisfies every filter of q, ignoring paging.
func (q FindingQuery) Matches(f Finding) bool {
	if q.UnitID != "" && f.UnitID != q.UnitID {
		return false
	}
	if len(q.Types) > 0 && !contains(q.Types, f.Type) {
		return false
	}
	if len(q.Severities) > 0 && !contains(q.Severities, f.Severity) {
		return false
	}
	if len(q.Statuses) > 0 && !contains(q.Statuses, f.Status) {
		return false
	}
	if !q.From.IsZero() && f.DetectedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && f.DetectedAt.After(q.To) {
		return false
	}
	return true
}

func contains[T comparable](values []T, target T) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// GroupField selects the finding attribute used by grouped counts.
type GroupField string

const (
	GroupByType     GroupField = "type"
	GroupBySeverity GroupField = "severity"
	GroupByStatus   GroupField = "status"
)

// Valid reports whether g is a supported grouping.
func (g GroupField) Valid() bool {
	return g == GroupByType || g == GroupBySeverity || g == GroupByStatus
}

// Value extracts the grouped attribute of f.
func (g GroupField) Value(f Finding) string {
	switch g {
	case GroupByType:
		return string(f.Type)
	case GroupBySeverity:
		return string(f.Severity)
	case GroupByStatus:
		return string(f.Status)
	}
	return ""
}
