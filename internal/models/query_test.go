package models

import (
	"testing"
	"time"
)

func TestFindingQueryValidate(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		query   FindingQuery
		wantErr bool
	}{
		{name: "empty", query: FindingQuery{}},
		{name: "full", query: FindingQuery{UnitID: "u1", Types: AllFindingTypes(), Severities: AllSeverities(), Statuses: AllStatuses(), From: now.Add(-time.Hour), To: now, Limit: 10}},
		{name: "unknown type", query: FindingQuery{Types: []FindingType{"SPIKE"}}, wantErr: true},
		{name: "unknown status", query: FindingQuery{Statuses: []FindingStatus{"closed"}}, wantErr: true},
		{name: "inverted range", query: FindingQuery{From: now, To: now.Add(-time.Minute)}, wantErr: true},
		{name: "negative offset", query: FindingQuery{Offset: -1}, wantErr: true},
		{name: "limit too large", query: FindingQuery{Limit: MaxQueryLimit + 1}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.query.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFindingQueryMatches(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := Finding{UnitID: "u1", Type: FindingFrozenGeneration, Severity: SeverityWarning, Status: StatusAcknowledged, DetectedAt: now}

	if !(FindingQuery{UnitID: "u1", Statuses: []FindingStatus{StatusOpen, StatusAcknowledged}}).Matches(f) {
		t.Fatalf("expected active status filter to match")
	}
	if (FindingQuery{Severities: []Severity{SeverityCritical}}).Matches(f) {
		t.Fatalf("expected severity filter to exclude warning")
	}
	if (FindingQuery{From: now.Add(time.Minute)}).Matches(f) {
		t.Fatalf("expected finding before range start to be excluded")
	}
	if !(FindingQuery{From: now, To: now}).Matches(f) {
		t.Fatalf("expected inclusive bounds")
	}
}

func TestFindingTypeValid(t *testing.T) {
	for _, ft := range AllFindingTypes() {
		if !ft.Valid() {
			t.Fatalf("expected %s to be valid", ft)
		}
		if ft.Label() == string(ft) {
			t.Fatalf("expected a label for %s", ft)
		}
	}
	if FindingType("UNKNOWN").Valid() {
		t.Fatalf("expected unknown type to be invalid")
	}
}
