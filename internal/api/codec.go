package api

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// WindowRequest selects a unit and an analytics window. An absent Days
// selects DefaultWindowDays; an explicit value is validated as given.
type WindowRequest struct {
	UnitID string `json:"unitId"`
	Days   *int   `json:"days,omitempty"`
}

// RunRequest optionally restricts a manual run to one unit.
type RunRequest struct {
	UnitID string `json:"unitId,omitempty"`
}

// FindingsRequest is the wire form of models.FindingQuery.
type FindingsRequest struct {
	UnitID     string                 `json:"unitId"`
	Types      []models.FindingType   `json:"types,omitempty"`
	Severities []models.Severity      `json:"severities,omitempty"`
	Statuses   []models.FindingStatus `json:"statuses,omitempty"`
	From       time.Time              `json:"from,omitempty"`
	To         time.Time              `json:"to,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	Offset     int                    `json:"offset,omitempty"`
}

// Query converts the request into a store query.
func (r FindingsRequest) Query() models.FindingQuery {
	return models.FindingQuery{
		UnitID:     r.UnitID,
		Types:      r.Types,
		Severities: r.Severities,
		Statuses:   r.Statuses,
		From:       r.From,
		To:         r.To,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// FindingsResponse wraps a page of findings.
type FindingsResponse struct {
	Findings []models.Finding `json:"findings"`
	Count    int              `json:"count"`
}

// StatusUpdateRequest moves a finding through its review lifecycle.
type StatusUpdateRequest struct {
	ID         string               `json:"id"`
	Status     models.FindingStatus `json:"status"`
	ResolvedBy string               `json:"resolvedBy,omitempty"`
	Notes      string               `json:"notes,omitempty"`
}

// fromStruct decodes a Struct message into a typed request.
func fromStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		return utils.NewValidationError("request", nil, "request cannot be nil")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return utils.NewValidationError("request", string(data), err.Error())
	}
	return nil
}

// toStruct encodes a domain value as a Struct message.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}

func windowDays(days *int) int {
	if days == nil {
		return DefaultWindowDays
	}
	return *days
}
