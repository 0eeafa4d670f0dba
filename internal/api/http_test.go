package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/services"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

func serve(t *testing.T, svc Service, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewHTTPHandler(utils.DiscardLogger(), svc).Routes().ServeHTTP(rec, req)
	return rec
}

func TestHTTPHealthz(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTPPerformance(t *testing.T) {
	svc := &stubService{}
	rec := serve(t, svc, http.MethodGet, "/v1/units/unit-1/performance?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.PerformanceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "unit-1", report.UnitID)
	assert.Equal(t, 7, report.Days)
	assert.InDelta(t, 92.5, report.AverageRatio, 1e-9)
}

func TestHTTPDefaultsDays(t *testing.T) {
	svc := &stubService{}
	rec := serve(t, svc, http.MethodGet, "/v1/units/unit-1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultWindowDays, svc.lastDays)
}

func TestHTTPErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		svc    Service
		method string
		target string
		body   string
		code   int
	}{
		{"unknown unit", &stubService{}, http.MethodGet, "/v1/units/ghost/performance?days=7", "", http.StatusNotFound},
		{"window too long", &stubService{}, http.MethodGet, "/v1/units/unit-1/performance?days=400", "", http.StatusBadRequest},
		{"zero days", &stubService{}, http.MethodGet, "/v1/units/unit-1/performance?days=0", "", http.StatusBadRequest},
		{"non-numeric days", &stubService{}, http.MethodGet, "/v1/units/unit-1/distribution?days=abc", "", http.StatusBadRequest},
		{"bad from", &stubService{}, http.MethodGet, "/v1/units/unit-1/findings?from=yesterday", "", http.StatusBadRequest},
		{"bad type", &stubService{}, http.MethodGet, "/v1/units/unit-1/findings?type=SPARKS", "", http.StatusBadRequest},
		{"bad status", &stubService{}, http.MethodPatch, "/v1/findings/f-1", `{"status":"closed"}`, http.StatusBadRequest},
		{"bad body", &stubService{}, http.MethodPatch, "/v1/findings/f-1", `{`, http.StatusBadRequest},
		{"not configured", &stubService{err: services.ErrNotConfigured}, http.MethodPost, "/v1/detection/run", "", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, tc.svc, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestHTTPRunDetection(t *testing.T) {
	svc := &stubService{}
	rec := serve(t, svc, http.MethodPost, "/v1/detection/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.UnitsProcessed)
	assert.Equal(t, 4, res.FindingsSaved)

	rec = serve(t, svc, http.MethodPost, "/v1/detection/run?unitId=unit-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unit-2", svc.runUnit)
}

func TestHTTPFailedRunIncludesPartialResult(t *testing.T) {
	svc := &stubService{started: time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC), err: errors.New("store unavailable")}
	rec := serve(t, svc, http.MethodPost, "/v1/detection/run", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
	require.NotNil(t, body.Partial)
	assert.Equal(t, 3, body.Partial.UnitsProcessed)
	assert.Equal(t, 4, body.Partial.FindingsSaved)
}

func TestHTTPFindingsQuery(t *testing.T) {
	svc := &stubService{}
	rec := serve(t, svc, http.MethodGet,
		"/v1/units/unit-3/findings?type=NIGHTTIME_GENERATION,FROZEN_GENERATION&severity=critical&status=open&from=2024-06-01T00:00:00Z&limit=25&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	q := svc.lastQuery
	assert.Equal(t, "unit-3", q.UnitID)
	assert.Equal(t, []models.FindingType{models.FindingNighttimeGeneration, models.FindingFrozenGeneration}, q.Types)
	assert.Equal(t, []models.Severity{models.SeverityCritical}, q.Severities)
	assert.Equal(t, []models.FindingStatus{models.StatusOpen}, q.Statuses)
	assert.Equal(t, 25, q.Limit)
	assert.Equal(t, 5, q.Offset)
	assert.False(t, q.From.IsZero())
	assert.True(t, q.To.IsZero())

	var resp FindingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestHTTPUpdateFinding(t *testing.T) {
	svc := &stubService{}
	rec := serve(t, svc, http.MethodPatch, "/v1/findings/f-9", `{"status":"resolved","resolvedBy":"ops","notes":"cleaned panels"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "f-9:resolved", svc.updated)
}
