package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/services"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// HTTPHandler exposes Service as JSON over HTTP.
type HTTPHandler struct {
	logger  *slog.Logger
	service Service
}

// NewHTTPHandler builds the HTTP adapter.
func NewHTTPHandler(logger *slog.Logger, service Service) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{logger: logger.With("component", "http"), service: service}
}

// Routes returns the router with every endpoint mounted.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/detection/run", h.runDetection)
		r.Route("/units/{unitID}", func(r chi.Router) {
			r.Get("/performance", h.performance)
			r.Get("/distribution", h.distribution)
			r.Get("/health", h.health)
			r.Get("/findings", h.findings)
		})
		r.Patch("/findings/{findingID}", h.updateFinding)
	})
	return r
}

func (h *HTTPHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) runDetection(w http.ResponseWriter, r *http.Request) {
	var (
		res models.RunResult
		err error
	)
	if unitID := r.URL.Query().Get("unitId"); unitID != "" {
		res, err = h.service.RunDetectionForUnit(r.Context(), unitID)
	} else {
		res, err = h.service.RunDetection(r.Context())
	}
	if err != nil {
		code, body := h.errorResponse(r, err)
		if !res.StartedAt.IsZero() {
			body.Partial = &res
		}
		writeJSON(w, code, body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) performance(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.WeatherAdjustedPerformance(r.Context(), chi.URLParam(r, "unitID"), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) distribution(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.AnomalyDistribution(r.Context(), chi.URLParam(r, "unitID"), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) health(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.SystemHealth(r.Context(), chi.URLParam(r, "unitID"), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) findings(w http.ResponseWriter, r *http.Request) {
	q, err := findingQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.service.ListFindings(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if found == nil {
		found = []models.Finding{}
	}
	writeJSON(w, http.StatusOK, FindingsResponse{Findings: found, Count: len(found)})
}

func (h *HTTPHandler) updateFinding(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, utils.NewValidationError("body", nil, err.Error()))
		return
	}
	req.ID = chi.URLParam(r, "findingID")
	if err := h.service.UpdateFindingStatus(r.Context(), req.ID, req.Status, req.ResolvedBy, req.Notes); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "status": req.Status})
}

func daysParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return DefaultWindowDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.NewValidationError("days", raw, "days must be an integer")
	}
	return days, nil
}

func findingQuery(r *http.Request) (models.FindingQuery, error) {
	v := r.URL.Query()
	q := models.FindingQuery{UnitID: chi.URLParam(r, "unitID")}
	for _, t := range splitList(v["type"]) {
		q.Types = append(q.Types, models.FindingType(t))
	}
	for _, s := range splitList(v["severity"]) {
		q.Severities = append(q.Severities, models.Severity(s))
	}
	for _, s := range splitList(v["status"]) {
		q.Statuses = append(q.Statuses, models.FindingStatus(s))
	}
	for name, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		if raw := v.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return q, utils.NewValidationError(name, raw, "expected an RFC3339 timestamp")
			}
			*dst = t
		}
	}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		if raw := v.Get(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return q, utils.NewValidationError(name, raw, "expected an integer")
			}
			*dst = n
		}
	}
	return q, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	// Partial carries the aggregate of a detection run that failed midway.
	Partial *models.RunResult `json:"partial,omitempty"`
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := h.errorResponse(r, err)
	writeJSON(w, code, body)
}

func (h *HTTPHandler) errorResponse(r *http.Request, err error) (int, errorBody) {
	code := http.StatusInternalServerError
	body := errorBody{Error: "internal error"}
	switch {
	case errors.Is(err, utils.ErrInvalidArgument):
		code = http.StatusBadRequest
		body.Error = err.Error()
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			body.Field = ve.Field
		}
	case errors.Is(err, utils.ErrNotFound):
		code = http.StatusNotFound
		body.Error = err.Error()
	default:
		if errors.Is(err, services.ErrNotConfigured) {
			code = http.StatusServiceUnavailable
			body.Error = err.Error()
		}
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.String("request_id", middleware.GetReqID(r.Context())), slog.Any("error", err))
	}
	return code, body
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
