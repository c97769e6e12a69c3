package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/events"
	"github.com/kjstillabower/air-quality-service/internal/health"
	"github.com/kjstillabower/air-quality-service/internal/service"
	"github.com/kjstillabower/air-quality-service/internal/validation"
)

// ServiceName is reported by /health.
const ServiceName = "air-quality-service"

// Version is reported by /health. Overridden at build time with -ldflags.
var Version = "dev"

// Deps are the collaborators of Handler. Publisher and Stream are optional.
type Deps struct {
	Service   *service.AirQualityService
	Alerts    *alerts.Engine
	Health    *health.Checker
	Publisher events.Publisher
	Stream    http.Handler
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc       *service.AirQualityService
	alerts    *alerts.Engine
	health    *health.Checker
	publisher events.Publisher
	stream    http.Handler
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(d Deps) *Handler {
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		svc:       d.Service,
		alerts:    d.Alerts,
		health:    d.Health,
		publisher: d.Publisher,
		stream:    d.Stream,
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

// ListStations handles GET /api/v1/stations.
func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	region, err := regionParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Stations(r.Context(), region, limit, offset))
}

// GetStation handles GET /api/v1/stations/{station_id}.
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateStationID(mux.Vars(r)["station_id"])
	if err != nil {
		writeParamError(w, r, &paramError{"station_id", err})
		return
	}
	st, err := h.svc.Station(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetForecasts handles GET /api/v1/forecasts.
func (h *Handler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	station, err := stationParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	pollutant, err := pollutantParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	hours, horizon, err := durationParam(r, "horizon", defaultHorizon, maxHorizonHours)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	resp, err := h.svc.Forecasts(r.Context(), station, pollutant, hours)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp.Horizon = horizon
	writeJSON(w, http.StatusOK, resp)
}

// GetTimeseries handles GET /api/v1/timeseries.
func (h *Handler) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	station, err := stationParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	pollutant, err := pollutantParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	hours, _, err := durationParam(r, "window", defaultWindow, maxWindowHours)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	resp, err := h.svc.Timeseries(r.Context(), station, pollutant, hours)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRiskSummary handles GET /api/v1/risk/summary.
func (h *Handler) GetRiskSummary(w http.ResponseWriter, r *http.Request) {
	region, err := regionParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	resp, err := h.svc.RiskSummary(r.Context(), region)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAttribution handles GET /api/v1/attribution.
func (h *Handler) GetAttribution(w http.ResponseWriter, r *http.Request) {
	station, err := stationParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	pollutant, err := pollutantParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	resp, err := h.svc.Attribution(r.Context(), station, pollutant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := h.health.Evaluate(r.Context())
	resp := map[string]interface{}{
		"status":    report.Status,
		"service":   ServiceName,
		"version":   Version,
		"checks":    report.Checks,
		"timestamp": report.Timestamp.Format(time.RFC3339),
	}
	if report.Reason != "" {
		resp["reason"] = report.Reason
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(report.StatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
