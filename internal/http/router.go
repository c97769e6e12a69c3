package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/traffic"
)

// RouterConfig carries the middleware settings for NewRouter. Zero values
// disable the corresponding limit.
type RouterConfig struct {
	RequestTimeout time.Duration
	Limiter        *rate.Limiter
	VizRateLimit   int
	VizRateWindow  time.Duration
	Traffic        *traffic.Tracker
	InFlight       *InFlightTracker
	Logger         *zap.Logger
}

// NewRouter registers every route. /api/v1 is rate limited, deadline bound and
// counted for health; /api/v1/viz adds a per-client limit.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(h.NotFound)
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware(cfg.InFlight))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc(openAPIPath, h.GetOpenAPI).Methods(http.MethodGet)
	router.HandleFunc("/docs", h.SwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/redoc", h.Redoc).Methods(http.MethodGet)
	router.HandleFunc("/spec/{page}", h.GetSpecPage).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(TrafficMiddleware(cfg.Traffic))
	api.Use(RateLimitMiddleware(cfg.Limiter, cfg.Traffic))
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/stations", h.ListStations).Methods(http.MethodGet)
	api.HandleFunc("/stations/{station_id}", h.GetStation).Methods(http.MethodGet)
	api.HandleFunc("/forecasts", h.GetForecasts).Methods(http.MethodGet)
	api.HandleFunc("/timeseries", h.GetTimeseries).Methods(http.MethodGet)
	api.HandleFunc("/risk/summary", h.GetRiskSummary).Methods(http.MethodGet)
	api.HandleFunc("/attribution", h.GetAttribution).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.ListAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/rules", h.ListAlertRules).Methods(http.MethodGet)
	api.HandleFunc("/webhook/simulate", h.SimulateWebhook).Methods(http.MethodPost)
	api.HandleFunc("/impact", h.GetImpact).Methods(http.MethodGet)
	api.HandleFunc("/stakeholders", h.GetStakeholders).Methods(http.MethodGet)
	api.HandleFunc("/stream", h.Stream).Methods(http.MethodGet)

	viz := api.PathPrefix("/viz").Subrouter()
	viz.Use(VizRateLimitMiddleware(cfg.VizRateLimit, cfg.VizRateWindow, cfg.Traffic))
	viz.HandleFunc("/timeseries.png", h.TimeseriesPNG).Methods(http.MethodGet)
	viz.HandleFunc("/timeseries.json", h.TimeseriesJSON).Methods(http.MethodGet)
	viz.HandleFunc("/risk_dial.png", h.RiskDialPNG).Methods(http.MethodGet)
	viz.HandleFunc("/risk_dial.json", h.RiskDialJSON).Methods(http.MethodGet)
	viz.HandleFunc("/attribution.png", h.AttributionPNG).Methods(http.MethodGet)
	viz.HandleFunc("/attribution.json", h.AttributionJSON).Methods(http.MethodGet)

	return router
}
