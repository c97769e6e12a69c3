package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/mockdata"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/render"
	"github.com/kjstillabower/air-quality-service/internal/service"
)

// vizTimeseries loads the series charted for a region: the first station
// listed in the region, over the last hours.
func (h *Handler) vizTimeseries(r *http.Request) (region, pollutant string, resp models.TimeSeriesResponse, err error) {
	if region, err = regionParam(r); err != nil {
		return
	}
	if region == "" {
		region = mockdata.DefaultRegion
	}
	if pollutant, err = pollutantParam(r); err != nil {
		return
	}
	hours, err := vizHoursParam(r)
	if err != nil {
		return
	}
	stations := h.svc.Stations(r.Context(), region, 1, 0)
	if len(stations) == 0 {
		err = fmt.Errorf("no stations in region %q: %w", region, service.ErrStationNotFound)
		return
	}
	resp, err = h.svc.Timeseries(r.Context(), stations[0].StationID, pollutant, hours)
	return
}

// TimeseriesPNG handles GET /api/v1/viz/timeseries.png.
func (h *Handler) TimeseriesPNG(w http.ResponseWriter, r *http.Request) {
	region, pollutant, resp, err := h.vizTimeseries(r)
	if err != nil {
		writeVizError(w, r, err)
		return
	}
	writePNG(w, r, func(buf io.Writer) error {
		return render.TimeseriesPNG(buf, region, pollutant, resp.Series)
	})
}

// TimeseriesJSON handles GET /api/v1/viz/timeseries.json.
func (h *Handler) TimeseriesJSON(w http.ResponseWriter, r *http.Request) {
	region, pollutant, resp, err := h.vizTimeseries(r)
	if err != nil {
		writeVizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, render.NewTimeseriesFigure(region, pollutant, resp.Series))
}

func (h *Handler) vizRisk(r *http.Request) (models.RiskSummaryResponse, error) {
	region, err := regionParam(r)
	if err != nil {
		return models.RiskSummaryResponse{}, err
	}
	if region == "" {
		region = mockdata.DefaultRegion
	}
	return h.svc.RiskSummary(r.Context(), region)
}

// RiskDialPNG handles GET /api/v1/viz/risk_dial.png.
func (h *Handler) RiskDialPNG(w http.ResponseWriter, r *http.Request) {
	summary, err := h.vizRisk(r)
	if err != nil {
		writeVizError(w, r, err)
		return
	}
	writePNG(w, r, func(buf io.Writer) error {
		return render.RiskDialPNG(buf, summary)
	})
}

// RiskDialJSON handles GET /api/v1/viz/risk_dial.json.
func (h *Handler) RiskDialJSON(w http.ResponseWriter, r *http.Request) {
	summary, err := h.vizRisk(r)
	if err != nil {
		writeVizError(w, r, err)
		return
	}
	cfg, err := render.NewRiskDialConfig(summary)
	if err != nil {
		writeVizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) vizAttribution(r *http.Request) (models.AttributionResponse, error) {
	station, err := stationParam(r)
	if err != nil {
		return models.AttributionResponse{}, err
	}
	pollutant, err := pollutantParam(r)
	if err != nil {
		return models.AttributionResponse{}, err
	}
	return h.svc.Attribution(r.Context(), station, pollutant)
}

// AttributionPNG handles GET /api/v1/viz/attribution.png.
func (h *Handler) AttributionPNG(w http.ResponseWriter, r *http.Request) {
	a, err := h.vizAttribution(r)
	if err != nil {
		writeVizError(w, r, err)
		return
	}
	writePNG(w, r, func(buf io.Writer) error {
		return render.AttributionPNG(buf, a)
	})
}

// AttributionJSON handles GET /api/v1/viz/attribution.json.
func (h *Handler) AttributionJSON(w http.ResponseWriter, r *http.Request) {
	a, err := h.vizAttribution(r)
	if err != nil {
		writeVizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, render.NewAttributionFigure(a))
}

// writePNG renders into a buffer first so a failed render still gets a JSON error.
func writePNG(w http.ResponseWriter, r *http.Request, draw func(io.Writer) error) {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		if errors.Is(err, render.ErrNoData) {
			writeVizError(w, r, err)
			return
		}
		observability.LoggerFrom(r.Context(), nil).Error("chart render failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, CodeRenderFailed, "Chart rendering failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func writeVizError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *paramError
	switch {
	case errors.As(err, &pe):
		writeParamError(w, r, err)
	case errors.Is(err, render.ErrNoData):
		writeError(w, r, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		writeServiceError(w, r, err)
	}
}
