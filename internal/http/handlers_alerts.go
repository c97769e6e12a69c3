package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/events"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
)

const maxWebhookBody = 64 << 10

// ListAlerts handles GET /api/v1/alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	region, err := regionParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	since, err := sinceParam(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.alerts.List(region, since))
}

// ListAlertRules handles GET /api/v1/alerts/rules.
func (h *Handler) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alerts.Rules())
}

// SimulateWebhook handles POST /api/v1/webhook/simulate. The event is echoed
// with a generated id and published to the event stream.
func (h *Handler) SimulateWebhook(w http.ResponseWriter, r *http.Request) {
	var req models.WebhookSimulateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err := dec.Decode(&req); err != nil {
		writeParamError(w, r, &paramError{"body", errors.New("want a JSON object with type and payload")})
		return
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		writeParamError(w, r, &paramError{"type", errors.New("type is required")})
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]interface{}{}
	}

	ev := models.WebhookEvent{
		EventID:    "evt-" + ulid.Make().String(),
		Type:       req.Type,
		Payload:    req.Payload,
		ReceivedAt: h.clock.Now().UTC(),
	}
	if err := h.publisher.Publish(r.Context(), events.FromWebhook(ev)); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Warn("webhook event publish failed",
			zap.String("event_id", ev.EventID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, ev)
}
