package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/service"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeStationNotFound  = "STATION_NOT_FOUND"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeRenderFailed     = "RENDER_FAILED"
	CodeInternal         = "INTERNAL"
	CodeUnavailable      = "UNAVAILABLE"
)

// encodeFailureBody is sent when a response value cannot be encoded.
var encodeFailureBody = []byte(`{"error":{"code":"` + CodeInternal + `","message":"Internal error","requestId":""}}`)

// writeJSON writes v as JSON with the given status. v is encoded before the
// header goes out so an unencodable value becomes a 500 instead of an empty body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status, body = http.StatusInternalServerError, encodeFailureBody
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// writeError writes {"error":{"code","message","requestId"}}. requestId is the
// correlation ID when one is set on the request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps service errors onto the envelope. Unexpected errors
// are logged with the request logger; the client sees a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFrom(r.Context(), nil)
	switch {
	case errors.Is(err, service.ErrStationNotFound):
		writeError(w, r, http.StatusNotFound, CodeStationNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		logger.Debug("request deadline", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Request timed out")
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "Internal error")
	}
}

func writeParamError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error())
}
