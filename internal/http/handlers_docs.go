package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/air-quality-service/internal/docs"
)

const openAPIPath = "/openapi.json"

// GetOpenAPI handles GET /openapi.json.
func (h *Handler) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(docs.OpenAPI())
}

// SwaggerUI handles GET /docs.
func (h *Handler) SwaggerUI(w http.ResponseWriter, r *http.Request) {
	h.writeUI(w, r, "swagger")
}

// Redoc handles GET /redoc.
func (h *Handler) Redoc(w http.ResponseWriter, r *http.Request) {
	h.writeUI(w, r, "redoc")
}

func (h *Handler) writeUI(w http.ResponseWriter, r *http.Request, kind string) {
	page, err := docs.UI(kind, ServiceName+" API", openAPIPath)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// GetSpecPage handles GET /spec/{page}, serving project notes as markdown.
func (h *Handler) GetSpecPage(w http.ResponseWriter, r *http.Request) {
	page, err := docs.Page(mux.Vars(r)["page"], docs.PageData{Stations: h.svc.Catalog().Len()})
	if errors.Is(err, docs.ErrUnknownPage) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, err.Error())
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// Stream handles GET /api/v1/stream. Without a hub the route answers 503.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Event stream is not enabled")
		return
	}
	h.stream.ServeHTTP(w, r)
}

// NotFound answers unmatched routes with the error envelope.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, CodeNotFound, "No route for "+r.URL.Path)
}
