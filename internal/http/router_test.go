package http

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/render"
	"github.com/kjstillabower/air-quality-service/internal/stream"
)

// TestRouter_DocumentedPathsAnswer2xx walks every documented route.
func TestRouter_DocumentedPathsAnswer2xx(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	tests := []struct {
		method      string
		path        string
		body        string
		contentType string
	}{
		{http.MethodGet, "/health", "", "application/json"},
		{http.MethodGet, "/metrics", "", "text/plain"},
		{http.MethodGet, "/openapi.json", "", "application/json"},
		{http.MethodGet, "/docs", "", "text/html"},
		{http.MethodGet, "/redoc", "", "text/html"},
		{http.MethodGet, "/spec/components", "", "text/markdown"},
		{http.MethodGet, "/spec/architecture", "", "text/markdown"},
		{http.MethodGet, "/spec/team_sync", "", "text/markdown"},
		{http.MethodGet, "/spec/progress_report_template", "", "text/markdown"},
		{http.MethodGet, "/api/v1/stations", "", "application/json"},
		{http.MethodGet, "/api/v1/stations/ST-DEL-001", "", "application/json"},
		{http.MethodGet, "/api/v1/forecasts", "", "application/json"},
		{http.MethodGet, "/api/v1/timeseries", "", "application/json"},
		{http.MethodGet, "/api/v1/risk/summary", "", "application/json"},
		{http.MethodGet, "/api/v1/attribution", "", "application/json"},
		{http.MethodGet, "/api/v1/alerts", "", "application/json"},
		{http.MethodGet, "/api/v1/alerts/rules", "", "application/json"},
		{http.MethodPost, "/api/v1/webhook/simulate", `{"type":"ping","payload":{}}`, "application/json"},
		{http.MethodGet, "/api/v1/impact", "", "application/json"},
		{http.MethodGet, "/api/v1/stakeholders", "", "application/json"},
		{http.MethodGet, "/api/v1/viz/timeseries.png", "", "image/png"},
		{http.MethodGet, "/api/v1/viz/timeseries.json", "", "application/json"},
		{http.MethodGet, "/api/v1/viz/risk_dial.png", "", "image/png"},
		{http.MethodGet, "/api/v1/viz/risk_dial.json", "", "application/json"},
		{http.MethodGet, "/api/v1/viz/attribution.png", "", "image/png"},
		{http.MethodGet, "/api/v1/viz/attribution.json", "", "application/json"},

		// documented example queries
		{http.MethodGet, "/api/v1/stations?region=Delhi%20NCR&limit=10", "", "application/json"},
		{http.MethodGet, "/api/v1/forecasts?pollutant=PM2.5&horizon=24h", "", "application/json"},
		{http.MethodGet, "/api/v1/forecasts?station_id=ST-DEL-002&pollutant=NO2&horizon=72h", "", "application/json"},
		{http.MethodGet, "/api/v1/timeseries?pollutant=PM2.5&window=48h", "", "application/json"},
		{http.MethodGet, "/api/v1/risk/summary?region=Delhi%20NCR", "", "application/json"},
		{http.MethodGet, "/api/v1/attribution?pollutant=PM2.5", "", "application/json"},
		{http.MethodGet, "/api/v1/viz/timeseries.png?region=Delhi%20NCR&pollutant=PM2.5&hours=24", "", "image/png"},
		{http.MethodGet, "/api/v1/viz/timeseries.json?region=Delhi%20NCR&pollutant=PM2.5&hours=24", "", "application/json"},
		{http.MethodGet, "/api/v1/viz/risk_dial.png?region=Delhi%20NCR", "", "image/png"},
		{http.MethodGet, "/api/v1/viz/attribution.png?pollutant=PM2.5", "", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			if w.Code < 200 || w.Code > 299 {
				t.Fatalf("status = %d, want 2xx (body %s)", w.Code, w.Body.String())
			}
			if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, tt.contentType) {
				t.Errorf("Content-Type = %q, want prefix %q", got, tt.contentType)
			}
		})
	}
}

func TestVizTimeseriesPNG_Decodes(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	w := env.do(t, http.MethodGet, "/api/v1/viz/timeseries.png?pollutant=NO2&hours=6", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 900 || b.Dy() != 360 {
		t.Errorf("size = %dx%d, want 900x360", b.Dx(), b.Dy())
	}
}

func TestVizTimeseriesJSON(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	w := env.do(t, http.MethodGet, "/api/v1/viz/timeseries.json?hours=1d", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var fig struct {
		Data []struct {
			X    []string  `json:"x"`
			Y    []float64 `json:"y"`
			Type string    `json:"type"`
			Mode string    `json:"mode"`
			Name string    `json:"name"`
		} `json:"data"`
		Layout struct {
			Title string `json:"title"`
		} `json:"layout"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fig); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fig.Data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(fig.Data))
	}
	trace := fig.Data[0]
	if trace.Type != "scatter" || trace.Mode != "lines+markers" || trace.Name != "PM2.5" {
		t.Errorf("trace = %s/%s/%s, want scatter/lines+markers/PM2.5", trace.Type, trace.Mode, trace.Name)
	}
	if len(trace.X) != 25 || len(trace.Y) != 25 {
		t.Errorf("points = %d/%d, want 25", len(trace.X), len(trace.Y))
	}
	if fig.Layout.Title != "PM2.5 Time Series (Delhi NCR)" {
		t.Errorf("title = %q", fig.Layout.Title)
	}
}

// TestVizTimeseries_PNGMatchesJSON redraws the JSON figure's series and
// expects the PNG endpoint to have drawn exactly that chart.
func TestVizTimeseries_PNGMatchesJSON(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	const query = "?region=Delhi%20NCR&pollutant=PM2.5&hours=24"

	w := env.do(t, http.MethodGet, "/api/v1/viz/timeseries.json"+query, "")
	if w.Code != http.StatusOK {
		t.Fatalf("json status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var fig render.TimeseriesFigure
	decode(t, w, &fig)
	if len(fig.Data) != 1 || len(fig.Data[0].X) != 25 {
		t.Fatalf("figure = %+v, want one trace of 25 points", fig.Data)
	}
	series := make([]models.TimeSeriesPoint, len(fig.Data[0].X))
	for i, x := range fig.Data[0].X {
		ts, err := time.Parse(time.RFC3339, x)
		if err != nil {
			t.Fatalf("x[%d] = %q: %v", i, x, err)
		}
		series[i] = models.TimeSeriesPoint{Timestamp: ts, Value: fig.Data[0].Y[i]}
	}
	var want bytes.Buffer
	if err := render.TimeseriesPNG(&want, "Delhi NCR", "PM2.5", series); err != nil {
		t.Fatalf("TimeseriesPNG: %v", err)
	}

	w = env.do(t, http.MethodGet, "/api/v1/viz/timeseries.png"+query, "")
	if w.Code != http.StatusOK {
		t.Fatalf("png status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if !bytes.Equal(w.Body.Bytes(), want.Bytes()) {
		t.Error("PNG was drawn from a different series than the JSON figure")
	}
}

func TestViz_InvalidParams(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"hours zero", "/api/v1/viz/timeseries.png?hours=0", http.StatusBadRequest, CodeInvalidParameter},
		{"hours too long", "/api/v1/viz/timeseries.json?hours=169", http.StatusBadRequest, CodeInvalidParameter},
		{"bad pollutant", "/api/v1/viz/attribution.png?pollutant=xx", http.StatusBadRequest, CodeInvalidParameter},
		{"region without stations", "/api/v1/viz/timeseries.png?region=Mumbai", http.StatusNotFound, CodeStationNotFound},
		{"unknown station", "/api/v1/viz/attribution.json?station_id=ST-XXX-999", http.StatusNotFound, CodeStationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "")
			assertError(t, w, tt.status, tt.code)
		})
	}
}

func TestOpenAPI_ListsRoutes(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	w := env.do(t, http.MethodGet, "/openapi.json", "")
	var doc struct {
		Paths map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, p := range []string{"/api/v1/stations", "/api/v1/viz/timeseries.png", "/health"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("openapi paths missing %s", p)
		}
	}
}

// TestStream_UpgradesThroughMiddleware dials the websocket through the full
// middleware chain, which must let the upgrader hijack the connection.
func TestStream_UpgradesThroughMiddleware(t *testing.T) {
	env := newTestEnv(t, RouterConfig{RequestTimeout: time.Second}, func(d *Deps) {
		d.Stream = stream.NewHub(d.Service, "Delhi NCR", time.Hour, nil)
	})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg stream.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Event != stream.EventRiskSummary {
		t.Errorf("event = %q, want %q", msg.Event, stream.EventRiskSummary)
	}
}
