package stream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/stream"
)

const testInterval = 20 * time.Millisecond

type staticRisk struct{}

func (staticRisk) RiskSummary(ctx context.Context, region string) (models.RiskSummaryResponse, error) {
	return models.RiskSummaryResponse{
		Region:     region,
		RiskScores: []models.RiskScore{{Pollutant: "PM2.5", Score: 72.5, Category: "High", ThresholdUsed: 50}},
	}, nil
}

func startHub(t *testing.T) (string, *stream.Hub) {
	t.Helper()
	hub := stream.NewHub(staticRisk{}, "Delhi NCR", testInterval, nil)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(hub)
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func waitForClients(t *testing.T, hub *stream.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Count() = %d, want %d", hub.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_Connect_ReceivesImmediateSummary(t *testing.T) {
	wsURL, _ := startHub(t)
	conn := dial(t, wsURL)

	m := readMessage(t, conn)

	if m["event"] != stream.EventRiskSummary {
		t.Errorf("event = %v, want %s", m["event"], stream.EventRiskSummary)
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok || data["region"] != "Delhi NCR" {
		t.Errorf("data = %v, want region Delhi NCR", m["data"])
	}
}

func TestHub_PeriodicBroadcast(t *testing.T) {
	wsURL, _ := startHub(t)
	conn := dial(t, wsURL)
	readMessage(t, conn)

	m := readMessage(t, conn)

	if m["event"] != stream.EventRiskSummary {
		t.Errorf("event = %v, want %s", m["event"], stream.EventRiskSummary)
	}
}

func TestHub_NotifyBroadcastsAlert(t *testing.T) {
	wsURL, hub := startHub(t)
	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	err := hub.Notify(context.Background(), alerts.Event{
		EventID: "evt-1",
		Type:    alerts.EventFired,
		Alert:   models.AlertRecord{AlertID: "A-009", Status: models.AlertActive},
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	// skip any summary ticks queued ahead of the alert
	for i := 0; i < 10; i++ {
		m := readMessage(t, conn)
		if m["event"] == alerts.EventFired {
			data := m["data"].(map[string]interface{})
			alert := data["alert"].(map[string]interface{})
			if alert["alert_id"] != "A-009" {
				t.Errorf("alert_id = %v, want A-009", alert["alert_id"])
			}
			return
		}
	}
	t.Fatal("alert event not received")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	wsURL, hub := startHub(t)
	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	conn.Close()

	waitForClients(t, hub, 0)
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	hub := stream.NewHub(staticRisk{}, "Delhi NCR", time.Hour, nil)
	rec := httptest.NewRecorder()

	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
