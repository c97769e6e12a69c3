package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/circuitbreaker"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
)

func testEvent() alerts.Event {
	return alerts.Event{
		EventID: "evt-01HZX",
		Type:    alerts.EventFired,
		Alert: models.AlertRecord{
			AlertID:       "A-001",
			StationID:     "ST-DEL-001",
			Pollutant:     "PM2.5",
			Threshold:     60,
			ObservedValue: 82,
			Status:        models.AlertActive,
		},
		OccurredAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
}

func newTestNotifier(t *testing.T, url string, attempts int) *WebhookNotifier {
	t.Helper()
	n, err := NewWebhookNotifier(WebhookConfig{
		Name:             "ops",
		URL:              url,
		Timeout:          time.Second,
		RetryAttempts:    attempts,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		FailureThreshold: 2,
		BreakerTimeout:   time.Minute,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error = %v", err)
	}
	return n
}

func TestNewWebhookNotifier_InvalidTarget(t *testing.T) {
	tests := []string{"", "ftp://example.com", "http://", "::bad"}
	for _, u := range tests {
		if _, err := NewWebhookNotifier(WebhookConfig{URL: u}, nil); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("NewWebhookNotifier(%q) error = %v, want ErrInvalidTarget", u, err)
		}
	}
}

func TestWebhookNotifier_Notify_Success(t *testing.T) {
	var got alerts.Event
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, 3)
	ctx := observability.WithRequest(context.Background(), zap.NewNop(), "corr-123")

	if err := n.Notify(ctx, testEvent()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if got.EventID != "evt-01HZX" || got.Alert.AlertID != "A-001" {
		t.Errorf("posted event = %+v, want evt-01HZX / A-001", got)
	}
	if headers.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", headers.Get("Content-Type"))
	}
	if headers.Get("X-Correlation-ID") != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want corr-123", headers.Get("X-Correlation-ID"))
	}
	if headers.Get("X-Event-ID") != "evt-01HZX" {
		t.Errorf("X-Event-ID = %q, want evt-01HZX", headers.Get("X-Event-ID"))
	}
}

func TestWebhookNotifier_Notify_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, 3)

	if err := n.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhookNotifier_Notify_ErrorHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{"400 not retried", http.StatusBadRequest, ErrRejected, 1},
		{"404 not retried", http.StatusNotFound, ErrRejected, 1},
		{"429 retried", http.StatusTooManyRequests, ErrRateLimited, 2},
		{"500 retried", http.StatusInternalServerError, ErrUpstreamFailure, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			n := newTestNotifier(t, server.URL, 2)
			err := n.Notify(context.Background(), testEvent())

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Notify() error = %v, want %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestWebhookNotifier_BreakerOpensOnRepeatedFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, 1)
	ctx := context.Background()
	_ = n.Notify(ctx, testEvent())
	_ = n.Notify(ctx, testEvent())

	err := n.Notify(ctx, testEvent())

	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("Notify() error = %v, want circuitbreaker.ErrOpen", err)
	}
	if n.BreakerState() != circuitbreaker.StateOpen {
		t.Errorf("BreakerState() = %v, want open", n.BreakerState())
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (third call short-circuited)", calls.Load())
	}
}

func TestWebhookNotifier_RejectionsDoNotOpenBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, 1)
	for i := 0; i < 5; i++ {
		_ = n.Notify(context.Background(), testEvent())
	}

	if n.BreakerState() != circuitbreaker.StateClosed {
		t.Errorf("BreakerState() = %v, want closed", n.BreakerState())
	}
}

func TestWebhookNotifier_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(WebhookConfig{
		URL:            server.URL,
		RetryAttempts:  3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = n.Notify(ctx, testEvent())

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Notify() error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Notify() did not stop backing off when ctx expired")
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	n := &WebhookNotifier{retryBaseDelay: 100 * time.Millisecond, retryMaxDelay: 300 * time.Millisecond}
	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{1, 100 * time.Millisecond, 110 * time.Millisecond},
		{2, 200 * time.Millisecond, 220 * time.Millisecond},
		{5, 300 * time.Millisecond, 330 * time.Millisecond},
	}
	for _, tt := range tests {
		got := n.calculateBackoff(tt.attempt)
		if got < tt.min || got > tt.max {
			t.Errorf("calculateBackoff(%d) = %v, want in [%v, %v]", tt.attempt, got, tt.min, tt.max)
		}
	}
}
