// Package notify delivers alert events to HTTP webhook targets with retry,
// exponential backoff and a per-target circuit breaker.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/circuitbreaker"
	"github.com/kjstillabower/air-quality-service/internal/observability"
)

var (
	ErrInvalidTarget   = errors.New("invalid webhook target")
	ErrRejected        = errors.New("webhook rejected event")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

const channel = "webhook"

// WebhookConfig configures one target.
type WebhookConfig struct {
	Name           string
	URL            string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	FailureThreshold int
	SuccessThreshold int
	BreakerTimeout   time.Duration
}

// WebhookNotifier POSTs alert events as JSON to one URL.
type WebhookNotifier struct {
	name           string
	url            string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewWebhookNotifier validates cfg and builds a notifier. Zero retry settings
// default to 3 attempts, 100ms base and 2s max delay.
func NewWebhookNotifier(cfg WebhookConfig, logger *zap.Logger) (*WebhookNotifier, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, cfg.URL)
	}
	if cfg.Name == "" {
		cfg.Name = u.Host
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	component := "webhook:" + cfg.Name
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Component:        component,
		IsFailure:        func(err error) bool { return !errors.Is(err, ErrRejected) },
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
			logger.Warn("circuit breaker state change",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	observability.SetCircuitBreakerStateGauge(component, int(circuitbreaker.StateClosed))

	return &WebhookNotifier{
		name:           cfg.Name,
		url:            cfg.URL,
		timeout:        cfg.Timeout,
		client:         &http.Client{Timeout: cfg.Timeout},
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
		breaker:        breaker,
		logger:         logger,
	}, nil
}

func (n *WebhookNotifier) Name() string { return channel }

// Target returns the configured target name.
func (n *WebhookNotifier) Target() string { return n.name }

// BreakerState exposes the circuit state for health reporting.
func (n *WebhookNotifier) BreakerState() circuitbreaker.State { return n.breaker.State() }

// Notify delivers ev, retrying transient failures. The whole attempt sequence
// counts as one call against the circuit breaker.
func (n *WebhookNotifier) Notify(ctx context.Context, ev alerts.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return n.breaker.Call(ctx, func(ctx context.Context) error {
		return n.deliver(ctx, ev.EventID, body)
	})
}

func (n *WebhookNotifier) deliver(ctx context.Context, eventID string, body []byte) error {
	var lastErr error

	for attempt := 0; attempt < n.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.NotificationRetriesTotal.WithLabelValues(channel).Inc()
			delay := n.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := n.post(ctx, eventID, body)
		if err == nil {
			return nil
		}

		lastErr = err
		n.logger.Debug("webhook attempt failed",
			zap.String("target", n.name),
			zap.Int("attempt", attempt+1),
			zap.String("category", string(CategorizeError(err))),
			zap.Error(err),
		)
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (n *WebhookNotifier) post(ctx context.Context, eventID string, body []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "air-quality-service/1.0")
	req.Header.Set("X-Event-ID", eventID)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return handleStatus(resp.StatusCode)
}

func handleStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrRejected, code)
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, ErrRejected) {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "http request failed")
}

func (n *WebhookNotifier) calculateBackoff(attempt int) time.Duration {
	delay := float64(n.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(n.retryMaxDelay) {
		delay = float64(n.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}
