// Package health computes the service health status reported at /health.
//
// Status priority: shutting-down > overloaded > degraded > idle > healthy.
// Each condition is evaluated only when the ones before it do not hold.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/lifecycle"
	"github.com/kjstillabower/air-quality-service/internal/traffic"
)

// Status values.
const (
	StatusHealthy      = "healthy"
	StatusIdle         = "idle"
	StatusDegraded     = "degraded"
	StatusOverloaded   = "overloaded"
	StatusShuttingDown = "shutting-down"
)

// Check results reported per probe.
const (
	CheckHealthy   = "healthy"
	CheckUnhealthy = "unhealthy"
)

const probeTimeout = 2 * time.Second

// Config holds the health thresholds.
type Config struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
}

// Probe is a dependency whose reachability is reported under checks.
// Probe failures are informational: every dependency has a fallback.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Report is the computed health.
type Report struct {
	Status     string            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Checks     map[string]string `json:"checks"`
	Timestamp  time.Time         `json:"timestamp"`
	StatusCode int               `json:"-"`
}

// Checker evaluates health from the traffic windows and lifecycle state.
type Checker struct {
	cfg     Config
	traffic *traffic.Tracker
	state   *lifecycle.State
	probes  []Probe
	logger  *zap.Logger

	mu   sync.Mutex
	prev string
}

// NewChecker creates a Checker. probes may be empty.
func NewChecker(cfg Config, tracker *traffic.Tracker, state *lifecycle.State, logger *zap.Logger, probes ...Probe) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{cfg: cfg, traffic: tracker, state: state, probes: probes, logger: logger}
}

// Evaluate computes the current report. Status transitions are logged at INFO.
func (c *Checker) Evaluate(ctx context.Context) Report {
	status, code, reason := c.status()
	report := Report{
		Status:     status,
		StatusCode: code,
		Reason:     reason,
		Checks:     c.runProbes(ctx),
		Timestamp:  time.Now().UTC(),
	}

	c.mu.Lock()
	if c.prev != "" && c.prev != status {
		c.logger.Info("health status transition",
			zap.String("previous_status", c.prev),
			zap.String("current_status", status),
			zap.String("reason", reason))
	}
	c.prev = status
	c.mu.Unlock()

	return report
}

// OverloadThreshold is the request count within OverloadWindow above which
// the service reports overloaded. Zero when rate limiting is disabled.
func (c *Checker) OverloadThreshold() float64 {
	return float64(c.cfg.RateLimitRPS) * c.cfg.OverloadWindow.Seconds() * float64(c.cfg.OverloadThresholdPct) / 100
}

func (c *Checker) status() (string, int, string) {
	if c.state != nil && c.state.IsShuttingDown() {
		return StatusShuttingDown, http.StatusServiceUnavailable, "signal"
	}
	if c.traffic == nil {
		return StatusHealthy, http.StatusOK, ""
	}
	if c.cfg.RateLimitRPS > 0 && c.cfg.OverloadWindow > 0 {
		if float64(c.traffic.RequestCount(c.cfg.OverloadWindow)) > c.OverloadThreshold() {
			return StatusOverloaded, http.StatusServiceUnavailable, "overload_threshold"
		}
	}
	if c.cfg.DegradedWindow > 0 && c.cfg.DegradedErrorPct > 0 {
		errs, total := c.traffic.ErrorRate(c.cfg.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(c.cfg.DegradedErrorPct) {
			return StatusDegraded, http.StatusServiceUnavailable, "error_rate_breach"
		}
	}
	if c.cfg.IdleWindow > 0 && c.cfg.MinimumLifespan > 0 && c.state != nil && c.state.Uptime() >= c.cfg.MinimumLifespan {
		perMin := float64(c.traffic.RequestCount(c.cfg.IdleWindow)) / c.cfg.IdleWindow.Minutes()
		if perMin < float64(c.cfg.IdleThresholdReqPerMin) {
			return StatusIdle, http.StatusOK, "low_traffic"
		}
	}
	return StatusHealthy, http.StatusOK, ""
}

func (c *Checker) runProbes(ctx context.Context) map[string]string {
	checks := make(map[string]string, len(c.probes))
	for _, p := range c.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			checks[p.Name] = CheckUnhealthy
			c.logger.Debug("health probe failed", zap.String("probe", p.Name), zap.Error(err))
			continue
		}
		checks[p.Name] = CheckHealthy
	}
	return checks
}
