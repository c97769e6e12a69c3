// Package alerts keeps the alert log and evaluates threshold and rolling-average
// rules against each station's readings. Fired and resolved alerts are fanned
// out to notifiers (webhooks, the event topic, websocket subscribers).
package alerts

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// Event types delivered to notifiers.
const (
	EventFired    = "alert.fired"
	EventResolved = "alert.resolved"
)

// Event is one alert state change.
type Event struct {
	EventID    string             `json:"event_id"`
	Type       string             `json:"type"`
	Alert      models.AlertRecord `json:"alert"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Notifier delivers alert events to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// SeriesSource provides hourly readings, oldest first, ending at the current hour.
type SeriesSource interface {
	Timeseries(stationID, pollutant string, hours int) []models.TimeSeriesPoint
}

// StationSource lists the stations rules are evaluated against.
type StationSource interface {
	All() []models.Station
	InRegion(id, region string) bool
}

// Config wires an Engine.
type Config struct {
	Series    SeriesSource
	Stations  StationSource
	Rules     []Rule
	Notifiers []Notifier
	Clock     clockwork.Clock
	Logger    *zap.Logger

	// NotifyTimeout bounds one fan-out round. Zero means 10s.
	NotifyTimeout time.Duration
}

// Engine is safe for concurrent use. Evaluations are serialised.
type Engine struct {
	series    SeriesSource
	stations  StationSource
	notifiers []Notifier
	clock     clockwork.Clock
	logger    *zap.Logger
	timeout   time.Duration
	store     *Store

	evalMu sync.Mutex

	mu       sync.Mutex
	rules    []Rule
	active   map[string]string    // "rule:station" -> alert id
	lastFire map[string]time.Time // for cooldown
}

// NewEngine creates an engine whose store holds the seed alert.
// Rules are validated; invalid rules return ErrInvalidRule.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	rules := append([]Rule(nil), cfg.Rules...)
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	e := &Engine{
		series:    cfg.Series,
		stations:  cfg.Stations,
		notifiers: cfg.Notifiers,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		timeout:   cfg.NotifyTimeout,
		store:     NewStore(SeedAlert(cfg.Clock.Now())),
		rules:     rules,
		active:    make(map[string]string),
		lastFire:  make(map[string]time.Time),
	}
	observability.AlertsActive.Set(float64(e.store.ActiveCount()))
	return e, nil
}

// SetRules replaces the rule set after validation. Alerts held by removed rules
// resolve on the next evaluation.
func (e *Engine) SetRules(rules []Rule) error {
	rules = append([]Rule(nil), rules...)
	if err := ValidateRules(rules); err != nil {
		return err
	}
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
	e.logger.Info("alert rules updated", zap.Int("rules", len(rules)))
	return nil
}

// Rules returns a copy of the current rule set.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Rule(nil), e.rules...)
}

// List returns alerts in region (all regions when empty) raised at or after since, newest first.
func (e *Engine) List(region string, since time.Time) []models.AlertRecord {
	var keep func(models.AlertRecord) bool
	if region != "" {
		keep = func(r models.AlertRecord) bool { return e.stations.InRegion(r.StationID, region) }
	}
	return e.store.List(since, keep)
}

// Evaluate runs every rule against every station carrying its pollutant, records
// fired and resolved alerts and notifies. It returns the events produced.
func (e *Engine) Evaluate(ctx context.Context) []Event {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	now := e.clock.Now().UTC()
	e.mu.Lock()
	rules := append([]Rule(nil), e.rules...)
	e.mu.Unlock()

	var events []Event
	evaluated := make(map[string]struct{})
	for _, rule := range rules {
		for _, st := range e.stations.All() {
			if !hasSensor(st, rule.Pollutant) {
				continue
			}
			key := rule.Name + ":" + st.StationID
			evaluated[key] = struct{}{}
			observed := e.observe(rule, st.StationID)
			if ev, ok := e.apply(rule, st.StationID, key, observed, now); ok {
				events = append(events, ev)
			}
		}
	}
	events = append(events, e.resolveOrphans(evaluated, now)...)

	observability.AlertsActive.Set(float64(e.store.ActiveCount()))
	if len(events) > 0 {
		e.dispatch(ctx, events)
	}
	return events
}

func (e *Engine) observe(rule Rule, stationID string) float64 {
	if rule.Mode != ModeRollingAvg {
		pts := e.series.Timeseries(stationID, rule.Pollutant, 0)
		if len(pts) == 0 {
			return 0
		}
		return pts[len(pts)-1].Value
	}
	pts := e.series.Timeseries(stationID, rule.Pollutant, rule.WindowHours-1)
	if len(pts) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pts {
		sum += p.Value
	}
	return round2(sum / float64(len(pts)))
}

func (e *Engine) apply(rule Rule, stationID, key string, observed float64, now time.Time) (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	activeID, isActive := e.active[key]
	fires := observed > rule.Threshold

	switch {
	case fires && !isActive:
		if last, ok := e.lastFire[key]; ok && now.Sub(last) < rule.Cooldown {
			return Event{}, false
		}
		rec := models.AlertRecord{
			AlertID:       "A-" + uuid.NewString(),
			StationID:     stationID,
			Pollutant:     rule.Pollutant,
			Threshold:     rule.Threshold,
			ObservedValue: observed,
			Timestamp:     now,
			Status:        models.AlertActive,
			Rule:          rule.Name,
		}
		e.store.Add(rec)
		e.active[key] = rec.AlertID
		e.lastFire[key] = now
		observability.AlertsFiredTotal.WithLabelValues(rule.Pollutant).Inc()
		e.logger.Warn("alert fired",
			zap.String("rule", rule.Name),
			zap.String("station_id", stationID),
			zap.String("pollutant", rule.Pollutant),
			zap.Float64("observed", observed),
			zap.Float64("threshold", rule.Threshold),
		)
		return newEvent(EventFired, rec, now), true

	case !fires && isActive:
		delete(e.active, key)
		rec, ok := e.store.Resolve(activeID, now)
		if !ok {
			return Event{}, false
		}
		observability.AlertsResolvedTotal.Inc()
		e.logger.Info("alert resolved",
			zap.String("rule", rule.Name),
			zap.String("station_id", stationID),
			zap.String("alert_id", activeID),
		)
		return newEvent(EventResolved, rec, now), true
	}
	return Event{}, false
}

// resolveOrphans resolves alerts whose rule or station no longer exists.
func (e *Engine) resolveOrphans(evaluated map[string]struct{}, now time.Time) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var events []Event
	for key, id := range e.active {
		if _, ok := evaluated[key]; ok {
			continue
		}
		delete(e.active, key)
		if rec, ok := e.store.Resolve(id, now); ok {
			observability.AlertsResolvedTotal.Inc()
			events = append(events, newEvent(EventResolved, rec, now))
		}
	}
	return events
}

// dispatch delivers events to every notifier concurrently. Failures are logged and counted.
func (e *Engine) dispatch(ctx context.Context, events []Event) {
	e.mu.Lock()
	notifiers := append([]Notifier(nil), e.notifiers...)
	e.mu.Unlock()
	if len(notifiers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var g errgroup.Group
	for _, n := range notifiers {
		g.Go(func() error {
			for _, ev := range events {
				start := time.Now()
				err := n.Notify(ctx, ev)
				observability.NotificationDurationSeconds.WithLabelValues(n.Name()).Observe(time.Since(start).Seconds())
				if err != nil {
					observability.NotificationsTotal.WithLabelValues(n.Name(), "error").Inc()
					e.logger.Error("alert notification failed",
						zap.String("channel", n.Name()),
						zap.String("event_id", ev.EventID),
						zap.Error(err),
					)
					continue
				}
				observability.NotificationsTotal.WithLabelValues(n.Name(), "success").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
}

func newEvent(typ string, rec models.AlertRecord, now time.Time) Event {
	return Event{
		EventID:    "evt-" + ulid.Make().String(),
		Type:       typ,
		Alert:      rec,
		OccurredAt: now,
	}
}

func hasSensor(st models.Station, pollutant string) bool {
	if len(st.Sensors) == 0 {
		return true
	}
	for _, s := range st.Sensors {
		if s.Pollutant == pollutant {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
