package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/air-quality-service/internal/mockdata"
	"github.com/kjstillabower/air-quality-service/internal/models"
)

// fixedSeries returns a constant reading per pollutant, settable between evaluations.
type fixedSeries struct {
	mu     sync.Mutex
	values map[string]float64
	hours  []int
}

func (f *fixedSeries) set(pollutant string, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[pollutant] = v
}

func (f *fixedSeries) Timeseries(stationID, pollutant string, hours int) []models.TimeSeriesPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hours = append(f.hours, hours)
	pts := make([]models.TimeSeriesPoint, hours+1)
	for i := range pts {
		pts[i] = models.TimeSeriesPoint{Value: f.values[pollutant], QAFlag: "good"}
	}
	return pts
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

var testStart = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, rules []Rule) (*Engine, *fixedSeries, *clockwork.FakeClock, *recordingNotifier) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	series := &fixedSeries{values: map[string]float64{}}
	rec := &recordingNotifier{}
	e, err := NewEngine(Config{
		Series:    series,
		Stations:  mockdata.NewCatalog(mockdata.DefaultStations()),
		Rules:     rules,
		Notifiers: []Notifier{rec},
		Clock:     clock,
	})
	require.NoError(t, err)
	return e, series, clock, rec
}

func TestEngine_SeededAlert(t *testing.T) {
	e, _, _, _ := newTestEngine(t, nil)

	got := e.List("", time.Time{})
	require.Len(t, got, 1)
	a := got[0]
	assert.Equal(t, "A-001", a.AlertID)
	assert.Equal(t, "ST-DEL-001", a.StationID)
	assert.Equal(t, "PM2.5", a.Pollutant)
	assert.Equal(t, 60.0, a.Threshold)
	assert.Equal(t, 82.0, a.ObservedValue)
	assert.Equal(t, models.AlertActive, a.Status)
}

func TestEngine_ThresholdFiresPerStationWithSensor(t *testing.T) {
	e, series, _, rec := newTestEngine(t, []Rule{{Name: "pm", Pollutant: "pm2.5", Threshold: 60}})
	series.set("PM2.5", 75)

	events := e.Evaluate(context.Background())

	// both stations carry a PM2.5 sensor
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, EventFired, ev.Type)
		assert.Equal(t, "pm", ev.Alert.Rule)
		assert.Equal(t, 75.0, ev.Alert.ObservedValue)
		assert.Contains(t, ev.EventID, "evt-")
	}
	assert.Len(t, rec.events, 2)
	assert.Len(t, e.List("", time.Time{}), 3)
}

func TestEngine_OnlyStationsWithSensor(t *testing.T) {
	e, series, _, _ := newTestEngine(t, []Rule{{Name: "no2", Pollutant: "NO2", Threshold: 40}})
	series.set("NO2", 50)

	events := e.Evaluate(context.Background())

	require.Len(t, events, 1)
	assert.Equal(t, "ST-DEL-001", events[0].Alert.StationID)
}

func TestEngine_StaysActiveThenResolves(t *testing.T) {
	e, series, clock, _ := newTestEngine(t, []Rule{{Name: "no2", Pollutant: "NO2", Threshold: 40}})
	series.set("NO2", 50)
	fired := e.Evaluate(context.Background())
	require.Len(t, fired, 1)

	clock.Advance(time.Hour)
	assert.Empty(t, e.Evaluate(context.Background()), "still above threshold: no new alert")

	series.set("NO2", 10)
	clock.Advance(time.Hour)
	resolved := e.Evaluate(context.Background())

	require.Len(t, resolved, 1)
	assert.Equal(t, EventResolved, resolved[0].Type)
	assert.Equal(t, fired[0].Alert.AlertID, resolved[0].Alert.AlertID)
	assert.Equal(t, models.AlertResolved, resolved[0].Alert.Status)
	require.NotNil(t, resolved[0].Alert.ResolvedAt)
	assert.Equal(t, testStart.Add(2*time.Hour), *resolved[0].Alert.ResolvedAt)
}

func TestEngine_CooldownSuppressesRefire(t *testing.T) {
	e, series, clock, _ := newTestEngine(t, []Rule{{Name: "no2", Pollutant: "NO2", Threshold: 40, Cooldown: 30 * time.Minute}})
	series.set("NO2", 50)
	require.Len(t, e.Evaluate(context.Background()), 1)

	series.set("NO2", 10)
	clock.Advance(5 * time.Minute)
	require.Len(t, e.Evaluate(context.Background()), 1) // resolved

	series.set("NO2", 50)
	clock.Advance(5 * time.Minute)
	assert.Empty(t, e.Evaluate(context.Background()), "within cooldown")

	clock.Advance(30 * time.Minute)
	assert.Len(t, e.Evaluate(context.Background()), 1)
}

func TestEngine_RollingAverageUsesWindow(t *testing.T) {
	e, series, _, _ := newTestEngine(t, []Rule{{Name: "avg", Pollutant: "NO2", Threshold: 40, Mode: ModeRollingAvg, WindowHours: 6}})
	series.set("NO2", 41)

	events := e.Evaluate(context.Background())

	require.Len(t, events, 1)
	assert.Equal(t, 41.0, events[0].Alert.ObservedValue)
	assert.Contains(t, series.hours, 5, "6-hour window asks for 5 hours back plus now")
}

func TestEngine_SetRulesResolvesRemovedRule(t *testing.T) {
	e, series, _, _ := newTestEngine(t, []Rule{{Name: "no2", Pollutant: "NO2", Threshold: 40}})
	series.set("NO2", 50)
	require.Len(t, e.Evaluate(context.Background()), 1)

	require.NoError(t, e.SetRules(nil))
	events := e.Evaluate(context.Background())

	require.Len(t, events, 1)
	assert.Equal(t, EventResolved, events[0].Type)
}

func TestEngine_SetRulesRejectsInvalid(t *testing.T) {
	e, _, _, _ := newTestEngine(t, DefaultRules())

	err := e.SetRules([]Rule{{Name: "x", Pollutant: "XYZ", Threshold: 1}})

	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Len(t, e.Rules(), 2, "previous rules kept")
}

func TestEngine_NotifierErrorDoesNotBlockOthers(t *testing.T) {
	series := &fixedSeries{values: map[string]float64{}}
	failing := &recordingNotifier{err: errors.New("down")}
	rec := &recordingNotifier{}
	e, err := NewEngine(Config{
		Series:    series,
		Stations:  mockdata.NewCatalog(mockdata.DefaultStations()),
		Rules:     []Rule{{Name: "no2", Pollutant: "NO2", Threshold: 40}},
		Notifiers: []Notifier{failing, rec},
		Clock:     clockwork.NewFakeClockAt(testStart),
	})
	require.NoError(t, err)
	series.set("NO2", 50)

	e.Evaluate(context.Background())

	assert.Len(t, rec.events, 1)
	assert.Len(t, failing.events, 1)
}

func TestEngine_ListFilters(t *testing.T) {
	e, series, clock, _ := newTestEngine(t, []Rule{{Name: "no2", Pollutant: "NO2", Threshold: 40}})
	clock.Advance(time.Hour)
	series.set("NO2", 50)
	e.Evaluate(context.Background())

	all := e.List("delhi ncr", time.Time{})
	require.Len(t, all, 2)
	assert.Equal(t, "no2", all[0].Rule, "newest first")

	recent := e.List("", testStart.Add(30*time.Minute))
	require.Len(t, recent, 1)
	assert.Equal(t, "no2", recent[0].Rule)

	assert.Empty(t, e.List("Mumbai", time.Time{}))
}
