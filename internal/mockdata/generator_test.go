package mockdata

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.March, 10, 14, 37, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	return NewGenerator(clockwork.NewFakeClockAt(fixedNow), 42)
}

func TestForecasts_ShapeAndBounds(t *testing.T) {
	g := newTestGenerator()

	pts := g.Forecasts("ST-DEL-001", "PM2.5", 24)
	require.Len(t, pts, 24)

	start := fixedNow.Truncate(time.Hour)
	for i, p := range pts {
		assert.Equal(t, start.Add(time.Duration(i)*time.Hour), p.Timestamp)
		assert.GreaterOrEqual(t, p.Value, 0.0)
		require.NotNil(t, p.CILower)
		require.NotNil(t, p.CIUpper)
		assert.InDelta(t, p.Value+ciHalfWidth, *p.CIUpper, 0.011)
		assert.GreaterOrEqual(t, *p.CILower, 0.0)
		assert.Equal(t, ModelVersion, p.ModelVersion)
	}
}

func TestForecasts_BaseDependsOnPollutant(t *testing.T) {
	g := newTestGenerator()

	// noise is within [-10, 16], so particulate values stay above 64 and gases at or below 46
	for _, p := range g.Forecasts("ST-DEL-001", "PM10", 72) {
		assert.Greater(t, p.Value, 64.0)
	}
	for _, p := range g.Forecasts("ST-DEL-001", "NO2", 72) {
		assert.LessOrEqual(t, p.Value, 46.0)
	}
}

func TestForecasts_LongerHorizonExtendsShorter(t *testing.T) {
	g := newTestGenerator()

	short := g.Forecasts("ST-DEL-001", "PM2.5", 24)
	long := g.Forecasts("ST-DEL-001", "PM2.5", 168)
	require.Len(t, long, 168)
	assert.Equal(t, short, long[:24])
}

func TestTimeseries_InclusiveWindowOldestFirst(t *testing.T) {
	g := newTestGenerator()

	pts := g.Timeseries("ST-DEL-001", "PM2.5", 48)
	require.Len(t, pts, 49)

	end := fixedNow.Truncate(time.Hour)
	assert.Equal(t, end.Add(-48*time.Hour), pts[0].Timestamp)
	assert.Equal(t, end, pts[48].Timestamp)
	for _, p := range pts {
		assert.GreaterOrEqual(t, p.Value, 40.0)
		assert.LessOrEqual(t, p.Value, 120.0)
		assert.Equal(t, "good", p.QAFlag)
	}
}

func TestTimeseries_OverlappingWindowsAgree(t *testing.T) {
	g := newTestGenerator()

	day := g.Timeseries("ST-DEL-001", "PM2.5", 24)
	twoDays := g.Timeseries("ST-DEL-001", "PM2.5", 48)
	assert.Equal(t, day, twoDays[24:])
}

func TestTimeseries_StableWithinHourChangesAcrossHours(t *testing.T) {
	clock := clockwork.NewFakeClockAt(fixedNow)
	g := NewGenerator(clock, 42)

	first := g.RiskScores(DefaultRegion)
	clock.Advance(10 * time.Minute)
	assert.Equal(t, first, g.RiskScores(DefaultRegion))

	clock.Advance(time.Hour)
	assert.NotEqual(t, first, g.RiskScores(DefaultRegion))
}

func TestGenerator_SeedChangesData(t *testing.T) {
	a := NewGenerator(clockwork.NewFakeClockAt(fixedNow), 1)
	b := NewGenerator(clockwork.NewFakeClockAt(fixedNow), 2)
	assert.NotEqual(t, a.Timeseries("ST-DEL-001", "PM2.5", 5), b.Timeseries("ST-DEL-001", "PM2.5", 5))
}

func TestRiskScores(t *testing.T) {
	g := newTestGenerator()

	scores := g.RiskScores(DefaultRegion)
	require.Len(t, scores, len(RiskPollutants))
	for i, s := range scores {
		assert.Equal(t, RiskPollutants[i], s.Pollutant)
		assert.GreaterOrEqual(t, s.Score, 10.0)
		assert.LessOrEqual(t, s.Score, 90.0)
		assert.Equal(t, RiskCategory(s.Score), s.Category)
	}
	assert.Equal(t, 50.0, scores[0].ThresholdUsed)
	assert.Equal(t, 40.0, scores[2].ThresholdUsed)
}

func TestRiskCategory(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{10, "Low"},
		{32.99, "Low"},
		{33, "Moderate"},
		{65.99, "Moderate"},
		{66, "High"},
		{90, "High"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RiskCategory(tc.score), "score %v", tc.score)
	}
}

func TestAttribution_PercentagesSumToHundred(t *testing.T) {
	g := newTestGenerator()

	attr := g.Attribution("ST-DEL-001", "PM2.5")
	assert.Equal(t, "PM2.5", attr.Pollutant)
	require.Len(t, attr.Breakdown, len(AttributionSources))

	pct, raw := 0.0, 0.0
	for i, b := range attr.Breakdown {
		assert.Equal(t, AttributionSources[i], b.Source)
		assert.GreaterOrEqual(t, b.Value, 10.0)
		assert.LessOrEqual(t, b.Value, 40.0)
		pct += b.ContributionPercent
		raw += b.Value
	}
	assert.InDelta(t, 100, pct, 0.05)
	assert.InDelta(t, attr.Total, raw, 0.05)
}
