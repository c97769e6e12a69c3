// Package mockdata produces the synthetic air-quality readings behind the API.
//
// Values are pseudo-random but reproducible: every series is seeded from the
// configured seed, the subject (station, pollutant, region) and the hour the
// value belongs to. Two requests in the same hour therefore see the same
// dataset, which keeps cached and freshly generated responses identical.
package mockdata

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/validation"
)

// ModelVersion is stamped on every forecast point.
const ModelVersion = "mock-v0.3"

const ciHalfWidth = 8.0

// RiskPollutants are the pollutants scored in a risk summary.
var RiskPollutants = []string{"PM2.5", "PM10", "NO2", "O3"}

// AttributionSources are the emission sources in an attribution breakdown.
var AttributionSources = []string{"Traffic", "Industry", "Construction", "Residential", "Natural"}

// Risk category boundaries on the 0-100 score.
const (
	RiskLowMax      = 33.0
	RiskModerateMax = 66.0
)

// Generator builds forecasts, timeseries, risk scores and attribution breakdowns.
type Generator struct {
	clock clockwork.Clock
	seed  uint64
}

// NewGenerator returns a Generator. A nil clock uses the real clock.
func NewGenerator(clock clockwork.Clock, seed uint64) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{clock: clock, seed: seed}
}

// Now returns the generator's current time in UTC.
func (g *Generator) Now() time.Time {
	return g.clock.Now().UTC()
}

// Hour returns the start of the current hour in UTC. Generated series are anchored on it.
func (g *Generator) Hour() time.Time {
	return g.Now().Truncate(time.Hour)
}

// Forecasts returns hourly forecast points for the next hours, starting at the current hour.
func (g *Generator) Forecasts(stationID, pollutant string, hours int) []models.ForecastPoint {
	issued := g.Hour()
	r := g.rand(issued, "forecast", stationID, pollutant)
	base := 30.0
	if validation.IsParticulate(pollutant) {
		base = 80
	}
	out := make([]models.ForecastPoint, 0, hours)
	for h := 0; h < hours; h++ {
		noise := (math.Sin(float64(h)/6.0) + r.Float64()*0.6) * 10
		val := math.Max(0, round2(base+noise))
		lower := math.Max(0, round2(val-ciHalfWidth))
		upper := round2(val + ciHalfWidth)
		out = append(out, models.ForecastPoint{
			Timestamp:    issued.Add(time.Duration(h) * time.Hour),
			Value:        val,
			CILower:      &lower,
			CIUpper:      &upper,
			ModelVersion: ModelVersion,
		})
	}
	return out
}

// Timeseries returns hours+1 hourly observations ending at the current hour, oldest first.
// Each point is seeded by its own timestamp so overlapping windows agree.
func (g *Generator) Timeseries(stationID, pollutant string, hours int) []models.TimeSeriesPoint {
	end := g.Hour()
	out := make([]models.TimeSeriesPoint, 0, hours+1)
	for h := hours; h >= 0; h-- {
		ts := end.Add(-time.Duration(h) * time.Hour)
		r := g.rand(ts, "timeseries", stationID, pollutant)
		out = append(out, models.TimeSeriesPoint{
			Timestamp: ts,
			Value:     round2(40 + r.Float64()*80),
			QAFlag:    "good",
		})
	}
	return out
}

// RiskScores returns one score per RiskPollutants entry for the region.
func (g *Generator) RiskScores(region string) []models.RiskScore {
	r := g.rand(g.Hour(), "risk", region)
	out := make([]models.RiskScore, 0, len(RiskPollutants))
	for _, p := range RiskPollutants {
		score := round2(10 + r.Float64()*80)
		threshold := 40.0
		if validation.IsParticulate(p) {
			threshold = 50
		}
		out = append(out, models.RiskScore{
			Pollutant:     p,
			Score:         score,
			Category:      RiskCategory(score),
			ThresholdUsed: threshold,
		})
	}
	return out
}

// RiskSummary wraps RiskScores with the region and generation time.
func (g *Generator) RiskSummary(region string) models.RiskSummaryResponse {
	return models.RiskSummaryResponse{
		Region:     region,
		Timestamp:  g.Now(),
		RiskScores: g.RiskScores(region),
	}
}

// RiskCategory maps a 0-100 score to Low, Moderate or High.
func RiskCategory(score float64) string {
	switch {
	case score < RiskLowMax:
		return "Low"
	case score < RiskModerateMax:
		return "Moderate"
	default:
		return "High"
	}
}

// Attribution splits the pollutant load across AttributionSources.
// value carries the raw source weight; contribution_percent its share of the total.
func (g *Generator) Attribution(stationID, pollutant string) models.AttributionResponse {
	r := g.rand(g.Hour(), "attribution", stationID, pollutant)
	weights := make([]float64, len(AttributionSources))
	total := 0.0
	for i := range weights {
		weights[i] = 10 + r.Float64()*30
		total += weights[i]
	}
	breakdown := make([]models.AttributionBreakdown, 0, len(weights))
	for i, w := range weights {
		breakdown = append(breakdown, models.AttributionBreakdown{
			Source:              AttributionSources[i],
			ContributionPercent: round2(w / total * 100),
			Value:               round2(w),
		})
	}
	return models.AttributionResponse{
		Pollutant: pollutant,
		Total:     round2(total),
		Breakdown: breakdown,
	}
}

func (g *Generator) rand(bucket time.Time, parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return rand.New(rand.NewPCG(g.seed, h.Sum64()^uint64(bucket.Unix())))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
