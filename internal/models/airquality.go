package models

import "time"

// Sensor describes one instrument mounted at a station.
type Sensor struct {
	Pollutant string `json:"pollutant" yaml:"pollutant"`
	Unit      string `json:"unit" yaml:"unit"`
	SensorID  string `json:"sensor_id" yaml:"sensor_id"`
}

type Station struct {
	StationID string   `json:"station_id" yaml:"station_id"`
	Name      string   `json:"name" yaml:"name"`
	Lat       float64  `json:"lat" yaml:"lat"`
	Lon       float64  `json:"lon" yaml:"lon"`
	Region    string   `json:"region" yaml:"region"`
	Tags      []string `json:"tags" yaml:"tags"`
	Sensors   []Sensor `json:"sensors,omitempty" yaml:"sensors"`
}

type ForecastPoint struct {
	Timestamp    time.Time `json:"ts"`
	Value        float64   `json:"value"`
	CILower      *float64  `json:"ci_lower,omitempty"`
	CIUpper      *float64  `json:"ci_upper,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
}

type ForecastResponse struct {
	StationID string          `json:"station_id"`
	Pollutant string          `json:"pollutant"`
	Units     string          `json:"units"`
	Horizon   string          `json:"horizon"`
	Forecasts []ForecastPoint `json:"forecasts"`
}

type TimeSeriesPoint struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
	QAFlag    string    `json:"qa_flag"`
}

type TimeSeriesResponse struct {
	StationID string            `json:"station_id"`
	Pollutant string            `json:"pollutant"`
	Units     string            `json:"units"`
	Series    []TimeSeriesPoint `json:"series"`
}

// RiskScore is a 0-100 score for one pollutant in a region.
type RiskScore struct {
	Pollutant     string  `json:"pollutant"`
	Score         float64 `json:"score_0_100"`
	Category      string  `json:"category"`
	ThresholdUsed float64 `json:"threshold_used"`
}

type RiskSummaryResponse struct {
	Region     string      `json:"region"`
	Timestamp  time.Time   `json:"timestamp"`
	RiskScores []RiskScore `json:"risk_scores"`
}

// Top returns the highest scoring pollutant. ok is false when there are no scores.
func (r RiskSummaryResponse) Top() (RiskScore, bool) {
	if len(r.RiskScores) == 0 {
		return RiskScore{}, false
	}
	top := r.RiskScores[0]
	for _, s := range r.RiskScores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	return top, true
}

type AttributionBreakdown struct {
	Source              string  `json:"source"`
	ContributionPercent float64 `json:"contribution_percent"`
	Value               float64 `json:"value"`
}

type AttributionResponse struct {
	Pollutant string                 `json:"pollutant"`
	Total     float64                `json:"total"`
	Breakdown []AttributionBreakdown `json:"breakdown"`
}

// Alert statuses.
const (
	AlertActive   = "active"
	AlertResolved = "resolved"
)

type AlertRecord struct {
	AlertID       string     `json:"alert_id"`
	StationID     string     `json:"station_id"`
	Pollutant     string     `json:"pollutant"`
	Threshold     float64    `json:"threshold"`
	ObservedValue float64    `json:"observed_value"`
	Timestamp     time.Time  `json:"ts"`
	Status        string     `json:"status"`
	Rule          string     `json:"rule,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// WebhookSimulateRequest is the body accepted by the webhook simulator.
type WebhookSimulateRequest struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

type WebhookEvent struct {
	EventID    string                 `json:"event_id"`
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	ReceivedAt time.Time              `json:"received_at"`
}
