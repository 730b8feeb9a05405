package types

import "time"

// ForecastPoint is one projected hour of footfall.
type ForecastPoint struct {
	Timestamp         time.Time `json:"timestamp"`
	HourOffset        int       `json:"hour_offset"`
	PredictedFootfall float64   `json:"predicted_footfall"`
	ConfidenceScore   float64   `json:"confidence_score"`
	Capacity          int       `json:"capacity"`
	// Fallback is set when the predictor failed and the projection rule was
	// used instead.
	Fallback bool `json:"fallback"`
}

// SustainabilityPoint pairs a forecast hour with its sustainability score.
type SustainabilityPoint struct {
	Timestamp           time.Time `json:"timestamp"`
	SustainabilityScore float64   `json:"sustainability_score"`
}

// CorrelationSample is one historical row of the traffic-footfall dataset.
type CorrelationSample struct {
	Timestamp             time.Time `json:"timestamp"`
	TrafficIndex          float64   `json:"traffic_index"`
	SocialMediaSpikeIndex float64   `json:"social_media_spike_index"`
	ActualFootfall        int       `json:"actual_footfall"`
}

// PlainExplanation restates the drivers of the current assessment.
type PlainExplanation struct {
	Summary         string             `json:"summary"`
	DominantDriver  DominantDriver     `json:"dominant_driver"`
	FactorBreakdown FactorBreakdown    `json:"factor_breakdown"`
	Environment     *EnvironmentSignal `json:"environment"`
}

// LocationAnalytics is the per-location analytics view.
type LocationAnalytics struct {
	Location               Location              `json:"location"`
	Language               string                `json:"language"`
	CurrentRisk            *RiskAssessment       `json:"current_risk"`
	Forecast               []ForecastPoint       `json:"forecast"`
	SustainabilityTimeline []SustainabilityPoint `json:"sustainability_timeline"`
	TrafficCorrelation     []CorrelationSample   `json:"traffic_correlation"`
	PlainExplanation       PlainExplanation      `json:"plain_explanation"`
}

// TrendSample is one historical row joined with its location's capacity.
type TrendSample struct {
	Timestamp             time.Time `json:"timestamp"`
	LocationID            int64     `json:"location_id"`
	LocationName          string    `json:"location_name"`
	Capacity              int       `json:"capacity"`
	WeatherScore          float64   `json:"weather_score"`
	TrafficIndex          float64   `json:"traffic_index"`
	SocialMediaSpikeIndex float64   `json:"social_media_spike_index"`
	ActualFootfall        int       `json:"actual_footfall"`
}

// TrendPoint is a risk score recomputed from observed footfall.
type TrendPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	LocationID   int64     `json:"location_id"`
	LocationName string    `json:"location_name"`
	RiskScore    float64   `json:"risk_score"`
	RiskLevel    RiskLevel `json:"risk_level"`
}

// PlainLanguageCard is a short headline for one of the riskiest locations.
type PlainLanguageCard struct {
	LocationID   int64     `json:"location_id"`
	LocationName string    `json:"location_name"`
	Summary      string    `json:"summary"`
	RiskLevel    RiskLevel `json:"risk_level"`
	CrowdChance  float64   `json:"crowd_chance"`
}
