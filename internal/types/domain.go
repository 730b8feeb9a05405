package types

import "time"

// Location is immutable reference data for a monitored tourism site.
type Location struct {
	ID                   int64   `json:"id"`
	Name                 string  `json:"name"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	Capacity             int     `json:"capacity"`
	AverageDailyFootfall int     `json:"average_daily_footfall"`
}

// FeatureSample is one hourly historical record for a location. The series is
// append-only and unique per (location, timestamp).
type FeatureSample struct {
	LocationID            int64     `json:"location_id"`
	Timestamp             time.Time `json:"timestamp"`
	WeatherScore          float64   `json:"weather_score"`
	HolidayFlag           bool      `json:"holiday_flag"`
	WeekendFlag           bool      `json:"weekend_flag"`
	SocialMediaSpikeIndex float64   `json:"social_media_spike_index"`
	TrafficIndex          float64   `json:"traffic_index"`
	ActualFootfall        int       `json:"actual_footfall"`
}

// Provenance records which tier produced a signal and why higher-priority
// tiers did not.
type Provenance struct {
	Source       SignalSource `json:"source"`
	SourceReason string       `json:"source_reason,omitempty"`
	FetchedAt    time.Time    `json:"fetched_at"`
}

// Stamp overwrites the provenance fields. Tier chains call it exactly once,
// on the signal they return.
func (p *Provenance) Stamp(source SignalSource, reason string, at time.Time) {
	p.Source = source
	p.SourceReason = reason
	p.FetchedAt = at
}

// EnvironmentSignal bundles weather and air quality for a location.
type EnvironmentSignal struct {
	Provenance

	Condition            string  `json:"condition"`
	Description          string  `json:"description"`
	TemperatureC         float64 `json:"temperature_c"`
	HumidityPct          float64 `json:"humidity_pct"`
	WindSpeedMPS         float64 `json:"wind_speed_mps"`
	RainfallMM1h         float64 `json:"rainfall_mm_1h"`
	WeatherSeverityIndex float64 `json:"weather_severity_index"`

	AQIIndex      int                `json:"aqi_index"`
	AQICategory   string             `json:"aqi_category"`
	AQINormalized float64            `json:"aqi_normalized"`
	AQIComponents map[string]float64 `json:"aqi_components,omitempty"`

	EnvironmentalRiskIndex float64 `json:"environmental_risk_index"`
}

// TrafficSignal is the representative road-congestion reading for a location.
type TrafficSignal struct {
	Provenance

	NormalizedIndex         float64 `json:"normalized_index"`
	CongestionRatio         float64 `json:"congestion_ratio"`
	DurationSeconds         float64 `json:"duration_seconds"`
	BaselineDurationSeconds float64 `json:"baseline_duration_seconds"`
	DistanceMeters          float64 `json:"distance_meters"`

	// Populated by the live tier.
	Aggregation  string    `json:"aggregation,omitempty"`
	ProbeCount   int       `json:"probe_count,omitempty"`
	ProbeIndices []float64 `json:"probe_indices,omitempty"`
	AverageIndex float64   `json:"average_index,omitempty"`

	// Populated by the LLM tier.
	ConfidenceScore float64 `json:"confidence_score,omitempty"`
}

// FeatureVector is the predictor input.
type FeatureVector struct {
	LocationID            int64   `json:"location_id"`
	WeatherScore          float64 `json:"weather_score"`
	HolidayFlag           bool    `json:"holiday_flag"`
	WeekendFlag           bool    `json:"weekend_flag"`
	SocialMediaSpikeIndex float64 `json:"social_media_spike_index"`
	TrafficIndex          float64 `json:"traffic_index"`
	RollingMean           float64 `json:"rolling_mean"`
}

// Prediction is the predictor output.
type Prediction struct {
	PredictedFootfall float64 `json:"predicted_footfall"`
	ConfidenceScore   float64 `json:"confidence_score"`
	ModelVersion      string  `json:"model_version"`
}

// RiskSnapshot is the immutable persisted record of one evaluation.
type RiskSnapshot struct {
	ID                     int64     `json:"id"`
	Timestamp              time.Time `json:"timestamp"`
	LocationID             int64     `json:"location_id"`
	PredictedFootfall      float64   `json:"predicted_footfall"`
	ConfidenceScore        float64   `json:"confidence_score"`
	RiskScore              float64   `json:"risk_score"`
	SustainabilityScore    float64   `json:"sustainability_score"`
	WeatherScore           float64   `json:"weather_score"`
	TrafficIndex           float64   `json:"traffic_index"`
	SocialMediaSpikeIndex  float64   `json:"social_media_spike_index"`
	AQIIndex               float64   `json:"aqi_index"`
	WeatherCondition       *string   `json:"weather_condition"`
	EnvironmentalRiskIndex float64   `json:"environmental_risk_index"`
}

// FactorBreakdown holds the four weighted risk components scaled to 0-100.
type FactorBreakdown struct {
	CrowdLoad          float64 `json:"crowd_load"`
	WeatherEnvironment float64 `json:"weather_environment"`
	Traffic            float64 `json:"traffic"`
	SocialSignal       float64 `json:"social_signal"`
}

// Value returns the component for d.
func (b FactorBreakdown) Value(d Driver) float64 {
	switch d {
	case DriverCrowdLoad:
		return b.CrowdLoad
	case DriverWeatherEnvironment:
		return b.WeatherEnvironment
	case DriverTraffic:
		return b.Traffic
	case DriverSocialSignal:
		return b.SocialSignal
	}
	return 0
}

// DominantDriver is the largest component of a FactorBreakdown.
type DominantDriver struct {
	Key   Driver  `json:"key"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// RiskAssessment is the fused view returned to callers. It is never persisted
// as-is; see RiskSnapshot.
type RiskAssessment struct {
	LocationID   int64   `json:"location_id"`
	LocationName string  `json:"location_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Capacity     int     `json:"capacity"`

	PredictedFootfall float64 `json:"predicted_footfall"`
	ConfidenceScore   float64 `json:"confidence_score"`
	ModelVersion      string  `json:"model_version"`

	WeatherScore          float64      `json:"weather_score"`
	WeatherSource         SignalSource `json:"weather_source"`
	TrafficIndex          float64      `json:"traffic_index"`
	TrafficSource         SignalSource `json:"traffic_source"`
	SocialMediaSpikeIndex float64      `json:"social_media_spike_index"`
	AQIIndex              float64      `json:"aqi_index"`

	RiskScore              float64         `json:"risk_score"`
	SustainabilityScore    float64         `json:"sustainability_score"`
	RiskLevel              RiskLevel       `json:"risk_level"`
	CapacityUtilizationPct float64         `json:"capacity_utilization_pct"`
	FactorBreakdown        FactorBreakdown `json:"factor_breakdown"`
	DominantDriver         DominantDriver  `json:"dominant_driver"`
	PlainSummary           string          `json:"plain_summary"`

	Environment   *EnvironmentSignal `json:"environment"`
	TrafficDetail *TrafficSignal     `json:"traffic_detail"`

	DegradedMode    bool      `json:"degraded_mode"`
	DegradedReasons []string  `json:"degraded_reasons,omitempty"`
	Language        string    `json:"language"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}

// AlternateLocation is a ranked diversion candidate in a MitigationPlan.
type AlternateLocation struct {
	LocationID int64   `json:"location_id"`
	Name       string  `json:"name"`
	RiskScore  float64 `json:"risk_score"`
	DistanceKM float64 `json:"distance_km"`
}

// MitigationPlan is the operator-facing recommendation for one location.
type MitigationPlan struct {
	LocationID         int64               `json:"location_id"`
	LocationName       string              `json:"location_name"`
	RiskScore          float64             `json:"risk_score"`
	RiskLevel          RiskLevel           `json:"risk_level"`
	Language           string              `json:"language"`
	Advisory           string              `json:"advisory"`
	Actions            []string            `json:"actions"`
	AlternateLocations []AlternateLocation `json:"alternate_locations"`
}
