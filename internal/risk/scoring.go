package risk

import (
	"math"

	"crowdrisk/internal/numeric"
	"crowdrisk/internal/types"
)

// Risk model weights.
const (
	WeightCrowdLoad = 0.4
	WeightWeather   = 0.2
	WeightTraffic   = 0.2
	WeightSocial    = 0.2
)

// Level thresholds. RED is exclusive at 70, YELLOW inclusive at 40.
const (
	RedThreshold    = 70.0
	YellowThreshold = 40.0
)

// Inputs are the normalized model inputs of one evaluation.
type Inputs struct {
	PredictedFootfall     float64
	Capacity              int
	WeatherScore          float64
	TrafficIndex          float64
	SocialMediaSpikeIndex float64
}

// CrowdRatio is predicted footfall over capacity, 0 when capacity is unset.
func (in Inputs) CrowdRatio() float64 {
	if in.Capacity <= 0 {
		return 0
	}
	return in.PredictedFootfall / float64(in.Capacity)
}

// Score returns the 0-100 risk score rounded to 2 decimals.
func Score(in Inputs) float64 {
	weighted := in.CrowdRatio()*WeightCrowdLoad +
		in.WeatherScore*WeightWeather +
		in.TrafficIndex*WeightTraffic +
		in.SocialMediaSpikeIndex*WeightSocial
	return numeric.Round(numeric.Clamp01(weighted)*100, 2)
}

// Sustainability returns the 0-100 sustainability score rounded to 2
// decimals.
func Sustainability(riskScore, trafficIndex float64) float64 {
	return numeric.Round(numeric.Clamp(100-(riskScore*0.6+trafficIndex*100*0.4), 0, 100), 2)
}

// Breakdown returns each weighted component scaled to 0-100.
func Breakdown(in Inputs) types.FactorBreakdown {
	return types.FactorBreakdown{
		CrowdLoad:          numeric.Round(in.CrowdRatio()*WeightCrowdLoad*100, 2),
		WeatherEnvironment: numeric.Round(in.WeatherScore*WeightWeather*100, 2),
		Traffic:            numeric.Round(in.TrafficIndex*WeightTraffic*100, 2),
		SocialSignal:       numeric.Round(in.SocialMediaSpikeIndex*WeightSocial*100, 2),
	}
}

// Dominant returns the largest component. Ties go to the driver declared
// first in types.Drivers.
func Dominant(b types.FactorBreakdown) (types.Driver, float64) {
	best := types.Drivers[0]
	bestScore := b.Value(best)
	for _, d := range types.Drivers[1:] {
		if v := b.Value(d); v > bestScore {
			best, bestScore = d, v
		}
	}
	return best, bestScore
}

// Level classifies a risk score.
func Level(score float64) types.RiskLevel {
	switch {
	case score > RedThreshold:
		return types.RiskRed
	case score >= YellowThreshold:
		return types.RiskYellow
	default:
		return types.RiskGreen
	}
}

// Utilization returns predicted footfall as a percentage of capacity,
// rounded to 2 decimals.
func Utilization(in Inputs) float64 {
	return numeric.Round(in.CrowdRatio()*100, 2)
}

// Fallback prediction constants.
const (
	FallbackModelVersion = "fallback-rule"
	FallbackConfidence   = 0.35
	MinFallbackFootfall  = 50.0
)

// FallbackPrediction is the deterministic rule used when the predictor is
// unavailable: the rolling mean scaled by weather, calendar, social and
// traffic multipliers, floored at MinFallbackFootfall.
func FallbackPrediction(fv types.FeatureVector) *types.Prediction {
	holiday, weekend := 1.0, 1.0
	if fv.HolidayFlag {
		holiday = 1.2
	}
	if fv.WeekendFlag {
		weekend = 1.12
	}
	predicted := fv.RollingMean *
		(1 + fv.WeatherScore*0.15) *
		holiday *
		weekend *
		(0.85 + fv.SocialMediaSpikeIndex*0.4) *
		(1 - fv.TrafficIndex*0.1)

	return &types.Prediction{
		PredictedFootfall: numeric.Round(math.Max(MinFallbackFootfall, predicted), 2),
		ConfidenceScore:   FallbackConfidence,
		ModelVersion:      FallbackModelVersion,
	}
}
