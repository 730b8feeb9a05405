package signals

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"crowdrisk/internal/external"
	"crowdrisk/internal/numeric"
	"crowdrisk/internal/types"
)

// conditionRisk maps an OpenWeather "main" condition to its base severity.
var conditionRisk = map[string]float64{
	"Thunderstorm": 0.95,
	"Drizzle":      0.72,
	"Rain":         0.78,
	"Snow":         0.75,
	"Mist":         0.6,
	"Smoke":        0.66,
	"Haze":         0.68,
	"Dust":         0.74,
	"Fog":          0.67,
	"Sand":         0.75,
	"Ash":          0.78,
	"Squall":       0.8,
	"Tornado":      0.98,
	"Clouds":       0.35,
	"Clear":        0.2,
}

const defaultConditionRisk = 0.4

var aqiCategories = map[int]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very Poor",
}

// ConditionRisk returns the base severity for condition.
func ConditionRisk(condition string) float64 {
	if r, ok := conditionRisk[condition]; ok {
		return r
	}
	return defaultConditionRisk
}

// WeatherSeverity combines condition, wind, rain, temperature and humidity
// into a [0,1] index, rounded to 4 decimals.
func WeatherSeverity(obs external.WeatherObservation) float64 {
	wind := numeric.Clamp01(obs.WindSpeedMPS / 20)
	rain := numeric.Clamp01(obs.RainfallMM1h / 12)
	temp := numeric.Clamp01(math.Abs(obs.TemperatureC-24) / 24)
	humidity := numeric.Clamp01(math.Abs(obs.HumidityPct-55) / 55)

	severity := ConditionRisk(obs.Condition)*0.35 +
		wind*0.2 +
		rain*0.2 +
		temp*0.15 +
		humidity*0.1
	return numeric.Round(numeric.Clamp01(severity), 4)
}

// NormalizeAQI maps the 1-5 AQI scale onto [0,1].
func NormalizeAQI(index int) float64 {
	return numeric.Clamp01(float64(index-1) / 4)
}

// AQICategory returns the display name for an AQI index.
func AQICategory(index int) string {
	if c, ok := aqiCategories[index]; ok {
		return c
	}
	return "Unknown"
}

// NewEnvironmentSignal derives the severity, AQI and environmental risk
// indices from a raw observation. Provenance is left for the fetcher to stamp.
func NewEnvironmentSignal(obs external.WeatherObservation) *types.EnvironmentSignal {
	severity := WeatherSeverity(obs)
	aqiNorm := numeric.Round(NormalizeAQI(obs.AQIIndex), 4)

	return &types.EnvironmentSignal{
		Condition:              obs.Condition,
		Description:            obs.Description,
		TemperatureC:           obs.TemperatureC,
		HumidityPct:            obs.HumidityPct,
		WindSpeedMPS:           obs.WindSpeedMPS,
		RainfallMM1h:           obs.RainfallMM1h,
		WeatherSeverityIndex:   severity,
		AQIIndex:               obs.AQIIndex,
		AQICategory:            AQICategory(obs.AQIIndex),
		AQINormalized:          aqiNorm,
		AQIComponents:          obs.AQIComponents,
		EnvironmentalRiskIndex: numeric.Round(numeric.Clamp01(severity*0.7+aqiNorm*0.3), 4),
	}
}

// OpenWeatherProvider is the live environment tier.
type OpenWeatherProvider struct {
	Source external.WeatherSource
}

func (p OpenWeatherProvider) Name() string { return external.ProviderOpenWeather }

func (p OpenWeatherProvider) Configured() bool {
	return p.Source != nil && p.Source.Configured()
}

func (p OpenWeatherProvider) Fetch(ctx context.Context, loc types.Location) (*types.EnvironmentSignal, error) {
	obs, err := p.Source.Current(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}
	return NewEnvironmentSignal(*obs), nil
}

const environmentSystemPrompt = "You are a weather and AQI estimator for tourism risk operations."

const environmentMaxTokens = 250

type environmentEstimate struct {
	Condition    string   `json:"condition"`
	Description  string   `json:"description"`
	TemperatureC *float64 `json:"temperature_c"`
	HumidityPct  *float64 `json:"humidity_pct"`
	WindSpeedMPS *float64 `json:"wind_speed_mps"`
	RainfallMM1h *float64 `json:"rainfall_mm_1h"`
	AQIIndex     *float64 `json:"aqi_index"`
}

// LLMEnvironmentProvider asks a language model to estimate current weather
// and AQI when the live provider is unavailable.
type LLMEnvironmentProvider struct {
	LLM external.JSONCompleter
}

func (p LLMEnvironmentProvider) Name() string { return external.ProviderOpenAI }

func (p LLMEnvironmentProvider) Configured() bool {
	return p.LLM != nil && p.LLM.Configured()
}

func (p LLMEnvironmentProvider) Fetch(ctx context.Context, loc types.Location) (*types.EnvironmentSignal, error) {
	var est environmentEstimate
	if err := p.LLM.CompleteJSON(ctx, environmentSystemPrompt, environmentPrompt(loc), environmentMaxTokens, &est); err != nil {
		return nil, err
	}

	aqi := floatOr(est.AQIIndex, 0)
	if aqi == 0 {
		aqi = 2
	}
	obs := external.WeatherObservation{
		Condition:    orDefault(est.Condition, "Clouds"),
		Description:  orDefault(est.Description, "Estimated condition"),
		TemperatureC: floatOr(est.TemperatureC, 24),
		HumidityPct:  floatOr(est.HumidityPct, 55),
		WindSpeedMPS: floatOr(est.WindSpeedMPS, 3),
		RainfallMM1h: floatOr(est.RainfallMM1h, 0),
		AQIIndex:     int(numeric.Clamp(math.Round(aqi), 1, 5)),
	}
	return NewEnvironmentSignal(obs), nil
}

func environmentPrompt(loc types.Location) string {
	return strings.Join([]string{
		"Estimate current weather and AQI for the provided location as realistic operational values for tourism operations.",
		"Return strict JSON only with keys:",
		"condition, description, temperature_c, humidity_pct, wind_speed_mps, rainfall_mm_1h, aqi_index.",
		"aqi_index must be integer 1..5.",
		"Use plausible local conditions for the location geography and current season.",
		"location_name: " + loc.Name,
		fmt.Sprintf("latitude: %v", loc.Latitude),
		fmt.Sprintf("longitude: %v", loc.Longitude),
	}, " ")
}

var syntheticConditions = []string{"Clear", "Clouds", "Mist", "Rain", "Haze"}

// pseudoRandom is a deterministic [0,1) hash of seed.
func pseudoRandom(seed float64) float64 {
	x := math.Sin(seed) * 10000
	return x - math.Floor(x)
}

func syntheticSeed(loc types.Location, at time.Time) float64 {
	return float64(at.UTC().Hour()) + float64(loc.ID)*7.13
}

// SyntheticEnvironment generates a plausible environment signal that is
// stable for a given location within one UTC hour.
func SyntheticEnvironment(loc types.Location, at time.Time) *types.EnvironmentSignal {
	seed := syntheticSeed(loc, at)

	idx := int(pseudoRandom(seed) * float64(len(syntheticConditions)))
	if idx >= len(syntheticConditions) {
		idx = len(syntheticConditions) - 1
	}
	condition := syntheticConditions[idx]

	rain := 0.0
	if condition == "Rain" {
		rain = pseudoRandom(seed+5.2) * 7
	}

	return NewEnvironmentSignal(external.WeatherObservation{
		Condition:    condition,
		Description:  fmt.Sprintf("Simulated %s condition", strings.ToLower(condition)),
		TemperatureC: 16 + pseudoRandom(seed+1.3)*18,
		HumidityPct:  40 + pseudoRandom(seed+2.1)*45,
		WindSpeedMPS: 0.8 + pseudoRandom(seed+3.8)*7,
		RainfallMM1h: rain,
		AQIIndex:     int(numeric.Clamp(math.Round(1+pseudoRandom(seed+4.4)*3), 1, 5)),
	})
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
