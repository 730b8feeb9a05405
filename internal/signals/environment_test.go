package signals

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdrisk/internal/external"
	"crowdrisk/internal/types"
)

func TestWeatherSeverity(t *testing.T) {
	tests := []struct {
		name string
		obs  external.WeatherObservation
		want float64
	}{
		{
			name: "calm clear day",
			obs:  external.WeatherObservation{Condition: "Clear", TemperatureC: 24, HumidityPct: 55},
			want: 0.07,
		},
		{
			name: "half-scale rain",
			obs: external.WeatherObservation{
				Condition: "Rain", WindSpeedMPS: 10, RainfallMM1h: 6, TemperatureC: 36, HumidityPct: 82.5,
			},
			want: 0.598,
		},
		{
			name: "unknown condition uses default",
			obs:  external.WeatherObservation{Condition: "Volcano", TemperatureC: 24, HumidityPct: 55},
			want: 0.14,
		},
		{
			name: "extremes clamp to one",
			obs: external.WeatherObservation{
				Condition: "Tornado", WindSpeedMPS: 80, RainfallMM1h: 90, TemperatureC: -40, HumidityPct: 0,
			},
			want: 0.993,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WeatherSeverity(tt.obs), 1e-9)
		})
	}
}

func TestAQIHelpers(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeAQI(1))
	assert.Equal(t, 0.75, NormalizeAQI(4))
	assert.Equal(t, 1.0, NormalizeAQI(5))
	assert.Equal(t, 0.0, NormalizeAQI(0))

	assert.Equal(t, "Good", AQICategory(1))
	assert.Equal(t, "Very Poor", AQICategory(5))
	assert.Equal(t, "Unknown", AQICategory(9))
}

func TestNewEnvironmentSignal(t *testing.T) {
	sig := NewEnvironmentSignal(external.WeatherObservation{
		Condition: "Rain", Description: "moderate rain",
		WindSpeedMPS: 10, RainfallMM1h: 6, TemperatureC: 36, HumidityPct: 82.5,
		AQIIndex: 5,
	})

	assert.Equal(t, 0.598, sig.WeatherSeverityIndex)
	assert.Equal(t, 1.0, sig.AQINormalized)
	assert.Equal(t, "Very Poor", sig.AQICategory)
	assert.InDelta(t, 0.7186, sig.EnvironmentalRiskIndex, 1e-9)
	assert.Empty(t, sig.Source, "provenance is stamped by the fetcher")
}

func TestOpenWeatherProvider(t *testing.T) {
	p := OpenWeatherProvider{Source: &fakeWeather{configured: true, obs: &external.WeatherObservation{
		Condition: "Clouds", Description: "scattered clouds", TemperatureC: 24, HumidityPct: 55, AQIIndex: 2,
	}}}
	assert.True(t, p.Configured())
	assert.Equal(t, "openweather", p.Name())

	sig, err := p.Fetch(t.Context(), testLocation)
	require.NoError(t, err)
	assert.Equal(t, "scattered clouds", sig.Description)
	assert.Equal(t, 0.25, sig.AQINormalized)

	_, err = OpenWeatherProvider{Source: &fakeWeather{configured: true, err: errors.New("boom")}}.Fetch(t.Context(), testLocation)
	assert.Error(t, err)

	assert.False(t, OpenWeatherProvider{}.Configured())
}

func TestLLMEnvironmentProvider(t *testing.T) {
	t.Run("parses estimate and clamps aqi", func(t *testing.T) {
		llm := &fakeLLM{configured: true, reply: "Sure! {\"condition\":\"Haze\",\"description\":\"hazy\",\"temperature_c\":31,\"humidity_pct\":60,\"wind_speed_mps\":2,\"rainfall_mm_1h\":0,\"aqi_index\":9}"}
		sig, err := LLMEnvironmentProvider{LLM: llm}.Fetch(t.Context(), testLocation)
		require.NoError(t, err)

		assert.Equal(t, "Haze", sig.Condition)
		assert.Equal(t, 5, sig.AQIIndex)
		assert.Equal(t, environmentSystemPrompt, llm.systems[0])
		assert.Contains(t, llm.lastPrompt(), "location_name: Amber Fort")
		assert.Contains(t, llm.lastPrompt(), "latitude: 26.9855")
	})

	t.Run("empty estimate uses defaults", func(t *testing.T) {
		llm := &fakeLLM{configured: true, reply: `{}`}
		sig, err := LLMEnvironmentProvider{LLM: llm}.Fetch(t.Context(), testLocation)
		require.NoError(t, err)

		assert.Equal(t, "Clouds", sig.Condition)
		assert.Equal(t, "Estimated condition", sig.Description)
		assert.Equal(t, 24.0, sig.TemperatureC)
		assert.Equal(t, 55.0, sig.HumidityPct)
		assert.Equal(t, 3.0, sig.WindSpeedMPS)
		assert.Equal(t, 2, sig.AQIIndex)
		assert.InDelta(t, 0.1525, sig.WeatherSeverityIndex, 1e-9)
	})

	t.Run("provider error propagates", func(t *testing.T) {
		llm := &fakeLLM{configured: true, err: &external.ProviderError{Provider: "openai", Status: "429"}}
		_, err := LLMEnvironmentProvider{LLM: llm}.Fetch(t.Context(), testLocation)
		assert.EqualError(t, err, "openai_failed:429")
	})
}

func TestSyntheticEnvironment(t *testing.T) {
	a := SyntheticEnvironment(testLocation, testNow)
	b := SyntheticEnvironment(testLocation, testNow.Add(20*time.Minute))
	assert.Equal(t, a, b, "stable within the hour")

	for h := 0; h < 24; h++ {
		for id := int64(1); id <= 12; id++ {
			sig := SyntheticEnvironment(types.Location{ID: id}, testNow.Add(time.Duration(h)*time.Hour))

			assert.Contains(t, syntheticConditions, sig.Condition)
			assert.Equal(t, "Simulated "+strings.ToLower(sig.Condition)+" condition", sig.Description)
			assert.GreaterOrEqual(t, sig.TemperatureC, 16.0)
			assert.Less(t, sig.TemperatureC, 34.0)
			assert.GreaterOrEqual(t, sig.AQIIndex, 1)
			assert.LessOrEqual(t, sig.AQIIndex, 4)
			if sig.Condition != "Rain" {
				assert.Zero(t, sig.RainfallMM1h)
			}
			assert.GreaterOrEqual(t, sig.EnvironmentalRiskIndex, 0.0)
			assert.LessOrEqual(t, sig.EnvironmentalRiskIndex, 1.0)
		}
	}
}
