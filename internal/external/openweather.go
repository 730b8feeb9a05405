package external

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// openWeatherAPIBase is the default OpenWeather API base URL.
const openWeatherAPIBase = "https://api.openweathermap.org"

// OpenWeatherClientConfig holds the configuration for an OpenWeatherClient.
type OpenWeatherClientConfig struct {
	APIKey  string
	BaseURL string // Override for testing; defaults to openWeatherAPIBase
	Logger  *slog.Logger
}

// WeatherObservation is the raw current-conditions reading for a coordinate.
// Derived indices are computed by the signals package.
type WeatherObservation struct {
	Condition     string
	Description   string
	TemperatureC  float64
	HumidityPct   float64
	WindSpeedMPS  float64
	RainfallMM1h  float64
	AQIIndex      int
	AQIComponents map[string]float64
}

type owPrecip struct {
	OneHour *float64 `json:"1h"`
}

type owWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Rain *owPrecip `json:"rain"`
	Snow *owPrecip `json:"snow"`
}

type owAirResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components map[string]float64 `json:"components"`
	} `json:"list"`
}

// OpenWeatherClient fetches current weather and air pollution through
// BaseClient.
type OpenWeatherClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewOpenWeatherClient creates an OpenWeatherClient with the default retry
// policy.
func NewOpenWeatherClient(httpClient *http.Client, cfg OpenWeatherClientConfig, userAgent string) *OpenWeatherClient {
	base := NewBaseClient(httpClient, ProviderOpenWeather, DefaultRetryPolicy(), userAgent)
	return NewOpenWeatherClientWithBase(base, cfg)
}

// NewOpenWeatherClientWithBase creates an OpenWeatherClient with a
// pre-configured BaseClient.
func NewOpenWeatherClientWithBase(base *BaseClient, cfg OpenWeatherClientConfig) *OpenWeatherClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openWeatherAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenWeatherClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Configured reports whether an API key is present.
func (c *OpenWeatherClient) Configured() bool {
	return c.apiKey != ""
}

// Current fetches /data/2.5/weather and /data/2.5/air_pollution concurrently.
// Either call failing fails the whole observation.
func (c *OpenWeatherClient) Current(ctx context.Context, lat, lng float64) (*WeatherObservation, error) {
	var weather owWeatherResponse
	var air owAirResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(gctx, "/data/2.5/weather", lat, lng, true, &weather)
	})
	g.Go(func() error {
		return c.get(gctx, "/data/2.5/air_pollution", lat, lng, false, &air)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	obs := &WeatherObservation{
		Condition:     "Unknown",
		Description:   "Unknown",
		AQIIndex:      1,
		AQIComponents: map[string]float64{},
	}
	if len(weather.Weather) > 0 {
		if weather.Weather[0].Main != "" {
			obs.Condition = weather.Weather[0].Main
		}
		if weather.Weather[0].Description != "" {
			obs.Description = weather.Weather[0].Description
		}
	}
	obs.TemperatureC = deref(weather.Main.Temp)
	obs.HumidityPct = deref(weather.Main.Humidity)
	obs.WindSpeedMPS = deref(weather.Wind.Speed)
	switch {
	case weather.Rain != nil && weather.Rain.OneHour != nil:
		obs.RainfallMM1h = *weather.Rain.OneHour
	case weather.Snow != nil && weather.Snow.OneHour != nil:
		obs.RainfallMM1h = *weather.Snow.OneHour
	}
	if len(air.List) > 0 {
		if air.List[0].Main.AQI > 0 {
			obs.AQIIndex = air.List[0].Main.AQI
		}
		if air.List[0].Components != nil {
			obs.AQIComponents = air.List[0].Components
		}
	}

	c.logger.DebugContext(ctx, "openweather observation fetched",
		"condition", obs.Condition,
		"aqi", obs.AQIIndex,
	)
	return obs, nil
}

func (c *OpenWeatherClient) get(ctx context.Context, path string, lat, lng float64, metric bool, out any) error {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	if metric {
		q.Set("units", "metric")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return AsProviderError(ProviderOpenWeather, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return AsProviderError(ProviderOpenWeather, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(ProviderOpenWeather, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return malformed(ProviderOpenWeather, "invalid json", err)
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
