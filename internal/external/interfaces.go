package external

import (
	"context"

	"crowdrisk/internal/types"
)

// WeatherSource returns current weather and air quality for a coordinate.
type WeatherSource interface {
	Configured() bool
	Current(ctx context.Context, lat, lng float64) (*WeatherObservation, error)
}

// RouteSource computes one traffic-aware route between two points.
type RouteSource interface {
	Configured() bool
	ComputeRoute(ctx context.Context, origin, destination LatLng) (*Route, error)
}

// JSONCompleter asks a language model for a strict-JSON answer.
type JSONCompleter interface {
	Configured() bool
	Model() string
	CompleteJSON(ctx context.Context, system, user string, maxOutputTokens int, out any) error
}

// FootfallModel is the remote footfall prediction model.
type FootfallModel interface {
	Predict(ctx context.Context, fv types.FeatureVector) (*types.Prediction, error)
}

var (
	_ WeatherSource = (*OpenWeatherClient)(nil)
	_ RouteSource   = (*RoutesClient)(nil)
	_ JSONCompleter = (*LLMClient)(nil)
	_ FootfallModel = (*ModelServiceClient)(nil)
)
