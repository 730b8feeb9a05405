package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	googleRoutesAPIBase = "https://routes.googleapis.com"
	routesFieldMask     = "routes.duration,routes.staticDuration,routes.distanceMeters"
	departureLead       = 5 * time.Minute
)

// RoutesClientConfig holds the configuration for a RoutesClient.
type RoutesClientConfig struct {
	APIKey  string
	BaseURL string // Override for testing; defaults to googleRoutesAPIBase
	Logger  *slog.Logger
	// Now stamps the departure time. Defaults to time.Now.
	Now func() time.Time
}

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Route is one traffic-aware driving route.
type Route struct {
	DurationSeconds float64
	// StaticDurationSeconds is zero when the provider omitted it.
	StaticDurationSeconds float64
	DistanceMeters        float64
}

type routesWaypoint struct {
	Location struct {
		LatLng LatLng `json:"latLng"`
	} `json:"location"`
}

func waypoint(p LatLng) routesWaypoint {
	var w routesWaypoint
	w.Location.LatLng = p
	return w
}

type computeRoutesRequest struct {
	Origin                   routesWaypoint `json:"origin"`
	Destination              routesWaypoint `json:"destination"`
	TravelMode               string         `json:"travelMode"`
	RoutingPreference        string         `json:"routingPreference"`
	DepartureTime            string         `json:"departureTime"`
	ComputeAlternativeRoutes bool           `json:"computeAlternativeRoutes"`
	Units                    string         `json:"units"`
	LanguageCode             string         `json:"languageCode"`
}

type computeRoutesResponse struct {
	Routes []struct {
		Duration       string  `json:"duration"`
		StaticDuration string  `json:"staticDuration"`
		DistanceMeters float64 `json:"distanceMeters"`
	} `json:"routes"`
}

// RoutesClient calls the Google Routes computeRoutes endpoint.
type RoutesClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewRoutesClient creates a RoutesClient with the default retry policy.
func NewRoutesClient(httpClient *http.Client, cfg RoutesClientConfig, userAgent string) *RoutesClient {
	base := NewBaseClient(httpClient, ProviderGoogleRoutes, DefaultRetryPolicy(), userAgent)
	return NewRoutesClientWithBase(base, cfg)
}

// NewRoutesClientWithBase creates a RoutesClient with a pre-configured
// BaseClient.
func NewRoutesClientWithBase(base *BaseClient, cfg RoutesClientConfig) *RoutesClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleRoutesAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RoutesClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
		now:     now,
	}
}

// Configured reports whether an API key is present.
func (c *RoutesClient) Configured() bool {
	return c.apiKey != ""
}

// ComputeRoute requests a single traffic-aware driving route departing five
// minutes from now.
func (c *RoutesClient) ComputeRoute(ctx context.Context, origin, destination LatLng) (*Route, error) {
	body, err := json.Marshal(computeRoutesRequest{
		Origin:                   waypoint(origin),
		Destination:              waypoint(destination),
		TravelMode:               "DRIVE",
		RoutingPreference:        "TRAFFIC_AWARE",
		DepartureTime:            c.now().Add(departureLead).UTC().Format(time.RFC3339),
		ComputeAlternativeRoutes: false,
		Units:                    "METRIC",
		LanguageCode:             "en-US",
	})
	if err != nil {
		return nil, AsProviderError(ProviderGoogleRoutes, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/directions/v2:computeRoutes", bytes.NewReader(body))
	if err != nil {
		return nil, AsProviderError(ProviderGoogleRoutes, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", routesFieldMask)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, AsProviderError(ProviderGoogleRoutes, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError(ProviderGoogleRoutes, resp)
	}

	var out computeRoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, malformed(ProviderGoogleRoutes, "invalid json", err)
	}
	if len(out.Routes) == 0 {
		return nil, &ProviderError{Provider: ProviderGoogleRoutes, Status: "no_route", Message: "no_route_found"}
	}

	first := out.Routes[0]
	duration, ok := parseDurationSeconds(first.Duration)
	if !ok {
		return nil, malformed(ProviderGoogleRoutes, "missing_duration", nil)
	}
	static, _ := parseDurationSeconds(first.StaticDuration)

	return &Route{
		DurationSeconds:       duration,
		StaticDurationSeconds: static,
		DistanceMeters:        first.DistanceMeters,
	}, nil
}

// parseDurationSeconds parses the protobuf Duration JSON form ("123s").
// Zero and negative durations are rejected.
func parseDurationSeconds(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "s")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
