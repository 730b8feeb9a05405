// Package config defines the process configuration for crowdrisk binaries.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct defaults (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"strconv"
	"strings"
	"time"

	"crowdrisk/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types just to name a credential.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"crowdrisk"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Weather   WeatherConfig
	Traffic   TrafficConfig
	LLM       LLMConfig
	Predictor PredictorConfig
	Cache     CacheConfig
	Sweeper   SweeperConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig configures the shared cache. An empty URL disables the shared
// level; evaluations then run on the process-local cache only.
type RedisConfig struct {
	URL          SecretString  `envconfig:"REDIS_URL"`
	KeyPrefix    string        `envconfig:"REDIS_KEY_PREFIX" default:"crowdrisk:"`
	AlertChannel string        `envconfig:"REDIS_ALERT_CHANNEL" default:"crowdrisk:alerts"`
	OpTimeout    time.Duration `envconfig:"REDIS_OP_TIMEOUT" default:"500ms"`
}

// WeatherConfig configures the live weather/AQI tier.
type WeatherConfig struct {
	APIKey  SecretString     `envconfig:"WEATHER_API_KEY"`
	BaseURL string           `envconfig:"WEATHER_API_BASE_URL" default:"https://api.openweathermap.org" validate:"required,url"`
	Mode    types.SignalMode `envconfig:"WEATHER_SOURCE_MODE" default:"auto" validate:"oneof=auto live llm"`
	Timeout time.Duration    `envconfig:"WEATHER_TIMEOUT" default:"5s"`
}

// TrafficConfig configures the live routing tier.
type TrafficConfig struct {
	APIKey  SecretString     `envconfig:"GOOGLE_MAPS_API_KEY"`
	BaseURL string           `envconfig:"GOOGLE_ROUTES_API_URL" default:"https://routes.googleapis.com" validate:"required,url"`
	Mode    types.SignalMode `envconfig:"TRAFFIC_SOURCE_MODE" default:"auto" validate:"oneof=auto live llm"`
	Timeout time.Duration    `envconfig:"TRAFFIC_TIMEOUT" default:"8s"`
	// CustomOrigin is an optional "lat,lng" probe origin added to the ring.
	CustomOrigin string `envconfig:"TRAFFIC_CUSTOM_ORIGIN"`
}

// Origin parses CustomOrigin. ok is false when unset or malformed.
func (c TrafficConfig) Origin() (lat, lng float64, ok bool) {
	parts := strings.Split(c.CustomOrigin, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// LLMConfig configures the OpenAI-compatible Responses endpoint shared by the
// estimator tiers and the LLM predictor.
type LLMConfig struct {
	APIKey          SecretString  `envconfig:"OPENAI_API_KEY"`
	BaseURL         string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com" validate:"required,url"`
	Model           string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
	Timeout         time.Duration `envconfig:"OPENAI_REQUEST_TIMEOUT" default:"3500ms"`
	MaxOutputTokens int           `envconfig:"OPENAI_MAX_OUTPUT_TOKENS" default:"300" validate:"min=16,max=4096"`
}

// PredictorConfig selects and configures the footfall predictor.
type PredictorConfig struct {
	Provider   types.PredictorProvider `envconfig:"AI_PROVIDER" default:"model" validate:"oneof=model llm"`
	ServiceURL string                  `envconfig:"AI_SERVICE_URL" default:"http://localhost:8000" validate:"required,url"`
	Timeout    time.Duration           `envconfig:"AI_TIMEOUT" default:"5s"`
}

// CacheConfig holds TTLs for the signal and assessment caches.
type CacheConfig struct {
	LocalTTL       time.Duration `envconfig:"CACHE_LOCAL_TTL" default:"2m"`
	EnvironmentTTL time.Duration `envconfig:"CACHE_ENVIRONMENT_TTL" default:"10m"`
	TrafficTTL     time.Duration `envconfig:"CACHE_TRAFFIC_TTL" default:"10m"`
	SyntheticTTL   time.Duration `envconfig:"CACHE_SYNTHETIC_TTL" default:"3m"`
	RiskTTL        time.Duration `envconfig:"CACHE_RISK_TTL" default:"60s"`
	MitigationTTL  time.Duration `envconfig:"CACHE_MITIGATION_TTL" default:"5m"`
}

// SweeperConfig configures the periodic all-location evaluation loop.
type SweeperConfig struct {
	Interval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`
	Concurrency int           `envconfig:"SWEEP_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	MetricsPort string        `envconfig:"SWEEP_METRICS_PORT" default:"9091"`
	Language    string        `envconfig:"SWEEP_LANGUAGE" default:"en"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
