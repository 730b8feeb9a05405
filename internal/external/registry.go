package external

import (
	"log/slog"
	"net/http"

	"crowdrisk/internal/config"
)

// ClientRegistry holds all upstream provider clients. It is the single point
// of access for the rest of the application to the third-party services.
type ClientRegistry struct {
	Weather *OpenWeatherClient
	Routes  *RoutesClient
	LLM     *LLMClient
	Model   *ModelServiceClient
}

// NewClientRegistry initializes every provider client from configuration.
// Clients without credentials are still constructed; callers check
// Configured() before use, so a missing key is a skip rather than a failure.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	ua := cfg.Build.UserAgent()

	reg := &ClientRegistry{
		Weather: NewOpenWeatherClient(&http.Client{Timeout: cfg.Weather.Timeout}, OpenWeatherClientConfig{
			APIKey:  cfg.Weather.APIKey.Unmask(),
			BaseURL: cfg.Weather.BaseURL,
			Logger:  logger.With("client", ProviderOpenWeather),
		}, ua),
		Routes: NewRoutesClient(&http.Client{Timeout: cfg.Traffic.Timeout}, RoutesClientConfig{
			APIKey:  cfg.Traffic.APIKey.Unmask(),
			BaseURL: cfg.Traffic.BaseURL,
			Logger:  logger.With("client", ProviderGoogleRoutes),
		}, ua),
		LLM: NewLLMClient(&http.Client{Timeout: cfg.LLM.Timeout}, LLMClientConfig{
			APIKey:  cfg.LLM.APIKey.Unmask(),
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger.With("client", ProviderOpenAI),
		}, ua),
		Model: NewModelServiceClient(&http.Client{Timeout: cfg.Predictor.Timeout}, ModelServiceClientConfig{
			BaseURL: cfg.Predictor.ServiceURL,
			Logger:  logger.With("client", ProviderModelService),
		}, ua),
	}

	logger.Info("initialized provider clients",
		"weather_configured", reg.Weather.Configured(),
		"routes_configured", reg.Routes.Configured(),
		"llm_configured", reg.LLM.Configured(),
		"predictor_provider", cfg.Predictor.Provider,
	)
	return reg
}
