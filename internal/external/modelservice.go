package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"crowdrisk/internal/types"
)

// ModelServiceClientConfig holds the configuration for a ModelServiceClient.
type ModelServiceClientConfig struct {
	BaseURL string
	Logger  *slog.Logger
}

// ModelServiceClient calls the footfall model service's /predict endpoint.
type ModelServiceClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewModelServiceClient creates a ModelServiceClient.
func NewModelServiceClient(httpClient *http.Client, cfg ModelServiceClientConfig, userAgent string) *ModelServiceClient {
	base := NewBaseClient(httpClient, ProviderModelService, DefaultRetryPolicy(), userAgent)
	return NewModelServiceClientWithBase(base, cfg)
}

// NewModelServiceClientWithBase creates a ModelServiceClient with a
// pre-configured BaseClient.
func NewModelServiceClientWithBase(base *BaseClient, cfg ModelServiceClientConfig) *ModelServiceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelServiceClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Predict posts the feature vector and returns the model's estimate.
func (c *ModelServiceClient) Predict(ctx context.Context, fv types.FeatureVector) (*types.Prediction, error) {
	body, err := json.Marshal(fv)
	if err != nil {
		return nil, AsProviderError(ProviderModelService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, AsProviderError(ProviderModelService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, AsProviderError(ProviderModelService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError(ProviderModelService, resp)
	}

	var p types.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, malformed(ProviderModelService, "invalid json", err)
	}
	if p.PredictedFootfall < 0 {
		return nil, malformed(ProviderModelService, "negative footfall", nil)
	}
	return &p, nil
}
