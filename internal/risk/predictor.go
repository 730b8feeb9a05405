package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"crowdrisk/internal/external"
	"crowdrisk/internal/numeric"
	"crowdrisk/internal/types"
)

// Predictor estimates footfall for the next few hours.
type Predictor interface {
	Predict(ctx context.Context, fv types.FeatureVector) (*types.Prediction, error)
}

const llmPredictorSystemPrompt = "You are a tourism forecasting engine. " +
	"Predict next 6-12 hour footfall based on input factors. " +
	"Return JSON ONLY with keys: " +
	"predicted_footfall: number, confidence_score: number between 0 and 1. " +
	"No markdown, no extra text."

// LLMPredictor asks a language model for a footfall estimate.
type LLMPredictor struct {
	LLM       external.JSONCompleter
	MaxTokens int
}

type llmPrediction struct {
	PredictedFootfall *float64 `json:"predicted_footfall"`
	ConfidenceScore   *float64 `json:"confidence_score"`
}

// Predict returns the model's estimate with footfall floored at 0 and
// confidence bounded to [0.05, 0.99].
func (p LLMPredictor) Predict(ctx context.Context, fv types.FeatureVector) (*types.Prediction, error) {
	if p.LLM == nil || !p.LLM.Configured() {
		return nil, &external.ProviderError{Provider: external.ProviderOpenAI, Status: "skipped", Message: "missing_api_key"}
	}

	input, err := json.Marshal(fv)
	if err != nil {
		return nil, fmt.Errorf("encoding feature vector: %w", err)
	}

	var out llmPrediction
	if err := p.LLM.CompleteJSON(ctx, llmPredictorSystemPrompt, "Input JSON: "+string(input), p.MaxTokens, &out); err != nil {
		return nil, err
	}
	if out.PredictedFootfall == nil || out.ConfidenceScore == nil ||
		math.IsNaN(*out.PredictedFootfall) || math.IsNaN(*out.ConfidenceScore) {
		return nil, &external.ProviderError{Provider: external.ProviderOpenAI, Status: "malformed", Message: "invalid numeric fields"}
	}

	return &types.Prediction{
		PredictedFootfall: numeric.Round(math.Max(0, *out.PredictedFootfall), 2),
		ConfidenceScore:   numeric.Round(numeric.Clamp(*out.ConfidenceScore, 0.05, 0.99), 4),
		ModelVersion:      "llm:" + p.LLM.Model(),
	}, nil
}

// NewPredictor selects the predictor for provider.
func NewPredictor(provider types.PredictorProvider, model external.FootfallModel, llm external.JSONCompleter, maxTokens int) Predictor {
	if provider == types.PredictorLLM {
		return LLMPredictor{LLM: llm, MaxTokens: maxTokens}
	}
	return model
}
