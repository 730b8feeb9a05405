package risk

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdrisk/internal/external"
	"crowdrisk/internal/types"
)

func TestLLMPredictor_Success(t *testing.T) {
	llm := &fakeLLM{configured: true, reply: `{"predicted_footfall": 4321.456, "confidence_score": 0.81234}`}
	p := LLMPredictor{LLM: llm, MaxTokens: 120}

	pred, err := p.Predict(context.Background(), types.FeatureVector{LocationID: 7, RollingMean: 4000})
	require.NoError(t, err)

	assert.Equal(t, 4321.46, pred.PredictedFootfall)
	assert.Equal(t, 0.8123, pred.ConfidenceScore)
	assert.Equal(t, "llm:gpt-test", pred.ModelVersion)
	require.Len(t, llm.prompts, 1)
	assert.True(t, strings.HasPrefix(llm.prompts[0], "Input JSON: {"))
	assert.Contains(t, llm.prompts[0], `"rolling_mean":4000`)
}

func TestLLMPredictor_Bounds(t *testing.T) {
	llm := &fakeLLM{configured: true, reply: `{"predicted_footfall": -20, "confidence_score": 1.4}`}

	pred, err := LLMPredictor{LLM: llm}.Predict(context.Background(), types.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.PredictedFootfall)
	assert.Equal(t, 0.99, pred.ConfidenceScore)

	llm.reply = `{"predicted_footfall": 10, "confidence_score": 0}`
	pred, err = LLMPredictor{LLM: llm}.Predict(context.Background(), types.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, 0.05, pred.ConfidenceScore)
}

func TestLLMPredictor_MissingField(t *testing.T) {
	llm := &fakeLLM{configured: true, reply: `{"predicted_footfall": 100}`}

	_, err := LLMPredictor{LLM: llm}.Predict(context.Background(), types.FeatureVector{})
	require.Error(t, err)
	assert.Equal(t, "openai_failed:malformed:invalid numeric fields", err.Error())
}

func TestLLMPredictor_Unconfigured(t *testing.T) {
	_, err := LLMPredictor{LLM: &fakeLLM{}}.Predict(context.Background(), types.FeatureVector{})
	require.Error(t, err)
	assert.Equal(t, "openai_failed:skipped:missing_api_key", err.Error())

	_, err = LLMPredictor{}.Predict(context.Background(), types.FeatureVector{})
	require.Error(t, err)
}

func TestLLMPredictor_UpstreamError(t *testing.T) {
	upstream := &external.ProviderError{Provider: external.ProviderOpenAI, Status: "503"}
	_, err := LLMPredictor{LLM: &fakeLLM{configured: true, err: upstream}}.Predict(context.Background(), types.FeatureVector{})
	assert.True(t, errors.Is(err, upstream))
}

func TestNewPredictor(t *testing.T) {
	llm := &fakeLLM{configured: true}
	model := &fakePredictor{}

	assert.Equal(t, LLMPredictor{LLM: llm, MaxTokens: 90}, NewPredictor(types.PredictorLLM, model, llm, 90))
	assert.Same(t, model, NewPredictor(types.PredictorModel, model, llm, 90))
}
