package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

const openAIAPIBase = "https://api.openai.com"

// LLMClientConfig holds the configuration for an LLMClient.
type LLMClientConfig struct {
	APIKey  string
	BaseURL string // Override for testing; defaults to openAIAPIBase
	Model   string
	Logger  *slog.Logger
}

type llmContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type llmMessage struct {
	Role    string       `json:"role"`
	Content []llmContent `json:"content"`
}

type responsesRequest struct {
	Model           string       `json:"model"`
	Input           []llmMessage `json:"input"`
	MaxOutputTokens int          `json:"max_output_tokens,omitempty"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []llmContent `json:"content"`
	} `json:"output"`
}

// LLMClient calls an OpenAI-compatible Responses endpoint. The estimator tiers
// and the LLM predictor share one client.
type LLMClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	model   string
	logger  *slog.Logger
}

// NewLLMClient creates an LLMClient. LLM calls are not retried; the tier
// deadline is too short for a second attempt.
func NewLLMClient(httpClient *http.Client, cfg LLMClientConfig, userAgent string) *LLMClient {
	base := NewBaseClient(httpClient, ProviderOpenAI, RetryPolicy{}, userAgent)
	return NewLLMClientWithBase(base, cfg)
}

// NewLLMClientWithBase creates an LLMClient with a pre-configured BaseClient.
func NewLLMClientWithBase(base *BaseClient, cfg LLMClientConfig) *LLMClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   cfg.Model,
		logger:  logger,
	}
}

// Configured reports whether an API key is present.
func (c *LLMClient) Configured() bool {
	return c.apiKey != ""
}

// Model returns the configured model name.
func (c *LLMClient) Model() string {
	return c.model
}

// Complete sends a system and a user message and returns the trimmed output
// text.
func (c *LLMClient) Complete(ctx context.Context, system, user string, maxOutputTokens int) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Model: c.model,
		Input: []llmMessage{
			{Role: "system", Content: []llmContent{{Type: "input_text", Text: system}}},
			{Role: "user", Content: []llmContent{{Type: "input_text", Text: user}}},
		},
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return "", AsProviderError(ProviderOpenAI, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return "", AsProviderError(ProviderOpenAI, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", AsProviderError(ProviderOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", statusError(ProviderOpenAI, resp)
	}

	var out responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", malformed(ProviderOpenAI, "invalid json", err)
	}

	text := outputText(out)
	if text == "" {
		return "", malformed(ProviderOpenAI, "empty output", nil)
	}
	return text, nil
}

// CompleteJSON runs Complete and decodes the JSON object found in the output
// into out.
func (c *LLMClient) CompleteJSON(ctx context.Context, system, user string, maxOutputTokens int, out any) error {
	text, err := c.Complete(ctx, system, user, maxOutputTokens)
	if err != nil {
		return err
	}
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return malformed(ProviderOpenAI, "no json object in output", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(ProviderOpenAI, "invalid json object", err)
	}
	return nil
}

func outputText(r responsesResponse) string {
	if t := strings.TrimSpace(r.OutputText); t != "" {
		return t
	}
	var chunks []string
	for _, o := range r.Output {
		for _, c := range o.Content {
			if c.Type == "output_text" && c.Text != "" {
				chunks = append(chunks, c.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(chunks, "\n"))
}

// ExtractJSONObject returns text itself when it is valid JSON, otherwise the
// span from the first '{' to the last '}'.
func ExtractJSONObject(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no json object")
	}
	span := []byte(text[start : end+1])
	if !json.Valid(span) {
		return nil, errors.New("invalid json object")
	}
	return span, nil
}
