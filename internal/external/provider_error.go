package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"crowdrisk/internal/types"
)

// Provider names used in failure reasons and logs.
const (
	ProviderOpenWeather  = "openweather"
	ProviderGoogleRoutes = "google_routes"
	ProviderOpenAI       = "openai"
	ProviderModelService = "model_service"
)

// maxMessageLen bounds the upstream message carried in a ProviderError.
const maxMessageLen = 120

// ProviderError describes a failed call to one upstream provider. Its Error
// string is the machine-readable reason recorded in a signal's source_reason.
type ProviderError struct {
	Provider string
	// Status is the HTTP status code when one was received, otherwise a short
	// tag such as "timeout", "unavailable" or "malformed".
	Status  string
	Message string
	Err     error
}

// Error renders "<provider>_failed:<status>:<message>", omitting empty parts.
func (e *ProviderError) Error() string {
	parts := []string{e.Provider + "_failed"}
	if e.Status != "" {
		parts = append(parts, e.Status)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ":")
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AsProviderError converts any error returned by a provider call into a
// ProviderError tagged with provider.
func AsProviderError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: provider, Status: "timeout", Message: "deadline exceeded", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ProviderError{Provider: provider, Status: "canceled", Err: err}
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status := "unavailable"
		switch appErr.Code {
		case types.ErrCodeUpstreamRateLimited:
			status = "rate_limited"
		case types.ErrCodeUpstreamMalformed:
			status = "malformed"
		}
		return &ProviderError{Provider: provider, Status: status, Message: truncate(appErr.Message), Err: err}
	}
	return &ProviderError{Provider: provider, Message: truncate(err.Error()), Err: err}
}

func malformed(provider, msg string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Status: "malformed", Message: msg, Err: err}
}

// statusError reads a bounded slice of a non-2xx response body and extracts
// the vendor's error message where it uses one of the common JSON shapes.
func statusError(provider string, resp *http.Response) *ProviderError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ProviderError{
		Provider: provider,
		Status:   strconv.Itoa(resp.StatusCode),
		Message:  truncate(vendorMessage(body)),
		Err:      fmt.Errorf("%s returned %d", provider, resp.StatusCode),
	}
}

func vendorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &flat) == nil {
		if flat.Message != "" {
			return flat.Message
		}
		if flat.Detail != "" {
			return flat.Detail
		}
	}
	return strings.TrimSpace(string(body))
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen]
}
