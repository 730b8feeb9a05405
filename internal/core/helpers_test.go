package core

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"crowdrisk/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout:     5 * time.Second,
			CorsAllowedOrigins: []string{"*"},
		},
		Build: config.BuildInfo{Version: "1.4.2"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s
}

type recordedRequest struct {
	method, route, status string
}

type fakeMetrics struct {
	requests []recordedRequest
}

func (m *fakeMetrics) RecordRequest(method, route, status string, _ time.Duration) {
	m.requests = append(m.requests, recordedRequest{method, route, status})
}
