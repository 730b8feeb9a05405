package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubProbe struct {
	name  string
	err   error
	block bool
	panic bool
}

func (p stubProbe) Name() string { return p.name }

func (p stubProbe) Check(ctx context.Context) error {
	if p.panic {
		panic("probe exploded")
	}
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.err
}

func runHealth(t *testing.T, probes ...HealthProbe) (int, healthResponse) {
	t.Helper()
	s := newTestServer(t)
	s.HealthProbes = probes

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, resp
}

func TestHandleHealth_NoProbes(t *testing.T) {
	code, resp := runHealth(t)
	if code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("got %d %q", code, resp.Status)
	}
	if resp.Version != "1.4.2" {
		t.Errorf("version = %q", resp.Version)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	code, resp := runHealth(t, stubProbe{name: "database"}, stubProbe{name: "redis"})
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Components["database"].Status != "healthy" || resp.Components["redis"].Status != "healthy" {
		t.Errorf("components = %+v", resp.Components)
	}
}

func TestHandleHealth_Failure(t *testing.T) {
	code, resp := runHealth(t,
		stubProbe{name: "database"},
		stubProbe{name: "redis", err: errors.New("dial tcp: connection refused")},
	)
	if code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
		t.Fatalf("got %d %q", code, resp.Status)
	}
	if got := resp.Components["redis"].Message; got != "dial tcp: connection refused" {
		t.Errorf("redis message = %q", got)
	}
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	code, resp := runHealth(t, stubProbe{name: "database", panic: true})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", code)
	}
	if got := resp.Components["database"].Message; got != "probe panicked: probe exploded" {
		t.Errorf("message = %q", got)
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the health deadline")
	}
	code, resp := runHealth(t, stubProbe{name: "database", block: true})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", code)
	}
	if got := resp.Components["database"].Status; got != "unhealthy" {
		t.Errorf("status = %q", got)
	}
}
