package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"crowdrisk/internal/core"
	"crowdrisk/internal/risk"
	"crowdrisk/internal/types"
)

// --- Mock Services ---

type mockLocationService struct {
	locations []types.Location
	series    []types.RiskSnapshot
	err       error

	gotID    int64
	gotLimit int
}

func (m *mockLocationService) Locations(_ context.Context) ([]types.Location, error) {
	return m.locations, m.err
}

func (m *mockLocationService) Series(_ context.Context, id int64, limit int) ([]types.RiskSnapshot, error) {
	m.gotID, m.gotLimit = id, limit
	return m.series, m.err
}

type mockRiskService struct {
	assessment *types.RiskAssessment
	all        []*types.RiskAssessment
	analytics  *types.LocationAnalytics
	trend      []types.TrendPoint
	err        error
	trendErr   error

	gotID   int64
	gotOpts risk.Options
}

func (m *mockRiskService) EvaluateByID(_ context.Context, id int64, opts risk.Options) (*types.RiskAssessment, error) {
	m.gotID, m.gotOpts = id, opts
	return m.assessment, m.err
}

func (m *mockRiskService) EvaluateAll(_ context.Context, opts risk.Options) ([]*types.RiskAssessment, error) {
	m.gotOpts = opts
	return m.all, m.err
}

func (m *mockRiskService) Analytics(_ context.Context, id int64, opts risk.Options) (*types.LocationAnalytics, error) {
	m.gotID, m.gotOpts = id, opts
	return m.analytics, m.err
}

func (m *mockRiskService) RiskTrend(_ context.Context) ([]types.TrendPoint, error) {
	return m.trend, m.trendErr
}

type mockMitigationService struct {
	plan *types.MitigationPlan
	err  error

	gotID      int64
	gotLang    string
	gotRefresh bool
}

func (m *mockMitigationService) PlanFor(_ context.Context, id int64, lang string, refresh bool) (*types.MitigationPlan, error) {
	m.gotID, m.gotLang, m.gotRefresh = id, lang, refresh
	return m.plan, m.err
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

type registrar interface {
	RegisterRoutes(r chi.Router)
}

func makeRouter(h registrar) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// decodeData decodes the "data" member of a success envelope into out.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}
