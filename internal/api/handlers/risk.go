package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crowdrisk/internal/core"
	"crowdrisk/internal/risk"
	"crowdrisk/internal/types"
)

// RiskService evaluates locations and builds the analytics views.
type RiskService interface {
	EvaluateByID(ctx context.Context, id int64, opts risk.Options) (*types.RiskAssessment, error)
	EvaluateAll(ctx context.Context, opts risk.Options) ([]*types.RiskAssessment, error)
	Analytics(ctx context.Context, id int64, opts risk.Options) (*types.LocationAnalytics, error)
	RiskTrend(ctx context.Context) ([]types.TrendPoint, error)
}

// RiskHandler serves single-location and overview assessments.
type RiskHandler struct {
	service   RiskService
	validator *core.Validator
	logger    *slog.Logger
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(svc RiskService, val *core.Validator, logger *slog.Logger) *RiskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the risk endpoints.
func (h *RiskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/locations/{id}/risk", h.HandleGetRisk)
	r.Get("/locations/{id}/analytics", h.HandleAnalytics)
	r.Get("/overview", h.HandleOverview)
}

// HandleGetRisk handles GET /v1/locations/{id}/risk?lang=&refresh=.
// refresh=true bypasses both the assessment and the signal caches.
func (h *RiskHandler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	id, err := locationID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	q, err := parseEvaluationQuery(r, h.validator)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	a, err := h.service.EvaluateByID(r.Context(), id, risk.Options{
		Language:           q.language(),
		RefreshRisk:        q.Refresh,
		RefreshEnvironment: q.Refresh,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: a})
}

// HandleAnalytics handles GET /v1/locations/{id}/analytics?lang=&refresh=.
func (h *RiskHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := locationID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	q, err := parseEvaluationQuery(r, h.validator)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	view, err := h.service.Analytics(r.Context(), id, risk.Options{
		Language:           q.language(),
		RefreshRisk:        q.Refresh,
		RefreshEnvironment: q.Refresh,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: view})
}

// OverviewResponse is the body of GET /v1/overview.
type OverviewResponse struct {
	Language      string                  `json:"language"`
	Assessments   []*types.RiskAssessment `json:"assessments"`
	LevelCounts   map[types.RiskLevel]int `json:"level_counts"`
	DegradedCount int                     `json:"degraded_count"`
	// CrowdChance is keyed by location id.
	CrowdChance        map[int64]float64         `json:"crowd_chance"`
	PlainLanguageCards []types.PlainLanguageCard `json:"plain_language_cards"`
	RiskTrend          []types.TrendPoint        `json:"risk_trend"`
}

// HandleOverview handles GET /v1/overview?lang=&refresh=. Assessments are
// ordered by location id.
func (h *RiskHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	q, err := parseEvaluationQuery(r, h.validator)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	all, err := h.service.EvaluateAll(r.Context(), risk.Options{
		Language:           q.language(),
		RefreshRisk:        q.Refresh,
		RefreshEnvironment: q.Refresh,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	trend, err := h.service.RiskTrend(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := OverviewResponse{
		Language:           q.language(),
		Assessments:        all,
		LevelCounts:        map[types.RiskLevel]int{types.RiskGreen: 0, types.RiskYellow: 0, types.RiskRed: 0},
		CrowdChance:        make(map[int64]float64, len(all)),
		PlainLanguageCards: risk.Cards(all, risk.CardCount),
		RiskTrend:          trend,
	}
	if resp.Assessments == nil {
		resp.Assessments = []*types.RiskAssessment{}
	}
	if resp.RiskTrend == nil {
		resp.RiskTrend = []types.TrendPoint{}
	}
	for _, a := range all {
		resp.LevelCounts[a.RiskLevel]++
		if a.DegradedMode {
			resp.DegradedCount++
		}
		resp.CrowdChance[a.LocationID] = risk.CrowdChance(a)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}
