package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crowdrisk/internal/core"
	"crowdrisk/internal/types"
)

// MitigationService builds mitigation plans.
type MitigationService interface {
	PlanFor(ctx context.Context, locationID int64, language string, refresh bool) (*types.MitigationPlan, error)
}

// MitigationHandler serves operator action plans.
type MitigationHandler struct {
	service   MitigationService
	validator *core.Validator
	logger    *slog.Logger
}

// NewMitigationHandler creates a MitigationHandler.
func NewMitigationHandler(svc MitigationService, val *core.Validator, logger *slog.Logger) *MitigationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MitigationHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the mitigation endpoint.
func (h *MitigationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/locations/{id}/mitigation", h.HandleGetPlan)
}

// HandleGetPlan handles GET /v1/locations/{id}/mitigation?lang=&refresh=.
func (h *MitigationHandler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
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

	plan, err := h.service.PlanFor(r.Context(), id, q.language(), q.Refresh)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: plan})
}
