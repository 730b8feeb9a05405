package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crowdrisk/internal/core"
	"crowdrisk/internal/types"
)

// LocationService lists locations and their snapshot history.
type LocationService interface {
	Locations(ctx context.Context) ([]types.Location, error)
	Series(ctx context.Context, locationID int64, limit int) ([]types.RiskSnapshot, error)
}

// LocationHandler serves reference data and risk trends.
type LocationHandler struct {
	service   LocationService
	validator *core.Validator
	logger    *slog.Logger
}

// NewLocationHandler creates a LocationHandler.
func NewLocationHandler(svc LocationService, val *core.Validator, logger *slog.Logger) *LocationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the location endpoints.
func (h *LocationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/locations", h.HandleList)
	r.Get("/locations/{id}/series", h.HandleSeries)
}

// HandleList handles GET /v1/locations.
func (h *LocationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.Locations(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if locations == nil {
		locations = []types.Location{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: locations})
}

// SeriesResponse is the body of GET /v1/locations/{id}/series.
type SeriesResponse struct {
	LocationID int64                `json:"location_id"`
	Limit      int                  `json:"limit"`
	Snapshots  []types.RiskSnapshot `json:"snapshots"`
}

// HandleSeries handles GET /v1/locations/{id}/series?limit=. Snapshots are
// returned oldest first.
func (h *LocationHandler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	id, err := locationID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	q, err := parseSeriesQuery(r, h.validator)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snapshots, err := h.service.Series(r.Context(), id, q.Limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if snapshots == nil {
		snapshots = []types.RiskSnapshot{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: SeriesResponse{
		LocationID: id,
		Limit:      q.Limit,
		Snapshots:  snapshots,
	}})
}
