package mitigation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crowdrisk/internal/cache"
	"crowdrisk/internal/i18n"
	"crowdrisk/internal/risk"
	"crowdrisk/internal/types"
)

// Evaluator is the subset of risk.Engine the service needs.
type Evaluator interface {
	Location(ctx context.Context, id int64) (*types.Location, error)
	EvaluateAll(ctx context.Context, opts risk.Options) ([]*types.RiskAssessment, error)
}

// Service builds cached mitigation plans from fresh evaluations of every
// location.
type Service struct {
	evaluator Evaluator
	planner   Planner
	plans     *cache.Layered[*types.MitigationPlan]
	ttl       time.Duration
	logger    *slog.Logger
}

// NewService creates a Service. Plans are cached for ttl per location and
// language.
func NewService(evaluator Evaluator, planner Planner, plans *cache.Layered[*types.MitigationPlan], ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		evaluator: evaluator,
		planner:   planner,
		plans:     plans,
		ttl:       ttl,
		logger:    logger,
	}
}

// PlanKey is the cache key for a plan.
func PlanKey(locationID int64, language string) string {
	return fmt.Sprintf("mitigation:%d:%s", locationID, language)
}

// PlanFor returns the mitigation plan for a location. refresh bypasses the
// plan cache; assessments of sibling locations may still come from the
// assessment cache.
func (s *Service) PlanFor(ctx context.Context, locationID int64, language string, refresh bool) (*types.MitigationPlan, error) {
	lang := i18n.Normalize(language)

	plan, _, err := s.plans.GetOrLoad(ctx, PlanKey(locationID, lang), refresh, func(ctx context.Context) (*types.MitigationPlan, time.Duration, error) {
		plan, err := s.build(ctx, locationID, lang)
		return plan, s.ttl, err
	})
	return plan, err
}

func (s *Service) build(ctx context.Context, locationID int64, lang string) (*types.MitigationPlan, error) {
	loc, err := s.evaluator.Location(ctx, locationID)
	if err != nil {
		return nil, err
	}

	all, err := s.evaluator.EvaluateAll(ctx, risk.Options{Language: lang})
	if err != nil {
		return nil, err
	}

	var current *types.RiskAssessment
	for _, a := range all {
		if a.LocationID == loc.ID {
			current = a
			break
		}
	}
	if current == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundLocation, fmt.Sprintf("location %d not found", locationID), nil)
	}

	plan := s.planner.Plan(*loc, current, all, lang)

	level := slog.LevelInfo
	if plan.RiskLevel == types.RiskRed {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "mitigation generated",
		"location_id", plan.LocationID,
		"risk_level", string(plan.RiskLevel),
		"actions_count", len(plan.Actions),
		"alternatives_count", len(plan.AlternateLocations),
		"language", lang,
	)
	return plan, nil
}
