// Package risk fuses footfall predictions with environment and traffic
// signals into a 0-100 crowd risk score per location.
//
// Every external input has a non-failing fallback, so Evaluate only returns
// an error when the relational store fails or the location does not exist.
package risk

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"crowdrisk/internal/cache"
	"crowdrisk/internal/external"
	"crowdrisk/internal/i18n"
	"crowdrisk/internal/types"
)

// RollingWindow is the number of recent samples averaged into the baseline.
const RollingWindow = 3

// DefaultOverviewConcurrency bounds EvaluateAll when no limit is configured.
const DefaultOverviewConcurrency = 4

// LocationStore reads reference locations.
type LocationStore interface {
	GetByID(ctx context.Context, id int64) (*types.Location, error)
	List(ctx context.Context) ([]types.Location, error)
}

// FeatureStore reads the historical feature series.
type FeatureStore interface {
	Latest(ctx context.Context, locationID int64) (*types.FeatureSample, error)
	RollingMean(ctx context.Context, locationID int64, n int) (float64, error)
}

// SnapshotStore persists and reads evaluation snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, s *types.RiskSnapshot) error
	Recent(ctx context.Context, locationID int64, limit int) ([]types.RiskSnapshot, error)
}

// HistoryStore serves the historical datasets behind the analytics views.
type HistoryStore interface {
	CorrelationSeries(ctx context.Context, locationID int64, limit int) ([]types.CorrelationSample, error)
	TrendSince(ctx context.Context, since time.Time) ([]types.TrendSample, error)
}

// SignalSource serves environment and traffic signals. Both calls always
// return a signal.
type SignalSource interface {
	Environment(ctx context.Context, loc types.Location, refresh bool) *types.EnvironmentSignal
	Traffic(ctx context.Context, loc types.Location, refresh bool) *types.TrafficSignal
}

// AlertPublisher broadcasts RED assessments.
type AlertPublisher interface {
	Publish(ctx context.Context, msg any) error
}

// Observer receives evaluation metrics.
type Observer interface {
	ObserveEvaluation(level string, predictorFallback bool)
	ObserveAlert(err error)
}

// Options control one evaluation.
type Options struct {
	Language string
	// RefreshRisk bypasses the assessment cache.
	RefreshRisk bool
	// RefreshEnvironment bypasses the environment and traffic caches.
	RefreshEnvironment bool
}

// Alert is published for every fresh RED assessment.
type Alert struct {
	LocationID     int64           `json:"location_id"`
	LocationName   string          `json:"location_name"`
	RiskScore      float64         `json:"risk_score"`
	RiskLevel      types.RiskLevel `json:"risk_level"`
	DominantDriver types.Driver    `json:"dominant_driver"`
	PlainSummary   string          `json:"plain_summary"`
	EvaluatedAt    time.Time       `json:"evaluated_at"`
}

// Dependencies are the collaborators of an Engine. History, Alerts and
// Metrics are optional.
type Dependencies struct {
	Locations LocationStore
	Features  FeatureStore
	History   HistoryStore
	Snapshots SnapshotStore
	Signals   SignalSource
	Predictor Predictor
	Alerts    AlertPublisher
	Metrics   Observer
	Clock     types.Clock
	Logger    *slog.Logger
}

// EngineConfig tunes an Engine.
type EngineConfig struct {
	AssessmentTTL       time.Duration
	PredictorTimeout    time.Duration
	OverviewConcurrency int
}

// Engine evaluates location risk.
type Engine struct {
	deps        Dependencies
	cfg         EngineConfig
	assessments *cache.Layered[*types.RiskAssessment]
}

// NewEngine creates an Engine. assessments caches results keyed by location
// and language.
func NewEngine(deps Dependencies, cfg EngineConfig, assessments *cache.Layered[*types.RiskAssessment]) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if cfg.OverviewConcurrency <= 0 {
		cfg.OverviewConcurrency = DefaultOverviewConcurrency
	}
	return &Engine{deps: deps, cfg: cfg, assessments: assessments}
}

// AssessmentKey is the cache key for an assessment.
func AssessmentKey(locationID int64, language string) string {
	return fmt.Sprintf("risk:%d:%s", locationID, language)
}

// EvaluateByID loads the location and evaluates it.
func (e *Engine) EvaluateByID(ctx context.Context, id int64, opts Options) (*types.RiskAssessment, error) {
	loc, err := e.deps.Locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, *loc, opts)
}

// Evaluate returns the risk assessment for loc. Within the assessment TTL a
// cached result is returned unchanged and no snapshot is written. Concurrent
// evaluations of the same location and language share one computation.
func (e *Engine) Evaluate(ctx context.Context, loc types.Location, opts Options) (*types.RiskAssessment, error) {
	lang := i18n.Normalize(opts.Language)
	key := AssessmentKey(loc.ID, lang)

	a, _, err := e.assessments.GetOrLoad(ctx, key, opts.RefreshRisk, func(ctx context.Context) (*types.RiskAssessment, time.Duration, error) {
		a, err := e.evaluate(ctx, loc, lang, opts.RefreshEnvironment)
		return a, e.cfg.AssessmentTTL, err
	})
	return a, err
}

type featureBundle struct {
	latest      *types.FeatureSample
	rollingMean float64
	environment *types.EnvironmentSignal
	traffic     *types.TrafficSignal
}

func (e *Engine) gather(ctx context.Context, loc types.Location, refresh bool) (*featureBundle, error) {
	var b featureBundle
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		latest, err := e.deps.Features.Latest(gctx, loc.ID)
		if err != nil {
			return err
		}
		mean, err := e.deps.Features.RollingMean(gctx, loc.ID, RollingWindow)
		if err != nil {
			return err
		}
		b.latest, b.rollingMean = latest, mean
		return nil
	})
	g.Go(func() error {
		b.environment = e.deps.Signals.Environment(gctx, loc, refresh)
		return nil
	})
	g.Go(func() error {
		b.traffic = e.deps.Signals.Traffic(gctx, loc, refresh)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &b, nil
}

// featureVector merges history with live signals. Without history the
// baseline uses neutral defaults and an hourly share of average daily
// footfall.
func featureVector(loc types.Location, b *featureBundle) types.FeatureVector {
	fv := types.FeatureVector{
		LocationID:            loc.ID,
		WeatherScore:          0.5,
		SocialMediaSpikeIndex: 0.4,
		TrafficIndex:          0.5,
		RollingMean:           float64(roundHalfUp(float64(loc.AverageDailyFootfall) / 24)),
	}
	if b.latest != nil {
		fv.WeatherScore = b.latest.WeatherScore
		fv.HolidayFlag = b.latest.HolidayFlag
		fv.WeekendFlag = b.latest.WeekendFlag
		fv.SocialMediaSpikeIndex = b.latest.SocialMediaSpikeIndex
		fv.TrafficIndex = b.latest.TrafficIndex
		fv.RollingMean = b.rollingMean
		if fv.RollingMean == 0 {
			fv.RollingMean = float64(b.latest.ActualFootfall)
		}
	}
	if b.environment != nil {
		fv.WeatherScore = b.environment.EnvironmentalRiskIndex
	}
	if b.traffic != nil {
		fv.TrafficIndex = b.traffic.NormalizedIndex
	}
	return fv
}

func roundHalfUp(v float64) int64 {
	return int64(v + 0.5)
}

// predict runs the predictor under its timeout and absorbs any failure into
// the rule-based fallback.
func (e *Engine) predict(ctx context.Context, fv types.FeatureVector) (pred *types.Prediction, reason string) {
	if e.deps.Predictor == nil {
		return FallbackPrediction(fv), "predictor_unconfigured"
	}
	pred, err := e.callPredictor(ctx, fv)
	if err == nil {
		return pred, ""
	}
	reason = external.AsProviderError("predictor", err).Error()
	e.deps.Logger.WarnContext(ctx, "footfall predictor failed, using fallback rule",
		"location_id", fv.LocationID,
		"reason", reason,
	)
	return FallbackPrediction(fv), reason
}

// callPredictor runs one prediction under the predictor timeout.
func (e *Engine) callPredictor(ctx context.Context, fv types.FeatureVector) (*types.Prediction, error) {
	if e.cfg.PredictorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.PredictorTimeout)
		defer cancel()
	}
	pred, err := e.deps.Predictor.Predict(ctx, fv)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return nil, errors.New("empty prediction")
	}
	return pred, nil
}

func (e *Engine) evaluate(ctx context.Context, loc types.Location, lang string, refreshEnvironment bool) (*types.RiskAssessment, error) {
	bundle, err := e.gather(ctx, loc, refreshEnvironment)
	if err != nil {
		return nil, err
	}
	fv := featureVector(loc, bundle)
	pred, predictorFailure := e.predict(ctx, fv)

	in := Inputs{
		PredictedFootfall:     pred.PredictedFootfall,
		Capacity:              loc.Capacity,
		WeatherScore:          fv.WeatherScore,
		TrafficIndex:          fv.TrafficIndex,
		SocialMediaSpikeIndex: fv.SocialMediaSpikeIndex,
	}
	score := Score(in)
	level := Level(score)
	breakdown := Breakdown(in)
	driver, driverScore := Dominant(breakdown)
	driverLabel := i18n.DriverLabel(lang, driver)
	utilization := Utilization(in)

	a := &types.RiskAssessment{
		LocationID:             loc.ID,
		LocationName:           loc.Name,
		Latitude:               loc.Latitude,
		Longitude:              loc.Longitude,
		Capacity:               loc.Capacity,
		PredictedFootfall:      pred.PredictedFootfall,
		ConfidenceScore:        pred.ConfidenceScore,
		ModelVersion:           pred.ModelVersion,
		WeatherScore:           fv.WeatherScore,
		TrafficIndex:           fv.TrafficIndex,
		SocialMediaSpikeIndex:  fv.SocialMediaSpikeIndex,
		RiskScore:              score,
		SustainabilityScore:    Sustainability(score, fv.TrafficIndex),
		RiskLevel:              level,
		CapacityUtilizationPct: utilization,
		FactorBreakdown:        breakdown,
		DominantDriver:         types.DominantDriver{Key: driver, Label: driverLabel, Score: driverScore},
		PlainSummary:           i18n.Summary(lang, level, loc.Name, driverLabel, utilization),
		Environment:            bundle.environment,
		TrafficDetail:          bundle.traffic,
		Language:               lang,
		EvaluatedAt:            e.deps.Clock.Now(),
	}
	if env := bundle.environment; env != nil {
		a.WeatherSource = env.Source
		a.AQIIndex = env.AQINormalized
	}
	if tr := bundle.traffic; tr != nil {
		a.TrafficSource = tr.Source
	}
	a.DegradedReasons = degradedReasons(predictorFailure, a)
	a.DegradedMode = len(a.DegradedReasons) > 0

	if err := e.deps.Snapshots.Insert(ctx, snapshotOf(a)); err != nil {
		return nil, err
	}

	e.observe(ctx, a, predictorFailure != "")
	return a, nil
}

// degradedReasons lists each primary input that was replaced by a fallback.
func degradedReasons(predictorFailure string, a *types.RiskAssessment) []string {
	var reasons []string
	if predictorFailure != "" {
		reasons = append(reasons, "predictor:"+predictorFailure)
	}
	if a.WeatherSource == types.SourceSynthetic {
		reasons = append(reasons, "environment:"+string(types.SourceSynthetic))
	}
	if a.TrafficSource == types.SourceSynthetic {
		reasons = append(reasons, "traffic:"+string(types.SourceSynthetic))
	}
	return reasons
}

func snapshotOf(a *types.RiskAssessment) *types.RiskSnapshot {
	s := &types.RiskSnapshot{
		LocationID:             a.LocationID,
		PredictedFootfall:      a.PredictedFootfall,
		ConfidenceScore:        a.ConfidenceScore,
		RiskScore:              a.RiskScore,
		SustainabilityScore:    a.SustainabilityScore,
		WeatherScore:           a.WeatherScore,
		TrafficIndex:           a.TrafficIndex,
		SocialMediaSpikeIndex:  a.SocialMediaSpikeIndex,
		AQIIndex:               a.AQIIndex,
		EnvironmentalRiskIndex: a.WeatherScore,
	}
	if env := a.Environment; env != nil {
		condition := env.Condition
		s.WeatherCondition = &condition
		s.EnvironmentalRiskIndex = env.EnvironmentalRiskIndex
	}
	return s
}

func (e *Engine) observe(ctx context.Context, a *types.RiskAssessment, predictorFallback bool) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.ObserveEvaluation(string(a.RiskLevel), predictorFallback)
	}
	if a.RiskLevel != types.RiskRed {
		return
	}

	e.deps.Logger.WarnContext(ctx, "location in red risk",
		"location_id", a.LocationID,
		"risk_score", a.RiskScore,
		"dominant_driver", string(a.DominantDriver.Key),
		"weather_source", string(a.WeatherSource),
		"traffic_source", string(a.TrafficSource),
	)
	if e.deps.Alerts == nil {
		return
	}
	err := e.deps.Alerts.Publish(ctx, Alert{
		LocationID:     a.LocationID,
		LocationName:   a.LocationName,
		RiskScore:      a.RiskScore,
		RiskLevel:      a.RiskLevel,
		DominantDriver: a.DominantDriver.Key,
		PlainSummary:   a.PlainSummary,
		EvaluatedAt:    a.EvaluatedAt,
	})
	if e.deps.Metrics != nil {
		e.deps.Metrics.ObserveAlert(err)
	}
	if err != nil {
		e.deps.Logger.WarnContext(ctx, "failed to publish red alert", "location_id", a.LocationID, "error", err)
	}
}

// EvaluateAll evaluates every location concurrently and returns the results
// ordered by location id. Any store failure fails the whole call.
func (e *Engine) EvaluateAll(ctx context.Context, opts Options) ([]*types.RiskAssessment, error) {
	locations, err := e.deps.Locations.List(ctx)
	if err != nil {
		return nil, err
	}
	return e.evaluateMany(ctx, locations, opts)
}

func (e *Engine) evaluateMany(ctx context.Context, locations []types.Location, opts Options) ([]*types.RiskAssessment, error) {
	results := make([]*types.RiskAssessment, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.OverviewConcurrency)
	for i, loc := range locations {
		g.Go(func() error {
			a, err := e.Evaluate(gctx, loc, opts)
			if err != nil {
				return fmt.Errorf("evaluating location %d: %w", loc.ID, err)
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *types.RiskAssessment) int {
		return cmp.Compare(a.LocationID, b.LocationID)
	})
	return results, nil
}

// Series returns up to limit recent snapshots for a location in
// chronological order.
func (e *Engine) Series(ctx context.Context, locationID int64, limit int) ([]types.RiskSnapshot, error) {
	if _, err := e.deps.Locations.GetByID(ctx, locationID); err != nil {
		return nil, err
	}
	return e.deps.Snapshots.Recent(ctx, locationID, limit)
}

// Location returns one location or a not_found_location error.
func (e *Engine) Location(ctx context.Context, id int64) (*types.Location, error) {
	return e.deps.Locations.GetByID(ctx, id)
}

// Locations lists every location.
func (e *Engine) Locations(ctx context.Context) ([]types.Location, error) {
	return e.deps.Locations.List(ctx)
}
