package risk

import (
	"cmp"
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"crowdrisk/internal/numeric"
	"crowdrisk/internal/types"
)

// Analytics tuning.
const (
	// ForecastHorizon is the number of hourly forecast points.
	ForecastHorizon = 12
	// CorrelationWindow is the number of historical samples in the
	// traffic-correlation dataset.
	CorrelationWindow = 48
	// TrendWindow is how far back the overview risk trend reaches.
	TrendWindow = 24 * time.Hour
	// CardCount is the number of plain-language cards in the overview.
	CardCount = 3

	// Forecast points past forecastWeatherDriftAfter hours scale the
	// weather score by forecastWeatherDrift.
	forecastWeatherDriftAfter = 8
	forecastWeatherDrift      = 1.05

	// Projection rule used when the predictor fails.
	ForecastFallbackConfidence = 0.4
	MinForecastFootfall        = 30.0
)

// Analytics builds the per-location analytics view: the current assessment,
// a 12-hour footfall forecast with its sustainability timeline, and the
// recent traffic-correlation dataset.
func (e *Engine) Analytics(ctx context.Context, locationID int64, opts Options) (*types.LocationAnalytics, error) {
	loc, err := e.deps.Locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	current, err := e.Evaluate(ctx, *loc, opts)
	if err != nil {
		return nil, err
	}

	var (
		latest      *types.FeatureSample
		rollingMean float64
		correlation = []types.CorrelationSample{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if latest, err = e.deps.Features.Latest(gctx, loc.ID); err != nil {
			return err
		}
		rollingMean, err = e.deps.Features.RollingMean(gctx, loc.ID, RollingWindow)
		return err
	})
	if e.deps.History != nil {
		g.Go(func() error {
			rows, err := e.deps.History.CorrelationSeries(gctx, loc.ID, CorrelationWindow)
			if err != nil {
				return err
			}
			if rows != nil {
				correlation = rows
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	forecast := e.Forecast(ctx, *loc, current, latest, rollingMean)
	return &types.LocationAnalytics{
		Location:               *loc,
		Language:               current.Language,
		CurrentRisk:            current,
		Forecast:               forecast,
		SustainabilityTimeline: SustainabilityTimeline(forecast, loc.Capacity, current.TrafficIndex),
		TrafficCorrelation:     correlation,
		PlainExplanation: types.PlainExplanation{
			Summary:         current.PlainSummary,
			DominantDriver:  current.DominantDriver,
			FactorBreakdown: current.FactorBreakdown,
			Environment:     current.Environment,
		},
	}, nil
}

// Forecast projects footfall for each of the next ForecastHorizon hours.
// Each hour reuses the current signals, shifted by hour-of-day traffic and
// social patterns, and falls back to ProjectedFootfall when the predictor
// fails. baseline may be nil.
func (e *Engine) Forecast(ctx context.Context, loc types.Location, current *types.RiskAssessment, baseline *types.FeatureSample, rollingMean float64) []types.ForecastPoint {
	if rollingMean == 0 {
		rollingMean = float64(loc.AverageDailyFootfall) / 24
	}
	now := e.deps.Clock.Now()
	points := make([]types.ForecastPoint, ForecastHorizon)

	var g errgroup.Group
	for i := range points {
		offset := i + 1
		g.Go(func() error {
			ts := now.Add(time.Duration(offset) * time.Hour)
			fv := projectedFeatures(loc.ID, current, baseline, rollingMean, offset, ts.UTC().Hour())

			p := types.ForecastPoint{Timestamp: ts, HourOffset: offset, Capacity: loc.Capacity}
			var pred *types.Prediction
			var err error
			if e.deps.Predictor != nil {
				pred, err = e.callPredictor(ctx, fv)
			}
			if e.deps.Predictor == nil || err != nil {
				p.PredictedFootfall = ProjectedFootfall(rollingMean, fv.SocialMediaSpikeIndex)
				p.ConfidenceScore = ForecastFallbackConfidence
				p.Fallback = true
			} else {
				p.PredictedFootfall = pred.PredictedFootfall
				p.ConfidenceScore = pred.ConfidenceScore
			}
			points[i] = p
			return nil
		})
	}
	_ = g.Wait()

	fallbacks := 0
	for _, p := range points {
		if p.Fallback {
			fallbacks++
		}
	}
	if fallbacks > 0 {
		e.deps.Logger.WarnContext(ctx, "forecast used projection rule",
			"location_id", loc.ID,
			"fallback_points", fallbacks,
		)
	}
	return points
}

func projectedFeatures(locationID int64, current *types.RiskAssessment, baseline *types.FeatureSample, rollingMean float64, offset, hour int) types.FeatureVector {
	weather := current.WeatherScore
	if offset > forecastWeatherDriftAfter {
		weather *= forecastWeatherDrift
	}
	fv := types.FeatureVector{
		LocationID:            locationID,
		WeatherScore:          numeric.Clamp01(weather),
		SocialMediaSpikeIndex: SocialByHour(current.SocialMediaSpikeIndex, hour),
		TrafficIndex:          TrafficByHour(current.TrafficIndex, hour),
		RollingMean:           rollingMean,
	}
	if baseline != nil {
		fv.HolidayFlag = baseline.HolidayFlag
		fv.WeekendFlag = baseline.WeekendFlag
	}
	return fv
}

// TrafficByHour shifts a traffic index by the hour-of-day (UTC) pattern:
// morning and evening peaks, a quiet night.
func TrafficByHour(base float64, hour int) float64 {
	switch {
	case hour >= 7 && hour <= 10:
		return numeric.Clamp01(base + 0.2)
	case hour >= 17 && hour <= 20:
		return numeric.Clamp01(base + 0.18)
	case hour >= 23 || hour <= 4:
		return numeric.Clamp01(base - 0.18)
	default:
		return numeric.Clamp01(base + 0.04)
	}
}

// SocialByHour shifts a social spike index by the hour-of-day (UTC) pattern.
func SocialByHour(base float64, hour int) float64 {
	switch {
	case hour >= 18 && hour <= 22:
		return numeric.Clamp01(base + 0.12)
	case hour <= 6:
		return numeric.Clamp01(base - 0.12)
	default:
		return numeric.Clamp01(base + 0.03)
	}
}

// ProjectedFootfall is the forecast rule used when the predictor fails.
func ProjectedFootfall(rollingMean, social float64) float64 {
	return max(MinForecastFootfall, numeric.Round(rollingMean*(1+social*0.2), 2))
}

// SustainabilityTimeline scores each forecast point, approximating its risk
// by capacity utilization.
func SustainabilityTimeline(forecast []types.ForecastPoint, capacity int, trafficIndex float64) []types.SustainabilityPoint {
	out := make([]types.SustainabilityPoint, len(forecast))
	for i, p := range forecast {
		riskApprox := 100.0
		if capacity > 0 {
			riskApprox = min(100, p.PredictedFootfall/float64(capacity)*100)
		}
		out[i] = types.SustainabilityPoint{
			Timestamp:           p.Timestamp,
			SustainabilityScore: Sustainability(riskApprox, trafficIndex),
		}
	}
	return out
}

// RiskTrend recomputes the risk score of every sample observed within
// TrendWindow from its actual footfall. It is empty without a HistoryStore.
func (e *Engine) RiskTrend(ctx context.Context) ([]types.TrendPoint, error) {
	out := []types.TrendPoint{}
	if e.deps.History == nil {
		return out, nil
	}
	samples, err := e.deps.History.TrendSince(ctx, e.deps.Clock.Now().Add(-TrendWindow))
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		score := Score(Inputs{
			PredictedFootfall:     float64(s.ActualFootfall),
			Capacity:              s.Capacity,
			WeatherScore:          s.WeatherScore,
			TrafficIndex:          s.TrafficIndex,
			SocialMediaSpikeIndex: s.SocialMediaSpikeIndex,
		})
		out = append(out, types.TrendPoint{
			Timestamp:    s.Timestamp,
			LocationID:   s.LocationID,
			LocationName: s.LocationName,
			RiskScore:    score,
			RiskLevel:    Level(score),
		})
	}
	return out, nil
}

// CrowdChance blends risk score and capacity utilization into a 0-100
// likelihood of crowding.
func CrowdChance(a *types.RiskAssessment) float64 {
	return numeric.Round(numeric.Clamp(a.RiskScore*0.6+a.CapacityUtilizationPct*0.4, 0, 100), 2)
}

// Cards returns plain-language cards for the n riskiest assessments. Equal
// scores keep their input order.
func Cards(all []*types.RiskAssessment, n int) []types.PlainLanguageCard {
	ranked := slices.Clone(all)
	slices.SortStableFunc(ranked, func(a, b *types.RiskAssessment) int {
		return cmp.Compare(b.RiskScore, a.RiskScore)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	cards := make([]types.PlainLanguageCard, 0, len(ranked))
	for _, a := range ranked {
		cards = append(cards, types.PlainLanguageCard{
			LocationID:   a.LocationID,
			LocationName: a.LocationName,
			Summary:      a.PlainSummary,
			RiskLevel:    a.RiskLevel,
			CrowdChance:  CrowdChance(a),
		})
	}
	return cards
}
