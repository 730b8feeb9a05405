// Package scheduler runs periodic background jobs.
//
// The risk sweeper re-evaluates every location on a fixed interval. Each pass
// bypasses the assessment cache so a fresh snapshot is persisted per
// location, while signal caches still absorb provider load. One failing
// location does not abort the pass.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"crowdrisk/internal/i18n"
	"crowdrisk/internal/risk"
	"crowdrisk/internal/types"
)

// DefaultSweepInterval is used when SweeperConfig.Interval is unset.
const DefaultSweepInterval = 5 * time.Minute

// SweepEvaluator is the engine surface used by the sweeper.
type SweepEvaluator interface {
	Locations(ctx context.Context) ([]types.Location, error)
	Evaluate(ctx context.Context, loc types.Location, opts risk.Options) (*types.RiskAssessment, error)
}

// SweepObserver records the outcome of each pass.
type SweepObserver interface {
	ObserveSweep(d time.Duration, succeeded, failed int)
}

// SweepResult summarises one pass.
type SweepResult struct {
	Succeeded int
	Failed    int
	Red       int
	Duration  time.Duration
}

// SweeperConfig tunes a Sweeper.
type SweeperConfig struct {
	Interval    time.Duration
	Concurrency int
	Language    string
}

// Sweeper periodically evaluates all locations.
type Sweeper struct {
	evaluator SweepEvaluator
	observer  SweepObserver
	cfg       SweeperConfig
	clock     types.Clock
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper. observer may be nil.
func NewSweeper(evaluator SweepEvaluator, observer SweepObserver, cfg SweeperConfig, clock types.Clock, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = risk.DefaultOverviewConcurrency
	}
	cfg.Language = i18n.Normalize(cfg.Language)
	return &Sweeper{
		evaluator: evaluator,
		observer:  observer,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}
}

// Run sweeps immediately and then once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("risk sweeper started",
		"interval", s.cfg.Interval.String(),
		"concurrency", s.cfg.Concurrency,
		"language", s.cfg.Language,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("risk sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep evaluates every location once. It returns an error only when the
// location list cannot be read; per-location failures are counted.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	start := s.clock.Now()

	locations, err := s.evaluator.Locations(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing locations: %w", err)
	}

	var succeeded, failed, red atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, loc := range locations {
		g.Go(func() error {
			a, err := s.evaluator.Evaluate(gctx, loc, risk.Options{Language: s.cfg.Language, RefreshRisk: true})
			if err != nil {
				failed.Add(1)
				s.logger.Warn("sweep evaluation failed", "location_id", loc.ID, "error", err)
				return nil
			}
			succeeded.Add(1)
			if a.RiskLevel == types.RiskRed {
				red.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Red:       int(red.Load()),
		Duration:  s.clock.Now().Sub(start),
	}
	if s.observer != nil {
		s.observer.ObserveSweep(res.Duration, res.Succeeded, res.Failed)
	}
	s.logger.Info("sweep complete",
		"locations", len(locations),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"red", res.Red,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
