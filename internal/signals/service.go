package signals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crowdrisk/internal/cache"
	"crowdrisk/internal/types"
)

// ServiceConfig holds the operating modes and cache TTLs of a Service.
type ServiceConfig struct {
	EnvironmentMode types.SignalMode
	TrafficMode     types.SignalMode
	EnvironmentTTL  time.Duration
	TrafficTTL      time.Duration
	// SyntheticTTL caps the TTL of synthetic results so failing providers are
	// retried sooner without being hammered on every request.
	SyntheticTTL time.Duration
	LocalTTL     time.Duration
}

// Service serves cached environment and traffic signals.
type Service struct {
	cfg         ServiceConfig
	environment *TieredFetcher[*types.EnvironmentSignal]
	traffic     *TieredFetcher[*types.TrafficSignal]

	envCache     *cache.Layered[*types.EnvironmentSignal]
	trafficCache *cache.Layered[*types.TrafficSignal]
}

// NewService wires the fetchers behind a two-level cache. shared may be nil.
func NewService(
	cfg ServiceConfig,
	environment *TieredFetcher[*types.EnvironmentSignal],
	traffic *TieredFetcher[*types.TrafficSignal],
	shared, local cache.Store,
	observer cache.Observer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EnvironmentMode == "" {
		cfg.EnvironmentMode = types.ModeAuto
	}
	if cfg.TrafficMode == "" {
		cfg.TrafficMode = types.ModeAuto
	}
	opts := []cache.LayeredOption{cache.WithLogger(logger)}
	if observer != nil {
		opts = append(opts, cache.WithObserver(observer))
	}
	return &Service{
		cfg:          cfg,
		environment:  environment,
		traffic:      traffic,
		envCache:     cache.NewLayered[*types.EnvironmentSignal](string(types.SignalEnvironment), shared, local, cfg.LocalTTL, opts...),
		trafficCache: cache.NewLayered[*types.TrafficSignal](string(types.SignalTraffic), shared, local, cfg.LocalTTL, opts...),
	}
}

// CacheKey is the signal cache key for (kind, location, mode).
func CacheKey(kind types.SignalKind, locationID int64, mode types.SignalMode) string {
	return fmt.Sprintf("signal:%s:%d:%s", kind, locationID, mode)
}

// Environment returns the environment signal for loc. refresh skips the cache
// read but still writes the fresh result.
func (s *Service) Environment(ctx context.Context, loc types.Location, refresh bool) *types.EnvironmentSignal {
	mode := s.cfg.EnvironmentMode
	key := CacheKey(types.SignalEnvironment, loc.ID, mode)

	sig, _, err := s.envCache.GetOrLoad(ctx, key, refresh, func(ctx context.Context) (*types.EnvironmentSignal, time.Duration, error) {
		sig := s.environment.Fetch(ctx, loc, mode)
		return sig, s.ttlFor(sig.Source, s.cfg.EnvironmentTTL), nil
	})
	if err != nil {
		// Only the caller's own cancellation lands here; the shared fetch
		// keeps running and is cached for the next caller.
		return s.environment.Fetch(ctx, loc, mode)
	}
	return sig
}

// Traffic returns the traffic signal for loc.
func (s *Service) Traffic(ctx context.Context, loc types.Location, refresh bool) *types.TrafficSignal {
	mode := s.cfg.TrafficMode
	key := CacheKey(types.SignalTraffic, loc.ID, mode)

	sig, _, err := s.trafficCache.GetOrLoad(ctx, key, refresh, func(ctx context.Context) (*types.TrafficSignal, time.Duration, error) {
		sig := s.traffic.Fetch(ctx, loc, mode)
		return sig, s.ttlFor(sig.Source, s.cfg.TrafficTTL), nil
	})
	if err != nil {
		return s.traffic.Fetch(ctx, loc, mode)
	}
	return sig
}

func (s *Service) ttlFor(source types.SignalSource, ttl time.Duration) time.Duration {
	if source == types.SourceSynthetic && s.cfg.SyntheticTTL > 0 && s.cfg.SyntheticTTL < ttl {
		return s.cfg.SyntheticTTL
	}
	return ttl
}
