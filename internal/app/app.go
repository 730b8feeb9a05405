// Package app assembles the crowdrisk service graph shared by the API server
// and the risk sweeper: stores, caches, provider clients, signal fetchers,
// the risk engine and the mitigation service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"crowdrisk/internal/cache"
	"crowdrisk/internal/config"
	"crowdrisk/internal/core"
	"crowdrisk/internal/db"
	"crowdrisk/internal/external"
	"crowdrisk/internal/mitigation"
	"crowdrisk/internal/risk"
	"crowdrisk/internal/signals"
	"crowdrisk/internal/telemetry"
	"crowdrisk/internal/types"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "crowdrisk"

// janitorInterval is how often expired local cache entries are purged.
const janitorInterval = time.Minute

// loadTimeout bounds an assessment or plan computation once it is detached
// from the request that started it.
const loadTimeout = 30 * time.Second

// Stores are the persistence collaborators of the engine. History is
// optional; without it the analytics views carry no historical datasets.
type Stores struct {
	Locations risk.LocationStore
	Features  risk.FeatureStore
	History   risk.HistoryStore
	Snapshots risk.SnapshotStore
}

// Infra carries the already-connected infrastructure. Shared and Alerts are
// nil when Redis is not configured.
type Infra struct {
	Stores  Stores
	Shared  cache.Store
	Local   *cache.LocalStore
	Alerts  risk.AlertPublisher
	Clients *external.ClientRegistry
	Metrics *telemetry.Metrics
	Clock   types.Clock
}

// Components is the assembled service graph.
type Components struct {
	Config     *config.Config
	Metrics    *telemetry.Metrics
	Local      *cache.LocalStore
	Signals    *signals.Service
	Engine     *risk.Engine
	Mitigation *mitigation.Service

	HealthProbes []core.HealthProbe

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Build connects to PostgreSQL and (when configured) Redis and assembles the
// service graph. Close releases the connections.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	features := db.NewFeatureRepository(pool)
	infra := Infra{
		Stores: Stores{
			Locations: db.NewLocationRepository(pool),
			Features:  features,
			History:   features,
			Snapshots: db.NewSnapshotRepository(pool),
		},
		Local:   cache.NewLocalStore(),
		Clients: external.NewClientRegistry(cfg, logger),
		Metrics: telemetry.New(MetricsNamespace),
	}
	probes := []core.HealthProbe{db.HealthProbe{DB: pool}}

	if rdb != nil {
		infra.Shared = cache.NewRedisStore(rdb, cfg.Redis.KeyPrefix, cfg.Redis.OpTimeout)
		infra.Alerts = cache.NewRedisPublisher(rdb, cfg.Redis.AlertChannel, cfg.Redis.OpTimeout)
		probes = append(probes, cache.HealthProbe{Client: rdb})
	} else {
		logger.Warn("redis not configured, using process-local cache only")
	}

	c := Assemble(cfg, infra, logger)
	c.HealthProbes = probes
	c.pool = pool
	c.redis = rdb
	return c, nil
}

// Assemble wires the services on top of infra.
func Assemble(cfg *config.Config, infra Infra, logger *slog.Logger) *Components {
	if logger == nil {
		logger = slog.Default()
	}
	if infra.Local == nil {
		infra.Local = cache.NewLocalStore()
	}
	if infra.Metrics == nil {
		infra.Metrics = telemetry.New(MetricsNamespace)
	}
	if infra.Clients == nil {
		infra.Clients = external.NewClientRegistry(cfg, logger)
	}
	if infra.Clock == nil {
		infra.Clock = types.RealClock{}
	}

	sigs := newSignalService(cfg, infra, logger)

	assessments := cache.NewLayered[*types.RiskAssessment]("risk", infra.Shared, infra.Local, cfg.Cache.LocalTTL,
		cache.WithLogger(logger), cache.WithObserver(infra.Metrics), cache.WithLoadTimeout(loadTimeout))
	engine := risk.NewEngine(risk.Dependencies{
		Locations: infra.Stores.Locations,
		Features:  infra.Stores.Features,
		History:   infra.Stores.History,
		Snapshots: infra.Stores.Snapshots,
		Signals:   sigs,
		Predictor: risk.NewPredictor(cfg.Predictor.Provider, infra.Clients.Model, infra.Clients.LLM, cfg.LLM.MaxOutputTokens),
		Alerts:    infra.Alerts,
		Metrics:   infra.Metrics,
		Clock:     infra.Clock,
		Logger:    logger.With("component", "risk"),
	}, risk.EngineConfig{
		AssessmentTTL:       cfg.Cache.RiskTTL,
		PredictorTimeout:    cfg.Predictor.Timeout,
		OverviewConcurrency: cfg.Sweeper.Concurrency,
	}, assessments)

	plans := cache.NewLayered[*types.MitigationPlan]("mitigation", infra.Shared, infra.Local, cfg.Cache.LocalTTL,
		cache.WithLogger(logger), cache.WithObserver(infra.Metrics), cache.WithLoadTimeout(loadTimeout))
	planner := mitigation.NewService(engine, mitigation.Planner{}, plans, cfg.Cache.MitigationTTL, logger.With("component", "mitigation"))

	return &Components{
		Config:     cfg,
		Metrics:    infra.Metrics,
		Local:      infra.Local,
		Signals:    sigs,
		Engine:     engine,
		Mitigation: planner,
	}
}

func newSignalService(cfg *config.Config, infra Infra, logger *slog.Logger) *signals.Service {
	opts := []signals.FetcherOption{
		signals.WithClock(infra.Clock),
		signals.WithTierObserver(infra.Metrics),
		signals.WithFetcherLogger(logger.With("component", "signals")),
	}

	envFetcher := signals.NewTieredFetcher[*types.EnvironmentSignal](types.SignalEnvironment,
		signals.Tier[*types.EnvironmentSignal]{
			Provider: signals.OpenWeatherProvider{Source: infra.Clients.Weather},
			Timeout:  cfg.Weather.Timeout,
		},
		signals.Tier[*types.EnvironmentSignal]{
			Provider: signals.LLMEnvironmentProvider{LLM: infra.Clients.LLM},
			Timeout:  cfg.LLM.Timeout,
		},
		signals.SyntheticEnvironment,
		opts...,
	)

	routes := signals.RoutesProvider{Routes: infra.Clients.Routes}
	if lat, lng, ok := cfg.Traffic.Origin(); ok {
		routes.CustomOrigin = &external.LatLng{Lat: lat, Lng: lng}
	}
	trafficFetcher := signals.NewTieredFetcher[*types.TrafficSignal](types.SignalTraffic,
		signals.Tier[*types.TrafficSignal]{Provider: routes, Timeout: cfg.Traffic.Timeout},
		signals.Tier[*types.TrafficSignal]{
			Provider: signals.LLMTrafficProvider{LLM: infra.Clients.LLM},
			Timeout:  cfg.LLM.Timeout,
		},
		signals.SyntheticTraffic,
		opts...,
	)

	return signals.NewService(signals.ServiceConfig{
		EnvironmentMode: cfg.Weather.Mode,
		TrafficMode:     cfg.Traffic.Mode,
		EnvironmentTTL:  cfg.Cache.EnvironmentTTL,
		TrafficTTL:      cfg.Cache.TrafficTTL,
		SyntheticTTL:    cfg.Cache.SyntheticTTL,
		LocalTTL:        cfg.Cache.LocalTTL,
	}, envFetcher, trafficFetcher, infra.Shared, infra.Local, infra.Metrics, logger)
}

// StartJanitor purges expired local cache entries until ctx is done.
func (c *Components) StartJanitor(ctx context.Context) {
	go c.Local.RunJanitor(ctx, janitorInterval)
}

// Close releases the database pool and Redis client.
func (c *Components) Close() error {
	var err error
	if c.redis != nil {
		err = c.redis.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	return err
}
