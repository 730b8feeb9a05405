// Package telemetry holds the Prometheus instruments shared by the API and the
// sweeper. Every method is safe on a nil *Metrics so components can run
// uninstrumented in tests.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide instrument set, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec
	tierOutcomes *prometheus.CounterVec
	tierLatency  *prometheus.HistogramVec

	evaluations        *prometheus.CounterVec
	predictorFallbacks prometheus.Counter
	alertsPublished    *prometheus.CounterVec

	sweepDuration  prometheus.Histogram
	sweepLocations *prometheus.CounterVec
}

// New builds and registers every instrument under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache, level and result.",
		}, []string{"cache", "level", "result"}),
		tierOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_tier_outcomes_total",
			Help:      "Signal tier attempts by signal, tier and outcome.",
		}, []string{"signal", "tier", "outcome"}),
		tierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signal_tier_duration_seconds",
			Help:      "Latency of attempted signal tiers.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8},
		}, []string{"signal", "tier"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_evaluations_total",
			Help:      "Fresh risk evaluations by resulting level.",
		}, []string{"level"}),
		predictorFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_fallbacks_total",
			Help:      "Evaluations that used the rule-based footfall fallback.",
		}),
		alertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_alerts_published_total",
			Help:      "RED risk alerts published by outcome.",
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one all-location sweep.",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120},
		}),
		sweepLocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_locations_total",
			Help:      "Locations evaluated by the sweeper by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpLatency,
		m.cacheLookups, m.tierOutcomes, m.tierLatency,
		m.evaluations, m.predictorFallbacks, m.alertsPublished,
		m.sweepDuration, m.sweepLocations,
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one HTTP request.
func (m *Metrics) RecordRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveCache records a cache lookup at one level.
func (m *Metrics) ObserveCache(cache, level string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, level, result).Inc()
}

// ObserveTier records one tier attempt. Skipped tiers pass a zero duration
// and are not added to the latency histogram.
func (m *Metrics) ObserveTier(signal, tier, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.tierOutcomes.WithLabelValues(signal, tier, outcome).Inc()
	if d > 0 {
		m.tierLatency.WithLabelValues(signal, tier).Observe(d.Seconds())
	}
}

// ObserveEvaluation counts a fresh (non-cached) evaluation.
func (m *Metrics) ObserveEvaluation(level string, predictorFallback bool) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(level).Inc()
	if predictorFallback {
		m.predictorFallbacks.Inc()
	}
}

// ObserveAlert counts a RED alert publish attempt.
func (m *Metrics) ObserveAlert(err error) {
	if m == nil {
		return
	}
	outcome := "published"
	if err != nil {
		outcome = "failed"
	}
	m.alertsPublished.WithLabelValues(outcome).Inc()
}

// ObserveSweep records one sweeper pass.
func (m *Metrics) ObserveSweep(d time.Duration, succeeded, failed int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
	m.sweepLocations.WithLabelValues("ok").Add(float64(succeeded))
	m.sweepLocations.WithLabelValues("failed").Add(float64(failed))
}
