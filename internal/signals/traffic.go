package signals

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"crowdrisk/internal/external"
	"crowdrisk/internal/numeric"
	"crowdrisk/internal/types"
)

// Probe geometry. Origins sit on a ring far enough out to cross the arterial
// roads feeding a site; destinations sit on a tight ring of access points.
const (
	originRadiusKM      = 8.0
	destinationRadiusKM = 3.0
	kmPerDegree         = 111.0
	minCosLatitude      = 0.35

	// staticDurationFallback estimates a missing free-flow duration.
	staticDurationFallback = 0.82

	// AggregationWorstCase labels the representative-probe policy.
	AggregationWorstCase = "worst_case_nearby"
)

// ProbePoint is a labelled probe coordinate.
type ProbePoint struct {
	Label string
	external.LatLng
}

func ringOffsets(lat, radiusKM float64) (latOffset, lngOffset float64) {
	cosLat := math.Max(minCosLatitude, math.Cos(lat*math.Pi/180))
	return radiusKM / kmPerDegree, radiusKM / (kmPerDegree * cosLat)
}

// dedupe drops points that coincide at 5 decimal places, keeping the first.
func dedupe(points []ProbePoint) []ProbePoint {
	seen := make(map[string]struct{}, len(points))
	out := points[:0]
	for _, p := range points {
		key := fmt.Sprintf("%.5f:%.5f", p.Lat, p.Lng)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ProbeOrigins returns the origin ring for loc, plus custom when non-nil.
func ProbeOrigins(loc types.Location, custom *external.LatLng) []ProbePoint {
	lat, lng := loc.Latitude, loc.Longitude
	dLat, dLng := ringOffsets(lat, originRadiusKM)

	points := []ProbePoint{
		{"north_west", external.LatLng{Lat: lat + dLat, Lng: lng - dLng}},
		{"north_east", external.LatLng{Lat: lat + dLat, Lng: lng + dLng}},
		{"south", external.LatLng{Lat: lat - dLat, Lng: lng}},
	}
	if custom != nil {
		points = append(points, ProbePoint{"custom_origin", *custom})
	}
	return dedupe(points)
}

// ProbeDestinations returns the access-point ring for loc, exact first.
func ProbeDestinations(loc types.Location) []ProbePoint {
	lat, lng := loc.Latitude, loc.Longitude
	dLat, dLng := ringOffsets(lat, destinationRadiusKM)

	return dedupe([]ProbePoint{
		{"exact", external.LatLng{Lat: lat, Lng: lng}},
		{"north_access", external.LatLng{Lat: lat + dLat, Lng: lng}},
		{"south_access", external.LatLng{Lat: lat - dLat, Lng: lng}},
		{"east_access", external.LatLng{Lat: lat, Lng: lng + dLng}},
		{"west_access", external.LatLng{Lat: lat, Lng: lng - dLng}},
	})
}

// CongestionIndex maps a traffic-aware duration against its free-flow
// baseline onto [0,1]: ratio 1.0 is 0, ratio 2.0 and above is 1.
func CongestionIndex(duration, baseline float64) float64 {
	d := math.Max(1, duration)
	b := math.Max(1, baseline)
	return numeric.Clamp01((d/b - 1) / 1.0)
}

type probeResult struct {
	origin      string
	destination string
	index       float64
	duration    float64
	baseline    float64
	distance    float64
}

// RoutesProvider is the live traffic tier. It routes from every origin to the
// first reachable destination, concurrently per origin, and reports the worst
// congestion seen. A failing origin does not fail the fetch.
type RoutesProvider struct {
	Routes       external.RouteSource
	CustomOrigin *external.LatLng
}

func (p RoutesProvider) Name() string { return external.ProviderGoogleRoutes }

func (p RoutesProvider) Configured() bool {
	return p.Routes != nil && p.Routes.Configured()
}

func (p RoutesProvider) Fetch(ctx context.Context, loc types.Location) (*types.TrafficSignal, error) {
	origins := ProbeOrigins(loc, p.CustomOrigin)
	destinations := ProbeDestinations(loc)

	results := make([]*probeResult, len(origins))
	failures := make([]error, len(origins))

	var g errgroup.Group
	for i, origin := range origins {
		g.Go(func() error {
			results[i], failures[i] = p.probe(ctx, origin, destinations)
			return nil
		})
	}
	_ = g.Wait()

	var ok []*probeResult
	var reasons []string
	for i, r := range results {
		if r != nil {
			ok = append(ok, r)
			continue
		}
		if len(reasons) < 3 {
			reasons = append(reasons, failures[i].Error())
		}
	}
	if len(ok) == 0 {
		return nil, &external.ProviderError{
			Provider: external.ProviderGoogleRoutes,
			Status:   "no_probe_success",
			Message:  strings.Join(reasons, "|"),
		}
	}
	return aggregateProbes(ok), nil
}

// probe tries destinations in order and returns the first routable one.
func (p RoutesProvider) probe(ctx context.Context, origin ProbePoint, destinations []ProbePoint) (*probeResult, error) {
	var errs []string
	for _, dest := range destinations {
		route, err := p.Routes.ComputeRoute(ctx, origin.LatLng, dest.LatLng)
		if err != nil {
			errs = append(errs, "probe_failed:"+dest.Label+":"+external.AsProviderError(external.ProviderGoogleRoutes, err).Error())
			if ctx.Err() != nil {
				break
			}
			continue
		}

		baseline := route.StaticDurationSeconds
		if baseline <= 0 {
			baseline = math.Max(1, route.DurationSeconds*staticDurationFallback)
		}
		return &probeResult{
			origin:      origin.Label,
			destination: dest.Label,
			index:       numeric.Round(CongestionIndex(route.DurationSeconds, baseline), 4),
			duration:    route.DurationSeconds,
			baseline:    baseline,
			distance:    route.DistanceMeters,
		}, nil
	}
	if len(errs) > 2 {
		errs = errs[:2]
	}
	msg := strings.Join(errs, "|")
	if msg == "" {
		msg = "unknown"
	}
	return nil, fmt.Errorf("no_destination_route:%s:%s", origin.Label, msg)
}

func aggregateProbes(probes []*probeResult) *types.TrafficSignal {
	worst := probes[0]
	indices := make([]float64, len(probes))
	sum := 0.0
	for i, p := range probes {
		indices[i] = p.index
		sum += p.index
		if p.index > worst.index {
			worst = p
		}
	}

	ratio := 1.0
	if worst.baseline > 0 {
		ratio = worst.duration / worst.baseline
	}
	return &types.TrafficSignal{
		NormalizedIndex:         numeric.Round(numeric.Clamp01(worst.index), 4),
		CongestionRatio:         numeric.Round(ratio, 4),
		DurationSeconds:         worst.duration,
		BaselineDurationSeconds: worst.baseline,
		DistanceMeters:          worst.distance,
		Aggregation:             AggregationWorstCase,
		ProbeCount:              len(probes),
		ProbeIndices:            indices,
		AverageIndex:            numeric.Round(sum/float64(len(probes)), 4),
	}
}

const trafficSystemPrompt = "You estimate local road congestion for tourism operations. " +
	"Return JSON only with keys: traffic_index, congestion_ratio, confidence_score. " +
	"traffic_index must be a number from 0 to 1. " +
	"congestion_ratio should be 1.0 to 2.5."

const trafficMaxTokens = 180

type trafficEstimate struct {
	TrafficIndex    *float64 `json:"traffic_index"`
	CongestionRatio *float64 `json:"congestion_ratio"`
	ConfidenceScore *float64 `json:"confidence_score"`
}

// LLMTrafficProvider estimates congestion with a language model.
type LLMTrafficProvider struct {
	LLM external.JSONCompleter
}

func (p LLMTrafficProvider) Name() string { return "openai_traffic" }

func (p LLMTrafficProvider) Configured() bool {
	return p.LLM != nil && p.LLM.Configured()
}

func (p LLMTrafficProvider) Fetch(ctx context.Context, loc types.Location) (*types.TrafficSignal, error) {
	prompt := fmt.Sprintf(
		"Estimate current traffic load near this tourism location: name=%s latitude=%v longitude=%v Use realistic current road pressure assumptions.",
		loc.Name, loc.Latitude, loc.Longitude,
	)

	var est trafficEstimate
	if err := p.LLM.CompleteJSON(ctx, trafficSystemPrompt, prompt, trafficMaxTokens, &est); err != nil {
		return nil, err
	}

	idx := numeric.Clamp01(floatOr(est.TrafficIndex, 0.35))
	ratio := math.Max(1, floatOr(est.CongestionRatio, 1+idx))
	return &types.TrafficSignal{
		NormalizedIndex: numeric.Round(idx, 4),
		CongestionRatio: numeric.Round(ratio, 4),
		ConfidenceScore: numeric.Round(numeric.Clamp01(floatOr(est.ConfidenceScore, 0.55)), 4),
	}, nil
}

// SyntheticTraffic generates a moderate congestion reading that is stable for
// a given location within one UTC hour.
func SyntheticTraffic(loc types.Location, at time.Time) *types.TrafficSignal {
	idx := numeric.Round(0.15+pseudoRandom(syntheticSeed(loc, at)+6.7)*0.55, 4)
	return &types.TrafficSignal{
		NormalizedIndex: idx,
		CongestionRatio: numeric.Round(1+idx, 4),
	}
}
