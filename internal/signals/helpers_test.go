package signals

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"crowdrisk/internal/external"
	"crowdrisk/internal/types"
)

var testNow = time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testLocation = types.Location{
	ID:                   7,
	Name:                 "Amber Fort",
	Latitude:             26.9855,
	Longitude:            75.8513,
	Capacity:             10000,
	AverageDailyFootfall: 12000,
}

// fakeProvider is a scripted tier.
type fakeProvider[S Signal] struct {
	name       string
	configured bool
	sig        S
	err        error
	delay      time.Duration
	calls      atomic.Int32
}

func (p *fakeProvider[S]) Name() string     { return p.name }
func (p *fakeProvider[S]) Configured() bool { return p.configured }

func (p *fakeProvider[S]) Fetch(ctx context.Context, _ types.Location) (S, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		// Ignores ctx on purpose to exercise the fetcher's own timeout.
		time.Sleep(p.delay)
	}
	return p.sig, p.err
}

type tierCall struct {
	signal, tier, outcome string
}

type recordingTiers struct {
	mu    sync.Mutex
	calls []tierCall
}

func (r *recordingTiers) ObserveTier(signal, tier, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tierCall{signal, tier, outcome})
}

// fakeLLM answers CompleteJSON with a canned reply.
type fakeLLM struct {
	configured bool
	reply      string
	err        error

	mu      sync.Mutex
	systems []string
	prompts []string
}

func (f *fakeLLM) Configured() bool { return f.configured }
func (f *fakeLLM) Model() string    { return "test-model" }

func (f *fakeLLM) CompleteJSON(_ context.Context, system, user string, _ int, out any) error {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, user)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	raw, err := external.ExtractJSONObject(f.reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// fakeRoutes routes through a scripted function.
type fakeRoutes struct {
	configured bool
	fn         func(origin, dest external.LatLng) (*external.Route, error)
	calls      atomic.Int32
}

func (f *fakeRoutes) Configured() bool { return f.configured }

func (f *fakeRoutes) ComputeRoute(_ context.Context, origin, dest external.LatLng) (*external.Route, error) {
	f.calls.Add(1)
	return f.fn(origin, dest)
}

// fakeWeather returns a fixed observation.
type fakeWeather struct {
	configured bool
	obs        *external.WeatherObservation
	err        error
}

func (f *fakeWeather) Configured() bool { return f.configured }

func (f *fakeWeather) Current(context.Context, float64, float64) (*external.WeatherObservation, error) {
	return f.obs, f.err
}
