package risk

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"crowdrisk/internal/types"
)

var testNow = time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var amberFort = types.Location{
	ID:                   7,
	Name:                 "Amber Fort",
	Latitude:             26.9855,
	Longitude:            75.8513,
	Capacity:             10000,
	AverageDailyFootfall: 12000,
}

var hawaMahal = types.Location{
	ID:                   3,
	Name:                 "Hawa Mahal",
	Latitude:             26.9239,
	Longitude:            75.8267,
	Capacity:             4000,
	AverageDailyFootfall: 2400,
}

type fakeLocations struct {
	byID map[int64]types.Location
	err  error
}

func newFakeLocations(locs ...types.Location) *fakeLocations {
	f := &fakeLocations{byID: map[int64]types.Location{}}
	for _, l := range locs {
		f.byID[l.ID] = l
	}
	return f
}

func (f *fakeLocations) GetByID(_ context.Context, id int64) (*types.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.byID[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundLocation, "location not found", nil)
	}
	return &l, nil
}

func (f *fakeLocations) List(_ context.Context) ([]types.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.Location, 0, len(f.byID))
	for _, l := range f.byID {
		out = append(out, l)
	}
	return out, nil
}

type fakeFeatures struct {
	latest map[int64]*types.FeatureSample
	mean   map[int64]float64
	err    error
}

func (f *fakeFeatures) Latest(_ context.Context, id int64) (*types.FeatureSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.latest[id], nil
}

func (f *fakeFeatures) RollingMean(_ context.Context, id int64, _ int) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.mean[id], nil
}

type fakeHistory struct {
	correlation []types.CorrelationSample
	trend       []types.TrendSample
	err         error

	gotLimit int
	gotSince time.Time
}

func (f *fakeHistory) CorrelationSeries(_ context.Context, _ int64, limit int) ([]types.CorrelationSample, error) {
	f.gotLimit = limit
	return f.correlation, f.err
}

func (f *fakeHistory) TrendSince(_ context.Context, since time.Time) ([]types.TrendSample, error) {
	f.gotSince = since
	return f.trend, f.err
}

type fakeSnapshots struct {
	mu       sync.Mutex
	inserted []types.RiskSnapshot
	err      error
}

func (f *fakeSnapshots) Insert(_ context.Context, s *types.RiskSnapshot) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = int64(len(f.inserted) + 1)
	s.Timestamp = testNow
	f.inserted = append(f.inserted, *s)
	return nil
}

func (f *fakeSnapshots) Recent(_ context.Context, id int64, limit int) ([]types.RiskSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.RiskSnapshot
	for _, s := range f.inserted {
		if s.LocationID == id {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeSnapshots) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

// fakeSignals returns the same signals for every location unless a
// per-location override is set.
type fakeSignals struct {
	env     types.EnvironmentSignal
	traffic types.TrafficSignal
	envFor  map[int64]types.EnvironmentSignal

	mu       sync.Mutex
	refreshs []bool
}

func (f *fakeSignals) Environment(_ context.Context, loc types.Location, refresh bool) *types.EnvironmentSignal {
	f.mu.Lock()
	f.refreshs = append(f.refreshs, refresh)
	f.mu.Unlock()
	if e, ok := f.envFor[loc.ID]; ok {
		return &e
	}
	e := f.env
	return &e
}

func (f *fakeSignals) Traffic(_ context.Context, _ types.Location, _ bool) *types.TrafficSignal {
	t := f.traffic
	return &t
}

type fakePredictor struct {
	mu    sync.Mutex
	calls int
	fn    func(types.FeatureVector) (*types.Prediction, error)
}

func (f *fakePredictor) Predict(_ context.Context, fv types.FeatureVector) (*types.Prediction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(fv)
}

func (f *fakePredictor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []any
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

type evalCall struct {
	level    string
	fallback bool
}

type fakeObserver struct {
	mu     sync.Mutex
	evals  []evalCall
	alerts []error
}

func (f *fakeObserver) ObserveEvaluation(level string, fallback bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals = append(f.evals, evalCall{level, fallback})
}

func (f *fakeObserver) ObserveAlert(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, err)
}

type fakeLLM struct {
	configured bool
	reply      string
	err        error
	prompts    []string
}

func (f *fakeLLM) Configured() bool { return f.configured }
func (f *fakeLLM) Model() string    { return "gpt-test" }

func (f *fakeLLM) CompleteJSON(_ context.Context, _, user string, _ int, out any) error {
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}
