package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"crowdrisk/internal/risk"
	"crowdrisk/internal/types"
)

// ============================================================
// Mock Implementations
// ============================================================

type mockEvaluator struct {
	mu        sync.Mutex
	locations []types.Location
	listErr   error
	levels    map[int64]types.RiskLevel
	failing   map[int64]error
	calls     []risk.Options
}

func (m *mockEvaluator) Locations(_ context.Context) ([]types.Location, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.locations, nil
}

func (m *mockEvaluator) Evaluate(_ context.Context, loc types.Location, opts risk.Options) (*types.RiskAssessment, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.mu.Unlock()
	if err := m.failing[loc.ID]; err != nil {
		return nil, err
	}
	level := m.levels[loc.ID]
	if level == "" {
		level = types.RiskGreen
	}
	return &types.RiskAssessment{LocationID: loc.ID, RiskLevel: level}, nil
}

func (m *mockEvaluator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSweepObserver struct {
	mu        sync.Mutex
	sweeps    int
	succeeded int
	failed    int
}

func (m *mockSweepObserver) ObserveSweep(_ time.Duration, succeeded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	m.succeeded = succeeded
	m.failed = failed
}

// steppingClock advances by step on every call.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func threeLocations() []types.Location {
	return []types.Location{
		{ID: 1, Name: "Amber Fort"},
		{ID: 2, Name: "Hawa Mahal"},
		{ID: 3, Name: "City Palace"},
	}
}

// ============================================================
// Tests
// ============================================================

func TestSweep_CountsOutcomes(t *testing.T) {
	eval := &mockEvaluator{
		locations: threeLocations(),
		levels:    map[int64]types.RiskLevel{1: types.RiskRed},
		failing:   map[int64]error{3: errors.New("predictor exploded")},
	}
	obs := &mockSweepObserver{}
	clock := &steppingClock{now: time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC), step: 2 * time.Second}

	s := NewSweeper(eval, obs, SweeperConfig{Concurrency: 2, Language: "HI"}, clock, testLogger())
	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if res.Succeeded != 2 || res.Failed != 1 || res.Red != 1 {
		t.Errorf("Sweep() = %+v, want 2 succeeded, 1 failed, 1 red", res)
	}
	if res.Duration != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", res.Duration)
	}
	if obs.sweeps != 1 || obs.succeeded != 2 || obs.failed != 1 {
		t.Errorf("observer = %+v, want one sweep with 2/1", obs)
	}
	for _, opts := range eval.calls {
		if !opts.RefreshRisk {
			t.Errorf("expected RefreshRisk on every sweep evaluation")
		}
		if opts.RefreshEnvironment {
			t.Errorf("sweeps must not bypass the signal caches")
		}
		if opts.Language != "hi" {
			t.Errorf("Language = %q, want normalized %q", opts.Language, "hi")
		}
	}
}

func TestSweep_ListError(t *testing.T) {
	eval := &mockEvaluator{listErr: errors.New("connection refused")}
	obs := &mockSweepObserver{}

	s := NewSweeper(eval, obs, SweeperConfig{}, nil, testLogger())
	_, err := s.Sweep(context.Background())
	if err == nil {
		t.Fatal("expected error when locations cannot be listed")
	}
	if obs.sweeps != 0 {
		t.Errorf("observer called %d times, want 0", obs.sweeps)
	}
}

func TestSweep_NilObserver(t *testing.T) {
	eval := &mockEvaluator{locations: threeLocations()}
	s := NewSweeper(eval, nil, SweeperConfig{}, nil, testLogger())

	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Succeeded != 3 {
		t.Errorf("Succeeded = %d, want 3", res.Succeeded)
	}
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(&mockEvaluator{}, nil, SweeperConfig{Language: "xx"}, nil, nil)
	if s.cfg.Interval != DefaultSweepInterval {
		t.Errorf("Interval = %v, want %v", s.cfg.Interval, DefaultSweepInterval)
	}
	if s.cfg.Concurrency != risk.DefaultOverviewConcurrency {
		t.Errorf("Concurrency = %d, want %d", s.cfg.Concurrency, risk.DefaultOverviewConcurrency)
	}
	if s.cfg.Language != "en" {
		t.Errorf("Language = %q, want en", s.cfg.Language)
	}
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	eval := &mockEvaluator{locations: threeLocations()}
	s := NewSweeper(eval, nil, SweeperConfig{Interval: 10 * time.Millisecond}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for eval.callCount() < 6 {
		select {
		case <-deadline:
			t.Fatalf("expected at least two sweeps, got %d evaluations", eval.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
