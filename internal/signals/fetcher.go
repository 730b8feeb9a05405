// Package signals produces the environment and traffic inputs of a risk
// evaluation. Each signal family is served by a TieredFetcher that walks a
// fixed chain of providers (live API, LLM estimate, synthetic generator) and
// stamps the result with the tier that produced it.
package signals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"crowdrisk/internal/external"
	"crowdrisk/internal/types"
)

// MaxReasonLen bounds the accumulated source_reason trail.
const MaxReasonLen = 320

// reasonSeparator joins the reasons of successive failed tiers.
const reasonSeparator = " | "

// Signal is implemented by every signal payload through its embedded
// types.Provenance.
type Signal interface {
	Stamp(source types.SignalSource, reason string, at time.Time)
}

// Provider is one fallible tier. Fetch must return a non-nil signal whenever
// it returns a nil error.
type Provider[S Signal] interface {
	// Name is the provider tag used in reasons and metrics.
	Name() string
	// Configured reports whether the provider's credential is present.
	// An unconfigured provider is skipped without being called.
	Configured() bool
	Fetch(ctx context.Context, loc types.Location) (S, error)
}

// Generator is the terminal tier. It never fails.
type Generator[S Signal] func(loc types.Location, at time.Time) S

// TierObserver receives one call per tier considered.
type TierObserver interface {
	ObserveTier(signal, tier, outcome string, d time.Duration)
}

// Tier pairs a provider with its own attempt timeout.
type Tier[S Signal] struct {
	Provider Provider[S]
	Timeout  time.Duration
}

// TieredFetcher tries the live tier, then the LLM tier, then the synthetic
// generator, stopping at the first success. Exactly one tier's data is
// returned; tiers are never blended.
type TieredFetcher[S Signal] struct {
	kind      types.SignalKind
	live      Tier[S]
	llm       Tier[S]
	synthetic Generator[S]

	clock    types.Clock
	observer TierObserver
	logger   *slog.Logger
}

// FetcherOption configures a TieredFetcher.
type FetcherOption func(*fetcherOptions)

type fetcherOptions struct {
	clock    types.Clock
	observer TierObserver
	logger   *slog.Logger
}

// WithClock overrides the clock used for fetched_at stamps.
func WithClock(c types.Clock) FetcherOption {
	return func(o *fetcherOptions) { o.clock = c }
}

// WithTierObserver attaches a metrics observer.
func WithTierObserver(obs TierObserver) FetcherOption {
	return func(o *fetcherOptions) { o.observer = obs }
}

// WithFetcherLogger sets the logger used for fallback warnings.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(o *fetcherOptions) { o.logger = l }
}

// NewTieredFetcher builds a fetcher for kind. Either provider of live and llm
// may be nil, in which case that tier is always skipped.
func NewTieredFetcher[S Signal](kind types.SignalKind, live, llm Tier[S], synthetic Generator[S], opts ...FetcherOption) *TieredFetcher[S] {
	o := fetcherOptions{clock: types.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &TieredFetcher[S]{
		kind:      kind,
		live:      live,
		llm:       llm,
		synthetic: synthetic,
		clock:     o.clock,
		observer:  o.observer,
		logger:    o.logger,
	}
}

type tierSlot[S Signal] struct {
	tier        Tier[S]
	source      types.SignalSource
	skipMode    types.SignalMode
	defaultName string
}

// Fetch returns the signal from the highest-priority tier that succeeds. It
// never fails: the synthetic generator is the terminal fallback.
func (f *TieredFetcher[S]) Fetch(ctx context.Context, loc types.Location, mode types.SignalMode) S {
	slots := []tierSlot[S]{
		{tier: f.live, source: types.SourceLive, skipMode: types.ModeLLM, defaultName: "live"},
		{tier: f.llm, source: types.SourceLLM, skipMode: types.ModeLive, defaultName: "llm"},
	}

	var reasons []string
	for _, slot := range slots {
		name := slot.defaultName
		if slot.tier.Provider != nil {
			name = slot.tier.Provider.Name()
		}

		switch {
		case mode == slot.skipMode:
			reasons = append(reasons, fmt.Sprintf("%s_skipped:mode_%s", name, mode))
			f.observe(slot.source, "skipped", 0)
			continue
		case slot.tier.Provider == nil || !slot.tier.Provider.Configured():
			reasons = append(reasons, name+"_skipped:missing_api_key")
			f.observe(slot.source, "skipped", 0)
			continue
		}

		start := time.Now()
		sig, err := attempt(ctx, slot.tier, loc)
		elapsed := time.Since(start)
		if err == nil {
			f.observe(slot.source, "success", elapsed)
			sig.Stamp(slot.source, joinReasons(reasons), f.clock.Now())
			return sig
		}

		reason := external.AsProviderError(name, err).Error()
		reasons = append(reasons, reason)
		f.observe(slot.source, "failed", elapsed)
		f.logger.WarnContext(ctx, "signal tier failed, falling back",
			"signal", string(f.kind),
			"provider", name,
			"location_id", loc.ID,
			"reason", reason,
		)
	}

	now := f.clock.Now()
	sig := f.synthetic(loc, now)
	f.observe(types.SourceSynthetic, "success", 0)
	sig.Stamp(types.SourceSynthetic, joinReasons(reasons), now)
	return sig
}

func (f *TieredFetcher[S]) observe(source types.SignalSource, outcome string, d time.Duration) {
	if f.observer != nil {
		f.observer.ObserveTier(string(f.kind), string(source), outcome, d)
	}
}

// attempt runs one provider call under the tier timeout. The call runs in its
// own goroutine so a provider that ignores its context cannot hold up the
// chain; a late result is dropped into the buffered channel and discarded.
func attempt[S Signal](ctx context.Context, tier Tier[S], loc types.Location) (S, error) {
	var zero S
	if tier.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tier.Timeout)
		defer cancel()
	}

	type result struct {
		sig S
		err error
	}
	ch := make(chan result, 1)
	go func() {
		sig, err := tier.Provider.Fetch(ctx, loc)
		ch <- result{sig: sig, err: err}
	}()

	select {
	case r := <-ch:
		return r.sig, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// joinReasons joins the trail and truncates it to at most MaxReasonLen bytes
// without splitting a rune.
func joinReasons(reasons []string) string {
	s := strings.Join(reasons, reasonSeparator)
	if len(s) <= MaxReasonLen {
		return s
	}
	cut := MaxReasonLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
