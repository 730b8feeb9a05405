package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Observer receives one call per level consulted on a lookup.
type Observer interface {
	ObserveCache(cache, level string, hit bool)
}

// Layered is a typed two-level cache. Reads consult the shared store first,
// then the local store. A shared hit back-fills the local store for no longer
// than the shared entry has left, which requires a TTLStore; plain shared
// stores are never back-filled. Shared-store errors are logged and treated as
// misses. Concurrent loads of one key are coalesced.
type Layered[T any] struct {
	name     string
	shared   Store // nil when no shared store is configured
	local    Store
	localTTL time.Duration
	observer Observer
	logger   *slog.Logger
	// loadTimeout bounds a detached load; zero leaves it to the loader.
	loadTimeout time.Duration
	group       singleflight.Group
}

// LayeredOption configures a Layered cache.
type LayeredOption func(*layeredOptions)

type layeredOptions struct {
	observer    Observer
	logger      *slog.Logger
	loadTimeout time.Duration
}

// WithObserver attaches a lookup observer (typically telemetry.Metrics).
func WithObserver(o Observer) LayeredOption {
	return func(lo *layeredOptions) { lo.observer = o }
}

// WithLogger sets the logger used for shared-store degradation messages.
func WithLogger(l *slog.Logger) LayeredOption {
	return func(lo *layeredOptions) { lo.logger = l }
}

// WithLoadTimeout bounds every GetOrLoad load.
func WithLoadTimeout(d time.Duration) LayeredOption {
	return func(lo *layeredOptions) { lo.loadTimeout = d }
}

// NewLayered builds a Layered cache. shared may be nil.
func NewLayered[T any](name string, shared, local Store, localTTL time.Duration, opts ...LayeredOption) *Layered[T] {
	lo := layeredOptions{}
	for _, opt := range opts {
		opt(&lo)
	}
	if lo.logger == nil {
		lo.logger = slog.Default()
	}
	return &Layered[T]{
		name:     name,
		shared:   shared,
		local:    local,
		localTTL: localTTL,
		observer:    lo.observer,
		logger:      lo.logger,
		loadTimeout: lo.loadTimeout,
	}
}

// Get looks key up in shared then local.
func (c *Layered[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	if c.shared != nil {
		raw, backfill, ok, err := c.sharedGet(ctx, key)
		if err != nil {
			c.logger.DebugContext(ctx, "shared cache read failed", "cache", c.name, "key", key, "error", err)
		}
		c.observe("shared", ok)
		if ok {
			v, err := decode[T](raw)
			if err == nil {
				if backfill > 0 {
					_ = c.local.Set(ctx, key, raw, backfill)
				}
				return v, true
			}
			c.logger.WarnContext(ctx, "discarding undecodable shared cache entry", "cache", c.name, "key", key, "error", err)
		}
	}

	raw, ok, _ := c.local.Get(ctx, key)
	c.observe("local", ok)
	if !ok {
		return zero, false
	}
	v, err := decode[T](raw)
	if err != nil {
		return zero, false
	}
	return v, true
}

// sharedGet reads key from the shared store and returns how long the local
// copy may live. The duration is zero when the remaining lifetime is unknown.
func (c *Layered[T]) sharedGet(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	ts, ok := c.shared.(TTLStore)
	if !ok {
		raw, hit, err := c.shared.Get(ctx, key)
		return raw, 0, hit, err
	}
	raw, remaining, hit, err := ts.GetWithTTL(ctx, key)
	if !hit {
		return nil, 0, false, err
	}
	backfill := c.localTTL
	if remaining > 0 && remaining < backfill {
		backfill = remaining
	}
	return raw, backfill, true, err
}

// Set writes v to both levels. ttl applies to the shared level; the local
// level keeps min(ttl, localTTL).
func (c *Layered[T]) Set(ctx context.Context, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value for %s: %w", key, err)
	}

	localTTL := c.localTTL
	if ttl < localTTL {
		localTTL = ttl
	}
	_ = c.local.Set(ctx, key, raw, localTTL)

	if c.shared != nil {
		if err := c.shared.Set(ctx, key, raw, ttl); err != nil {
			c.logger.DebugContext(ctx, "shared cache write failed", "cache", c.name, "key", key, "error", err)
		}
	}
	return nil
}

// Loader produces a fresh value and the shared-level TTL to cache it with.
type Loader[T any] func(ctx context.Context) (T, time.Duration, error)

// GetOrLoad returns a cached value unless refresh is set, otherwise runs load
// once per key across concurrent callers and caches the result. hit reports
// whether the value came from the cache.
//
// The shared load is detached from the cancellation of whichever caller
// started it, so one departing caller cannot fail or poison the result for
// the others; WithLoadTimeout or the loader itself bounds the work. Each caller still
// stops waiting when its own ctx is done.
func (c *Layered[T]) GetOrLoad(ctx context.Context, key string, refresh bool, load Loader[T]) (v T, hit bool, err error) {
	var zero T
	if !refresh {
		if v, ok := c.Get(ctx, key); ok {
			return v, true, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		if c.loadTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, c.loadTimeout)
			defer cancel()
		}
		v, ttl, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			_ = c.Set(loadCtx, key, v, ttl)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

func (c *Layered[T]) observe(level string, hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(c.name, level, hit)
	}
}

func decode[T any](raw []byte) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
