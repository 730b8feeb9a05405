// Package cache implements the two-level signal and assessment cache: a
// process-local store with lock-free reads and a best-effort shared store in
// Redis. Values cross the Store boundary as encoded bytes so a cached payload
// can never be mutated through a reference held by a caller.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks a shared-store failure. Callers treat it as a miss.
var ErrUnavailable = errors.New("cache: store unavailable")

// Store is a byte-oriented TTL cache.
type Store interface {
	// Get returns the value and true on a hit. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TTLStore is a Store that also reports how long an entry has left to live.
type TTLStore interface {
	Store
	// GetWithTTL is Get plus the entry's remaining lifetime. A non-positive
	// remaining duration means the entry never expires.
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error)
}
