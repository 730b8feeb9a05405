package cache

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// LocalStore is an in-process Store backed by sync.Map. Reads take no lock;
// concurrent writes to one key are last-writer-wins.
type LocalStore struct {
	entries sync.Map // string -> *localEntry
	now     func() time.Time
}

// NewLocalStore creates an empty LocalStore.
func NewLocalStore() *LocalStore {
	return &LocalStore{now: time.Now}
}

// Get returns a live entry. Expired entries are dropped on read.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, _, ok, err := s.GetWithTTL(ctx, key)
	return value, ok, err
}

// GetWithTTL returns a live entry and its remaining lifetime.
func (s *LocalStore) GetWithTTL(_ context.Context, key string) ([]byte, time.Duration, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, 0, false, nil
	}
	e := v.(*localEntry)
	remaining := e.expiresAt.Sub(s.now())
	if remaining <= 0 {
		s.entries.CompareAndDelete(key, v)
		return nil, 0, false, nil
	}
	return e.value, remaining, true, nil
}

// Set stores value until now+ttl. A non-positive ttl deletes the key.
func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		s.entries.Delete(key)
		return nil
	}
	s.entries.Store(key, &localEntry{value: value, expiresAt: s.now().Add(ttl)})
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (s *LocalStore) Purge() int {
	now := s.now()
	n := 0
	s.entries.Range(func(k, v any) bool {
		if !now.Before(v.(*localEntry).expiresAt) {
			if s.entries.CompareAndDelete(k, v) {
				n++
			}
		}
		return true
	})
	return n
}

// RunJanitor purges expired entries every interval until ctx is done.
func (s *LocalStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Purge()
		}
	}
}
