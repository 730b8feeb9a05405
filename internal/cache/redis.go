package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"crowdrisk/internal/config"
)

// NewRedisClient parses cfg.URL and verifies connectivity. It returns
// (nil, nil) when no URL is configured.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.URL.IsSet() {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// RedisStore is the shared Store. Values are zstd-compressed and every
// operation runs under its own short timeout so a slow Redis cannot hold up
// an evaluation.
type RedisStore struct {
	client    redis.Cmdable
	prefix    string
	opTimeout time.Duration

	encoder     *zstd.Encoder
	decoderPool sync.Pool
}

// NewRedisStore wraps client. prefix namespaces every key.
func NewRedisStore(client redis.Cmdable, prefix string, opTimeout time.Duration) *RedisStore {
	// EncodeAll is safe for concurrent use on a single encoder.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
		encoder:   enc,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}
}

// Get fetches and decompresses key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	value, err := s.decompress(key, raw)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// GetWithTTL fetches key and its PTTL in one round trip.
func (s *RedisStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var (
		get  *redis.StringCmd
		pttl *redis.DurationCmd
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, s.prefix+key)
		pttl = p.PTTL(ctx, s.prefix+key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}

	raw, err := get.Bytes()
	if err != nil {
		return nil, 0, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	value, err := s.decompress(key, raw)
	if err != nil {
		return nil, 0, false, err
	}
	// PTTL reports -1 for keys without expiry.
	return value, pttl.Val(), true, nil
}

func (s *RedisStore) decompress(key string, raw []byte) ([]byte, error) {
	dec := s.decoderPool.Get().(*zstd.Decoder)
	defer s.decoderPool.Put(dec)
	value, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed for %s: %w", key, err)
	}
	return value, nil
}

// Set compresses value and writes it with ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	compressed := s.encoder.EncodeAll(value, make([]byte, 0, len(value)/2))
	if err := s.client.Set(ctx, s.prefix+key, compressed, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Pinger is the subset of the redis client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// HealthProbe reports Redis reachability to the /health endpoint.
type HealthProbe struct {
	Client Pinger
}

// Name returns the component name used in health output.
func (p HealthProbe) Name() string { return "redis" }

// Check pings Redis.
func (p HealthProbe) Check(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
