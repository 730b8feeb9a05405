package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes JSON messages on one pub/sub channel.
type RedisPublisher struct {
	client    redis.Cmdable
	channel   string
	opTimeout time.Duration
}

// NewRedisPublisher creates a publisher for channel.
func NewRedisPublisher(client redis.Cmdable, channel string, opTimeout time.Duration) *RedisPublisher {
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	return &RedisPublisher{client: client, channel: channel, opTimeout: opTimeout}
}

// Publish marshals msg and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrUnavailable, p.channel, err)
	}
	return nil
}
