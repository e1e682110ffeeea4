package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hpkotak/aiplatform/internal/message"
)

const redisKeyPrefix = "aip:chat:"

// Redis keeps the conversation under a single string key.
type Redis struct {
	client redis.UniversalClient
	key    string

	mu  sync.RWMutex
	ttl time.Duration
}

// NewRedis stores the conversation named key through client.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	return &Redis{client: client, key: redisKeyPrefix + key}
}

// Setup checks the connection and records the expiry used by Save.
func (r *Redis) Setup(ctx context.Context, opts SetupOptions) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	r.mu.Lock()
	r.ttl = opts.TTL
	r.mu.Unlock()
	return nil
}

func (r *Redis) Load(ctx context.Context) (message.Bag, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return message.Bag{}, nil
	}
	if err != nil {
		return message.Bag{}, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return message.UnmarshalBag(data)
}

func (r *Redis) Save(ctx context.Context, bag message.Bag) error {
	data, err := message.MarshalBag(bag)
	if err != nil {
		return err
	}
	r.mu.RLock()
	ttl := r.ttl
	r.mu.RUnlock()
	if err := r.client.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Drop(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
