package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/LichessStats/internal/pkg/config"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// NewClient opens the Redis connection used by the job queue and the cache.
// A failing ping is logged, not fatal: the client reconnects on demand.
func NewClient(cfg config.CacheConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if pong, err := client.Ping(ctx).Result(); err != nil {
		log.Warnf("[Cache] Could not connect to redis at %s: %v", Addr(cfg), err)
	} else {
		log.Infof("[Cache] Connected to redis: %s", pong)
	}
	return client
}

// Addr returns host:port of the configured server
func Addr(cfg config.CacheConfig) string {
	return fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
}

// Store is a small JSON cache on top of a redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
}

func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Set stores value as JSON under key with the given expiration
func (s *Store) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return s.client.Set(ctx, s.prefix+key, data, expiration).Err()
}

// Get decodes the value stored under key into dst
func (s *Store) Get(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Delete removes a value from the cache by key
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
