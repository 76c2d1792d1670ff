package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"traffic-counts-api/config"

	"github.com/redis/go-redis/v9"
)

const (
	pingAttempts = 10
	pingInterval = 2 * time.Second
)

// CacheService is a JSON cache-aside layer over Redis. A service without a
// client misses every Get and ignores writes.
type CacheService struct {
	client *redis.Client
	prefix string
}

func NewCacheService(cfg config.RedisConfig, logger *slog.Logger) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Retry while the Redis container finishes starting
	var lastErr error
	for i := 0; i < pingAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client, prefix: "trafficcounts"}, nil
		}
		logger.Warn("redis ping failed", "attempt", i+1, "max_attempts", pingAttempts, "err", lastErr)
		time.Sleep(pingInterval)
	}

	_ = client.Close()
	return NewNoopCache(), fmt.Errorf("redis ping failed after %d attempts: %w", pingAttempts, lastErr)
}

// NewNoopCache returns a cache that stores nothing.
func NewNoopCache() *CacheService {
	return &CacheService{prefix: "trafficcounts"}
}

// Key joins parts into a namespaced cache key.
func (s *CacheService) Key(parts ...any) string {
	strs := make([]string, 0, len(parts)+1)
	strs = append(strs, s.prefix)
	for _, p := range parts {
		strs = append(strs, fmt.Sprint(p))
	}
	return strings.Join(strs, ":")
}

// Get decodes the cached value into dest and reports whether it was found.
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
