package redis

import (
	"context"
	"strings"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/config"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"
)

// Connect dials redis from cfg. A nil client with a nil error means redis
// is not configured or unreachable and the server runs without it.
func Connect(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		jww.INFO.Println("[REDIS] REDIS_URL not set, token revocation disabled")
		return nil, nil
	}

	opts, err := parseOptions(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		jww.WARN.Printf("[REDIS] Warning: Could not connect to Redis: %v. Token revocation disabled.", err)
		_ = client.Close()
		return nil, nil
	}

	jww.INFO.Println("[REDIS] Connected successfully")
	return client, nil
}

func parseOptions(url, password string) (*redis.Options, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, errors.Wrap(err, "invalid REDIS_URL")
		}
		if password != "" {
			opts.Password = password
		}
		return opts, nil
	}
	return &redis.Options{Addr: url, Password: password}, nil
}

// RedisCache is a thin key/value wrapper around redis.Client.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get returns ("", nil) for a missing key.
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}
