package queue

import (
	"context"
	"fmt"
	"time"

	"planted-staging/internal/config"
	"planted-staging/internal/logger"

	"github.com/go-redis/redis/v8"
)

const pingTimeout = 5 * time.Second

// RedisClient is the shared connection behind the upload lock and the
// staging event list.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	addr := cfg.RedisAddr()
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", addr, err)
	}

	log := logger.Component("redis")
	log.Info().Str("addr", addr).Int("db", cfg.Redis.DB).Msg("Connected to Redis")
	return &RedisClient{client: rdb}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Client exposes the raw client for the lock and the event queue.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// listClient is the subset of redis commands the event queue uses.
type listClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}
