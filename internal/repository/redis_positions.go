package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/logvault/logvault/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisPositionRepo keeps per-file watermarks in Redis for fast resume
// lookups. Like the Postgres position table it is only a cache; a stale
// or missing key is repaired by reconciliation against the log store.
type RedisPositionRepo struct {
	client *redis.Client
	prefix string
}

func NewRedisPositionRepo(cfg *config.Config) (*RedisPositionRepo, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Redis.PositionKeyPrefix
	if prefix == "" {
		prefix = "position"
	}
	return &RedisPositionRepo{client: rdb, prefix: prefix}, nil
}

func (r *RedisPositionRepo) key(fileID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, fileID)
}

// Load returns the cached watermark, or 0 when absent.
func (r *RedisPositionRepo) Load(ctx context.Context, fileID string) (int64, error) {
	val, err := r.client.Get(ctx, r.key(fileID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (r *RedisPositionRepo) Save(ctx context.Context, fileID string, lineNo int64) error {
	return r.client.Set(ctx, r.key(fileID), lineNo, 0).Err()
}

func (r *RedisPositionRepo) Close() error {
	return r.client.Close()
}
