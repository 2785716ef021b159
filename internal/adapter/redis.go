package adapter

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	redis "github.com/redis/go-redis/v9"
)

// publishedSetKey holds the set of segment filenames already published for the
// live channel. Keeping it in Redis means a process restart does not re-upload
// segments the previous run already pushed to the store.
const publishedSetKey = "live:published"

type RedisClientImpl struct {
	redisClient *redis.Client
}

func NewRedisClientImpl() *RedisClientImpl {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	password := os.Getenv("REDIS_PASSWORD")
	dbStr := os.Getenv("REDIS_DB")
	db := 0
	if dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "err", err)
	}

	return &RedisClientImpl{
		redisClient: client,
	}
}

// IsPublished reports whether the segment name has already been uploaded.
func (r *RedisClientImpl) IsPublished(ctx context.Context, name string) (bool, error) {
	return r.redisClient.SIsMember(ctx, publishedSetKey, name).Result()
}

// MarkPublished records the segment name as uploaded.
func (r *RedisClientImpl) MarkPublished(ctx context.Context, name string) error {
	return r.redisClient.SAdd(ctx, publishedSetKey, name).Err()
}

// Reset forgets every published segment name. Called when a new transcoding
// session starts, so the fresh session's segment numbering is not shadowed by
// the previous run.
func (r *RedisClientImpl) Reset(ctx context.Context) error {
	return r.redisClient.Del(ctx, publishedSetKey).Err()
}

func (r *RedisClientImpl) Close() error {
	return r.redisClient.Close()
}
