package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "job:"

type RedisClient struct {
	client *redis.Client
	cfg    *config.CacheConfig
	log    *slog.Logger
}

func NewRedisClient(cacheConfig *config.CacheConfig, log *slog.Logger) *RedisClient {
	log.Info("connecting to redis...")
	opt, err := redis.ParseURL(cacheConfig.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c := NewRedisClientFrom(redis.NewClient(opt), cacheConfig, log)
	if err = c.client.Ping(context.Background()).Err(); err != nil {
		log.Error("connection to the redis is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("connected to redis!")

	return c
}

func NewRedisClientFrom(client *redis.Client, cacheConfig *config.CacheConfig, log *slog.Logger) *RedisClient {
	return &RedisClient{client: client, cfg: cacheConfig, log: log}
}

func (rc *RedisClient) Get(ctx context.Context, key string) (*model.JobRecord, error) {
	b, err := rc.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return decodeRecord(b)
}

func (rc *RedisClient) Set(ctx context.Context, key string, record *model.JobRecord) error {
	b, err := model.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	if err = rc.client.Set(ctx, redisKeyPrefix+key, b, rc.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	rc.log.Debug("job record saved to cache.", slog.String("key", key),
		slog.String("status", string(record.Status)))

	return nil
}

func (rc *RedisClient) Close() {
	rc.log.Info("closing redis connection.")
	if err := rc.client.Close(); err != nil {
		rc.log.Error("failed to close redis connection.", slog.String("err", err.Error()))
	}
}
