package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/bradfitz/gomemcache/memcache"
)

type MemcachedClient struct {
	client *memcache.Client
	cfg    *config.CacheConfig
	log    *slog.Logger
}

func NewMemcachedClient(cacheConfig *config.CacheConfig, log *slog.Logger) *MemcachedClient {
	log.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	servers := strings.Split(cacheConfig.Servers, ",")
	err := ss.SetServers(servers...)
	if err != nil {
		log.Error("failed to set memcached servers.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c := &MemcachedClient{
		client: memcache.NewFromSelector(ss),
		cfg:    cacheConfig,
		log:    log,
	}
	c.log.Info("pinging the memcached.")
	err = c.client.Ping()
	if err != nil {
		log.Error("connection to the memcached is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c.log.Info("connected to memcached!")

	return c
}

// Get reads the record for key. Memcached keys are limited to 250 bytes without spaces,
// so the task key is stored under its sha256 hash.
func (mc *MemcachedClient) Get(_ context.Context, key string) (*model.JobRecord, error) {
	item, err := mc.client.Get(hashKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("memcached get: %w", err)
	}

	return decodeRecord(item.Value)
}

func (mc *MemcachedClient) Set(_ context.Context, key string, record *model.JobRecord) error {
	value, err := model.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	item := &memcache.Item{
		Key:        hashKey(key),
		Value:      value,
		Expiration: expiration(mc.cfg.TTL, time.Now()),
	}
	if err = mc.client.Set(item); err != nil {
		return fmt.Errorf("memcached set: %w", err)
	}
	mc.log.Debug("job record saved to cache.", slog.String("key", key),
		slog.String("status", string(record.Status)))

	return nil
}

// memcached reads expirations above 30 days as a unix timestamp.
const maxRelativeExpiration = 30 * 24 * time.Hour

func expiration(ttl time.Duration, now time.Time) int32 {
	switch {
	case ttl <= 0:
		return 0
	case ttl > maxRelativeExpiration:
		return int32(now.Add(ttl).Unix())
	case ttl < time.Second:
		return 1
	default:
		return int32(ttl / time.Second)
	}
}

func (mc *MemcachedClient) Close() {
	mc.log.Info("closing memcached connection.")
	err := mc.client.Close()
	if err != nil {
		mc.log.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}
