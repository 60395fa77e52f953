package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	goCache "github.com/patrickmn/go-cache"
)

// LocalStore keeps job records in process memory. It only provides mutual exclusion
// within a single worker process.
type LocalStore struct {
	items *goCache.Cache
	cfg   *config.CacheConfig
	log   *slog.Logger
}

func NewLocalStore(cacheConfig *config.CacheConfig, log *slog.Logger) *LocalStore {
	ttl := goCache.NoExpiration
	if cacheConfig.TTL > 0 {
		ttl = cacheConfig.TTL
	}
	log.Warn("using in-process job store. Job state is not shared between workers.")
	return &LocalStore{
		items: goCache.New(ttl, 10*ttl),
		cfg:   cacheConfig,
		log:   log,
	}
}

// Records are stored encoded so callers never share a pointer with the store.
func (ls *LocalStore) Get(_ context.Context, key string) (*model.JobRecord, error) {
	v, ok := ls.items.Get(key)
	if !ok {
		return nil, nil
	}

	return decodeRecord(v.([]byte))
}

func (ls *LocalStore) Set(_ context.Context, key string, record *model.JobRecord) error {
	b, err := model.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	ls.items.Set(key, b, goCache.DefaultExpiration)

	return nil
}

func (ls *LocalStore) Close() {
	ls.items.Flush()
}
