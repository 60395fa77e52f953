package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
)

// JobStore keeps one JobRecord per task key. It is used as a lock and as a result cache.
// There is no compare-and-swap: concurrent writers race and the last write wins.
type JobStore interface {
	// Get returns nil and no error when the key is absent.
	Get(ctx context.Context, key string) (*model.JobRecord, error)
	Set(ctx context.Context, key string, record *model.JobRecord) error
	Close()
}

// NewJobStore builds the store selected by the cache driver setting.
func NewJobStore(cfg *config.CacheConfig, log *slog.Logger) JobStore {
	switch cfg.Driver {
	case "memcached", "":
		return NewMemcachedClient(cfg, log)
	case "redis":
		return NewRedisClient(cfg, log)
	case "local":
		return NewLocalStore(cfg, log)
	default:
		log.Error("unsupported cache driver.", slog.String("driver", cfg.Driver))
		os.Exit(1)
		return nil
	}
}

func decodeRecord(data []byte) (*model.JobRecord, error) {
	var record model.JobRecord
	if err := model.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	return &record, nil
}

func hashKey(key string) string {
	hash := sha256.New()
	hash.Write([]byte(key))
	return hex.EncodeToString(hash.Sum(nil))
}
