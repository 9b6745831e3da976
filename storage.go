package goSession

import (
	"fmt"

	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// OpenStore opens the persisted session store described by cfg. The
// caller owns the returned store and must Close it.
func OpenStore(cfg StorageConfig) (session.Store, error) {
	switch cfg.Driver {
	case "", StorageMemory:
		return session.NewMemoryStore(), nil
	case StorageFile:
		return session.NewFileStore(cfg.Path)
	case StorageSQLite:
		return session.OpenSQLiteStore(cfg.Path)
	case StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return &clientOwningStore{
			RedisStore: session.NewRedisStore(client, cfg.RedisPrefix, cfg.RedisTTL),
			client:     client,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// clientOwningStore closes the Redis client it was opened with.
type clientOwningStore struct {
	*session.RedisStore
	client *redis.Client
}

func (s *clientOwningStore) Close() error {
	return s.client.Close()
}
