// Package connections opens the backing services a mode is configured for.
package connections

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/connections/database"
	"automart/internal/connections/redisx"
	"automart/internal/kvs"
	"automart/internal/offline"
	"automart/internal/pending"
)

// Resources connects to redis and postgres on first use and closes whatever
// was opened.
type Resources struct {
	cfg *config.Config
	lg  *logger.Logger

	mu   sync.Mutex
	rdb  *redis.Client
	pool *pgxpool.Pool
}

func New(cfg *config.Config, lg *logger.Logger) *Resources {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Resources{cfg: cfg, lg: lg}
}

// SWPrefix namespaces the stores owned by the offline side. It sits outside
// the KVS prefix so clearing the shop storage leaves queued orders alone.
func (r *Resources) SWPrefix() string { return SWPrefix(r.cfg.App.StoragePrefix) }

// SWPrefix maps "automart_" to "automart:sw:".
func SWPrefix(storagePrefix string) string {
	return strings.TrimRight(storagePrefix, "_:") + ":sw:"
}

func (r *Resources) Redis(ctx context.Context) (*redis.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rdb != nil {
		return r.rdb, nil
	}
	rdb, err := redisx.Connect(ctx, r.cfg.Redis.URL, r.lg)
	if err != nil {
		return nil, err
	}
	r.rdb = rdb
	return rdb, nil
}

func (r *Resources) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool != nil {
		return r.pool, nil
	}
	pool, err := database.Connect(ctx, r.cfg.Database, r.lg)
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return pool, nil
}

// KVS returns the store selected by storage.driver. Memory stores share
// backend, so several stores built from it see each other's changes.
func (r *Resources) KVS(ctx context.Context, backend *kvs.MemoryBackend) (kvs.StoreNotifier, error) {
	switch r.cfg.Storage.Driver {
	case "redis":
		rdb, err := r.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return kvs.NewRedis(rdb, r.cfg.App.StoragePrefix), nil
	case "", "memory":
		if backend == nil {
			backend = kvs.NewMemoryBackend()
		}
		return kvs.NewMemory(backend, r.cfg.App.StoragePrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", r.cfg.Storage.Driver)
	}
}

// PendingQueue returns the offline order queue selected by queue.driver.
func (r *Resources) PendingQueue(ctx context.Context) (pending.Queue, error) {
	switch r.cfg.Queue.Driver {
	case "redis":
		rdb, err := r.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return pending.NewRedis(rdb, r.SWPrefix(), r.lg), nil
	case "postgres":
		pool, err := r.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		q := pending.NewPostgres(pool, r.lg)
		if err := q.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return q, nil
	case "", "memory":
		return pending.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", r.cfg.Queue.Driver)
	}
}

// CacheStorage returns the partition store selected by cache.driver.
func (r *Resources) CacheStorage(ctx context.Context) (offline.Storage, error) {
	switch r.cfg.Cache.Driver {
	case "redis":
		rdb, err := r.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return offline.NewRedisStorage(rdb, r.SWPrefix()), nil
	case "", "memory":
		return offline.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", r.cfg.Cache.Driver)
	}
}

func (r *Resources) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rdb != nil {
		if err := r.rdb.Close(); err != nil {
			r.lg.Error("redis_close_failed", err, nil)
		}
		r.rdb = nil
	}
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}
