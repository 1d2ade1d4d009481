package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/dedup"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const (
	DedupBackendMemory   = "memory"
	DedupBackendRedis    = "redis"
	DedupBackendPostgres = "postgres"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ConnectPostgres opens a pgx pool and verifies it with a ping.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// DedupStore is the store selected by DEDUP_BACKEND plus a cleanup func
// releasing any connection it opened.
type DedupStore struct {
	Store   dedup.Store
	Backend string
	Close   func()
}

// BuildDedupStore selects the dedup backend. A redis backend whose server is
// unreachable falls back to the in-memory store; a postgres backend that
// cannot connect is an error because its table is expected to exist.
func BuildDedupStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*DedupStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	capacity := cfg.DedupCapacity

	switch cfg.DedupBackend {
	case "", DedupBackendMemory:
		return memoryDedup(capacity), nil
	case DedupBackendRedis:
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			logger.Warn("dedup falling back to in-memory store", "backend", DedupBackendRedis)
			return memoryDedup(capacity), nil
		}
		return &DedupStore{
			Store:   dedup.NewRedisStore(client, "clinic:dedup", capacity),
			Backend: DedupBackendRedis,
			Close:   func() { _ = client.Close() },
		}, nil
	case DedupBackendPostgres:
		pool, err := ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &DedupStore{
			Store:   dedup.NewPostgresStore(pool, capacity),
			Backend: DedupBackendPostgres,
			Close:   pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown DEDUP_BACKEND %q", cfg.DedupBackend)
	}
}

func memoryDedup(capacity int) *DedupStore {
	return &DedupStore{
		Store:   dedup.NewMemoryStore(capacity),
		Backend: DedupBackendMemory,
		Close:   func() {},
	}
}
