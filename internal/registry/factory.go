package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mkallaste/podforge/internal/config"
)

// New constructs the registry backend selected by config. Called once at
// startup by both the API server and the worker. The returned close func
// releases the backend's connections.
func New(ctx context.Context, cfg *config.Config) (Registry, func(), error) {
	switch cfg.Registry.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisRegistry(client, cfg.Registry.TTL), func() { client.Close() }, nil
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse postgres url: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
		poolCfg.MinConns = int32(cfg.Postgres.MinConns)
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		reg, err := NewPostgresRegistry(ctx, pool, cfg.Registry.TTL)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return reg, pool.Close, nil
	case "memory":
		return NewMemoryRegistry(cfg.Registry.TTL), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown REGISTRY_BACKEND %q: must be one of redis, postgres, memory", cfg.Registry.Backend)
	}
}
