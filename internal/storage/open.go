package storage

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/redis"
)

// Open builds the backend selected by cfg.Storage.Backend. The returned
// close function releases any client connections the backend owns.
func Open(ctx context.Context, cfg *config.Config) (Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage.Backend {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "local":
		s, err := NewLocalStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "redis":
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, storageErr("init", "redis", err)
		}
		return NewRedisStore(client, cfg.Storage.Prefix, cfg.Storage.LockTTL), client.Close, nil
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, storageErr("init", "postgres", err)
		}
		s := NewPostgresStore(client.DB, cfg.Postgres.Table)
		if err := s.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil
	case "minio":
		s, err := DialMinio(ctx, cfg.Minio, cfg.Storage.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
