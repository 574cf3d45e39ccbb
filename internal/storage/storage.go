// Package storage opens the key-value backend the cart persists into.
package storage

import (
	"context"
	"fmt"

	"github.com/angelmondragon/gomarketplace/pkg/config"
	"github.com/angelmondragon/gomarketplace/pkg/db"
	"github.com/angelmondragon/gomarketplace/pkg/kv"
	"github.com/angelmondragon/gomarketplace/pkg/kv/memory"
	"github.com/angelmondragon/gomarketplace/pkg/kv/sqlkv"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
	"github.com/angelmondragon/gomarketplace/pkg/migrate"
	"github.com/angelmondragon/gomarketplace/pkg/redis"
)

// Backend is an opened kv store plus whatever owns its connection.
type Backend struct {
	Store kv.Store
	Kind  string

	closeFn func() error
}

// Ping checks the backend when it supports health checks.
func (b *Backend) Ping(ctx context.Context) error {
	if p, ok := b.Store.(kv.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the underlying connection. Safe on a nil backend.
func (b *Backend) Close() error {
	if b == nil || b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Open builds the backend selected by cfg.Storage.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Backend, error) {
	kind := cfg.Storage.Kind()
	if logg != nil {
		ctx = logg.WithBackend(ctx, kind)
	}

	switch kind {
	case config.BackendMemory:
		if logg != nil {
			logg.Warn(ctx, "memory backend selected, cart will not survive restarts")
		}
		return &Backend{Store: memory.New(), Kind: kind}, nil

	case config.BackendSQLite, config.BackendPostgres:
		client, err := db.New(ctx, cfg.DB, cfg.DB.Dialect(kind), logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return &Backend{Store: sqlkv.New(client.DB()), Kind: kind, closeFn: client.Close}, nil

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		return &Backend{Store: client, Kind: kind, closeFn: client.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", kind)
	}
}
