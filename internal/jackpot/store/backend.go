package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/store/memory"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/store/postgres"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/store/redisstore"
	"github.com/radieske/jackpot-platform-poc/internal/shared/cache"
	"github.com/radieske/jackpot-platform-poc/internal/shared/config"
	"github.com/radieske/jackpot-platform-poc/internal/shared/db"
)

// Backend é o store escolhido em STORE_BACKEND com o healthcheck e o close correspondentes
type Backend struct {
	Store  engine.Store
	Health func(ctx context.Context) error
	Close  func() error
}

// Open conecta no backend configurado. Postgres aplica as migrations na subida.
// rdb é reaproveitado pelo backend redis quando informado
func Open(ctx context.Context, cfg config.Config, rdb *redis.Client, log *zap.Logger) (*Backend, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn("using in-memory store; state is lost on restart and not shared between processes")
		return &Backend{
			Store:  memory.New(),
			Health: func(context.Context) error { return nil },
			Close:  noop,
		}, nil

	case config.StorePostgres:
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pg); err != nil {
			_ = pg.Close()
			return nil, err
		}
		s := postgres.New(pg)
		if cfg.StoreMaxAttempts > 0 {
			s.MaxAttempts = cfg.StoreMaxAttempts
		}
		return &Backend{Store: s, Health: pg.PingContext, Close: pg.Close}, nil

	case config.StoreRedis:
		closer := noop
		if rdb == nil {
			var err error
			if rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr); err != nil {
				return nil, err
			}
			closer = rdb.Close
		}
		s := redisstore.New(rdb)
		if cfg.StoreMaxAttempts > 0 {
			s.MaxAttempts = cfg.StoreMaxAttempts
		}
		return &Backend{
			Store:  s,
			Health: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Close:  closer,
		}, nil
	}

	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}
