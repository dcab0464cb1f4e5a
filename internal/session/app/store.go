package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store/drivers/memory"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store/drivers/postgres"
	redisstore "github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store/drivers/redis"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store/drivers/sqlite"
	"github.com/redis/go-redis/v9"
)

// OpenStore connects the configured driver and, with AutoMigrate, brings its
// schema up to date.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.StoreDriver {
	case DriverMemory:
		logger.Warn("memory store selected, sessions will not survive a restart")
		st = memory.NewStore()

	case DriverSQLite:
		st, err = sqlite.NewStore(cfg.DBDSN)

	case DriverPostgres:
		st, err = postgres.NewStore(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: cfg.PostgresMaxConns})

	case DriverRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    splitList(cfg.RedisAddr),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rs := redisstore.NewStore(client, cfg.RedisPrefix)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err = rs.Ping(pingCtx); err != nil {
			_ = rs.Close()
		} else {
			st = rs
		}

	default:
		err = fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}

	if cfg.AutoMigrate {
		if err := st.ApplyMigrations(); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to apply %s migrations: %w", cfg.StoreDriver, err)
		}
		logger.Info("store migrations applied", "driver", cfg.StoreDriver)
	}

	return st, nil
}
