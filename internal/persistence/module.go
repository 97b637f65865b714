package persistence

import (
	"context"
	"fmt"

	"github.com/hostyard/hostyard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideStore creates the host store selected by configuration and binds
// its lifetime to the fx application
func ProvideStore(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) (Store, error) {
	var store Store

	switch cfg.Store.Backend {
	case "memory":
		store = newMemoryStore()
	case "redis":
		client, err := newRedisClient(cfg.Store.RedisURI)
		if err != nil {
			return nil, err
		}
		redisStore, err := newRedisStore(client, cfg.Store.KeyPrefix)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case "mongo":
		client, err := newMongoClient(context.Background(), cfg.Store.MongoURI)
		if err != nil {
			return nil, err
		}
		mongoStore, err := newMongoStore(client, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store = mongoStore
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Named("persistence").Info("host store initialized",
		zap.String("backend", cfg.Store.Backend))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}

// Module provides the persistence dependencies to the fx container
var Module = fx.Options(
	fx.Provide(ProvideStore),
)
