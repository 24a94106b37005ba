// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/prephub/internal/app/system/indexes"
	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// redisKeyPrefix namespaces the shared feed cache.
const redisKeyPrefix = "prephub:"

// ConnectDB connects to MongoDB and, when configured, the shared Redis feed
// cache. A Redis failure aborts startup; a blank redis_url does not.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}

	if appCfg.RedisURL != "" {
		cache, err := submissions.NewRedisCache(ctx, appCfg.RedisURL, redisKeyPrefix)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, fmt.Errorf("redis: %w", err)
		}
		deps.FeedCache = cache
		logger.Info("using Redis feed cache")
	}
	return deps, nil
}

// EnsureSchema reconciles the indexes the stores rely on. The unique
// (user, question, bucket) index must exist before any request is served.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("index reconciliation failed", zap.Error(err))
		return err
	}
	return nil
}
