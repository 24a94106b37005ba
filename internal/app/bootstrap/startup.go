// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/prephub/internal/app/revision"
	"github.com/dalemusser/prephub/internal/app/store/revisionarchive"
	"github.com/dalemusser/prephub/internal/app/store/revisiondismissals"
	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
	"github.com/dalemusser/prephub/internal/app/system/timeouts"
	"github.com/dalemusser/prephub/internal/app/system/txn"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	t := timeouts.Current()
	logger.Info("handler timeouts",
		zap.Duration("ping", t.Ping),
		zap.Duration("short", t.Short),
		zap.Duration("medium", t.Medium),
		zap.Duration("long", t.Long))

	logger.Info("submission feed",
		zap.String("source", appCfg.FeedSource),
		zap.String("base_url", appCfg.FeedBaseURL),
		zap.Int("limit", appCfg.FeedLimit),
		zap.Float64("rate_per_sec", appCfg.FeedRatePerSec),
		zap.Duration("cache_ttl", appCfg.FeedCacheTTL),
		zap.Bool("shared_cache", deps.FeedCache != nil))
	return nil
}

// feedCache picks the shared Redis cache when one was connected.
func feedCache(appCfg AppConfig, deps DBDeps) submissions.Cache {
	if deps.FeedCache != nil {
		return deps.FeedCache
	}
	return submissions.NewMemoryCache(timebound.SystemClock{}, appCfg.FeedCacheSize)
}

// newService wires the scheduler engines to Mongo and the submission feed.
func newService(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *revision.Service {
	client := submissions.NewLeetCodeClient(submissions.ClientConfig{
		BaseURL:    appCfg.FeedBaseURL,
		Timeout:    appCfg.FeedTimeout,
		RatePerSec: appCfg.FeedRatePerSec,
		Burst:      appCfg.FeedBurst,
	}, logger.Named("feed"))
	feed := submissions.NewCachedFeed(client, client, feedCache(appCfg, deps),
		appCfg.FeedCacheTTL, appCfg.CatalogCacheTTL, logger.Named("feed"))

	d := revision.Deps{
		Items:      revisionitems.New(deps.MongoDatabase),
		Archive:    revisionarchive.New(deps.MongoDatabase),
		Dismissals: revisiondismissals.New(deps.MongoDatabase),
		Tx:         txn.NewRunner(deps.MongoClient, logger),
		Calendar:   timebound.Default(),
		Clock:      timebound.SystemClock{},
		Log:        logger.Named("revision"),
	}
	return revision.NewService(d, feed, feed, revision.ReconcileConfig{
		Source:       appCfg.FeedSource,
		Limit:        appCfg.FeedLimit,
		EnrollWindow: appCfg.EnrollWindow,
		FeedTimeout:  appCfg.FeedTimeout,
	})
}
