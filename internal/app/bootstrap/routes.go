// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/dalemusser/prephub/internal/app/features/health"
	revisionsfeature "github.com/dalemusser/prephub/internal/app/features/revisions"
	sessionfeature "github.com/dalemusser/prephub/internal/app/features/session"
	"github.com/dalemusser/prephub/internal/app/system/identity"
	"github.com/dalemusser/prephub/internal/app/system/ratelimit"
	"github.com/dalemusser/prephub/internal/app/system/telemetry"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. prephub mounts:
//   - /health for load balancers
//   - /metrics when metrics are enabled
//   - /api/session to turn an identity token into a browser session
//   - /api/revisions for the scheduler commands
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := identity.NewSessionManager(identity.Config{
		HashKey:    []byte(appCfg.IdentityHashKey),
		BlockKey:   []byte(appCfg.IdentityBlockKey),
		TokenTTL:   appCfg.IdentityTokenTTL,
		SessionTTL: appCfg.SessionMaxAge,
		Domain:     appCfg.SessionDomain,
		Secure:     secure,
	}, logger.Named("identity"))
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators.
	// A nil *RedisCache must not become a non-nil interface.
	var cachePinger healthfeature.CachePinger
	if deps.FeedCache != nil {
		cachePinger = deps.FeedCache
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, cachePinger, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if appCfg.MetricsEnabled {
		r.Handle("/metrics", telemetry.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		// Loads the identity into context if the request carries one.
		// This makes the current user available via identity.CurrentUser(r).
		api.Use(sessionMgr.LoadUser)

		sessionHandler := sessionfeature.NewHandler(sessionMgr, logger)
		api.Mount("/session", sessionfeature.Routes(sessionHandler))

		var summaryLimit *ratelimit.Limiter
		if appCfg.SummaryRatePerMin > 0 {
			summaryLimit = ratelimit.New(appCfg.SummaryRatePerMin, appCfg.SummaryBurst, nil)
		}
		revisionsHandler := revisionsfeature.NewHandler(newService(appCfg, deps, logger), logger)
		api.Mount("/revisions", revisionsfeature.Routes(revisionsHandler, summaryLimit))
	})

	return r, nil
}
