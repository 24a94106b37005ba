// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devIdentityKey is only accepted outside prod.
const devIdentityKey = "dev-only-identity-key-0123456789"

// appConfigKeys defines the configuration keys for prephub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, feed_base_url, etc.
//   - Environment variables: PREPHUB_MONGO_URI, PREPHUB_FEED_BASE_URL, etc.
//   - Command-line flags: --mongo_uri, --feed_base_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "prephub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 5, Desc: "MongoDB min connection pool size"},

	// Identity hand-off
	{Name: "identity_hash_key", Default: devIdentityKey, Desc: "Identity token HMAC key, 32 or 64 bytes (must be strong in production)"},
	{Name: "identity_block_key", Default: "", Desc: "Optional identity token AES key, 16, 24 or 32 bytes"},
	{Name: "identity_token_ttl", Default: "24h", Desc: "Maximum age of an identity header token"},
	{Name: "session_max_age", Default: "720h", Desc: "Browser session lifetime"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Submission feed
	{Name: "feed_source", Default: "leetcode", Desc: "Item source the submission feed reports on"},
	{Name: "feed_base_url", Default: submissions.DefaultBaseURL, Desc: "Submission feed GraphQL endpoint"},
	{Name: "feed_timeout", Default: "5s", Desc: "Bound on each submission feed call"},
	{Name: "feed_limit", Default: submissions.DefaultLimit, Desc: "Recent accepted submissions fetched per summary"},
	{Name: "feed_rate_per_sec", Default: "2", Desc: "Outbound feed requests per second (0 = unlimited)"},
	{Name: "feed_burst", Default: 4, Desc: "Outbound feed request burst"},
	{Name: "feed_cache_ttl", Default: "60s", Desc: "How long a feed answer is reused (0 disables)"},
	{Name: "catalog_cache_ttl", Default: "24h", Desc: "How long a problem lookup is reused"},
	{Name: "feed_cache_size", Default: 1000, Desc: "In-process feed cache entries"},
	{Name: "redis_url", Default: "", Desc: "Redis URL for a shared feed cache (blank = in-process)"},
	{Name: "enroll_window", Default: "168h", Desc: "Recent solves newer than this are auto-enrolled into week"},
	{Name: "summary_rate_per_min", Default: "30", Desc: "Summary runs allowed per user per minute (0 = unlimited)"},
	{Name: "summary_burst", Default: 10, Desc: "Summary runs a user may make back to back"},

	// Handler timeouts
	{Name: "timeout_short", Default: "", Desc: "Timeout for single-item commands (blank = default)"},
	{Name: "timeout_medium", Default: "", Desc: "Timeout for list reads and moves (blank = default)"},
	{Name: "timeout_long", Default: "", Desc: "Timeout for summaries and completions (blank = default)"},

	{Name: "metrics_enabled", Default: true, Desc: "Serve Prometheus metrics at /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (WAFFLE_* for core, PREPHUB_* for the app) and flags
// with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PREPHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	rate, err := parseRate("feed_rate_per_sec", appValues.String("feed_rate_per_sec"))
	if err != nil {
		return nil, AppConfig{}, err
	}
	summaryRate, err := parseRate("summary_rate_per_min", appValues.String("summary_rate_per_min"))
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		IdentityHashKey:  appValues.String("identity_hash_key"),
		IdentityBlockKey: appValues.String("identity_block_key"),
		IdentityTokenTTL: appValues.Duration("identity_token_ttl", 24*time.Hour),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),
		SessionDomain:    appValues.String("session_domain"),

		FeedSource:      strings.ToLower(strings.TrimSpace(appValues.String("feed_source"))),
		FeedBaseURL:     appValues.String("feed_base_url"),
		FeedTimeout:     appValues.Duration("feed_timeout", 5*time.Second),
		FeedLimit:       appValues.Int("feed_limit"),
		FeedRatePerSec:  rate,
		FeedBurst:       appValues.Int("feed_burst"),
		FeedCacheTTL:    appValues.Duration("feed_cache_ttl", time.Minute),
		CatalogCacheTTL: appValues.Duration("catalog_cache_ttl", 24*time.Hour),
		FeedCacheSize:   appValues.Int("feed_cache_size"),
		RedisURL:        strings.TrimSpace(appValues.String("redis_url")),

		EnrollWindow: appValues.Duration("enroll_window", 7*24*time.Hour),

		SummaryRatePerMin: summaryRate,
		SummaryBurst:      appValues.Int("summary_burst"),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),

		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	return coreCfg, appCfg, nil
}

func parseRate(key, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// ValidateConfig performs app-specific config validation.
//
// Problems are collected so a misconfigured deployment sees all of them in
// one run.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
	}
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}

	if n := len(appCfg.IdentityHashKey); n != 32 && n != 64 {
		errs = append(errs, fmt.Errorf("identity_hash_key must be 32 or 64 bytes, got %d", n))
	}
	switch len(appCfg.IdentityBlockKey) {
	case 0, 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("identity_block_key must be 16, 24 or 32 bytes, got %d", len(appCfg.IdentityBlockKey)))
	}
	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.IdentityHashKey == devIdentityKey {
		errs = append(errs, errors.New("identity_hash_key must be changed from the development default in prod"))
	}

	if appCfg.FeedSource == "" || strings.Contains(appCfg.FeedSource, ":") {
		errs = append(errs, fmt.Errorf("feed_source %q must be non-empty without ':'", appCfg.FeedSource))
	}
	if u, err := url.Parse(appCfg.FeedBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("feed_base_url %q is not an absolute URL", appCfg.FeedBaseURL))
	}
	if appCfg.FeedLimit <= 0 {
		errs = append(errs, fmt.Errorf("feed_limit must be positive, got %d", appCfg.FeedLimit))
	}
	if appCfg.FeedTimeout <= 0 {
		errs = append(errs, fmt.Errorf("feed_timeout must be positive, got %s", appCfg.FeedTimeout))
	}
	if appCfg.FeedRatePerSec < 0 {
		errs = append(errs, fmt.Errorf("feed_rate_per_sec must not be negative, got %v", appCfg.FeedRatePerSec))
	}
	if appCfg.SummaryRatePerMin < 0 {
		errs = append(errs, fmt.Errorf("summary_rate_per_min must not be negative, got %v", appCfg.SummaryRatePerMin))
	}
	if appCfg.EnrollWindow <= 0 {
		errs = append(errs, fmt.Errorf("enroll_window must be positive, got %s", appCfg.EnrollWindow))
	}

	return errors.Join(errs...)
}
