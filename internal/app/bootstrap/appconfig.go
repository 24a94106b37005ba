// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (PREPHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers ports, TLS, logging and CORS; everything the scheduler itself
// needs lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Identity hand-off. The identity service signs tokens with the same keys.
	IdentityHashKey  string        // HMAC key, 32 or 64 bytes
	IdentityBlockKey string        // optional AES key, 16, 24 or 32 bytes
	IdentityTokenTTL time.Duration // max age of a header token
	SessionMaxAge    time.Duration // browser session lifetime
	SessionDomain    string        // cookie domain (blank means current host)

	// Submission feed
	FeedSource      string // item source the feed reports on
	FeedBaseURL     string
	FeedTimeout     time.Duration
	FeedLimit       int
	FeedRatePerSec  float64
	FeedBurst       int
	FeedCacheTTL    time.Duration
	CatalogCacheTTL time.Duration
	FeedCacheSize   int    // in-process cache entries
	RedisURL        string // blank keeps the feed cache in-process

	EnrollWindow time.Duration // recent solves auto-enrolled into week

	// Per-user summary rate limit (0 disables)
	SummaryRatePerMin float64
	SummaryBurst      int

	// Handler timeouts (zero keeps the defaults)
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	MetricsEnabled bool
}
