package submissions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedFeed fronts a Feed and Catalog with a Cache. Concurrent requests
// for the same key share one upstream call. Failures are never cached.
type CachedFeed struct {
	feed       Feed
	catalog    Catalog
	cache      Cache
	feedTTL    time.Duration
	catalogTTL time.Duration
	group      singleflight.Group
	log        *zap.Logger
}

var (
	_ Feed    = (*CachedFeed)(nil)
	_ Catalog = (*CachedFeed)(nil)
)

// NewCachedFeed wraps feed and catalog. catalog may be nil.
func NewCachedFeed(feed Feed, catalog Catalog, cache Cache, feedTTL, catalogTTL time.Duration, logger *zap.Logger) *CachedFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFeed{
		feed:       feed,
		catalog:    catalog,
		cache:      cache,
		feedTTL:    feedTTL,
		catalogTTL: catalogTTL,
		log:        logger,
	}
}

// Fingerprint hashes the request parts into a fixed-length cache key.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

// FetchRecentAccepted serves from cache when possible.
func (c *CachedFeed) FetchRecentAccepted(ctx context.Context, username string, limit int) ([]Accepted, error) {
	key := "feed:" + Fingerprint("recent_ac", strings.ToLower(strings.TrimSpace(username)), strconv.Itoa(limit))

	if b, ok := c.cache.Get(ctx, key); ok {
		var cached []Accepted
		if err := json.Unmarshal(b, &cached); err == nil {
			telemetry.RecordFeedCache(true)
			return cached, nil
		}
		c.log.Debug("feed cache: undecodable entry", zap.String("key", key))
	}
	telemetry.RecordFeedCache(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		subs, err := c.feed.FetchRecentAccepted(ctx, username, limit)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, subs, c.feedTTL)
		return subs, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]Accepted(nil), v.([]Accepted)...), nil
}

// LookupProblem serves catalog lookups from cache when possible.
func (c *CachedFeed) LookupProblem(ctx context.Context, ref string) (Problem, error) {
	if c.catalog == nil {
		return Problem{}, ErrFeedUnavailable
	}
	key := "problem:" + Fingerprint(strings.ToLower(strings.TrimSpace(ref)))

	if b, ok := c.cache.Get(ctx, key); ok {
		var p Problem
		if err := json.Unmarshal(b, &p); err == nil {
			telemetry.RecordFeedCache(true)
			return p, nil
		}
	}
	telemetry.RecordFeedCache(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.catalog.LookupProblem(ctx, ref)
		if err != nil {
			return Problem{}, err
		}
		c.store(ctx, key, p, c.catalogTTL)
		return p, nil
	})
	if err != nil {
		return Problem{}, err
	}
	return v.(Problem), nil
}

func (c *CachedFeed) store(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Debug("feed cache: encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, key, b, ttl); err != nil {
		c.log.Warn("feed cache: store failed", zap.String("key", key), zap.Error(err))
	}
}
