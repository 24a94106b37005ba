package bootstrap

import (
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:         "mongodb://localhost:27017",
		MongoDatabase:    "prephub",
		IdentityHashKey:  strings.Repeat("h", 32),
		FeedSource:       "leetcode",
		FeedBaseURL:      submissions.DefaultBaseURL,
		FeedLimit:        20,
		FeedTimeout:      5 * time.Second,
		FeedRatePerSec:   2,
		EnrollWindow:     7 * 24 * time.Hour,
		IdentityTokenTTL: time.Hour,
	}
}

func TestValidateConfig_Accepts(t *testing.T) {
	if err := ValidateConfig(&config.CoreConfig{Env: "dev"}, validConfig(), zap.NewNop()); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestValidateConfig_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		mutate func(*AppConfig)
		want   string
	}{
		{"bad mongo uri", "dev", func(c *AppConfig) { c.MongoURI = "http://nope" }, "MongoDB URI"},
		{"no database", "dev", func(c *AppConfig) { c.MongoDatabase = " " }, "mongo_database"},
		{"short hash key", "dev", func(c *AppConfig) { c.IdentityHashKey = "short" }, "identity_hash_key"},
		{"bad block key", "dev", func(c *AppConfig) { c.IdentityBlockKey = "abc" }, "identity_block_key"},
		{"dev key in prod", "prod", func(c *AppConfig) { c.IdentityHashKey = devIdentityKey }, "development default"},
		{"source with colon", "dev", func(c *AppConfig) { c.FeedSource = "a:b" }, "feed_source"},
		{"relative feed url", "dev", func(c *AppConfig) { c.FeedBaseURL = "/graphql" }, "feed_base_url"},
		{"zero limit", "dev", func(c *AppConfig) { c.FeedLimit = 0 }, "feed_limit"},
		{"zero timeout", "dev", func(c *AppConfig) { c.FeedTimeout = 0 }, "feed_timeout"},
		{"negative rate", "dev", func(c *AppConfig) { c.FeedRatePerSec = -1 }, "feed_rate_per_sec"},
		{"negative summary rate", "dev", func(c *AppConfig) { c.SummaryRatePerMin = -1 }, "summary_rate_per_min"},
		{"zero enroll window", "dev", func(c *AppConfig) { c.EnrollWindow = 0 }, "enroll_window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{Env: tt.env}, cfg, zap.NewNop())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ValidateConfig error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestDevIdentityKeyIsUsableOutsideProd(t *testing.T) {
	if n := len(devIdentityKey); n != 32 {
		t.Fatalf("dev identity key is %d bytes", n)
	}
	cfg := validConfig()
	cfg.IdentityHashKey = devIdentityKey
	if err := ValidateConfig(&config.CoreConfig{Env: "dev"}, cfg, zap.NewNop()); err != nil {
		t.Errorf("dev key rejected in dev: %v", err)
	}
}

func TestParseRate(t *testing.T) {
	for in, want := range map[string]float64{"": 0, "2": 2, " 0.5 ": 0.5} {
		got, err := parseRate("feed_rate_per_sec", in)
		if err != nil || got != want {
			t.Errorf("parseRate(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseRate("summary_rate_per_min", "fast"); err == nil || !strings.Contains(err.Error(), "summary_rate_per_min") {
		t.Errorf("parseRate(fast) error = %v, want a keyed error", err)
	}
}

func TestFeedCache_DefaultsToMemory(t *testing.T) {
	c := feedCache(AppConfig{FeedCacheSize: 10}, DBDeps{})
	if _, ok := c.(*submissions.MemoryCache); !ok {
		t.Errorf("feedCache = %T, want *submissions.MemoryCache", c)
	}
}
