package submissions_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
)

func TestMemoryCache_Expiry(t *testing.T) {
	clock := timebound.NewFixedClock(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	c := submissions.NewMemoryCache(clock, 10)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get(ctx, "k"); !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected entry to expire at ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped, len = %d", c.Len())
	}
}

func TestMemoryCache_ZeroTTLStoresNothing(t *testing.T) {
	c := submissions.NewMemoryCache(nil, 10)
	_ = c.Set(context.Background(), "k", []byte("v"), 0)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("zero ttl should not cache")
	}
}

func TestMemoryCache_EvictsSoonestExpiry(t *testing.T) {
	clock := timebound.NewFixedClock(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	c := submissions.NewMemoryCache(clock, 2)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("1"), time.Minute)
	_ = c.Set(ctx, "long", []byte("2"), time.Hour)
	_ = c.Set(ctx, "new", []byte("3"), time.Hour)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expected the soonest-expiring entry to be evicted")
	}
	for _, k := range []string{"long", "new"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("expected %q to survive", k)
		}
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := submissions.NewMemoryCache(nil, 10)
	ctx := context.Background()
	v := []byte("abc")
	_ = c.Set(ctx, "k", v, time.Minute)
	v[0] = 'z'

	got, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("cache aliases caller slice: %q", got)
	}
}
