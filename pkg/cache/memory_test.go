package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache()
	mc.now = clk.now

	type entry struct {
		Name  string
		Close string
	}
	if err := mc.Set(ctx, "AAPL", entry{Name: "Apple", Close: "189.30"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got entry
	if err := mc.Get(ctx, "AAPL", &got); err != nil || got.Name != "Apple" || got.Close != "189.30" {
		t.Fatalf("get: %+v %v", got, err)
	}

	clk.advance(2 * time.Minute)
	if err := mc.Get(ctx, "AAPL", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired entry: want ErrCacheMiss, got %v", err)
	}
	if mc.Len() != 0 {
		t.Fatalf("expired entry should be dropped on read")
	}
}

func TestMemoryCacheNoExpiration(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(0, 0)}
	mc := NewMemoryCache()
	mc.now = clk.now

	_ = mc.Set(ctx, "k", 1, 0)
	clk.advance(365 * 24 * time.Hour)
	var v int
	if err := mc.Get(ctx, "k", &v); err != nil || v != 1 {
		t.Fatalf("zero ttl should not expire: %d %v", v, err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(0, 0)}
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	mc.now = clk.now

	_ = mc.Set(ctx, "a", "A", 0)
	clk.advance(time.Second)
	_ = mc.Set(ctx, "b", "B", 0)
	clk.advance(time.Second)

	var s string
	_ = mc.Get(ctx, "a", &s) // a is now more recent than b
	clk.advance(time.Second)
	_ = mc.Set(ctx, "c", "C", 0)

	if err := mc.Get(ctx, "b", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("b should have been evicted, got %v", err)
	}
	if err := mc.Get(ctx, "a", &s); err != nil || s != "A" {
		t.Fatalf("a should survive: %q %v", s, err)
	}
	if mc.Len() != 2 {
		t.Fatalf("len = %d, want 2", mc.Len())
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	_ = mc.Set(ctx, "a", 1, time.Minute)
	_ = mc.Set(ctx, "b", 2, time.Minute)
	_ = mc.Delete(ctx, "a", "missing")

	var v int
	if err := mc.Get(ctx, "a", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("a should be gone: %v", err)
	}
	if err := mc.Get(ctx, "b", &v); err != nil || v != 2 {
		t.Fatalf("b should remain: %d %v", v, err)
	}
}

func TestRedisCacheKeyPrefix(t *testing.T) {
	if got := NewRedisCache(nil, "stockwatch").wrapKey("md:AAPL"); got != "stockwatch:md:AAPL" {
		t.Fatalf("wrapKey = %q", got)
	}
	if got := NewRedisCache(nil, "").wrapKey("md:AAPL"); got != "md:AAPL" {
		t.Fatalf("wrapKey without prefix = %q", got)
	}
}
