package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_GetSet(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	val := testEntry("city hospital_nyc")
	if err := c.Set(ctx, val.Key, val, 5*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists("review:city hospital_nyc") {
		t.Fatal("entry not stored under review: prefix")
	}

	got, ok, err := c.Get(ctx, val.Key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !got.FetchedAt.Equal(val.FetchedAt) || len(got.Reviews) != 2 || got.Reviews[0] != val.Reviews[0] {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

func TestRedisCache_Get_Miss(t *testing.T) {
	c, _ := newTestRedisCache(t)

	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", testEntry("k"), time.Minute)
	if ttl := mr.TTL("review:k"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() ok = true after expiry, want false")
	}
}

func TestRedisCache_CorruptValue(t *testing.T) {
	c, mr := newTestRedisCache(t)
	if err := mr.Set("review:bad", "not json"); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}

	_, ok, err := c.Get(context.Background(), "bad")
	if err == nil || ok {
		t.Errorf("Get() = ok %v err %v, want decode error", ok, err)
	}
}

func TestRedisCache_ServerDown(t *testing.T) {
	c, mr := newTestRedisCache(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("Get() error = nil, want connection error")
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping() error = nil, want connection error")
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, addr, "", 0); err == nil {
		t.Error("NewRedisCache() error = nil, want ping failure")
	}
}
