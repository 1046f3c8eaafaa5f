package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/hospital-review-service/internal/models"
)

func testEntry(key string) models.CacheEntry {
	return models.CacheEntry{
		Key: key,
		Reviews: []models.Review{
			{Text: "Great staff", Author: "Ann", Rating: 5, Sentiment: models.SentimentPositive},
			{Text: "Long wait", Author: "Bob", Rating: 2, Sentiment: models.SentimentNegative},
		},
		FetchedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// TestInMemoryCache_GetSet verifies that Set stores entries and Get retrieves
// them unchanged.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := testEntry("city hospital_nyc")
	if err := c.Set(ctx, val.Key, val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, val.Key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Key != val.Key || !got.FetchedAt.Equal(val.FetchedAt) || len(got.Reviews) != 2 || got.Reviews[1] != val.Reviews[1] {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

func TestInMemoryCache_Get_Miss(t *testing.T) {
	c := NewInMemoryCache()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_IgnoresTTL verifies that entries outlive their ttl; staleness
// is decided by the service from FetchedAt.
func TestInMemoryCache_IgnoresTTL(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "k", testEntry("k"), time.Nanosecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("Get() ok = false, want entry kept past ttl")
	}
}

// TestInMemoryCache_Isolation verifies that callers cannot mutate stored reviews
// through the slices passed to Set or returned by Get.
func TestInMemoryCache_Isolation(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := testEntry("k")
	_ = c.Set(ctx, "k", val, time.Minute)
	val.Reviews[0].Text = "mutated after set"

	got, _, _ := c.Get(ctx, "k")
	if got.Reviews[0].Text != "Great staff" {
		t.Errorf("stored review changed through Set argument: %q", got.Reviews[0].Text)
	}
	got.Reviews = append(got.Reviews, models.Review{Text: "extra"})
	got.Reviews[0].Text = "mutated after get"

	again, _, _ := c.Get(ctx, "k")
	if len(again.Reviews) != 2 || again.Reviews[0].Text != "Great staff" {
		t.Errorf("stored entry changed through Get result: %+v", again)
	}
}

func TestInMemoryCache_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_ = c.Set(ctx, "k", testEntry("k"), time.Minute)
	replacement := models.CacheEntry{Key: "k", Reviews: []models.Review{{Text: "only"}}}
	_ = c.Set(ctx, "k", replacement, time.Minute)

	got, _, _ := c.Get(ctx, "k")
	if len(got.Reviews) != 1 || got.Reviews[0].Text != "only" {
		t.Errorf("Get() = %+v, want replaced entry", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestInMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = c.Set(ctx, key, testEntry(key), time.Minute)
			_, _, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}
}

func TestMemcachedKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"city hospital_new york", "review:city_hospital_new_york"},
		{"mercy_boston", "review:mercy_boston"},
		{"tab\there", "review:tab_here"},
	}
	for _, tt := range tests {
		if got := memcachedKey(tt.in); got != tt.want {
			t.Errorf("memcachedKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMemcachedKey_LongKeysAreHashed(t *testing.T) {
	fits := strings.Repeat("a", maxKeyLen-len(keyPrefix))
	if got := memcachedKey(fits); got != keyPrefix+fits || len(got) != maxKeyLen {
		t.Errorf("memcachedKey(%d bytes) = %q, want unchanged at the limit", len(fits), got)
	}

	long := strings.Repeat("saint mary's regional medical center ", 10) + "_" + strings.Repeat("x", 40)
	got := memcachedKey(long)
	if len(got) > maxKeyLen {
		t.Fatalf("len(memcachedKey()) = %d, want <= %d", len(got), maxKeyLen)
	}
	if !strings.HasPrefix(got, keyPrefix+"sha256:") {
		t.Errorf("memcachedKey() = %q, want hashed key", got)
	}
	if strings.ContainsAny(got, " \t\n") {
		t.Errorf("memcachedKey() = %q contains whitespace", got)
	}
	if memcachedKey(long) != got {
		t.Error("memcachedKey() is not deterministic")
	}
	if memcachedKey(long+"y") == got {
		t.Error("distinct long keys hash to the same memcached key")
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" host1:11211, ,host2:11211 ")
	if len(got) != 2 || got[0] != "host1:11211" || got[1] != "host2:11211" {
		t.Errorf("parseAddrs() = %v", got)
	}
	if got := parseAddrs(""); len(got) != 0 {
		t.Errorf("parseAddrs(\"\") = %v, want empty", got)
	}
}

func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "city hospital_nyc", testEntry("city hospital_nyc"), time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "city hospital_nyc")
	}
}

func BenchmarkInMemoryCache_Set(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	entry := testEntry("city hospital_nyc")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, "city hospital_nyc", entry, time.Minute)
	}
}
