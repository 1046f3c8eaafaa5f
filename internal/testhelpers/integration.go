//go:build integration
// +build integration

package testhelpers

import (
	"math/rand"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/hospital-review-service/internal/cache"
	"github.com/kjstillabower/hospital-review-service/internal/client"
	"github.com/kjstillabower/hospital-review-service/internal/sentiment"
	"github.com/kjstillabower/hospital-review-service/internal/service"
	"github.com/kjstillabower/hospital-review-service/internal/source"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if PLACES_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	apiKey := os.Getenv("PLACES_API_KEY")
	if apiKey == "" {
		t.Skip("PLACES_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("PLACES_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultBaseURL
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationClient creates a live places client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.GooglePlacesClient {
	t.Helper()
	c, err := client.NewGooglePlacesClient(cfg.APIKey, cfg.APIURL, 10*time.Second, 5)
	if err != nil {
		t.Fatalf("NewGooglePlacesClient() error = %v", err)
	}
	return c
}

// SetupIntegrationService wires the live client, VADER and the configured cache.
// Returns the service, the cache and a cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig, logger *zap.Logger) (*service.ReviewService, cache.Cache, func()) {
	t.Helper()
	places := SetupIntegrationClient(t, cfg)

	var cacheSvc cache.Cache = cache.NewInMemoryCache()
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}

	src := source.New(places, rand.New(rand.NewSource(time.Now().UnixNano())), source.DefaultMinSample, source.DefaultMaxSample, logger)
	classifier := sentiment.NewClassifier(sentiment.NewVaderScorer(), logger)
	return service.NewReviewService(src, classifier, cacheSvc, 5*time.Minute, logger), cacheSvc, cleanup
}
