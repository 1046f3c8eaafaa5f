package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/hospital-review-service/internal/cache"
	"github.com/kjstillabower/hospital-review-service/internal/config"
)

func TestNewPlacesClient_NoKeyReturnsNil(t *testing.T) {
	cfg := &config.Config{PlacesAPITimeout: time.Second}
	if pc := newPlacesClient(cfg, zap.NewNop()); pc != nil {
		t.Errorf("newPlacesClient() = %v, want nil interface", pc)
	}
}

func TestNewPlacesClient_WithKey(t *testing.T) {
	cfg := &config.Config{
		PlacesAPIKey:          "test-key",
		PlacesAPITimeout:      time.Second,
		PlacesMaxReviews:      5,
		CircuitBreakerEnabled: true,
	}
	if pc := newPlacesClient(cfg, zap.NewNop()); pc == nil {
		t.Error("newPlacesClient() = nil, want client")
	}
}

func TestNewCache_InMemoryDefault(t *testing.T) {
	c, closeFn := newCache(&config.Config{CacheBackend: config.BackendInMemory}, zap.NewNop())
	if _, ok := c.(*cache.InMemoryCache); !ok {
		t.Errorf("newCache() = %T, want *cache.InMemoryCache", c)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close = %v", err)
	}
}
