package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/hospital-review-service/internal/models"
	"github.com/kjstillabower/hospital-review-service/internal/observability"
)

// ReviewFetcher is implemented by the service layer. The warmer depends on it
// instead of the service package to avoid an import cycle.
type ReviewFetcher interface {
	GetReviews(ctx context.Context, name, location string) ([]models.Review, error)
}

// WarmTarget is one hospital to prefetch.
type WarmTarget struct {
	Name     string
	Location string
}

// CacheWarmer prefetches reviews for a fixed list of hospitals.
type CacheWarmer struct {
	fetcher ReviewFetcher
	logger  *zap.Logger
}

func NewCacheWarmer(fetcher ReviewFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches every target concurrently and returns once all are done.
// The returned error joins the per-target failures.
func (w *CacheWarmer) Warm(ctx context.Context, targets []WarmTarget) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("hospitals", len(targets)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(targets))
	for _, t := range targets {
		wg.Add(1)
		go func(t WarmTarget) {
			defer wg.Done()
			if _, err := w.fetcher.GetReviews(ctx, t.Name, t.Location); err != nil {
				errCh <- fmt.Errorf("warm %s/%s: %w", t.Name, t.Location, err)
			}
		}(t)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("hospitals", len(targets)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}
