package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/hospital-review-service/internal/cache"
	"github.com/kjstillabower/hospital-review-service/internal/models"
	"github.com/kjstillabower/hospital-review-service/internal/observability"
)

// DefaultFreshness is how long a fetched entry is served before a refetch.
const DefaultFreshness = 300 * time.Second

const (
	originFetched = "fetched"
	originUser    = "user"
)

// ReviewSource returns unclassified reviews for a hospital. It never fails;
// lookup errors are absorbed by falling back to sample reviews.
type ReviewSource interface {
	Fetch(ctx context.Context, name, location string) []models.Review
}

// Classifier labels review text.
type Classifier interface {
	Classify(text string) models.Sentiment
}

// ReviewService fetches, classifies and caches hospital reviews and records
// manually submitted ones.
type ReviewService struct {
	source     ReviewSource
	classifier Classifier
	cache      cache.Cache
	freshness  time.Duration
	logger     *zap.Logger
	now        func() time.Time

	group    singleflight.Group
	stampede *stampedeTracker

	// mu serializes cache stores with the get-append-store of SubmitReview.
	// The source is never called while it is held.
	mu sync.Mutex

	users *UserReviewStore
}

// NewReviewService wires the service. freshness <= 0 uses DefaultFreshness.
func NewReviewService(source ReviewSource, classifier Classifier, c cache.Cache, freshness time.Duration, logger *zap.Logger) *ReviewService {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		source:     source,
		classifier: classifier,
		cache:      c,
		freshness:  freshness,
		logger:     logger,
		now:        time.Now,
		stampede:   newStampedeTracker(),
		users:      NewUserReviewStore(),
	}
}

// SetClock replaces the clock used for freshness decisions. For tests.
func (s *ReviewService) SetClock(now func() time.Time) {
	s.now = now
}

// CacheKey returns the cache key for a hospital. Inputs are expected to be
// trimmed already; no other normalization is applied.
func CacheKey(name, location string) string {
	return strings.ToLower(name + "_" + location)
}

// GetReviews returns the classified reviews for a hospital, from cache while the
// entry is fresh, otherwise from a new fetch that replaces the entry. Concurrent
// misses for the same key share one fetch.
func (s *ReviewService) GetReviews(ctx context.Context, name, location string) ([]models.Review, error) {
	key := CacheKey(name, location)
	logger := observability.LoggerFromContext(ctx, s.logger)

	if entry, ok := s.cacheGet(ctx, key, logger); ok {
		if s.isFresh(entry) {
			observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
			logger.Debug("cache hit", zap.String("key", key), zap.Int("reviews", len(entry.Reviews)))
			return entry.Reviews, nil
		}
		observability.CacheLookupsTotal.WithLabelValues("stale").Inc()
	} else {
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.stampede.RecordMiss(key) > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
	}
	defer s.stampede.Done(key)

	// The shared fetch ignores caller cancellation; the places client's per-call
	// timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.refresh(fetchCtx, key, name, location, logger), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		shared := res.Val.([]models.Review)
		out := make([]models.Review, len(shared))
		copy(out, shared)
		return out, nil
	}
}

// refresh fetches and classifies a new review set and stores it under key.
func (s *ReviewService) refresh(ctx context.Context, key, name, location string, logger *zap.Logger) []models.Review {
	start := time.Now()
	reviews := s.source.Fetch(ctx, name, location)
	for i := range reviews {
		reviews[i].Sentiment = s.classifier.Classify(reviews[i].Text)
		observability.RecordClassified(originFetched, string(reviews[i].Sentiment))
	}
	if reviews == nil {
		reviews = []models.Review{}
	}

	entry := models.CacheEntry{Key: key, Reviews: reviews, FetchedAt: s.now()}
	s.mu.Lock()
	s.cacheSet(ctx, key, entry, s.freshness, logger)
	s.mu.Unlock()

	logger.Debug("reviews fetched",
		zap.String("key", key),
		zap.Int("reviews", len(reviews)),
		zap.Duration("duration", time.Since(start)))
	return reviews
}

// AnalyzeReview classifies a manually entered review and records it in the
// user review list. It does not touch the cache.
func (s *ReviewService) AnalyzeReview(text, author string, rating int) models.Review {
	review := s.userReview(text, author, rating)
	observability.UserReviewsSubmittedTotal.WithLabelValues("analyze").Inc()
	return review
}

// SubmitReview classifies and records a review for a hospital. When the hospital's
// cache entry is still fresh the review is appended to it; FetchedAt is left
// unchanged, so the next refetch replaces the entry and drops the review.
func (s *ReviewService) SubmitReview(ctx context.Context, name, location, text, author string, rating int) models.Review {
	review := s.userReview(text, author, rating)
	observability.UserReviewsSubmittedTotal.WithLabelValues("submit").Inc()

	key := CacheKey(name, location)
	logger := observability.LoggerFromContext(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cacheGet(ctx, key, logger)
	if !ok || !s.isFresh(entry) {
		return review
	}
	entry.Reviews = append(entry.Reviews, review)
	remaining := s.freshness - s.now().Sub(entry.FetchedAt)
	s.cacheSet(ctx, key, entry, remaining, logger)
	logger.Debug("user review appended to cached reviews", zap.String("key", key), zap.Int("reviews", len(entry.Reviews)))
	return review
}

// UserReviews returns every manually entered review in insertion order.
func (s *ReviewService) UserReviews() []models.Review {
	return s.users.List()
}

func (s *ReviewService) userReview(text, author string, rating int) models.Review {
	review := models.Review{
		Text:            text,
		Author:          models.AuthorOrDefault(author),
		Rating:          rating,
		Sentiment:       s.classifier.Classify(text),
		IsUserSubmitted: true,
	}
	observability.RecordClassified(originUser, string(review.Sentiment))
	s.users.Add(review)
	return review
}

func (s *ReviewService) isFresh(entry models.CacheEntry) bool {
	return s.now().Sub(entry.FetchedAt) < s.freshness
}

// cacheGet reads key from the cache. Backend errors are logged and treated as a miss.
func (s *ReviewService) cacheGet(ctx context.Context, key string, logger *zap.Logger) (models.CacheEntry, bool) {
	start := time.Now()
	entry, ok, err := s.cache.Get(ctx, key)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(duration)
		logger.Warn("cache get failed", zap.String("key", key), zap.String("category", categorizeCacheError(err)), zap.Error(err))
		return models.CacheEntry{}, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(duration)
	return entry, ok
}

// cacheSet writes entry under key. Backend errors are logged and otherwise ignored.
func (s *ReviewService) cacheSet(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration, logger *zap.Logger) {
	start := time.Now()
	err := s.cache.Set(ctx, key, entry, ttl)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(duration)
		logger.Warn("cache set failed", zap.String("key", key), zap.String("category", categorizeCacheError(err)), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(duration)
}

// categorizeCacheError returns a stable label for cache error logs (timeout, connection, decode, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	if strings.Contains(errStr, "invalid character") || strings.Contains(errStr, "unmarshal") {
		return "decode"
	}
	return "unknown"
}
