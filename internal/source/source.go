// Package source produces the raw (unclassified) reviews for a hospital: the live
// place lookup when it yields reviews, otherwise a random subset of built-in samples.
package source

import (
	"context"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/hospital-review-service/internal/client"
	"github.com/kjstillabower/hospital-review-service/internal/models"
	"github.com/kjstillabower/hospital-review-service/internal/observability"
	"github.com/kjstillabower/hospital-review-service/internal/traffic"
)

const (
	DefaultMinSample = 5
	DefaultMaxSample = 8
)

// fallbackReasonNoReviews labels a lookup that succeeded but returned nothing.
const fallbackReasonNoReviews = "no_reviews"

var sampleReviews = []models.Review{
	{Text: "Excellent service and very caring staff. The doctors were professional and the facilities were clean.", Author: "John Smith", Rating: 5},
	{Text: "Had to wait for a long time but the treatment was good. Staff could be more friendly.", Author: "Sarah Johnson", Rating: 3},
	{Text: "Poor service, long waiting times, and unprofessional behavior from some staff members.", Author: "Mike Brown", Rating: 2},
	{Text: "Outstanding care! The nurses were amazing and the doctor explained everything clearly.", Author: "Emily Davis", Rating: 5},
	{Text: "Average experience. Nothing special but got the job done. Could improve cleanliness.", Author: "David Wilson", Rating: 3},
	{Text: "Terrible experience. Rude staff, dirty facilities, and very poor communication.", Author: "Lisa Anderson", Rating: 1},
	{Text: "Good medical care but the administration process was confusing and time-consuming.", Author: "Robert Taylor", Rating: 4},
	{Text: "Highly recommend this hospital. Professional staff, modern equipment, and great patient care.", Author: "Jennifer Martinez", Rating: 5},
}

// SampleReviews returns a copy of the built-in fallback review set.
func SampleReviews() []models.Review {
	out := make([]models.Review, len(sampleReviews))
	copy(out, sampleReviews)
	return out
}

// LookupResult is the outcome of one live lookup.
type LookupResult struct {
	Reviews []models.Review
	Err     error
}

// UseFallback reports whether the sample set should replace the lookup result.
func (r LookupResult) UseFallback() bool {
	return r.Err != nil || len(r.Reviews) == 0
}

// Source fetches reviews for a hospital. It is safe for concurrent use.
type Source struct {
	places    client.PlacesClient
	logger    *zap.Logger
	minSample int
	maxSample int

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New returns a Source. places may be nil, in which case every fetch falls back.
// The sample size bounds are clamped to [1, len(SampleReviews())].
func New(places client.PlacesClient, rng *rand.Rand, minSample, maxSample int, logger *zap.Logger) *Source {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if minSample <= 0 {
		minSample = DefaultMinSample
	}
	if maxSample <= 0 {
		maxSample = DefaultMaxSample
	}
	if maxSample > len(sampleReviews) {
		maxSample = len(sampleReviews)
	}
	if minSample > maxSample {
		minSample = maxSample
	}
	return &Source{
		places:    places,
		rng:       rng,
		minSample: minSample,
		maxSample: maxSample,
		logger:    logger,
	}
}

// Lookup runs the live lookup only. It never falls back.
func (s *Source) Lookup(ctx context.Context, name, location string) LookupResult {
	if s.places == nil {
		return LookupResult{Err: client.ErrNotConfigured}
	}
	reviews, err := s.places.FetchReviews(ctx, name, location)
	return LookupResult{Reviews: reviews, Err: err}
}

// Fetch returns the live reviews for the hospital, or a sample subset when the
// lookup fails or finds no reviews. Lookup errors are logged and counted, never returned.
func (s *Source) Fetch(ctx context.Context, name, location string) []models.Review {
	res := s.Lookup(ctx, name, location)
	if !res.UseFallback() {
		traffic.RecordLookup()
		return res.Reviews
	}

	reason := fallbackReasonNoReviews
	logger := observability.LoggerFromContext(ctx, s.logger)
	if res.Err != nil {
		reason = string(client.CategorizeError(res.Err))
		if reason == string(client.ErrorCategoryNotConfigured) {
			logger.Debug("places lookup not configured, using sample reviews",
				zap.String("hospital_name", name), zap.String("location", location))
		} else {
			logger.Warn("places lookup failed, using sample reviews",
				zap.String("hospital_name", name),
				zap.String("location", location),
				zap.String("category", reason),
				zap.Error(res.Err))
		}
	} else {
		logger.Info("places lookup returned no reviews, using sample reviews",
			zap.String("hospital_name", name), zap.String("location", location))
	}
	observability.ReviewFallbacksTotal.WithLabelValues(reason).Inc()
	traffic.RecordFallback()
	return s.Sample()
}

// Sample returns between minSample and maxSample distinct reviews from the sample
// set, in random order.
func (s *Source) Sample() []models.Review {
	s.mu.Lock()
	n := s.minSample + s.rng.Intn(s.maxSample-s.minSample+1)
	perm := s.rng.Perm(len(sampleReviews))
	s.mu.Unlock()

	out := make([]models.Review, 0, n)
	for _, i := range perm[:n] {
		out = append(out, sampleReviews[i])
	}
	return out
}
