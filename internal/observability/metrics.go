package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/hospital-review-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95 approaching the places timeout.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Places API calls by endpoint (textsearch, details) and outcome.
	PlacesAPICallsTotal *prometheus.CounterVec

	// Places API latency. Watch for: p99 near 10s (timeouts turn into fallbacks).
	PlacesAPIDuration *prometheus.HistogramVec

	// Places lookup failures by stable category (see client.CategorizeError).
	PlacesAPIErrorsTotal *prometheus.CounterVec

	// Requests answered from the built-in sample set. Watch for: sustained growth = upstream down or key revoked.
	ReviewFallbacksTotal *prometheus.CounterVec

	// Cache lookups by result (hit, miss, stale).
	CacheLookupsTotal *prometheus.CounterVec

	// Cache backend errors by operation (get, set).
	CacheErrorsTotal *prometheus.CounterVec

	// Cache backend latency by operation and result.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Concurrent misses for one key collapsed into a single fetch.
	CacheStampedeDetectedTotal prometheus.Counter

	// Classified reviews by label and origin (fetched, user).
	ReviewsClassifiedTotal *prometheus.CounterVec

	// Manually submitted reviews by endpoint (analyze, submit).
	UserReviewsSubmittedTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component (0 closed, 1 open, 2 half-open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Startup cache warming runs, failures and duration.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	PlacesAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesApiCallsTotal",
			Help: "Total number of Places API calls",
		},
		[]string{"endpoint", "status"},
	)
	PlacesAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "placesApiDurationSeconds",
			Help:    "Places API latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	PlacesAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placesApiErrorsTotal",
			Help: "Places lookups that failed, by error category",
		},
		[]string{"category"},
	)
	ReviewFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewFallbacksTotal",
			Help: "Fetches served from the built-in sample reviews, by reason",
		},
		[]string{"reason"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Review cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Review cache backend errors by operation",
		},
		[]string{"operation"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Review cache backend latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Cache misses that found another fetch for the same hospital already in progress",
		},
	)
	ReviewsClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewsClassifiedTotal",
			Help: "Reviews classified by sentiment label and origin",
		},
		[]string{"sentiment", "origin"},
	)
	UserReviewsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userReviewsSubmittedTotal",
			Help: "Manually submitted reviews by endpoint",
		},
		[]string{"endpoint"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed hospital",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		PlacesAPICallsTotal, PlacesAPIDuration, PlacesAPIErrorsTotal,
		ReviewFallbacksTotal,
		CacheLookupsTotal, CacheErrorsTotal, CacheOperationDurationSeconds, CacheStampedeDetectedTotal,
		ReviewsClassifiedTotal, UserReviewsSubmittedTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
	)
}

// RegisterTrafficGauges registers sliding-window gauges backed by the traffic tracker.
// Call from main after config load. Safe to call more than once.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "placesLookupsInWindow",
					Help: "Review fetches that reached the lookup stage in the sliding window",
				},
				func() float64 { return float64(traffic.LookupCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "reviewFallbacksInWindow",
					Help: "Review fetches answered from sample data in the sliding window",
				},
				func() float64 { return float64(traffic.FallbackCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordClassified counts one classified review.
func RecordClassified(origin, sentiment string) {
	ReviewsClassifiedTotal.WithLabelValues(sentiment, origin).Inc()
}

// RecordCircuitBreakerTransition counts a state change for component.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetCircuitBreakerStateGauge sets the state gauge for component.
func SetCircuitBreakerStateGauge(component string, state int) {
	CircuitBreakerState.WithLabelValues(component).Set(float64(state))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
