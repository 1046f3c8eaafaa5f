package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/hospital-review-service/internal/circuitbreaker"
	"github.com/kjstillabower/hospital-review-service/internal/models"
	"github.com/kjstillabower/hospital-review-service/internal/observability"
)

// DefaultBaseURL is the Google Places web service root.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// placeType restricts text search to hospitals.
const placeType = "hospital"

const maxResponseBytes = 2 << 20

// PlacesClient looks up third-party reviews for a hospital.
type PlacesClient interface {
	FetchReviews(ctx context.Context, name, location string) ([]models.Review, error)
}

var (
	ErrNotConfigured   = errors.New("places API key not configured")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrNoResults       = errors.New("no matching place")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
)

// GooglePlacesClient implements PlacesClient with a text search followed by a
// place details call. Each HTTP call has its own timeout.
type GooglePlacesClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxReviews int
	client     *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// NewGooglePlacesClient returns ErrNotConfigured when apiKey is empty. maxReviews <= 0
// keeps every review the details call returns.
func NewGooglePlacesClient(apiKey, baseURL string, timeout time.Duration, maxReviews int) (*GooglePlacesClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid places API URL: %w", err)
	}
	return &GooglePlacesClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		maxReviews: maxReviews,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker makes every lookup go through cb. A nil cb disables it.
func (c *GooglePlacesClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type apiStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type textSearchResponse struct {
	apiStatus
	Results []struct {
		PlaceID string `json:"place_id"`
		Name    string `json:"name"`
	} `json:"results"`
}

type detailsResponse struct {
	apiStatus
	Result struct {
		Rating           float64       `json:"rating"`
		UserRatingsTotal int           `json:"user_ratings_total"`
		Reviews          []placeReview `json:"reviews"`
	} `json:"result"`
}

type placeReview struct {
	AuthorName string `json:"author_name"`
	Rating     int    `json:"rating"`
	Text       string `json:"text"`
	Time       int64  `json:"time"`
}

// FetchReviews searches for the hospital and returns the reviews of the first match.
// Returned reviews carry no sentiment. A search with no match returns ErrNoResults
// and is not counted as an upstream failure by the circuit breaker.
func (c *GooglePlacesClient) FetchReviews(ctx context.Context, name, location string) ([]models.Review, error) {
	var (
		reviews   []models.Review
		noResults bool
	)
	lookup := func() error {
		placeID, err := c.searchPlace(ctx, name, location)
		if errors.Is(err, ErrNoResults) {
			noResults = true
			return nil
		}
		if err != nil {
			return err
		}
		reviews, err = c.placeReviews(ctx, placeID)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, lookup)
	} else {
		err = lookup()
	}
	if err == nil && noResults {
		err = ErrNoResults
	}
	if err != nil {
		observability.PlacesAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return nil, err
	}
	return reviews, nil
}

func (c *GooglePlacesClient) searchPlace(ctx context.Context, name, location string) (string, error) {
	params := url.Values{}
	params.Set("query", strings.TrimSpace(name+" "+location))
	params.Set("type", placeType)

	var resp textSearchResponse
	if err := c.getJSON(ctx, "textsearch", params, &resp); err != nil {
		return "", fmt.Errorf("text search: %w", err)
	}
	if err := statusError(resp.apiStatus); err != nil {
		return "", fmt.Errorf("text search: %w", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].PlaceID == "" {
		return "", ErrNoResults
	}
	return resp.Results[0].PlaceID, nil
}

func (c *GooglePlacesClient) placeReviews(ctx context.Context, placeID string) ([]models.Review, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "reviews,rating,user_ratings_total")

	var resp detailsResponse
	if err := c.getJSON(ctx, "details", params, &resp); err != nil {
		return nil, fmt.Errorf("place details: %w", err)
	}
	if err := statusError(resp.apiStatus); err != nil {
		if errors.Is(err, ErrNoResults) {
			return nil, nil
		}
		return nil, fmt.Errorf("place details: %w", err)
	}
	return c.mapReviews(resp.Result.Reviews), nil
}

func (c *GooglePlacesClient) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/"+endpoint+"/json?"+params.Encode(), nil)
	if err != nil {
		observability.PlacesAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.PlacesAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.PlacesAPIDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.PlacesAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.PlacesAPIDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *GooglePlacesClient) mapReviews(in []placeReview) []models.Review {
	n := len(in)
	if c.maxReviews > 0 && n > c.maxReviews {
		n = c.maxReviews
	}
	out := make([]models.Review, 0, n)
	for _, r := range in[:n] {
		out = append(out, models.Review{
			Text:   r.Text,
			Author: models.AuthorOrDefault(r.AuthorName),
			Rating: clampRating(r.Rating),
		})
	}
	return out
}

// statusError maps the Places "status" field to a sentinel error. An empty status is
// treated as OK.
func statusError(s apiStatus) error {
	switch s.Status {
	case "", "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return ErrNoResults
	case "REQUEST_DENIED":
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, s.ErrorMessage)
	case "OVER_QUERY_LIMIT":
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: status %s %s", ErrUpstreamFailure, s.Status, s.ErrorMessage)
	}
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func clampRating(r int) int {
	if r < 0 {
		return 0
	}
	if r > 5 {
		return 5
	}
	return r
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
