package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kjstillabower/hospital-review-service/internal/models"
	"github.com/kjstillabower/hospital-review-service/internal/observability"
	"github.com/kjstillabower/hospital-review-service/internal/sentiment"
	"github.com/kjstillabower/hospital-review-service/internal/validation"
)

const (
	msgNoData         = "No data received"
	msgAnalyzed       = "Review analyzed successfully!"
	msgSubmitted      = "Review submitted successfully!"
	maxRequestBodyLen = 1 << 20
)

// ReviewService is the service surface the handlers depend on.
type ReviewService interface {
	GetReviews(ctx context.Context, name, location string) ([]models.Review, error)
	AnalyzeReview(text, author string, rating int) models.Review
	SubmitReview(ctx context.Context, name, location, text, author string, rating int) models.Review
	UserReviews() []models.Review
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	reviews   ReviewService
	logger    *zap.Logger
	staticDir string
	draining  atomic.Bool
}

// NewHandler returns a new Handler. staticDir holds index.html for GET /.
func NewHandler(reviews ReviewService, logger *zap.Logger, staticDir string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		reviews:   reviews,
		logger:    logger,
		staticDir: staticDir,
	}
}

// reviewView is the per-review shape of POST /reviews; it omits is_user_submitted.
type reviewView struct {
	Text      string           `json:"text"`
	Author    string           `json:"author"`
	Rating    int              `json:"rating"`
	Sentiment models.Sentiment `json:"sentiment"`
}

type reviewsResponse struct {
	Statistics   models.Statistics `json:"statistics"`
	Reviews      []reviewView      `json:"reviews"`
	TotalReviews int               `json:"total_reviews"`
	HospitalName string            `json:"hospital_name"`
	Location     string            `json:"location"`
}

type userReviewResponse struct {
	Review    models.Review    `json:"review"`
	Sentiment models.Sentiment `json:"sentiment"`
	Message   string           `json:"message"`
}

// GetReviews handles POST /reviews.
func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request) {
	var req validation.ReviewsRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	name, location := req.HospitalName, req.Location

	reviews, err := h.reviews.GetReviews(r.Context(), name, location)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	views := make([]reviewView, 0, len(reviews))
	for _, rv := range reviews {
		views = append(views, reviewView{Text: rv.Text, Author: rv.Author, Rating: rv.Rating, Sentiment: rv.Sentiment})
	}
	writeJSON(w, http.StatusOK, reviewsResponse{
		Statistics:   sentiment.Count(reviews),
		Reviews:      views,
		TotalReviews: len(reviews),
		HospitalName: name,
		Location:     location,
	})
}

// AnalyzeReview handles POST /analyze-review.
func (h *Handler) AnalyzeReview(w http.ResponseWriter, r *http.Request) {
	var req validation.AnalyzeRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	review := h.reviews.AnalyzeReview(req.ReviewText, req.AuthorName, int(req.Rating))
	writeJSON(w, http.StatusOK, userReviewResponse{Review: review, Sentiment: review.Sentiment, Message: msgAnalyzed})
}

// SubmitReview handles POST /submit-review.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req validation.SubmitRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	review := h.reviews.SubmitReview(r.Context(), req.HospitalName, req.Location, req.ReviewText, req.AuthorName, int(req.Rating))
	writeJSON(w, http.StatusOK, userReviewResponse{Review: review, Sentiment: review.Sentiment, Message: msgSubmitted})
}

// ListUserReviews handles GET /user-reviews.
func (h *Handler) ListUserReviews(w http.ResponseWriter, r *http.Request) {
	reviews := h.reviews.UserReviews()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reviews":    reviews,
		"total":      len(reviews),
		"statistics": sentiment.Count(reviews),
	})
}

// BeginShutdown makes /health report 503 so load balancers stop routing here
// while in-flight requests drain.
func (h *Handler) BeginShutdown() {
	h.draining.Store(true)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "shutting-down",
			"message": "Server is shutting down",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Server is running",
	})
}

// Index handles GET / by serving index.html from the static directory.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
}

// request is a validated API body.
type request interface {
	Normalize()
}

// decodeRequest reads a JSON object into req, normalizes and validates it. On
// failure it writes the 400 response and returns false.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, req request) bool {
	if !h.decodeBody(w, r, req) {
		return false
	}
	req.Normalize()
	if err := validation.ValidateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// decodeBody reads a JSON object into v. A missing, empty or unparseable body gets
// 400 "No data received"; a field of the wrong JSON type gets a message naming it.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	logger := observability.LoggerFromContext(r.Context(), h.logger)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyLen))
	if err == nil {
		var fields map[string]json.RawMessage
		err = json.Unmarshal(body, &fields)
		if err == nil && len(fields) == 0 {
			err = fmt.Errorf("empty object")
		}
	}
	if err != nil {
		logger.Debug("rejecting request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgNoData)
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		logger.Debug("rejecting request field", zap.Error(err))
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			writeError(w, http.StatusBadRequest, "Invalid value for "+typeErr.Field)
			return false
		}
		writeError(w, http.StatusBadRequest, msgNoData)
		return false
	}
	return true
}

func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context(), h.logger).Error("request failed",
		zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the flat {"error": message} body used by every endpoint.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
