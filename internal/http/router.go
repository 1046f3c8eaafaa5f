package http

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/hospital-review-service/internal/observability"
)

// RouterConfig holds the cross-cutting settings applied by NewRouter.
type RouterConfig struct {
	RequestTimeout     time.Duration
	Limiter            *rate.Limiter // nil disables rate limiting
	CORSAllowedOrigins []string
}

// NewRouter registers every route on a mux router and wraps it with CORS.
// Rate limiting and the request timeout apply to the review API only.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(RecoverMiddleware(logger))

	rateLimit := RateLimitMiddleware(cfg.Limiter)
	timeout := func(next http.Handler) http.Handler { return next }
	if cfg.RequestTimeout > 0 {
		timeout = TimeoutMiddleware(cfg.RequestTimeout)
	}
	api := func(fn http.HandlerFunc) http.Handler {
		return rateLimit(timeout(fn))
	}

	router.Handle("/reviews", api(h.GetReviews)).Methods(http.MethodPost)
	router.Handle("/analyze-review", api(h.AnalyzeReview)).Methods(http.MethodPost)
	router.Handle("/submit-review", api(h.SubmitReview)).Methods(http.MethodPost)
	router.Handle("/user-reviews", api(h.ListUserReviews)).Methods(http.MethodGet)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(h.staticDir, "static"))))).
		Methods(http.MethodGet)

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSMiddleware(origins)(router)
}
