package service

import (
	"sync"

	"github.com/kjstillabower/hospital-review-service/internal/models"
)

// UserReviewStore is the process-wide list of manually entered reviews, kept in
// insertion order. Entries are never removed.
type UserReviewStore struct {
	mu      sync.Mutex
	reviews []models.Review
}

func NewUserReviewStore() *UserReviewStore {
	return &UserReviewStore{}
}

// Add appends r.
func (s *UserReviewStore) Add(r models.Review) {
	s.mu.Lock()
	s.reviews = append(s.reviews, r)
	s.mu.Unlock()
}

// List returns a copy of the stored reviews.
func (s *UserReviewStore) List() []models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}

func (s *UserReviewStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reviews)
}
