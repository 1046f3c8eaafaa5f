package models

import (
	"strings"
	"time"
)

// Sentiment is the three-way polarity label attached to every classified review.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// DefaultAuthor is used when a review arrives without an author name.
const DefaultAuthor = "Anonymous"

type Review struct {
	Text            string    `json:"text"`
	Author          string    `json:"author"`
	Rating          int       `json:"rating"`
	Sentiment       Sentiment `json:"sentiment"`
	IsUserSubmitted bool      `json:"is_user_submitted"`
}

// CacheEntry is one cached result set for a hospital. Reviews is replaced wholesale
// on refetch; FetchedAt is never moved by appends.
type CacheEntry struct {
	Key       string    `json:"key"`
	Reviews   []Review  `json:"reviews"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Statistics holds per-label counts over one review set.
type Statistics struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Total returns the number of reviews the statistics were computed over.
func (s Statistics) Total() int {
	return s.Positive + s.Negative + s.Neutral
}

// AuthorOrDefault returns author, or DefaultAuthor when author is blank.
func AuthorOrDefault(author string) string {
	if strings.TrimSpace(author) == "" {
		return DefaultAuthor
	}
	return author
}
