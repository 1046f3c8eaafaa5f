package sentiment

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kjstillabower/hospital-review-service/internal/models"
)

const (
	PositiveThreshold = 0.1
	NegativeThreshold = -0.1
)

// ErrUnscorable is returned by scorers for input they cannot score.
var ErrUnscorable = errors.New("text cannot be scored")

// PolarityScorer estimates the polarity of text in [-1, 1]. Implementations must be
// deterministic and safe for concurrent use.
type PolarityScorer interface {
	Polarity(text string) (float64, error)
}

// Classifier maps review text to a Sentiment label. It never fails: any scorer error
// or panic yields SentimentNeutral.
type Classifier struct {
	scorer PolarityScorer
	logger *zap.Logger
}

// NewClassifier creates a Classifier. logger may be nil.
func NewClassifier(scorer PolarityScorer, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{scorer: scorer, logger: logger}
}

// Classify returns the label for text.
func (c *Classifier) Classify(text string) (label models.Sentiment) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("sentiment scorer panicked", zap.Any("panic", r))
			label = models.SentimentNeutral
		}
	}()

	polarity, err := c.scorer.Polarity(text)
	if err != nil {
		c.logger.Warn("sentiment scoring failed", zap.Error(err))
		return models.SentimentNeutral
	}
	if math.IsNaN(polarity) {
		c.logger.Warn("sentiment scoring failed", zap.Error(fmt.Errorf("%w: NaN polarity", ErrUnscorable)))
		return models.SentimentNeutral
	}
	return Label(polarity)
}

// Label applies the fixed thresholds to a polarity score.
func Label(polarity float64) models.Sentiment {
	switch {
	case polarity > PositiveThreshold:
		return models.SentimentPositive
	case polarity < NegativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
