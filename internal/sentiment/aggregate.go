package sentiment

import (
	"fmt"

	"github.com/kjstillabower/hospital-review-service/internal/models"
)

// Count tallies reviews by sentiment label. It panics on a label outside the three
// known values, which Classify never produces.
func Count(reviews []models.Review) models.Statistics {
	var stats models.Statistics
	for _, r := range reviews {
		switch r.Sentiment {
		case models.SentimentPositive:
			stats.Positive++
		case models.SentimentNegative:
			stats.Negative++
		case models.SentimentNeutral:
			stats.Neutral++
		default:
			panic(fmt.Sprintf("sentiment: unknown label %q", r.Sentiment))
		}
	}
	return stats
}
