package sentiment

import (
	"fmt"
	"unicode/utf8"

	"github.com/jonreiter/govader"
)

// VaderScorer scores text with the VADER lexicon and rule set. The polarity is
// VADER's normalized compound score.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer loads the VADER lexicon. Build one per process and share it.
func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Polarity implements PolarityScorer.
func (v *VaderScorer) Polarity(text string) (float64, error) {
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("%w: invalid UTF-8", ErrUnscorable)
	}
	return v.analyzer.PolarityScores(text).Compound, nil
}
