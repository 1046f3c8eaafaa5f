// Package sentiment labels review text as positive, negative or neutral and
// aggregates labelled reviews into per-label counts.
//
// Labelling is a fixed three-way threshold over a polarity score in [-1, 1]:
// above PositiveThreshold is positive, below NegativeThreshold is negative,
// anything else (including scorer failures) is neutral. The scorer is
// pluggable; the default is the VADER compound score.
package sentiment
