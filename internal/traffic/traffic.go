// Package traffic keeps short sliding windows of review-fetch outcomes and
// rate-limit denials. It backs the window gauges exported on /metrics.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back any window can look.
const retention = 15 * time.Minute

var defaultTracker Tracker

// RecordLookup records a fetch answered by the live place lookup.
func RecordLookup() {
	defaultTracker.RecordLookup()
}

// RecordFallback records a fetch answered from the built-in sample reviews.
func RecordFallback() {
	defaultTracker.RecordFallback()
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// LookupCount returns all fetches (live + fallback) within the window.
func LookupCount(window time.Duration) int {
	return defaultTracker.LookupCount(window)
}

// FallbackCount returns fallback fetches within the window.
func FallbackCount(window time.Duration) int {
	return defaultTracker.FallbackCount(window)
}

// DenialCount returns denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps. The zero value is ready to use.
type Tracker struct {
	mu            sync.Mutex
	now           func() time.Time
	liveTimes     []time.Time
	fallbackTimes []time.Time
	deniedTimes   []time.Time
}

// NewTracker returns a Tracker reading time from now. Used by tests to control the clock.
func NewTracker(now func() time.Time) *Tracker {
	return &Tracker{now: now}
}

func (t *Tracker) RecordLookup() {
	t.record(&t.liveTimes)
}

func (t *Tracker) RecordFallback() {
	t.record(&t.fallbackTimes)
}

func (t *Tracker) RecordDenied() {
	t.record(&t.deniedTimes)
}

// LookupCount returns live plus fallback fetches within the window.
func (t *Tracker) LookupCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	return countSince(t.liveTimes, cutoff) + countSince(t.fallbackTimes, cutoff)
}

func (t *Tracker) FallbackCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.fallbackTimes, t.clock().Add(-window))
}

func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.deniedTimes, t.clock().Add(-window))
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.liveTimes = nil
	t.fallbackTimes = nil
	t.deniedTimes = nil
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.liveTimes)
	prune(&t.fallbackTimes)
	prune(&t.deniedTimes)
}
