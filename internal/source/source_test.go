package source

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/hospital-review-service/internal/client"
	"github.com/kjstillabower/hospital-review-service/internal/models"
	"github.com/kjstillabower/hospital-review-service/internal/traffic"
)

type mockPlacesClient struct {
	reviews []models.Review
	err     error
	calls   int
}

func (m *mockPlacesClient) FetchReviews(ctx context.Context, name, location string) ([]models.Review, error) {
	m.calls++
	return m.reviews, m.err
}

func isSample(r models.Review) bool {
	for _, s := range sampleReviews {
		if s == r {
			return true
		}
	}
	return false
}

func TestLookupResult_UseFallback(t *testing.T) {
	tests := []struct {
		name string
		res  LookupResult
		want bool
	}{
		{"reviews", LookupResult{Reviews: []models.Review{{Text: "ok"}}}, false},
		{"empty", LookupResult{}, true},
		{"error", LookupResult{Err: client.ErrUpstreamFailure}, true},
		{"error with reviews", LookupResult{Reviews: []models.Review{{Text: "ok"}}, Err: client.ErrUpstreamFailure}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.UseFallback(); got != tt.want {
				t.Errorf("UseFallback() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSource_Fetch_Live(t *testing.T) {
	traffic.Reset()
	live := []models.Review{{Text: "Clean rooms", Author: "Ann", Rating: 4}}
	places := &mockPlacesClient{reviews: live}
	src := New(places, rand.New(rand.NewSource(7)), 5, 8, zap.NewNop())

	got := src.Fetch(context.Background(), "City Hospital", "NYC")
	if len(got) != 1 || got[0] != live[0] {
		t.Errorf("Fetch() = %+v, want %+v", got, live)
	}
	if places.calls != 1 {
		t.Errorf("places calls = %d, want 1", places.calls)
	}
}

// TestSource_Fetch_Fallback verifies that every failure mode yields 5-8 distinct
// sample reviews with non-empty text and a rating in 1..5.
func TestSource_Fetch_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		places client.PlacesClient
	}{
		{"nil client", nil},
		{"upstream error", &mockPlacesClient{err: client.ErrUpstreamFailure}},
		{"no results", &mockPlacesClient{err: client.ErrNoResults}},
		{"timeout", &mockPlacesClient{err: context.DeadlineExceeded}},
		{"zero reviews", &mockPlacesClient{reviews: []models.Review{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := New(tt.places, rand.New(rand.NewSource(42)), 5, 8, nil)
			for i := 0; i < 20; i++ {
				got := src.Fetch(context.Background(), "Nowhere", "Atlantis")
				if len(got) < 5 || len(got) > 8 {
					t.Fatalf("len(Fetch()) = %d, want 5..8", len(got))
				}
				seen := make(map[string]bool)
				for _, r := range got {
					if !isSample(r) {
						t.Errorf("review %+v is not from the sample set", r)
					}
					if r.Text == "" || r.Rating < 1 || r.Rating > 5 {
						t.Errorf("invalid sample review %+v", r)
					}
					if seen[r.Author] {
						t.Errorf("sample review %q returned twice", r.Author)
					}
					seen[r.Author] = true
				}
			}
		})
	}
}

func TestSource_Fetch_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	places := &mockPlacesClient{err: errors.New("connection refused")}
	src := New(places, rand.New(rand.NewSource(1)), 5, 8, zap.New(core))

	src.Fetch(context.Background(), "City Hospital", "NYC")

	entries := logs.FilterMessage("places lookup failed, using sample reviews").All()
	if len(entries) != 1 {
		t.Fatalf("warn log entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["category"]; got != string(client.ErrorCategoryNetwork) {
		t.Errorf("category = %v, want network", got)
	}
}

func TestSource_Sample_Deterministic(t *testing.T) {
	a := New(nil, rand.New(rand.NewSource(99)), 5, 8, nil).Sample()
	b := New(nil, rand.New(rand.NewSource(99)), 5, 8, nil).Sample()
	if len(a) != len(b) {
		t.Fatalf("len = %d and %d, want equal for the same seed", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("sample[%d] differs for the same seed", i)
		}
	}
}

func TestNew_ClampsBounds(t *testing.T) {
	tests := []struct {
		name             string
		min, max         int
		wantMin, wantMax int
	}{
		{"defaults", 0, 0, 5, 8},
		{"max above set size", 5, 20, 5, 8},
		{"inverted", 7, 3, 3, 3},
		{"fixed", 6, 6, 6, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := New(nil, rand.New(rand.NewSource(3)), tt.min, tt.max, nil)
			if src.minSample != tt.wantMin || src.maxSample != tt.wantMax {
				t.Errorf("bounds = [%d, %d], want [%d, %d]", src.minSample, src.maxSample, tt.wantMin, tt.wantMax)
			}
			for i := 0; i < 10; i++ {
				n := len(src.Sample())
				if n < tt.wantMin || n > tt.wantMax {
					t.Errorf("len(Sample()) = %d, want %d..%d", n, tt.wantMin, tt.wantMax)
				}
			}
		})
	}
}

func TestSampleReviews_Copy(t *testing.T) {
	got := SampleReviews()
	if len(got) != 8 {
		t.Fatalf("len(SampleReviews()) = %d, want 8", len(got))
	}
	got[0].Text = "changed"
	if sampleReviews[0].Text == "changed" {
		t.Error("SampleReviews() returned the backing slice")
	}
}
