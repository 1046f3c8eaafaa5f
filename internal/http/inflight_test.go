package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInFlightTracker_Count(t *testing.T) {
	var tracker InFlightTracker
	steps := []struct {
		op   func()
		want int64
	}{
		{func() {}, 0},
		{tracker.Increment, 1},
		{tracker.Increment, 2},
		{tracker.Decrement, 1},
		{tracker.Decrement, 0},
	}
	for i, s := range steps {
		s.op()
		if got := tracker.Count(); got != s.want {
			t.Errorf("step %d: Count() = %d, want %d", i, got, s.want)
		}
	}
}

func TestInFlightTracker_WaitForZero_ReturnsOnDrain(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- tracker.WaitForZero(ctx, 5*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	tracker.Decrement()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForZero() error = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForZero did not return after the count reached zero")
	}
}

func TestInFlightTracker_WaitForZero_ContextDone(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForZero() error = %v, want context.Canceled", err)
	}
}

// TestWaitForInFlight_DrainsSlowReviewRequest holds a /reviews request open and
// checks that shutdown waiting sees it until it completes.
func TestWaitForInFlight_DrainsSlowReviewRequest(t *testing.T) {
	stub := &stubReviewService{release: make(chan struct{})}
	router := NewRouter(NewHandler(stub, nil, ""), RouterConfig{}, nil)

	finished := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/reviews",
			strings.NewReader(`{"hospital_name":"City Hospital","location":"NYC"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		finished <- w.Code
	}()

	deadline := time.Now().Add(time.Second)
	for InFlightCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never became in-flight")
		}
		time.Sleep(time.Millisecond)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := WaitForInFlight(short, 5*time.Millisecond); err == nil {
		t.Error("WaitForInFlight() = nil while a request is still running")
	}

	close(stub.release)
	if code := <-finished; code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := WaitForInFlight(ctx, 5*time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() error = %v after request finished", err)
	}
}
