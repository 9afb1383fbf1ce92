package engine

import (
	"sync"
	"testing"
	"time"
)

func newTestCoordinator(fetch fetchFunc, emit func(Result)) *Coordinator {
	c := &Coordinator{
		doorbell: make(chan struct{}, 1),
		done:     make(chan struct{}),
		fetch:    fetch,
		emit:     emit,
		debounce: 10 * time.Millisecond,
		throttle: 5 * time.Millisecond,
	}
	go c.run()
	return c
}

func TestCoordinatorDebouncesRapidRequests(t *testing.T) {
	var mu sync.Mutex
	var fetchCount int
	var results []Result

	c := newTestCoordinator(
		func(req viewportRequest, token RequestToken, epoch uint64) (Result, error) {
			mu.Lock()
			fetchCount++
			mu.Unlock()
			return Result{Token: token, Epoch: epoch}, nil
		},
		func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.RequestViewport(float64(i), float64(i)+1)
		time.Sleep(time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fetchCount != 1 {
		t.Fatalf("expected exactly one fetch after debounce settles, got %d", fetchCount)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one emitted result, got %d", len(results))
	}
}

func TestCoordinatorDedupesIdenticalBounds(t *testing.T) {
	c := newTestCoordinator(
		func(req viewportRequest, token RequestToken, epoch uint64) (Result, error) {
			return Result{Token: token}, nil
		},
		func(r Result) {},
	)
	defer c.Close()

	tok1 := c.RequestViewport(0, 10)
	tok2 := c.RequestViewport(0, 10)
	if tok1 != tok2 {
		t.Fatalf("identical consecutive bounds should not mint a new version: %d != %d", tok1, tok2)
	}
}

func TestCoordinatorStaleVersionDiscardedAndRetried(t *testing.T) {
	var mu sync.Mutex
	var discardReasons []DiscardReason
	fetchGate := make(chan struct{})
	var fetchN int

	c := newTestCoordinator(
		func(req viewportRequest, token RequestToken, epoch uint64) (Result, error) {
			mu.Lock()
			fetchN++
			n := fetchN
			mu.Unlock()
			if n == 1 {
				<-fetchGate // hold the first fetch open so a newer request can supersede it
			}
			return Result{Token: token, Epoch: epoch}, nil
		},
		func(r Result) {
			if r.Discarded {
				mu.Lock()
				discardReasons = append(discardReasons, r.DiscardReason)
				mu.Unlock()
			}
		},
	)
	defer c.Close()

	c.RequestViewport(0, 10)
	time.Sleep(30 * time.Millisecond) // let the first fetch start and block on fetchGate
	c.RequestViewport(10, 20)         // supersedes the in-flight fetch's version
	time.Sleep(30 * time.Millisecond)
	close(fetchGate)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, r := range discardReasons {
		if r.Kind == "superseded" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a superseded discard, got %v", discardReasons)
	}
}

func TestCoordinatorBumpEpochDiscardsInFlightFetch(t *testing.T) {
	var mu sync.Mutex
	var discardReasons []DiscardReason
	fetchGate := make(chan struct{})

	c := newTestCoordinator(
		func(req viewportRequest, token RequestToken, epoch uint64) (Result, error) {
			<-fetchGate
			return Result{Token: token, Epoch: epoch}, nil
		},
		func(r Result) {
			mu.Lock()
			if r.Discarded {
				discardReasons = append(discardReasons, r.DiscardReason)
			}
			mu.Unlock()
		},
	)
	defer c.Close()

	c.RequestViewport(0, 10)
	time.Sleep(30 * time.Millisecond)
	c.BumpEpoch()
	close(fetchGate)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, r := range discardReasons {
		if r.Kind == "epoch_changed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an epoch_changed discard, got %v", discardReasons)
	}
}

func TestCoordinatorCloseIsIdempotentAndStopsFetching(t *testing.T) {
	var mu sync.Mutex
	var fetchCount int
	c := newTestCoordinator(
		func(req viewportRequest, token RequestToken, epoch uint64) (Result, error) {
			mu.Lock()
			fetchCount++
			mu.Unlock()
			return Result{Token: token}, nil
		},
		func(r Result) {},
	)
	c.Close()
	c.Close() // must not panic

	c.RequestViewport(0, 1)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fetchCount != 0 {
		t.Fatalf("a closed coordinator should never fetch again, got %d fetches", fetchCount)
	}
}
