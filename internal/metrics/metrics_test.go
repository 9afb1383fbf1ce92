package metrics

import (
	"testing"
	"time"
)

func TestRecorderDisabledByDefaultReturnsZeroSnapshot(t *testing.T) {
	r := New(10)
	r.ObserveRowsRead(100, time.Now())
	r.ObserveFetch(time.Millisecond, false, false)
	snap := r.Snapshot()
	if snap.RowsRead != 0 || snap.Completed != 0 {
		t.Fatalf("a disabled recorder should observe nothing, got %+v", snap)
	}
}

func TestRecorderTracksCompletedAndDiscarded(t *testing.T) {
	r := New(10)
	r.SetEnabled(true)

	r.ObserveFetch(5*time.Millisecond, false, false)
	r.ObserveFetch(0, true, false)
	r.ObserveFetch(0, true, true)

	snap := r.Snapshot()
	if snap.Completed != 1 {
		t.Fatalf("expected 1 completed fetch, got %d", snap.Completed)
	}
	if snap.Discarded != 1 {
		t.Fatalf("expected 1 discarded fetch, got %d", snap.Discarded)
	}
	if snap.IOErrors != 1 {
		t.Fatalf("expected 1 io error, got %d", snap.IOErrors)
	}
}

func TestRecorderFetchLatencyRingCapsAtWindow(t *testing.T) {
	r := New(3)
	r.SetEnabled(true)
	for i := 1; i <= 5; i++ {
		r.ObserveFetch(time.Duration(i)*time.Millisecond, false, false)
	}
	snap := r.Snapshot()
	if snap.FetchLatency.N != 3 {
		t.Fatalf("expected the ring to cap at window size 3, got N=%d", snap.FetchLatency.N)
	}
	if snap.FetchLatency.Last != 5*time.Millisecond {
		t.Fatalf("expected the most recent duration to be last, got %v", snap.FetchLatency.Last)
	}
	if snap.FetchLatency.Max != 5*time.Millisecond {
		t.Fatalf("expected max to be 5ms, got %v", snap.FetchLatency.Max)
	}
}

func TestRecorderRowsPerSecond(t *testing.T) {
	r := New(10)
	r.SetEnabled(true)
	base := time.Now()
	r.ObserveRowsRead(100, base)
	r.ObserveRowsRead(100, base.Add(time.Second))
	snap := r.Snapshot()
	if snap.RowsRead != 200 {
		t.Fatalf("expected 200 rows read, got %d", snap.RowsRead)
	}
	if snap.RowsPerSecond == 0 {
		t.Fatal("expected a nonzero rows-per-second once first/last reads span time")
	}
}
