// Package diagnostics tracks which malformed raw CSV values recur most
// often while a file is being read, using a sliding-window Top-K sketch
// instead of an ever-growing exact map.
package diagnostics

import (
	"sort"
	"sync"
	"time"

	"github.com/keilerkonzept/topk/sliding"
)

const (
	defaultWidth        = 1024
	defaultDepth        = 4
	defaultDecay        = 0.9
	defaultDecayLUTSize = 1024
)

// Offender is one entry of a malformed-value frequency report.
type Offender struct {
	Value string
	Count uint32
}

// Tracker ranks the most frequently seen malformed values — bad axis
// fields, non-numeric cells in an otherwise numeric column — over a
// sliding window of recent ticks. Values from all columns share one
// ranking; the tracker does not record which column a value came from.
// It is the backing store behind QualityRecord.TopOffenders.
type Tracker struct {
	mu      sync.Mutex
	k       int
	sketch  *sliding.Sketch
	tickDur time.Duration

	stop chan struct{}
	once sync.Once
}

// New creates a tracker keeping the k heaviest-hitting values over
// numBuckets ticks of tickDur each (a "window" of numBuckets*tickDur).
func New(k, numBuckets int, tickDur time.Duration) *Tracker {
	if k < 1 {
		k = 16
	}
	if numBuckets < 1 {
		numBuckets = 60
	}
	sk := sliding.New(k, numBuckets,
		sliding.WithWidth(defaultWidth),
		sliding.WithDepth(defaultDepth),
		sliding.WithDecay(defaultDecay),
		sliding.WithDecayLUTSize(defaultDecayLUTSize),
	)
	return &Tracker{k: k, sketch: sk, tickDur: tickDur, stop: make(chan struct{})}
}

// Observe records one occurrence of a malformed raw value.
func (t *Tracker) Observe(value string) {
	if value == "" {
		return
	}
	t.mu.Lock()
	t.sketch.Incr(value)
	t.mu.Unlock()
}

// ObserveAll is a convenience for feeding a whole chunk's sampled
// malformed values at once.
func (t *Tracker) ObserveAll(values []string) {
	if len(values) == 0 {
		return
	}
	t.mu.Lock()
	for _, v := range values {
		if v != "" {
			t.sketch.Incr(v)
		}
	}
	t.mu.Unlock()
}

// StartTicking advances the sliding window once per tickDur until
// Close is called, so old malformed values age out rather than
// accumulating forever across a long-lived follow session.
func (t *Tracker) StartTicking() {
	if t.tickDur <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(t.tickDur)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				t.sketch.Ticks(1)
				t.mu.Unlock()
			}
		}
	}()
}

// Top returns up to n offenders ordered by descending count.
func (t *Tracker) Top(n int) []Offender {
	t.mu.Lock()
	items := t.sketch.SortedSlice()
	t.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool { return items[i].Count > items[j].Count })
	if n > len(items) {
		n = len(items)
	}
	out := make([]Offender, n)
	for i := 0; i < n; i++ {
		out[i] = Offender{Value: items[i].Item, Count: items[i].Count}
	}
	return out
}

// Close stops the background ticking goroutine, if one was started.
func (t *Tracker) Close() {
	t.once.Do(func() { close(t.stop) })
}
