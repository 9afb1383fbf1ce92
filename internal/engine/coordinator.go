package engine

import (
	"sync"
	"time"
)

// DefaultThrottleDelay and DefaultDebounceDelay are the default timings:
// requests compress into the trailing debounce and are rate limited by
// the throttle measured from the previous fetch's completion.
const (
	DefaultDebounceDelay = 300 * time.Millisecond
	DefaultThrottleDelay = 200 * time.Millisecond
)

type viewportRequest struct {
	xStart, xEnd float64
}

// fetchFunc performs the actual ranged read, filter, downsample and
// trace assembly for one settled viewport request. It is supplied by the
// façade, which owns the shared row/x index and file handle.
type fetchFunc func(req viewportRequest, token RequestToken, epoch uint64) (Result, error)

// Coordinator drives viewport fetches from a single worker goroutine
// woken by a one-slot "doorbell" instead of a queue, so that only the
// most recently requested viewport is ever in flight. Its three states
// — idle, fetching, stale — map onto this loop as: idle is blocking on
// the doorbell; fetching is the debounce/throttle wait plus the
// fetchFunc call; stale is detected, not preempted, at fetch
// completion.
type Coordinator struct {
	mu sync.Mutex

	desired     viewportRequest
	haveDesired bool
	version     uint64
	epoch       uint64
	lastChange  time.Time
	lastResult  time.Time
	closed      bool

	doorbell chan struct{}
	done     chan struct{}

	fetch    fetchFunc
	emit     func(Result)
	debounce time.Duration
	throttle time.Duration
}

func newCoordinator(fetch fetchFunc, emit func(Result)) *Coordinator {
	c := &Coordinator{
		doorbell: make(chan struct{}, 1),
		done:     make(chan struct{}),
		fetch:    fetch,
		emit:     emit,
		debounce: DefaultDebounceDelay,
		throttle: DefaultThrottleDelay,
	}
	go c.run()
	return c
}

func (c *Coordinator) ring() {
	select {
	case c.doorbell <- struct{}{}:
	default:
	}
}

// RequestViewport records a new desired viewport and wakes the worker.
// Identical consecutive bounds are deduped to the current version rather
// than minting a new one.
func (c *Coordinator) RequestViewport(xStart, xEnd float64) RequestToken {
	c.mu.Lock()
	if c.haveDesired && c.desired.xStart == xStart && c.desired.xEnd == xEnd {
		tok := c.version
		c.mu.Unlock()
		return tok
	}
	c.version++
	c.desired = viewportRequest{xStart: xStart, xEnd: xEnd}
	c.haveDesired = true
	c.lastChange = time.Now()
	tok := c.version
	c.mu.Unlock()
	c.ring()
	return tok
}

// BumpEpoch invalidates every in-flight and future-completing fetch
// started before this call, without re-requesting a viewport (used by
// Reload and by the tail follower's rebuild-on-shrink path).
func (c *Coordinator) BumpEpoch() uint64 {
	c.mu.Lock()
	c.epoch++
	e := c.epoch
	c.mu.Unlock()
	c.ring()
	return e
}

// Close stops the worker goroutine. Safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
}

func (c *Coordinator) run() {
	for {
		select {
		case <-c.done:
			return
		case <-c.doorbell:
		}

		if !c.waitDebounce() {
			return
		}
		if !c.waitThrottle() {
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if !c.haveDesired {
			c.mu.Unlock()
			continue
		}
		req := c.desired
		token := c.version
		epoch := c.epoch
		c.mu.Unlock()

		result, err := c.fetch(req, token, epoch)

		c.mu.Lock()
		c.lastResult = time.Now()
		staleVersion := token != c.version
		staleEpoch := epoch != c.epoch
		c.mu.Unlock()

		switch {
		case err != nil:
			c.emit(Result{Token: token, Epoch: epoch, Discarded: true, DiscardReason: reasonIOError(err.Error())})
		case staleEpoch:
			c.emit(Result{Token: token, Epoch: epoch, Discarded: true, DiscardReason: reasonEpochChange})
			c.ring()
		case staleVersion:
			c.emit(Result{Token: token, Epoch: epoch, Discarded: true, DiscardReason: reasonSuperseded})
			c.ring()
		default:
			c.emit(result)
		}
	}
}

// waitDebounce blocks until the coordinator's debounce delay
// (DefaultDebounceDelay unless overridden) has elapsed since the
// last RequestViewport call, restarting the wait whenever a new one
// arrives in the meantime: a trailing debounce.
func (c *Coordinator) waitDebounce() bool {
	for {
		c.mu.Lock()
		wait := c.debounce - time.Since(c.lastChange)
		c.mu.Unlock()
		if wait <= 0 {
			return true
		}
		select {
		case <-c.done:
			return false
		case <-time.After(wait):
		case <-c.doorbell:
		}
	}
}

// waitThrottle blocks until the coordinator's throttle delay
// (DefaultThrottleDelay unless overridden) has elapsed since the previous
// fetch's completion.
func (c *Coordinator) waitThrottle() bool {
	c.mu.Lock()
	wait := c.throttle - time.Since(c.lastResult)
	c.mu.Unlock()
	if wait <= 0 {
		return true
	}
	select {
	case <-c.done:
		return false
	case <-time.After(wait):
		return true
	}
}
