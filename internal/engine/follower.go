package engine

import (
	"os"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is the tail follower's default polling period.
const DefaultPollInterval = 5 * time.Second

// maxTailThresholdRows caps the tail band at an absolute row count even
// for very large files.
const maxTailThresholdRows = 100_000

// tailThresholdRatio is the fractional half of
// min(0.05 * total_rows, 100_000).
const tailThresholdRatio = 0.05

type tailEvent int

const (
	tailNoChange tailEvent = iota
	tailGrew
	tailShrunk
	tailRewrittenSameSize
	tailFileGone
)

// tailThreshold computes the row band that counts as "at the tail".
func tailThreshold(totalRows int) int {
	t := int(float64(totalRows) * tailThresholdRatio)
	if t > maxTailThresholdRows {
		t = maxTailThresholdRows
	}
	if t < 1 {
		t = 1
	}
	return t
}

// isAtTail reports whether a viewport whose last visible row is rowHi
// (exclusive bound) counts as following the tail of a file with
// totalRows rows.
func isAtTail(totalRows, rowHi int) bool {
	if totalRows == 0 {
		return true
	}
	return totalRows-rowHi <= tailThreshold(totalRows)
}

// Follower is a ticker-driven poller that watches a file's size and
// modification time without holding it open, matching the engine-wide
// rule against holding long-lived descriptors. It reports what
// changed; the façade performs the actual index extension or rebuild
// under its own lock.
type Follower struct {
	path     string
	interval time.Duration
	onEvent  func(ev tailEvent, size int64, modTime time.Time)

	snapshot atomic.Pointer[FollowerState]
	done     chan struct{}
}

func newFollower(path string, interval time.Duration, initial FollowerState, onEvent func(tailEvent, int64, time.Time)) *Follower {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	tf := &Follower{
		path:     path,
		interval: interval,
		onEvent:  onEvent,
		done:     make(chan struct{}),
	}
	tf.snapshot.Store(&initial)
	return tf
}

func (tf *Follower) start() {
	go tf.run()
}

func (tf *Follower) run() {
	ticker := time.NewTicker(tf.interval)
	defer ticker.Stop()
	for {
		select {
		case <-tf.done:
			return
		case <-ticker.C:
			tf.poll()
		}
	}
}

func (tf *Follower) poll() {
	st := tf.snapshot.Load()
	info, err := os.Stat(tf.path)
	if err != nil {
		tf.onEvent(tailFileGone, 0, time.Time{})
		return
	}
	switch {
	case info.Size() < st.LastSize:
		tf.onEvent(tailShrunk, info.Size(), info.ModTime())
	case info.Size() > st.LastSize:
		tf.onEvent(tailGrew, info.Size(), info.ModTime())
	case info.ModTime().After(st.LastModTime):
		tf.onEvent(tailRewrittenSameSize, info.Size(), info.ModTime())
	default:
		tf.onEvent(tailNoChange, info.Size(), info.ModTime())
	}
}

// Snapshot returns the follower's current externally-visible state.
func (tf *Follower) Snapshot() FollowerState {
	return *tf.snapshot.Load()
}

func (tf *Follower) updatePosition(size int64, modTime time.Time) {
	tf.mutate(func(s *FollowerState) {
		s.LastSize = size
		s.LastModTime = modTime
	})
}

// SetFollow implements set_follow(handle, enabled).
// Enabling follow always clears a prior auto-pause; resuming after an
// auto-pause is the explicit command this call represents.
func (tf *Follower) SetFollow(enabled bool) {
	tf.mutate(func(s *FollowerState) {
		s.FollowEnabled = enabled
		if enabled {
			s.Paused = false
		}
	})
}

// autoPauseIfAway implements the auto-pause rule: a manual
// viewport request that lands outside the tail band pauses following
// without disabling it, so a later explicit SetFollow(true) — not simply
// scrolling back — is required to resume.
func (tf *Follower) autoPauseIfAway(atTail bool) {
	tf.mutate(func(s *FollowerState) {
		if s.FollowEnabled && !atTail {
			s.Paused = true
		}
	})
}

func (tf *Follower) mutate(f func(*FollowerState)) {
	for {
		old := tf.snapshot.Load()
		next := *old
		f(&next)
		if tf.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (tf *Follower) Stop() {
	close(tf.done)
}
