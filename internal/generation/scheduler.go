package generation

import (
	"sync"
	"time"
	"unicode/utf8"
)

// Scheduler coalesces demultiplexed updates into flushes. A flush is forced
// immediately when a stream's accumulated content crosses the length
// threshold or the update is the stream's final one; everything else waits
// for a single shared throttle timer, so sustained delta arrival flushes at
// most once per interval.
//
// The pending set keeps the latest content per index across flushes: a
// consumer attaching mid-run reads the full known state, not just deltas
// since the last flush. Flushing twice with no new data is a no-op.
type Scheduler struct {
	mu        sync.Mutex
	threshold int
	interval  time.Duration
	flush     func(updates map[int]string)
	pending   map[int]string
	dirty     bool
	timer     *time.Timer
}

func NewScheduler(threshold int, interval time.Duration, flush func(updates map[int]string)) *Scheduler {
	return &Scheduler{
		threshold: threshold,
		interval:  interval,
		flush:     flush,
		pending:   make(map[int]string),
	}
}

// Offer records the latest content for index and decides between an
// immediate and a throttled flush.
func (s *Scheduler) Offer(index int, content string, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[index] = content
	s.dirty = true

	if complete || utf8.RuneCountInString(content) > s.threshold {
		s.flushLocked()
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.interval, s.Flush)
	}
}

// Flush synchronously pushes all pending updates. Safe to call at any time;
// the timer path and forced paths (cancel, failure, stream end) share it.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Scheduler) flushLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		return
	}
	s.dirty = false

	updates := make(map[int]string, len(s.pending))
	for i, content := range s.pending {
		updates[i] = content
	}
	s.flush(updates)
}

// Pending returns a copy of the latest known content per index.
func (s *Scheduler) Pending() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.pending))
	for i, content := range s.pending {
		out[i] = content
	}
	return out
}

// Stop cancels any armed timer. Pending content stays readable.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
